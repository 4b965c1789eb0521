package event

import (
	"time"

	"github.com/viant/facilitor/model/execution"
)

// Event types broadcast by the engine.
const (
	TypeNodeStart        = "node.start"
	TypeNodeStatusUpdate = "node.statusUpdate"
	TypePlanStatusUpdate = "plan.statusUpdate"
)

// Context identifies the execution transition an event describes.
type Context struct {
	PlanExecutionID string           `json:"planExecutionId"`
	NodeExecutionID string           `json:"nodeExecutionId,omitempty"`
	NodeID          string           `json:"nodeId,omitempty"`
	Group           string           `json:"group,omitempty"`
	StepType        string           `json:"stepType,omitempty"`
	EventType       string           `json:"eventType"`
	Status          execution.Status `json:"status,omitempty"`
	PlanState       string           `json:"planState,omitempty"`
	TimeTakenMs     int              `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}

// NodeContext builds an event context for a node execution transition.
func NodeContext(eventType string, nodeExecution *execution.NodeExecution) *Context {
	ret := &Context{
		EventType:       eventType,
		NodeExecutionID: nodeExecution.UUID,
		NodeID:          nodeExecution.NodeID,
		Status:          nodeExecution.Status,
	}
	if amb := nodeExecution.Ambiance; amb != nil {
		ret.PlanExecutionID = amb.PlanExecutionID
		if level := amb.CurrentLevel(); level != nil {
			ret.Group = level.Group
			ret.StepType = level.StepType
		}
	}
	return ret
}

// PlanContext builds an event context for a plan-level transition.
func PlanContext(planExecution *execution.PlanExecution) *Context {
	return &Context{
		EventType:       TypePlanStatusUpdate,
		PlanExecutionID: planExecution.ID,
		PlanState:       planExecution.State,
	}
}
