package execution

import (
	"time"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/internal/idgen"
	"github.com/viant/facilitor/model/ambiance"
)

type (
	// RunInfo records the evaluated when-condition for audit.
	RunInfo struct {
		WhenCondition  string `json:"whenCondition,omitempty"`
		EvaluatedValue bool   `json:"evaluatedValue"`
	}

	// SkipInfo records the evaluated skip-condition for audit.
	SkipInfo struct {
		SkipCondition  string `json:"skipCondition,omitempty"`
		EvaluatedValue bool   `json:"evaluatedValue"`
	}

	// FailureInfo carries the classification and human-readable reason of a
	// terminal failure; it is persisted on the record for later inspection.
	FailureInfo struct {
		Type    FailureType `json:"type,omitempty"`
		Message string      `json:"message,omitempty"`
	}

	// NodeExecution represents a single scheduled plan node.  It is mutated
	// only through conditional (version checked) DAO updates keyed by UUID and
	// retained for audit after completion.
	NodeExecution struct {
		UUID     string             `json:"uuid"`
		NodeID   string             `json:"nodeId"`
		Ambiance *ambiance.Ambiance `json:"ambiance"`
		Status   Status             `json:"status"`
		Version  int                `json:"version"`

		RunInfo     *RunInfo     `json:"nodeRunInfo,omitempty"`
		SkipInfo    *SkipInfo    `json:"skipInfo,omitempty"`
		FailureInfo *FailureInfo `json:"failureInfo,omitempty"`

		CreatedAt   time.Time  `json:"createdAt"`
		StartedAt   *time.Time `json:"startedAt,omitempty"`
		CompletedAt *time.Time `json:"completedAt,omitempty"`
	}
)

// NewNodeExecution schedules a plan node under the supplied ambiance.
func NewNodeExecution(nodeID string, amb *ambiance.Ambiance) *NodeExecution {
	return &NodeExecution{
		UUID:      idgen.New(),
		NodeID:    nodeID,
		Ambiance:  amb,
		Status:    StatusQueued,
		CreatedAt: clock.Now(),
	}
}

// Start marks the execution as running.
func (e *NodeExecution) Start() {
	now := clock.Now()
	e.StartedAt = &now
	e.Status = StatusRunning
}

// Skip drives the execution to its skipped terminal status, recording the
// evaluated condition for audit.
func (e *NodeExecution) Skip(info *SkipInfo) {
	now := clock.Now()
	e.CompletedAt = &now
	e.SkipInfo = info
	e.Status = StatusSkipped
}

// Succeed marks the execution as succeeded.
func (e *NodeExecution) Succeed() {
	now := clock.Now()
	e.CompletedAt = &now
	e.Status = StatusSucceeded
}

// Fail drives the execution to failed with the supplied classification.
func (e *NodeExecution) Fail(failureType FailureType, message string) {
	now := clock.Now()
	e.CompletedAt = &now
	e.FailureInfo = &FailureInfo{Type: failureType, Message: message}
	e.Status = StatusFailed
}

// Abort marks the execution as aborted.
func (e *NodeExecution) Abort(reason string) {
	now := clock.Now()
	e.CompletedAt = &now
	if reason != "" {
		e.FailureInfo = &FailureInfo{Message: reason}
	}
	e.Status = StatusAborted
}

// Clone creates a deep copy of the execution so that the caller can mutate it
// without affecting the original instance.
func (e *NodeExecution) Clone() *NodeExecution {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Ambiance = e.Ambiance.Clone()
	if e.RunInfo != nil {
		info := *e.RunInfo
		clone.RunInfo = &info
	}
	if e.SkipInfo != nil {
		info := *e.SkipInfo
		clone.SkipInfo = &info
	}
	if e.FailureInfo != nil {
		info := *e.FailureInfo
		clone.FailureInfo = &info
	}
	return &clone
}
