package facilitate

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/viant/facilitor/model/ambiance"
	"github.com/viant/structology/conv"
	"github.com/viant/x"
)

// DirectParameters configures the sync and async built-in facilitators.
type DirectParameters struct {
	InitialWait  string `json:"initialWait,omitempty"`
	Restraint    string `json:"restraintName,omitempty"`
	ResourceUnit string `json:"resourceUnit,omitempty"`
}

// TaskParameters configures the task and taskChain built-in facilitators.
type TaskParameters struct {
	Category     string `json:"category,omitempty"`
	InitialWait  string `json:"initialWait,omitempty"`
	Restraint    string `json:"restraintName,omitempty"`
	ResourceUnit string `json:"resourceUnit,omitempty"`
}

// ChildParameters configures the child built-in facilitator.
type ChildParameters struct {
	NodeID      string `json:"nodeId"`
	InitialWait string `json:"initialWait,omitempty"`
}

// ChildrenParameters configures the childChain and children built-in
// facilitators.
type ChildrenParameters struct {
	NodeIDs     []string `json:"nodeIds"`
	InitialWait string   `json:"initialWait,omitempty"`
}

func addRestraint(decision *Decision, restraint, unit string) {
	if restraint == "" {
		return
	}
	if decision.PassThrough == nil {
		decision.PassThrough = map[string]interface{}{}
	}
	decision.PassThrough["restraintName"] = restraint
	if unit != "" {
		decision.PassThrough["resourceUnit"] = unit
	}
}

func newConverter() *conv.Converter {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	options.AccessUnexported = true
	return conv.NewConverter(options)
}

type baseFacilitator struct {
	name      string
	converter *conv.Converter
}

func (f *baseFacilitator) Name() string {
	return f.name
}

func (f *baseFacilitator) bind(parameters map[string]interface{}, target interface{}) error {
	if len(parameters) == 0 {
		return nil
	}
	if err := f.converter.Convert(parameters, target); err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid %v parameters: %v", f.name, err)}
	}
	return nil
}

func (f *baseFacilitator) initialWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ConfigurationError{Reason: fmt.Sprintf("invalid %v initialWait %q: %v", f.name, raw, err)}
	}
	return wait, nil
}

type directFacilitator struct {
	baseFacilitator
	mode Mode
}

func (f *directFacilitator) Facilitate(_ context.Context, _ *ambiance.Ambiance, parameters map[string]interface{}) (*Decision, error) {
	params := &DirectParameters{}
	if err := f.bind(parameters, params); err != nil {
		return nil, err
	}
	wait, err := f.initialWait(params.InitialWait)
	if err != nil {
		return nil, err
	}
	decision := &Decision{Mode: f.mode, InitialWait: wait}
	addRestraint(decision, params.Restraint, params.ResourceUnit)
	return decision, nil
}

func (f *directFacilitator) InitTypes(registry *x.Registry) {
	registry.Register(x.NewType(reflect.TypeOf(DirectParameters{})))
}

type taskFacilitator struct {
	baseFacilitator
	mode Mode
}

func (f *taskFacilitator) Facilitate(_ context.Context, _ *ambiance.Ambiance, parameters map[string]interface{}) (*Decision, error) {
	params := &TaskParameters{}
	if err := f.bind(parameters, params); err != nil {
		return nil, err
	}
	wait, err := f.initialWait(params.InitialWait)
	if err != nil {
		return nil, err
	}
	decision := &Decision{Mode: f.mode, InitialWait: wait}
	if params.Category != "" {
		decision.PassThrough = map[string]interface{}{"category": params.Category}
	}
	addRestraint(decision, params.Restraint, params.ResourceUnit)
	return decision, nil
}

func (f *taskFacilitator) InitTypes(registry *x.Registry) {
	registry.Register(x.NewType(reflect.TypeOf(TaskParameters{})))
}

type childFacilitator struct {
	baseFacilitator
}

func (f *childFacilitator) Facilitate(_ context.Context, _ *ambiance.Ambiance, parameters map[string]interface{}) (*Decision, error) {
	params := &ChildParameters{}
	if err := f.bind(parameters, params); err != nil {
		return nil, err
	}
	if params.NodeID == "" {
		return nil, &ConfigurationError{Reason: "child facilitator requires nodeId"}
	}
	wait, err := f.initialWait(params.InitialWait)
	if err != nil {
		return nil, err
	}
	return &Decision{Mode: ModeChild, InitialWait: wait, ChildNodeID: params.NodeID}, nil
}

func (f *childFacilitator) InitTypes(registry *x.Registry) {
	registry.Register(x.NewType(reflect.TypeOf(ChildParameters{})))
}

type childrenFacilitator struct {
	baseFacilitator
	mode Mode
}

func (f *childrenFacilitator) Facilitate(_ context.Context, _ *ambiance.Ambiance, parameters map[string]interface{}) (*Decision, error) {
	params := &ChildrenParameters{}
	if err := f.bind(parameters, params); err != nil {
		return nil, err
	}
	if len(params.NodeIDs) == 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("%v facilitator requires nodeIds", f.name)}
	}
	wait, err := f.initialWait(params.InitialWait)
	if err != nil {
		return nil, err
	}
	return &Decision{Mode: f.mode, InitialWait: wait, ChildNodeIDs: params.NodeIDs}, nil
}

func (f *childrenFacilitator) InitTypes(registry *x.Registry) {
	registry.Register(x.NewType(reflect.TypeOf(ChildrenParameters{})))
}

// RegisterBuiltins registers the built-in facilitators, one per execution
// mode, keyed by the obtainment type names a plan refers to them by.
func RegisterBuiltins(registry *Registry) {
	converter := newConverter()
	registry.Register(&directFacilitator{baseFacilitator: baseFacilitator{name: "sync", converter: converter}, mode: ModeSync})
	registry.Register(&directFacilitator{baseFacilitator: baseFacilitator{name: "async", converter: converter}, mode: ModeAsync})
	registry.Register(&taskFacilitator{baseFacilitator: baseFacilitator{name: "task", converter: converter}, mode: ModeTask})
	registry.Register(&taskFacilitator{baseFacilitator: baseFacilitator{name: "taskChain", converter: converter}, mode: ModeTaskChain})
	registry.Register(&childFacilitator{baseFacilitator: baseFacilitator{name: "child", converter: converter}})
	registry.Register(&childrenFacilitator{baseFacilitator: baseFacilitator{name: "childChain", converter: converter}, mode: ModeChildChain})
	registry.Register(&childrenFacilitator{baseFacilitator: baseFacilitator{name: "children", converter: converter}, mode: ModeChildren})
}
