package facilitor

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/progress"
	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/dao"
	plandao "github.com/viant/facilitor/service/dao/plan"
	"github.com/viant/facilitor/service/engine"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/interrupt"
	"github.com/viant/facilitor/service/messaging"
	restraintsvc "github.com/viant/facilitor/service/restraint"
)

// Runtime is the operational handle of an assembled service: plan loading,
// plan lifecycle, node callbacks, approvals, interrupts and admission
// control inspection.
type Runtime struct {
	engine           *engine.Service
	planDAO          *plandao.Service
	executionDao     dao.ConditionalService[string, execution.NodeExecution]
	planExecutionDao dao.Service[string, execution.PlanExecution]
	approvalService  *approval.Service
	restraints       *restraintsvc.Service
	restraintDao     dao.Service[string, restraint.Restraint]
	interrupts       interrupt.Service
	progress         *progress.Tracker
	eventQueue       messaging.Queue[event.Event[any]]

	initErr     error
	stopPoller  func()
	stopSweeper func()
}

// LoadPlan loads a plan definition from the configured location.
func (r *Runtime) LoadPlan(ctx context.Context, location string) (*plan.Plan, error) {
	return r.planDAO.Load(ctx, location)
}

// DecodeYAMLPlan decodes a plan definition from YAML bytes.
func (r *Runtime) DecodeYAMLPlan(data []byte) (*plan.Plan, error) {
	return r.planDAO.DecodeYAML(data)
}

// StartPlan schedules the plan's root node and returns the plan execution.
func (r *Runtime) StartPlan(ctx context.Context, aPlan *plan.Plan, accountID string, abstractions map[string]string) (*execution.PlanExecution, error) {
	return r.engine.StartPlan(ctx, aPlan, accountID, abstractions)
}

// WaitForPlan blocks until the plan execution finishes or the timeout
// elapses, returning the latest plan execution record either way.
func (r *Runtime) WaitForPlan(ctx context.Context, planExecutionID string, timeout time.Duration) (*execution.PlanExecution, error) {
	deadline := time.Now().Add(timeout)
	for {
		planExecution, err := r.planExecutionDao.Load(ctx, planExecutionID)
		if err != nil {
			return nil, err
		}
		if planExecution == nil {
			return nil, fmt.Errorf("plan execution %s not found", planExecutionID)
		}
		if planExecution.IsFinished() {
			return planExecution, nil
		}
		if time.Now().After(deadline) {
			return planExecution, fmt.Errorf("timeout waiting for plan execution %q", planExecutionID)
		}
		select {
		case <-ctx.Done():
			return planExecution, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// PausePlan pauses a running plan execution.
func (r *Runtime) PausePlan(ctx context.Context, planExecutionID string) error {
	return r.engine.PausePlan(ctx, planExecutionID)
}

// ResumePlan resumes a paused plan execution.
func (r *Runtime) ResumePlan(ctx context.Context, planExecutionID string) error {
	return r.engine.ResumePlan(ctx, planExecutionID)
}

// ResumeNode feeds an external callback outcome into a parked node execution.
func (r *Runtime) ResumeNode(ctx context.Context, nodeExecutionID string, success bool, message string) error {
	return r.engine.ResumeNode(ctx, nodeExecutionID, success, message)
}

// ExpireNode forces a parked node execution to its expired terminal status.
func (r *Runtime) ExpireNode(ctx context.Context, nodeExecutionID, reason string) error {
	return r.engine.ExpireNode(ctx, nodeExecutionID, reason)
}

// RaiseInterrupt registers an abort, pause or retry interrupt; an empty
// nodeRuntimeID targets every pending node of the plan execution.
func (r *Runtime) RaiseInterrupt(ctx context.Context, interruptType, planExecutionID, nodeRuntimeID string) (*interrupt.Interrupt, error) {
	switch interruptType {
	case interrupt.TypeAbort, interrupt.TypePause, interrupt.TypeRetry:
	default:
		return nil, fmt.Errorf("unknown interrupt type %q", interruptType)
	}
	return r.interrupts.Register(ctx, &interrupt.Interrupt{
		Type:            interruptType,
		PlanExecutionID: planExecutionID,
		NodeRuntimeID:   nodeRuntimeID,
	})
}

// Approve records an approve decision on an approval instance.
func (r *Runtime) Approve(ctx context.Context, instanceID, user string, groups []string, comment string) (*approval.Instance, error) {
	return r.approvalService.AddActivity(ctx, instanceID, user, groups, approval.DecisionApprove, comment)
}

// Reject records a reject decision on an approval instance.
func (r *Runtime) Reject(ctx context.Context, instanceID, user string, groups []string, comment string) (*approval.Instance, error) {
	return r.approvalService.AddActivity(ctx, instanceID, user, groups, approval.DecisionReject, comment)
}

// ApprovalInstance returns an approval instance by id.
func (r *Runtime) ApprovalInstance(ctx context.Context, id string) (*approval.Instance, error) {
	return r.approvalService.Get(ctx, id)
}

// UpsertRestraint creates or updates a restraint definition.
func (r *Runtime) UpsertRestraint(ctx context.Context, definition *restraint.Restraint) error {
	if definition.Name == "" {
		return fmt.Errorf("restraint name is required")
	}
	if definition.Capacity <= 0 {
		return fmt.Errorf("restraint capacity must be positive, got %v", definition.Capacity)
	}
	if definition.ID == "" {
		definition.ID = definition.AccountID + "/" + definition.Name
	}
	if definition.Strategy == "" {
		definition.Strategy = restraint.StrategyFIFO
	}
	return r.restraintDao.Save(ctx, definition)
}

// RestraintInfo lists active and waiting holders of a restraint's resource
// unit joined with their owning executions.
func (r *Runtime) RestraintInfo(ctx context.Context, name, accountID, resourceUnit string) ([]*restraintsvc.HolderInfo, error) {
	return r.restraints.ExecutionInfo(ctx, name, accountID, resourceUnit)
}

// NodeExecution returns a node execution by id.
func (r *Runtime) NodeExecution(ctx context.Context, id string) (*execution.NodeExecution, error) {
	return r.executionDao.Load(ctx, id)
}

// NodeExecutions lists node executions matching the given parameters.
func (r *Runtime) NodeExecutions(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.NodeExecution, error) {
	return r.executionDao.List(ctx, parameters...)
}

// PlanExecution returns a plan execution by id.
func (r *Runtime) PlanExecution(ctx context.Context, id string) (*execution.PlanExecution, error) {
	return r.planExecutionDao.Load(ctx, id)
}

// Progress returns the aggregated node counters of a plan execution.
func (r *Runtime) Progress(planExecutionID string) progress.Report {
	return r.progress.Snapshot(planExecutionID)
}

// SubscribeEvents starts a listener consuming relayed events off the event
// queue.  Requires WithEventQueue; the caller stops the returned listener.
func (r *Runtime) SubscribeEvents(handler func(*event.Event[any])) (*event.Listener, error) {
	if r.eventQueue == nil {
		return nil, fmt.Errorf("no event queue configured")
	}
	listener := event.NewListener(r.eventQueue, handler)
	listener.Start()
	return listener, nil
}

// Start launches the driver workers plus the approval poller and expiration
// sweeper.
func (r *Runtime) Start(ctx context.Context) error {
	if r.initErr != nil {
		return r.initErr
	}
	if err := r.engine.Start(ctx); err != nil {
		return err
	}
	r.stopPoller = approval.StartPoller(ctx, r.approvalService)
	r.stopSweeper = approval.StartSweeper(ctx, r.approvalService)
	return nil
}

// Shutdown stops background workers and waits for in-flight work to drain.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.stopPoller != nil {
		r.stopPoller()
	}
	if r.stopSweeper != nil {
		r.stopSweeper()
	}
	if r.engine != nil {
		r.engine.Shutdown()
	}
	return nil
}
