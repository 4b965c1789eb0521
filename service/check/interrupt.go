package check

import (
	"context"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/interrupt"
)

// interruptCheck asks the interrupt subsystem whether a pending interrupt
// targets this node before it starts; when one does the interrupt handling
// path owns the node's fate and the chain stops.
type interruptCheck struct {
	chain      *Chain
	interrupts interrupt.Service
}

func (c *interruptCheck) Name() string { return "interrupt" }

func (c *interruptCheck) Check(ctx context.Context, nodeExecution *execution.NodeExecution, _ *plan.Node) (Result, error) {
	if c.interrupts == nil {
		return proceed, nil
	}
	outcome, err := c.interrupts.CheckAndHandleBeforeStart(ctx, nodeExecution.Ambiance.PlanExecutionID, nodeExecution.Ambiance.CurrentRuntimeID())
	if err != nil {
		return Result{}, err
	}
	if outcome.Proceed {
		return proceed, nil
	}
	switch outcome.Interrupt.Type {
	case interrupt.TypeAbort:
		if _, err := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			if err := guard(e, execution.StatusAborted); err != nil {
				return err
			}
			e.Abort(outcome.Reason)
			return nil
		}); err != nil {
			return Result{}, err
		}
	case interrupt.TypePause:
		if _, err := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			if err := guard(e, execution.StatusPaused); err != nil {
				return err
			}
			e.Status = execution.StatusPaused
			return nil
		}); err != nil {
			return Result{}, err
		}
	}
	return Result{Proceed: false, Reason: outcome.Reason}, nil
}
