package check

import (
	"context"
	"fmt"

	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/service/event"
)

// whenCheck evaluates the node's run condition; the polarity is inverted
// relative to skipCheck - a false result skips the node.  The evaluated
// value is recorded for audit either way.
type whenCheck struct {
	chain       *Chain
	expressions evaluator.Evaluator
}

func (c *whenCheck) Name() string { return "whenCondition" }

func (c *whenCheck) Check(ctx context.Context, nodeExecution *execution.NodeExecution, node *plan.Node) (Result, error) {
	if node.When == "" {
		return proceed, nil
	}
	value, err := c.expressions.EvaluateBool(node.When, nodeExecution.Ambiance.AsState())
	if err != nil {
		message := fmt.Sprintf("when condition evaluation failed: %v", err)
		if _, updateErr := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			if err := guard(e, execution.StatusFailed); err != nil {
				return err
			}
			e.Fail(execution.ApplicationFailure, message)
			return nil
		}); updateErr != nil {
			return Result{}, updateErr
		}
		return Result{Proceed: false, Reason: message}, nil
	}
	info := &execution.RunInfo{WhenCondition: node.When, EvaluatedValue: value}
	if value {
		if _, err := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
			e.RunInfo = info
			return nil
		}); err != nil {
			return Result{}, err
		}
		return proceed, nil
	}
	if _, err := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
		if err := guard(e, execution.StatusSkipped); err != nil {
			return err
		}
		e.RunInfo = info
		e.Skip(nil)
		return nil
	}); err != nil {
		return Result{}, err
	}
	return Result{Proceed: false, Reason: fmt.Sprintf("when condition %q evaluated to false", node.When)}, nil
}
