package check

import (
	"context"
	"fmt"

	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/service/event"
)

// skipCheck evaluates the node's skip condition against the ambiance.  A
// true result skips the node; an evaluation error fails it closed - the node
// is never left silently stuck.
type skipCheck struct {
	chain       *Chain
	expressions evaluator.Evaluator
}

func (c *skipCheck) Name() string { return "skipCondition" }

func (c *skipCheck) Check(ctx context.Context, nodeExecution *execution.NodeExecution, node *plan.Node) (Result, error) {
	if node.Skip == "" {
		return proceed, nil
	}
	value, err := c.expressions.EvaluateBool(node.Skip, nodeExecution.Ambiance.AsState())
	if err != nil {
		message := fmt.Sprintf("skip condition evaluation failed: %v", err)
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
	if !value {
		return proceed, nil
	}
	info := &execution.SkipInfo{SkipCondition: node.Skip, EvaluatedValue: true}
	if _, err := c.chain.transition(ctx, nodeExecution.UUID, event.TypeNodeStatusUpdate, func(e *execution.NodeExecution) error {
		if err := guard(e, execution.StatusSkipped); err != nil {
			return err
		}
		e.Skip(info)
		return nil
	}); err != nil {
		return Result{}, err
	}
	return Result{Proceed: false, Reason: fmt.Sprintf("skip condition %q evaluated to true", node.Skip)}, nil
}
