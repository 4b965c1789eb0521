package check

import (
	"context"
	"fmt"
	"log"

	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/interrupt"
)

// updateAttempts bounds re-reads on optimistic conflicts during the
// synchronous pre-start path.
const updateAttempts = 3

// Chain runs its checkers in order with early return.  Status transitions
// performed by checkers go through the conditional execution DAO and are
// broadcast to observers.
type Chain struct {
	checks       []Check
	executionDao dao.ConditionalService[string, execution.NodeExecution]
	observers    *event.Observers
}

// New creates the default chain: interrupt, skip-condition and
// when-condition checks, in that order.
func New(executionDao dao.ConditionalService[string, execution.NodeExecution], interrupts interrupt.Service, expressions evaluator.Evaluator, observers *event.Observers) *Chain {
	chain := &Chain{
		executionDao: executionDao,
		observers:    observers,
	}
	chain.checks = []Check{
		&interruptCheck{chain: chain, interrupts: interrupts},
		&skipCheck{chain: chain, expressions: expressions},
		&whenCheck{chain: chain, expressions: expressions},
	}
	return chain
}

// Run executes the chain; overall success requires every checker to proceed.
func (c *Chain) Run(ctx context.Context, nodeExecution *execution.NodeExecution, node *plan.Node) (Result, error) {
	for _, check := range c.checks {
		result, err := check.Check(ctx, nodeExecution, node)
		if err != nil {
			return Result{Proceed: false, Reason: err.Error()}, err
		}
		if !result.Proceed {
			log.Printf("node %s denied by %s check: %s", nodeExecution.UUID, check.Name(), result.Reason)
			return result, nil
		}
	}
	return proceed, nil
}

// transition applies mutator to the node execution with conflict retries and
// notifies observers of the resulting status.
func (c *Chain) transition(ctx context.Context, id string, eventType string, mutator func(*execution.NodeExecution) error) (*execution.NodeExecution, error) {
	updated, err := dao.RetryConditionalUpdate(ctx, c.executionDao, id,
		func(e *execution.NodeExecution) int { return e.Version },
		updateAttempts, mutator)
	if err != nil {
		return nil, fmt.Errorf("failed to update node execution %s: %w", id, err)
	}
	if c.observers != nil {
		c.observers.Notify(event.NewEvent[any](event.NodeContext(eventType, updated), updated))
	}
	return updated, nil
}

// guard rejects transitions that would leave the monotonic status order.
func guard(e *execution.NodeExecution, to execution.Status) error {
	if !e.Status.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s for node execution %s", e.Status, to, e.UUID)
	}
	return nil
}
