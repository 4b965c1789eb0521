package engine

import (
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/service/check"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/interrupt"
	"github.com/viant/facilitor/service/messaging"
	restraintsvc "github.com/viant/facilitor/service/restraint"
)

// Option customises the orchestration driver.
type Option func(*Service)

// WithConfig overrides the driver configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithQueue sets the ready-execution queue.
func WithQueue(queue messaging.Queue[execution.NodeExecution]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithExecutionDao sets the conditional node execution store.
func WithExecutionDao(executionDao dao.ConditionalService[string, execution.NodeExecution]) Option {
	return func(s *Service) { s.executionDao = executionDao }
}

// WithPlanExecutionDao sets the plan execution store.
func WithPlanExecutionDao(planExecutions dao.Service[string, execution.PlanExecution]) Option {
	return func(s *Service) { s.planExecutions = planExecutions }
}

// WithChain sets the pre-facilitation check chain.
func WithChain(chain *check.Chain) Option {
	return func(s *Service) { s.chain = chain }
}

// WithFacilitator sets the facilitation dispatcher.
func WithFacilitator(facilitator *facilitate.Service) Option {
	return func(s *Service) { s.facilitator = facilitator }
}

// WithRestraints attaches the admission control service.
func WithRestraints(restraints *restraintsvc.Service) Option {
	return func(s *Service) { s.restraints = restraints }
}

// WithInterrupts attaches the interrupt registry so plan-wide interrupts
// can be cleared once their plan execution finishes.
func WithInterrupts(interrupts interrupt.Service) Option {
	return func(s *Service) { s.interrupts = interrupts }
}

// WithApprovals attaches the approval service; an "approval" facilitator is
// registered and terminal outcomes are fed back into node statuses.
func WithApprovals(approvals approvalBridge) Option {
	return func(s *Service) { s.approvals = approvals }
}

// WithObservers overrides the observer fan-out registry.
func WithObservers(observers *event.Observers) Option {
	return func(s *Service) { s.observers = observers }
}

// WithHandler sets the inline handler invoked for SYNC nodes.
func WithHandler(handler Handler) Option {
	return func(s *Service) { s.handler = handler }
}
