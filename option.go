package facilitor

import (
	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/restraint"
	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/dao"
	plandao "github.com/viant/facilitor/service/dao/plan"
	"github.com/viant/facilitor/service/engine"
	"github.com/viant/facilitor/service/event"
	"github.com/viant/facilitor/service/facilitate"
	"github.com/viant/facilitor/service/interrupt"
	"github.com/viant/facilitor/service/messaging"
	"github.com/viant/facilitor/service/ticket"
	"github.com/viant/facilitor/tracing"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service facade.
type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithQueue sets the node execution queue.
func WithQueue(queue messaging.Queue[execution.NodeExecution]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithEventQueue relays every execution event into the supplied queue so
// external consumers receive them with ack/nack delivery; see
// Runtime.SubscribeEvents.
func WithEventQueue(queue messaging.Queue[event.Event[any]]) Option {
	return func(s *Service) { s.eventQueue = queue }
}

// WithExecutionDao sets the node execution DAO.
func WithExecutionDao(executionDao dao.ConditionalService[string, execution.NodeExecution]) Option {
	return func(s *Service) { s.executionDao = executionDao }
}

// WithPlanExecutionDao sets the plan execution DAO.
func WithPlanExecutionDao(planExecutions dao.Service[string, execution.PlanExecution]) Option {
	return func(s *Service) { s.planExecutionDao = planExecutions }
}

// WithRestraintDao sets the restraint definition DAO.
func WithRestraintDao(restraints dao.Service[string, restraint.Restraint]) Option {
	return func(s *Service) { s.restraintDao = restraints }
}

// WithRestraintInstanceDao sets the restraint instance DAO.
func WithRestraintInstanceDao(instances dao.Service[string, restraint.Instance]) Option {
	return func(s *Service) { s.restraintInstanceDao = instances }
}

// WithApprovalService sets the approval service.
func WithApprovalService(service *approval.Service) Option {
	return func(s *Service) { s.approvalService = service }
}

// WithTicketProviders sets the ticket provider registry used by the default
// approval service.
func WithTicketProviders(providers *ticket.Registry) Option {
	return func(s *Service) { s.ticketProviders = providers }
}

// WithInterruptService sets the interrupt service.
func WithInterruptService(service interrupt.Service) Option {
	return func(s *Service) { s.interrupts = service }
}

// WithEvaluator sets the expression evaluator used by the check chain.
func WithEvaluator(expressions evaluator.Evaluator) Option {
	return func(s *Service) { s.expressions = expressions }
}

// WithObservers registers additional transition observers.
func WithObservers(observers ...event.Observer) Option {
	return func(s *Service) { s.extraObservers = append(s.extraObservers, observers...) }
}

// WithHandler sets the inline work handler invoked for sync nodes.
func WithHandler(handler engine.Handler) Option {
	return func(s *Service) { s.handler = handler }
}

// WithFacilitators registers additional facilitators next to the built-ins.
func WithFacilitators(facilitators ...facilitate.Facilitator) Option {
	return func(s *Service) { s.facilitators = append(s.facilitators, facilitators...) }
}

// WithFacilitatorTypes seeds the facilitator parameter type registry.
func WithFacilitatorTypes(types ...*x.Type) Option {
	return func(s *Service) { s.facilitatorTypes = append(s.facilitatorTypes, types...) }
}

// WithPlanDAO sets the plan loader.
func WithPlanDAO(planDAO *plandao.Service) Option {
	return func(s *Service) { s.planDAO = planDAO }
}

// WithPlanBaseURL sets the base URL relative plan locations resolve against.
func WithPlanBaseURL(url string) Option {
	return func(s *Service) { s.planBaseURL = url }
}

// WithRootNodeName sets the document key holding the plan node tree.
func WithRootNodeName(name string) Option {
	return func(s *Service) { s.rootNodeName = name }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times - the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter. This enables
// integrations with exporters other than the built-in stdout exporter, for example OTLP, Jaeger or
// Zipkin. The function is safe to call multiple times - the first successful initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
