package approval

import (
	"github.com/viant/facilitor/model/evaluator"
	"github.com/viant/facilitor/service/dao"
	"github.com/viant/facilitor/service/messaging"
	"github.com/viant/facilitor/service/ticket"
)

// Option customises the approval service.
type Option func(*Service)

// WithInstanceDao overrides the instance store.
func WithInstanceDao(instances dao.Service[string, Instance]) Option {
	return func(s *Service) { s.instances = instances }
}

// WithQueue overrides the event queue.
func WithQueue(queue messaging.Queue[Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithEvaluator overrides the criteria expression evaluator.
func WithEvaluator(eval evaluator.Evaluator) Option {
	return func(s *Service) { s.eval = eval }
}

// WithProviders sets the ticket provider registry used by the criteria
// poll.
func WithProviders(providers *ticket.Registry) Option {
	return func(s *Service) { s.providers = providers }
}

// WithConfig overrides the background job cadence.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}
