package facilitate

import (
	"context"

	"github.com/viant/facilitor/model/execution"
	"github.com/viant/facilitor/model/plan"
	"github.com/viant/facilitor/tracing"
)

// Service dispatches facilitation over a node's obtainments.
type Service struct {
	registry *Registry
}

// Registry exposes the underlying facilitator registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Facilitate walks the node's obtainments in declaration order and returns
// the first non-nil decision.  An unknown obtainment type or an exhausted
// obtainment list is a plan configuration error, not a transient failure.
func (s *Service) Facilitate(ctx context.Context, anExecution *execution.NodeExecution, node *plan.Node) (*Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "facilitate/"+node.ID, "INTERNAL")
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	for _, obtainment := range node.Obtainments {
		facilitator := s.registry.Lookup(obtainment.Type)
		if facilitator == nil {
			err = unknownFacilitatorError(node.ID, obtainment.Type)
			return nil, err
		}
		var decision *Decision
		decision, err = facilitator.Facilitate(ctx, anExecution.Ambiance, obtainment.Parameters)
		if err != nil {
			return nil, err
		}
		if decision != nil {
			span.WithAttributes(map[string]string{
				"facilitator": obtainment.Type,
				"mode":        string(decision.Mode),
			})
			return decision, nil
		}
	}
	err = noDecisionError(node.ID)
	return nil, err
}

// New creates a facilitation dispatcher backed by the supplied registry.
func New(registry *Registry) *Service {
	return &Service{registry: registry}
}
