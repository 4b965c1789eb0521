package approval

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/viant/facilitor/internal/clock"
	"github.com/viant/facilitor/model/evaluator"
)

// Poll runs one criteria-poll sweep over all waiting ticket-backed
// instances.  Each instance is handled independently; one failing instance
// never blocks the batch.
func (s *Service) Poll(ctx context.Context) error {
	all, err := s.instances.List(ctx)
	if err != nil {
		return err
	}
	for _, instance := range all {
		if !instance.IsPollable() {
			continue
		}
		if err := s.pollInstance(ctx, instance.ID); err != nil {
			log.Printf("[approval] poll of instance %v failed: %v", instance.ID, err)
		}
	}
	return nil
}

// pollInstance fetches the external ticket and applies the criteria:
// approval criteria first, then rejection criteria; neither met leaves the
// instance waiting with both outcomes logged for audit.
func (s *Service) pollInstance(ctx context.Context, id string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	instance, err := s.instances.Load(ctx, id)
	if err != nil || instance == nil || !instance.IsPollable() {
		return err
	}
	provider, err := s.providers.Lookup(instance.TicketProvider)
	if err != nil {
		return s.fail(ctx, instance, err)
	}
	aTicket, err := provider.Fetch(ctx, instance.TicketConnector, instance.TicketKey)
	if err != nil {
		// transient fetch problem, keep waiting and retry next sweep
		return err
	}

	approved, err := evaluateCriteria(instance.ApprovalCriteria, s.eval, aTicket.Fields)
	if err != nil {
		return s.failOnEvaluation(ctx, instance, err)
	}
	if approved {
		return s.transition(ctx, instance, StatusApproved,
			"approval criteria met: "+describeCriteria(instance.ApprovalCriteria))
	}
	if !instance.RejectionCriteria.IsEmpty() {
		rejected, err := evaluateCriteria(instance.RejectionCriteria, s.eval, aTicket.Fields)
		if err != nil {
			return s.failOnEvaluation(ctx, instance, err)
		}
		if rejected {
			return s.transition(ctx, instance, StatusRejected,
				"rejection criteria met: "+describeCriteria(instance.RejectionCriteria))
		}
	}

	log.Printf("[approval] instance %v still waiting: approval criteria [%v] not met, rejection criteria [%v] not met",
		instance.ID, describeCriteria(instance.ApprovalCriteria), describeCriteria(instance.RejectionCriteria))
	next := clock.Now().Add(s.config.PollInterval)
	instance.NextIterationAt = &next
	instance.UpdatedAt = clock.Now()
	instance.Version++
	return s.instances.Save(ctx, instance)
}

func (s *Service) failOnEvaluation(ctx context.Context, instance *Instance, err error) error {
	var evalErr *evaluator.EvaluationError
	if errors.As(err, &evalErr) {
		return s.fail(ctx, instance, evalErr)
	}
	return s.fail(ctx, instance, err)
}

// StartPoller runs the criteria poll on a fixed interval, fanning work out
// to a bounded worker pool.  It returns stop() - call it (or cancel ctx) to
// exit; in-flight instances are drained before the workers stop.
func StartPoller(ctx context.Context, service *Service) (stop func()) {
	done := make(chan struct{})
	ids := make(chan string, service.config.PollWorkers)
	var wg sync.WaitGroup

	for i := 0; i < service.config.PollWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				if err := service.pollInstance(ctx, id); err != nil {
					log.Printf("[approval] poll of instance %v failed: %v", id, err)
				}
			}
		}()
	}

	go func() {
		defer close(ids)
		ticker := time.NewTicker(service.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				all, err := service.instances.List(ctx)
				if err != nil {
					log.Printf("[approval] poll listing failed: %v", err)
					continue
				}
				for _, instance := range all {
					if instance.IsPollable() {
						ids <- instance.ID
					}
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		wg.Wait()
	}
}
