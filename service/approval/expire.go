package approval

import (
	"context"
	"log"
	"time"

	"github.com/viant/facilitor/internal/clock"
)

// ExpireDue runs one expiration sweep: every waiting instance whose
// deadline has passed is forced to EXPIRED.  Re-running on an already
// terminal instance is a no-op, so at-least-once scheduling is safe.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	all, err := s.instances.List(ctx)
	if err != nil {
		return 0, err
	}
	now := clock.Now()
	expired := 0
	for _, candidate := range all {
		if candidate.Status != StatusWaiting || candidate.DeadlineAt == nil || candidate.DeadlineAt.After(now) {
			continue
		}
		if err := s.expireInstance(ctx, candidate.ID); err != nil {
			log.Printf("[approval] expiring instance %v failed: %v", candidate.ID, err)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireInstance(ctx context.Context, id string) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	instance, err := s.instances.Load(ctx, id)
	if err != nil || instance == nil || instance.DeadlineAt == nil {
		return err
	}
	return s.transition(ctx, instance, StatusExpired,
		"deadline "+instance.DeadlineAt.Format(time.RFC3339)+" passed")
}

// StartSweeper runs the expiration sweep on a fixed interval after an
// initial delay.  It returns stop() - call it (or cancel ctx) to exit.
func StartSweeper(ctx context.Context, service *Service) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-time.After(service.config.ExpirationInitialDelay):
		}
		ticker := time.NewTicker(service.config.ExpirationPeriod)
		defer ticker.Stop()
		for {
			if _, err := service.ExpireDue(ctx); err != nil {
				log.Printf("[approval] expiration sweep failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	return func() { close(done) }
}
