package dao

import (
	"context"
	"errors"
)

// RetryConditionalUpdate re-reads and retries a conditional update until it
// succeeds or attempts are exhausted; the last ErrConflict is returned when
// every attempt collided.  version extracts the optimistic version from a
// freshly loaded record.
func RetryConditionalUpdate[K comparable, T any](ctx context.Context, service ConditionalService[K, T], id K, version func(*T) int, attempts int, mutator func(*T) error) (*T, error) {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		current, err := service.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err := service.ConditionalUpdate(ctx, id, version(current), mutator)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return updated, err
	}
	return nil, ErrConflict
}
