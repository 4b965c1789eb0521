package dao

import (
	"context"
)

type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// ConditionalService extends Service with an optimistic, version-checked
// update.  ConditionalUpdate applies mutator and persists the record only
// when the stored version still equals expectedVersion; otherwise it returns
// ErrConflict and the caller must re-read and retry or abandon.
type ConditionalService[K comparable, T any] interface {
	Service[K, T]

	ConditionalUpdate(ctx context.Context, id K, expectedVersion int, mutator func(*T) error) (*T, error)
}
