package dao

import (
	"context"
)

// Service is a generic persistence contract for entities of type T keyed by
// a comparable key K. Concrete stores (in-memory, filesystem) implement it so
// higher layers stay storage-agnostic.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
