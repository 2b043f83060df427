// Package idempotency makes fulfillment dispatch happen at most once per key.
package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrEmptyKey = errors.New("idempotency key is empty")

// Store keeps keys in two states: in flight (reserved, dispatch not yet
// confirmed) and dispatched.
type Store interface {
	// Reserve atomically claims key. It returns false when the key is
	// already in flight or dispatched.
	Reserve(ctx context.Context, key string) (bool, error)
	// Commit marks a reserved key as dispatched.
	Commit(ctx context.Context, key string) error
	// Release drops an in-flight reservation so the key can be retried.
	Release(ctx context.Context, key string) error
}

type Guard struct {
	store Store
}

func NewGuard(s Store) *Guard {
	return &Guard{store: s}
}

// NewKey returns a fresh key for callers that did not supply one.
func NewKey() string {
	return uuid.NewString()
}

// ShouldDispatch reserves key. Call MarkDispatched after a 2xx answer and
// Release otherwise.
func (g *Guard) ShouldDispatch(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	return g.store.Reserve(ctx, key)
}

func (g *Guard) MarkDispatched(ctx context.Context, key string) error {
	return g.store.Commit(ctx, key)
}

func (g *Guard) Release(ctx context.Context, key string) error {
	return g.store.Release(ctx, key)
}
