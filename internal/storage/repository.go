package storage

import (
	"context"

	"github.com/oxygenesis/signing-node/internal/domain"
)

// Repository persists one CounterState per module.
// Update provides a per-module critical section: fn sees the current state,
// and its mutation is committed only when it returns nil.
type Repository interface {
	Get(ctx context.Context, module string) (domain.CounterState, error)
	Update(ctx context.Context, module string, fn func(s *domain.CounterState) error) error
}
