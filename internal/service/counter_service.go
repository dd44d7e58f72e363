package service

import (
	"context"
	"fmt"

	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/storage"
)

// EventSink receives events deposited by successful dispatches.
type EventSink interface {
	Deposit(ctx context.Context, ev domain.Event)
}

// Counter is the guarded counter of one module. Mutations require a signed
// origin and run inside the repository's per-module critical section.
type Counter struct {
	module string
	repo   storage.Repository
	events EventSink
}

func New(module string, repo storage.Repository, events EventSink) *Counter {
	return &Counter{module: module, repo: repo, events: events}
}

func (c *Counter) Module() string { return c.module }

// Store overwrites the value and deposits SomethingStored.
func (c *Counter) Store(ctx context.Context, origin domain.Origin, value uint32) error {
	_, err := c.store(ctx, origin, value)
	return err
}

// Increment adds one to a stored value. It deposits no event.
func (c *Counter) Increment(ctx context.Context, origin domain.Origin) error {
	_, err := c.increment(ctx, origin)
	return err
}

func (c *Counter) Value(ctx context.Context) (domain.CounterState, error) {
	return c.repo.Get(ctx, c.module)
}

// Dispatch routes a call to its operation and returns the state it committed.
func (c *Counter) Dispatch(ctx context.Context, origin domain.Origin, call domain.Call) (domain.CounterState, error) {
	switch call := call.(type) {
	case domain.StoreCall:
		return c.store(ctx, origin, call.Value)
	case domain.IncrementCall:
		return c.increment(ctx, origin)
	default:
		return domain.CounterState{}, domain.ErrUnknownCall
	}
}

func (c *Counter) store(ctx context.Context, origin domain.Origin, value uint32) (domain.CounterState, error) {
	who, err := domain.EnsureSigned(origin)
	if err != nil {
		return domain.CounterState{}, err
	}
	var after domain.CounterState
	if err := c.repo.Update(ctx, c.module, func(s *domain.CounterState) error {
		s.Put(value)
		after = *s
		return nil
	}); err != nil {
		return domain.CounterState{}, fmt.Errorf("store %s: %w", c.module, err)
	}
	if c.events != nil {
		c.events.Deposit(ctx, domain.SomethingStored{Module: c.module, Value: value, Who: who})
	}
	return after, nil
}

// increment keeps the state captured inside the critical section; an
// optimistic backend may run fn more than once, the last run is the one committed.
func (c *Counter) increment(ctx context.Context, origin domain.Origin) (domain.CounterState, error) {
	if _, err := domain.EnsureSigned(origin); err != nil {
		return domain.CounterState{}, err
	}
	var after domain.CounterState
	if err := c.repo.Update(ctx, c.module, func(s *domain.CounterState) error {
		if err := s.Increment(); err != nil {
			return err
		}
		after = *s
		return nil
	}); err != nil {
		return domain.CounterState{}, fmt.Errorf("increment %s: %w", c.module, err)
	}
	return after, nil
}

// Registry resolves counters by module name.
type Registry struct {
	counters map[string]*Counter
	order    []string
}

func NewRegistry(counters ...*Counter) *Registry {
	r := &Registry{counters: make(map[string]*Counter, len(counters))}
	for _, c := range counters {
		if _, ok := r.counters[c.module]; !ok {
			r.order = append(r.order, c.module)
		}
		r.counters[c.module] = c
	}
	return r
}

func (r *Registry) Counter(module string) (*Counter, error) {
	c, ok := r.counters[module]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrModuleNotFound, module)
	}
	return c, nil
}

// Modules lists module names in registration order.
func (r *Registry) Modules() []string {
	return append([]string(nil), r.order...)
}
