package storage

import (
	"context"
	"sync"

	"github.com/oxygenesis/signing-node/internal/domain"
)

type rec struct {
	mu    sync.Mutex
	state domain.CounterState
}

type Memory struct {
	mu   sync.RWMutex
	data map[string]*rec
}

func NewMemory() *Memory { return &Memory{data: make(map[string]*rec)} }

func (m *Memory) Get(ctx context.Context, module string) (domain.CounterState, error) {
	if err := ctx.Err(); err != nil {
		return domain.CounterState{}, err
	}
	r := m.record(module)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, nil
}

func (m *Memory) Update(ctx context.Context, module string, fn func(s *domain.CounterState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := m.record(module)
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.state
	if err := fn(&next); err != nil {
		return err
	}
	r.state = next
	return nil
}

func (m *Memory) record(module string) *rec {
	m.mu.RLock()
	r, ok := m.data[module]
	m.mu.RUnlock()
	if ok {
		return r
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.data[module]; ok {
		return r
	}
	r = &rec{}
	m.data[module] = r
	return r
}

var _ Repository = (*Memory)(nil)
