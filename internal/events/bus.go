// Package events delivers module notifications to external subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/pkg/id"
)

const defaultHistory = 256

// Record is a deposited event with its delivery metadata.
type Record struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Module string       `json:"module"`
	At     time.Time    `json:"at"`
	Event  domain.Event `json:"event"`
}

// Sink receives deposited events. Delivery is fire-and-forget.
type Sink interface {
	Publish(ctx context.Context, rec Record)
}

// Bus fans records out to in-process subscribers and keeps a bounded history.
type Bus struct {
	mu      sync.Mutex
	ids     id.Generator
	now     func() time.Time
	history []Record
	limit   int
	subs    map[int]chan Record
	nextSub int
	sinks   []Sink
}

// NewBus keeps at most history records; 0 selects the default.
func NewBus(ids id.Generator, history int, sinks ...Sink) *Bus {
	if ids == nil {
		ids = id.UUIDv4{}
	}
	if history <= 0 {
		history = defaultHistory
	}
	return &Bus{
		ids:   ids,
		now:   time.Now,
		limit: history,
		subs:  make(map[int]chan Record),
		sinks: sinks,
	}
}

// Deposit stamps ev and delivers it. Slow subscribers drop records rather
// than block the depositing dispatch.
func (b *Bus) Deposit(ctx context.Context, ev domain.Event) {
	rec := Record{
		ID:     b.ids.New(),
		Name:   ev.EventName(),
		Module: ev.ModuleName(),
		At:     b.now().UTC(),
		Event:  ev,
	}

	b.mu.Lock()
	b.history = append(b.history, rec)
	if len(b.history) > b.limit {
		b.history = append([]Record(nil), b.history[len(b.history)-b.limit:]...)
	}
	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
		}
	}
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range sinks {
		s.Publish(ctx, rec)
	}
}

// Subscribe returns a channel of future records, closed when ctx ends.
func (b *Bus) Subscribe(ctx context.Context, buffer int) <-chan Record {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Record, buffer)
	b.mu.Lock()
	key := b.nextSub
	b.nextSub++
	b.subs[key] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, key)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Recent returns up to n records, oldest first.
func (b *Bus) Recent(n int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	return append([]Record(nil), b.history[len(b.history)-n:]...)
}
