package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/oxygenesis/signing-node/internal/domain"
	"github.com/oxygenesis/signing-node/internal/storage"
)

type fakeSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeSink) Deposit(_ context.Context, ev domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

var alice = domain.SignedOrigin(domain.AccountID{0xa1})

func newCounter() (*Counter, *fakeSink) {
	sink := &fakeSink{}
	return New("sign", storage.NewMemory(), sink), sink
}

func state(t *testing.T, c *Counter) domain.CounterState {
	t.Helper()
	st, err := c.Value(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestStore_OverwritesFromAnyState(t *testing.T) {
	ctx := context.Background()
	c, sink := newCounter()
	for _, v := range []uint32{0, 1, 7, math.MaxUint32, 3} {
		if err := c.Store(ctx, alice, v); err != nil {
			t.Fatal(err)
		}
		if got, ok := state(t, c).Get(); !ok || got != v {
			t.Fatalf("store(%d): got (%d,%v)", v, got, ok)
		}
	}
	if sink.count() != 5 {
		t.Fatalf("events=%d want 5", sink.count())
	}
	last := sink.events[4].(domain.SomethingStored)
	if last.Value != 3 || last.Module != "sign" || !last.Who.Equal(domain.AccountID{0xa1}) {
		t.Fatalf("event %+v", last)
	}
}

func TestIncrement_Uninitialized_NoneValue(t *testing.T) {
	c, _ := newCounter()
	if err := c.Increment(context.Background(), alice); !errors.Is(err, domain.ErrNoneValue) {
		t.Fatalf("got %v want ErrNoneValue", err)
	}
	if state(t, c).Initialized {
		t.Fatal("state must stay uninitialized")
	}
}

func TestIncrement_AfterStore(t *testing.T) {
	ctx := context.Background()
	for _, v := range []uint32{0, 1, 1000, math.MaxUint32 - 1} {
		c, sink := newCounter()
		if err := c.Store(ctx, alice, v); err != nil {
			t.Fatal(err)
		}
		if err := c.Increment(ctx, alice); err != nil {
			t.Fatalf("increment after store(%d): %v", v, err)
		}
		if got, ok := state(t, c).Get(); !ok || got != v+1 {
			t.Fatalf("got (%d,%v) want %d", got, ok, v+1)
		}
		if sink.count() != 1 {
			t.Fatalf("increment must not deposit events, got %d", sink.count())
		}
	}
}

func TestIncrement_Overflow_LeavesMax(t *testing.T) {
	ctx := context.Background()
	c, _ := newCounter()
	_ = c.Store(ctx, alice, math.MaxUint32)
	if err := c.Increment(ctx, alice); !errors.Is(err, domain.ErrStorageOverflow) {
		t.Fatalf("got %v want ErrStorageOverflow", err)
	}
	if got, ok := state(t, c).Get(); !ok || got != math.MaxUint32 {
		t.Fatalf("got (%d,%v)", got, ok)
	}
}

func TestUnauthenticated_NoMutationNoEvent(t *testing.T) {
	ctx := context.Background()
	for name, origin := range map[string]domain.Origin{"none": domain.NoneOrigin(), "root": domain.RootOrigin()} {
		c, sink := newCounter()
		if err := c.Store(ctx, origin, 5); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s store: %v", name, err)
		}
		if err := c.Increment(ctx, origin); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s increment: %v", name, err)
		}
		if state(t, c).Initialized || sink.count() != 0 {
			t.Fatalf("%s: state or events changed", name)
		}

		_ = c.Store(ctx, alice, 8)
		if err := c.Increment(ctx, origin); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s increment: %v", name, err)
		}
		if state(t, c).Value != 8 {
			t.Fatalf("%s: unauthenticated increment mutated state", name)
		}
	}
}

func TestDispatch_RoutesCalls(t *testing.T) {
	ctx := context.Background()
	c, _ := newCounter()
	if st, err := c.Dispatch(ctx, alice, domain.StoreCall{Value: 10}); err != nil || st.Value != 10 || !st.Initialized {
		t.Fatalf("store: %+v %v", st, err)
	}
	if st, err := c.Dispatch(ctx, alice, domain.IncrementCall{}); err != nil || st.Value != 11 {
		t.Fatalf("increment: %+v %v", st, err)
	}
	if state(t, c).Value != 11 {
		t.Fatalf("value=%d", state(t, c).Value)
	}
	if _, err := c.Dispatch(ctx, alice, nil); !errors.Is(err, domain.ErrUnknownCall) {
		t.Fatalf("got %v", err)
	}
}

// Each increment reports the value it committed, so concurrent
// increments from 0 report every value in 1..N exactly once.
func TestDispatch_ReturnsCommittedState(t *testing.T) {
	ctx := context.Background()
	c, _ := newCounter()
	if _, err := c.Dispatch(ctx, alice, domain.StoreCall{Value: 0}); err != nil {
		t.Fatal(err)
	}
	const N = 50
	seen := make([]int, N+1)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func() {
			defer wg.Done()
			st, err := c.Dispatch(ctx, alice, domain.IncrementCall{})
			if err != nil || st.Value == 0 || st.Value > N {
				t.Errorf("increment: %+v %v", st, err)
				return
			}
			mu.Lock()
			seen[st.Value]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	for v := 1; v <= N; v++ {
		if seen[v] != 1 {
			t.Fatalf("value %d reported %d times", v, seen[v])
		}
	}
}

type errRepo struct{ *storage.Memory }

func (errRepo) Update(context.Context, string, func(*domain.CounterState) error) error {
	return errors.New("db down")
}

func TestStore_RepoError_NoEvent(t *testing.T) {
	sink := &fakeSink{}
	c := New("sign", errRepo{storage.NewMemory()}, sink)
	if err := c.Store(context.Background(), alice, 1); err == nil {
		t.Fatal("want repo error")
	}
	if sink.count() != 0 {
		t.Fatal("failed store deposited an event")
	}
}

func TestConcurrentIncrements_NoGaps(t *testing.T) {
	ctx := context.Background()
	c, _ := newCounter()
	_ = c.Store(ctx, alice, 0)
	const N = 60
	var wg sync.WaitGroup
	wg.Add(N)
	for i := 0; i < N; i++ {
		go func() {
			defer wg.Done()
			if err := c.Increment(ctx, alice); err != nil {
				t.Errorf("increment err: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := state(t, c).Value; got != N {
		t.Fatalf("counter=%d want=%d", got, N)
	}
}

func TestRegistry(t *testing.T) {
	repo := storage.NewMemory()
	r := NewRegistry(New("sign", repo, nil), New("template", repo, nil))
	if got := r.Modules(); len(got) != 2 || got[0] != "sign" || got[1] != "template" {
		t.Fatalf("modules=%v", got)
	}
	c, err := r.Counter("template")
	if err != nil || c.Module() != "template" {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := r.Counter("missing"); !errors.Is(err, domain.ErrModuleNotFound) {
		t.Fatalf("got %v", err)
	}

	// modules share a repository but not state
	ctx := context.Background()
	sign, _ := r.Counter("sign")
	_ = sign.Store(ctx, alice, 4)
	if st, _ := c.Value(ctx); st.Initialized {
		t.Fatal("template saw sign state")
	}
}
