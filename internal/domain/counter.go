package domain

import "math"

// CounterState is the single optional u32 held by a counter module.
// The zero value is the uninitialized state.
type CounterState struct {
	Value       uint32 `json:"value"`
	Initialized bool   `json:"initialized"`
}

// Get returns the stored value and whether one was ever stored.
func (s CounterState) Get() (uint32, bool) {
	return s.Value, s.Initialized
}

// Put overwrites the state with v regardless of the previous state.
func (s *CounterState) Put(v uint32) {
	s.Value = v
	s.Initialized = true
}

// Increment adds one with checked arithmetic. On error the state is unchanged.
func (s *CounterState) Increment() error {
	old, ok := s.Get()
	if !ok {
		return ErrNoneValue
	}
	next, ok := CheckedAdd(old, 1)
	if !ok {
		return ErrStorageOverflow
	}
	s.Put(next)
	return nil
}

// CheckedAdd returns a+b and false if the sum does not fit in a uint32.
func CheckedAdd(a, b uint32) (uint32, bool) {
	if a > math.MaxUint32-b {
		return 0, false
	}
	return a + b, true
}
