package offchain

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Hook is background work invoked once per block.
type Hook interface {
	OffchainWorker(ctx context.Context, block uint64)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, block uint64)

func (f HookFunc) OffchainWorker(ctx context.Context, block uint64) { f(ctx, block) }

// Scheduler produces blocks on a fixed interval and runs every hook for
// each block in its own goroutine.
type Scheduler struct {
	interval time.Duration
	hooks    []Hook
	logger   *log.Logger
	block    atomic.Uint64
	wg       sync.WaitGroup
}

func NewScheduler(interval time.Duration, logger *log.Logger, hooks ...Hook) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{interval: interval, hooks: hooks, logger: logger}
}

// Block returns the number of the last produced block.
func (s *Scheduler) Block() uint64 { return s.block.Load() }

// Run ticks until ctx is cancelled, then waits for in-flight hooks.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("block interval must be positive")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-ticker.C:
			n := s.block.Add(1)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.RunOnce(ctx, n)
			}()
		}
	}
}

// RunOnce runs every hook for block synchronously. A panicking hook is
// logged and does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context, block uint64) {
	for _, h := range s.hooks {
		s.runHook(ctx, h, block)
	}
}

func (s *Scheduler) runHook(ctx context.Context, h Hook, block uint64) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Printf("%s offchain block=%d: worker panic: %v", levelError, block, rec)
		}
	}()
	h.OffchainWorker(ctx, block)
}
