package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler runs a full sync every interval.  A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	runner   JobRunner
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler returns a scheduler; an interval <= 0 makes Run a no-op.
func NewScheduler(runner JobRunner, interval, timeout time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{runner: runner, interval: interval, timeout: timeout, log: log}
}

// Run blocks until ctx is done, then waits for an in-flight run.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	s.log.Info("periodic sync enabled", "interval", s.interval)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	defer s.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.tick(ctx)
		}
	}
}

// tick starts a run unless one is in progress and reports whether it did.
func (s *Scheduler) tick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous sync still running, skipping tick")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		defer cancel()
		_, _ = s.runner.Run(runCtx, NewJob(SourceSchedule))
	}()
	return true
}
