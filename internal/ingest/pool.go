package ingest

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

var (
	// ErrPoolFull is returned when the backlog cannot take another job.
	ErrPoolFull = errors.New("ingestion backlog is full")
	// ErrPoolClosed is returned after Close.
	ErrPoolClosed = errors.New("ingestion pool is closed")
)

// Pool runs jobs in the background on a fixed number of workers.  Each run
// gets its own context bounded by the run timeout and detached from the
// submitter, so a run outlives the request that triggered it and cannot be
// cancelled once started.
type Pool struct {
	runner  JobRunner
	timeout time.Duration
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan Job
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines consuming a backlog of the given size.
func NewPool(runner JobRunner, workers, backlog int, timeout time.Duration, log *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{
		runner:  runner,
		timeout: timeout,
		log:     log,
		jobs:    make(chan Job, backlog),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues job without waiting for it to start.
func (p *Pool) Submit(_ context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		p.log.Info("ingestion job queued", "job_id", job.ID, "source", job.Source)
		return nil
	default:
		return ErrPoolFull
	}
}

// Close stops accepting jobs and waits for queued and running jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job Job) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("ingestion job panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	// errors are logged by the runner
	_, _ = p.runner.Run(ctx, job)
}
