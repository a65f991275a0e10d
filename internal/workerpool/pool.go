// Package workerpool runs jobs on a fixed number of goroutines fed from a
// FIFO queue.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/athena-engine/athena/internal/errors"
	"github.com/athena-engine/athena/internal/logging"
)

// Job is a unit of work. It runs exactly once and is never retried.
type Job func()

var (
	// ErrInvalidSize is returned by New for pools with fewer than one worker.
	ErrInvalidSize = errors.NewPreconditionError(errors.ErrCodeInvalidPoolSize, "worker pool size must be at least 1")
	// ErrQueueFull is returned by Execute when no queue slot is free.
	ErrQueueFull = errors.NewPolicyError(errors.ErrCodeQueueFull, "job queue is full")
	// ErrPoolClosed is returned by Execute after Shutdown.
	ErrPoolClosed = errors.NewPolicyError(errors.ErrCodePoolClosed, "worker pool has been shut down")
)

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Rejected  int64 `json:"rejected"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPanicHandler is called with the recovered value whenever a job panics.
func WithPanicHandler(fn func(recovered interface{})) Option {
	return func(p *Pool) {
		p.onPanic = fn
	}
}

// Pool is a fixed-size worker pool.
type Pool struct {
	size    int
	limit   int // 0 means unbounded
	logger  logging.Logger
	onPanic func(recovered interface{})

	// mu guards queue and closed; ready is signalled on either change.
	mu     sync.Mutex
	ready  *sync.Cond
	queue  []Job
	closed bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64
}

// New starts size workers sharing a queue of at most queueSize pending
// jobs. A queueSize of 0 or less leaves the queue unbounded. A size below
// 1 is a precondition violation.
func New(size, queueSize int, opts ...Option) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		size:   size,
		limit:  queueSize,
		logger: logging.Nop(),
	}
	p.ready = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pool")

	for id := 0; id < size; id++ {
		p.wg.Add(1)
		go p.worker(id)
	}

	return p, nil
}

// Execute enqueues job and returns immediately. It fails with
// ErrQueueFull when a bounded queue has no room and ErrPoolClosed after
// Shutdown; the job is then dropped.
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.rejected.Add(1)
		return ErrPoolClosed
	}
	if p.limit > 0 && len(p.queue) >= p.limit {
		p.rejected.Add(1)
		return ErrQueueFull
	}

	p.queue = append(p.queue, job)
	p.submitted.Add(1)
	p.ready.Signal()
	p.logger.Debug(context.Background(), "Job dispatched")
	return nil
}

// Shutdown stops accepting jobs, lets the workers drain the queue and
// waits for them to exit. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.ready.Broadcast()
		p.logger.Info(context.Background(), "Sending terminate message to all workers", "workers", p.size)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued := len(p.queue)
	p.mu.Unlock()

	return Stats{
		Workers:   p.size,
		Queued:    queued,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		job, ok := p.next()
		if !ok {
			break
		}
		p.logger.Debug(ctx, "Worker got a job; executing", "worker", id)
		p.run(ctx, id, job)
	}

	p.logger.Debug(ctx, "Worker terminating", "worker", id)
}

// next blocks until a job is queued. It reports false once the pool is
// closed and the queue is drained.
func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.ready.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

func (p *Pool) run(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			p.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Job panicked", "worker", id)
			if p.onPanic != nil {
				p.onPanic(r)
			}
			return
		}
		p.completed.Add(1)
	}()

	job()
}
