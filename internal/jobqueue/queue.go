package jobqueue

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Job is the message handed from intake to the worker pool.
type Job struct {
	JobID       string
	UserID      string
	ImageKey    string
	ContentType string
	MealType    string
	MealDate    string
	Comment     string
}

// Executor runs one job to a terminal state. Implementations must not panic
// on bad input; every failure maps to a terminal job state instead.
type Executor interface {
	Execute(ctx context.Context, job Job)
}

// ErrQueueClosed is returned when enqueueing after shutdown has begun.
var ErrQueueClosed = errors.New("job queue closed")

// ErrQueueFull is returned when the buffer is saturated.
var ErrQueueFull = errors.New("job queue full")

// Pool consumes jobs from a buffered channel with a fixed set of workers.
// A handle is enqueued at most once per attempt, so no two workers ever run
// the same handle concurrently.
type Pool struct {
	jobs     chan Job
	executor Executor
	logger   *zap.Logger
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool constructs a pool with the given worker count and queue depth.
func NewPool(workers, depth int, executor Executor, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 64
	}
	p := &Pool{
		jobs:     make(chan Job, depth),
		executor: executor,
		logger:   logger.Named("jobqueue"),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.logger.Debug("job picked up",
			zap.Int("worker", id), zap.String("job_id", job.JobID))
		p.executor.Execute(context.Background(), job)
	}
}

// Enqueue hands a job to the pool without blocking the caller.
func (p *Pool) Enqueue(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake and waits for in-flight jobs to reach a terminal state.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
