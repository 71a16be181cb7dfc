package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingExecutor struct {
	mu   sync.Mutex
	jobs []Job
	gate chan struct{}
}

func (e *recordingExecutor) Execute(ctx context.Context, job Job) {
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	e.jobs = append(e.jobs, job)
	e.mu.Unlock()
}

func TestPoolExecutesAllEnqueuedJobs(t *testing.T) {
	executor := &recordingExecutor{}
	pool := NewPool(3, 16, executor, zap.NewNop())

	for i := 0; i < 10; i++ {
		if err := pool.Enqueue(Job{JobID: string(rune('a' + i))}); err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
	}
	pool.Close()

	if len(executor.jobs) != 10 {
		t.Fatalf("expected 10 executed jobs, got %d", len(executor.jobs))
	}
}

func TestEnqueueDoesNotBlockWhenSaturated(t *testing.T) {
	executor := &recordingExecutor{gate: make(chan struct{})}
	pool := NewPool(1, 1, executor, zap.NewNop())

	// First job occupies the worker, second fills the buffer.
	if err := pool.Enqueue(Job{JobID: "a"}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	// Give the worker a moment to pick up the first job.
	deadline := time.Now().Add(time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = pool.Enqueue(Job{JobID: "b"}); err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != nil {
		t.Fatalf("second enqueue failed: %v", err)
	}

	if err := pool.Enqueue(Job{JobID: "c"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	close(executor.gate)
	pool.Close()
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	pool := NewPool(1, 1, &recordingExecutor{}, zap.NewNop())
	pool.Close()
	if err := pool.Enqueue(Job{JobID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	pool := NewPool(1, 1, &recordingExecutor{}, zap.NewNop())
	pool.Close()
	pool.Close()
}
