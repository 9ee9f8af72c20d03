package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolProcessesTasks(t *testing.T) {
	var processed int64
	pool, err := New(Config{Workers: 2, QueueSize: 10, MaxRetries: 0}, func(ctx context.Context, task *Task) *Result {
		atomic.AddInt64(&processed, 1)
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pool.Start()
	for i := 0; i < 5; i++ {
		if err := pool.Submit(&Task{ID: "task"}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&processed) < 5 {
		select {
		case <-deadline:
			t.Fatalf("processed %d of 5 tasks before timeout", atomic.LoadInt64(&processed))
		case <-time.After(5 * time.Millisecond):
		}
	}
	pool.Stop()

	stats := pool.Stats()
	if stats.TasksSubmitted != 5 || stats.TasksCompleted != 5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestPoolRetriesFailedTasks(t *testing.T) {
	var attempts int64
	pool, err := New(Config{Workers: 1, QueueSize: 10, MaxRetries: 2, RetryDelay: time.Millisecond}, func(ctx context.Context, task *Task) *Result {
		n := atomic.AddInt64(&attempts, 1)
		if n < 3 {
			return &Result{TaskID: task.ID, Success: false, Error: errors.New("transient")}
		}
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pool.Start()
	if err := pool.Submit(&Task{ID: "retry-me"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&attempts) < 3 {
		select {
		case <-deadline:
			t.Fatalf("attempts = %d, want 3", atomic.LoadInt64(&attempts))
		case <-time.After(5 * time.Millisecond):
		}
	}
	pool.Stop()

	stats := pool.Stats()
	if stats.TasksCompleted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TasksRetried != 2 {
		t.Fatalf("retried = %d, want 2", stats.TasksRetried)
	}
}

func TestPoolRequiresWorkerFunc(t *testing.T) {
	if _, err := New(DefaultConfig(), nil, nil); err == nil {
		t.Fatal("nil worker function must be rejected")
	}
}

func TestPoolRejectsSubmitAfterStop(t *testing.T) {
	pool, err := New(Config{Workers: 1, QueueSize: 1}, func(ctx context.Context, task *Task) *Result {
		return &Result{TaskID: task.ID, Success: true}
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pool.Start()
	pool.Stop()

	if err := pool.Submit(&Task{ID: "late"}); err == nil {
		t.Fatal("submit after stop must fail")
	}
}
