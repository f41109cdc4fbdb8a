package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllJobs(t *testing.T) {
	wp := NewWorkerPool(3)

	var done atomic.Int32
	for i := 0; i < 50; i++ {
		if err := wp.Submit(context.Background(), func() {
			done.Add(1)
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	wp.Close()

	if done.Load() != 50 {
		t.Errorf("expected 50 jobs, got %d", done.Load())
	}
}

func TestWorkerPoolSubmitCancelled(t *testing.T) {
	wp := NewWorkerPool(1)
	release := make(chan struct{})

	// occupy the worker and fill the queue
	for i := 0; i < 3; i++ {
		if err := wp.Submit(context.Background(), func() { <-release }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := wp.Submit(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	wp.Close()
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected empty bucket to block, got %v", err)
	}

	if err := rl.Wait(context.Background()); err != nil {
		t.Errorf("expected refill, got %v", err)
	}
}
