package utils

import (
	"context"
	"sync"
	"time"
)

// WorkerPool manages a pool of workers for parallel processing
type WorkerPool struct {
	maxWorkers int
	jobCh      chan func()
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	wp := &WorkerPool{
		maxWorkers: maxWorkers,
		jobCh:      make(chan func(), maxWorkers*2),
	}

	for i := 0; i < maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}

	return wp
}

// worker runs jobs until the job channel is closed
func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for job := range wp.jobCh {
		if job != nil {
			job()
		}
	}
}

// Submit queues a job, blocking while the queue is full. It returns the
// context error if ctx is cancelled first.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) error {
	select {
	case wp.jobCh <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
// Submit must not be called after Close.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobCh)
	})
	wp.wg.Wait()
}

// RateLimiter limits the rate of operations
type RateLimiter struct {
	ticker   *time.Ticker
	requests chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	interval := time.Second / time.Duration(requestsPerSecond)
	rl := &RateLimiter{
		ticker:   time.NewTicker(interval),
		requests: make(chan struct{}, requestsPerSecond),
		done:     make(chan struct{}),
	}

	// Fill the initial bucket
	for i := 0; i < requestsPerSecond; i++ {
		rl.requests <- struct{}{}
	}

	go func() {
		for {
			select {
			case <-rl.ticker.C:
				select {
				case rl.requests <- struct{}{}:
				default:
					// Bucket is full, skip
				}
			case <-rl.done:
				return
			}
		}
	}()

	return rl
}

// Wait waits for permission to make a request
func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.requests:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops the rate limiter
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.ticker.Stop()
		close(rl.done)
	})
}
