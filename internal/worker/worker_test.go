package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_StartStop(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit some tasks
	for i := 0; i < 5; i++ {
		pool.Submit(func(ctx context.Context) {
			processed.Add(1)
		})
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 tasks processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(4, 100)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit many tasks concurrently
	for i := 0; i < 100; i++ {
		go func() {
			pool.Submit(func(ctx context.Context) {
				processed.Add(1)
			})
		}()
	}

	time.Sleep(100 * time.Millisecond)

	cancel()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 tasks processed, got %d", processed.Load())
	}
}

func TestPool_TrySubmit_FullBuffer(t *testing.T) {
	pool := NewPool(1, 1)
	// Pool not started: nothing drains the buffer.

	if !pool.TrySubmit(func(ctx context.Context) {}) {
		t.Fatal("expected first TrySubmit to be accepted")
	}
	if pool.TrySubmit(func(ctx context.Context) {}) {
		t.Error("expected TrySubmit on a full buffer to be refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()
	pool.Stop()
}

func TestPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(2, 50)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit tasks
	for i := 0; i < 20; i++ {
		pool.Submit(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond) // Simulate work
			processed.Add(1)
		})
	}

	// Cancel immediately
	cancel()

	// Stop should wait for in-flight tasks
	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
		// Good
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d tasks before shutdown", processed.Load())
}

func TestPool_ContextCancellation(t *testing.T) {
	var started atomic.Int64
	var completed atomic.Int64

	pool := NewPool(2, 10)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Submit tasks
	for i := 0; i < 5; i++ {
		pool.Submit(func(ctx context.Context) {
			started.Add(1)
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
				completed.Add(1)
			}
		})
	}

	// Wait a bit then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()
	pool.Stop()

	t.Logf("started: %d, completed: %d", started.Load(), completed.Load())
}
