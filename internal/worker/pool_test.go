package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_Shutdown(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var started int32
	release := make(chan struct{})

	for i := 0; i < 2; i++ {
		pool.Submit(FuncJob(func(ctx context.Context) Result {
			atomic.AddInt32(&started, 1)
			select {
			case <-release:
				return funcResult{}
			case <-ctx.Done():
				return funcResult{err: ctx.Err()}
			}
		}))
	}

	// Give the workers a moment to pick the jobs up
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&started) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&started) < 2 {
		t.Fatal("Jobs never started")
	}

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not cancel running jobs")
	}
	close(release)
}

func TestPool_SubmitAfterShutdownIsNoop(t *testing.T) {
	pool := NewPool(1)
	pool.Start()
	pool.Shutdown()

	// Must not block or panic
	pool.Submit(FuncJob(func(ctx context.Context) Result {
		return funcResult{}
	}))
}
