package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type funcResult struct {
	value int
	err   error
}

func (r funcResult) GetError() error { return r.err }

func TestRunJobs(t *testing.T) {
	jobs := make([]Job, 5)
	for i := range jobs {
		i := i
		jobs[i] = FuncJob(func(ctx context.Context) Result {
			time.Sleep(5 * time.Millisecond)
			return funcResult{value: i}
		})
	}

	results := RunJobs(context.Background(), 2, jobs)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	seen := make(map[int]bool)
	for _, res := range results {
		if res.GetError() != nil {
			t.Errorf("unexpected error: %v", res.GetError())
		}
		seen[res.(funcResult).value] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct results, got %d", len(seen))
	}
}

func TestRunJobs_Errors(t *testing.T) {
	jobs := []Job{
		FuncJob(func(ctx context.Context) Result { return funcResult{err: errors.New("boom")} }),
		FuncJob(func(ctx context.Context) Result { return funcResult{value: 1} }),
	}

	results := RunJobs(context.Background(), 2, jobs)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	errCount := 0
	for _, res := range results {
		if res.GetError() != nil {
			errCount++
		}
	}
	if errCount != 1 {
		t.Errorf("expected 1 error, got %d", errCount)
	}
}

func TestRunJobs_Empty(t *testing.T) {
	if results := RunJobs(context.Background(), 2, nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestRunJobs_BoundedConcurrency(t *testing.T) {
	var active, peak int32

	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = FuncJob(func(ctx context.Context) Result {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return funcResult{}
		})
	}

	RunJobs(context.Background(), 3, jobs)

	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("concurrency exceeded limit: peak %d", p)
	}
}
