package worker

import "context"

// FuncJob adapts a plain function to the Job interface
type FuncJob func(ctx context.Context) Result

// Execute runs the wrapped function
func (f FuncJob) Execute(ctx context.Context) Result { return f(ctx) }

// RunJobs executes jobs with bounded concurrency and returns their results.
// Results arrive in completion order, not submission order.
func RunJobs(ctx context.Context, concurrency int, jobs []Job) []Result {
	if len(jobs) == 0 {
		return nil
	}

	pool := NewPool(concurrency)
	pool.Start()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pool.Shutdown()
		case <-done:
		}
	}()

	for _, job := range jobs {
		pool.Submit(job)
	}

	results := pool.Wait()
	close(done)
	return results
}
