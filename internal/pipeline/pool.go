package pipeline

import (
	"context"
	"runtime"
	"sync"

	"imgcrunch/internal/planner"
)

// maxWorkers caps pool concurrency; image transforms are CPU-bound and more
// slots than this just thrash memory.
const maxWorkers = 8

// WorkerCount is min(NumCPU, maxWorkers), at least 1.
func WorkerCount() int {
	n := runtime.NumCPU()
	if n > maxWorkers {
		n = maxWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Dispatch runs every task through transform on a fixed pool of workers and
// feeds each Result to collect as it completes. Tasks are scheduled in list
// order; results arrive in completion order. collect runs on a single
// goroutine, so it may mutate shared state freely. Dispatch returns only
// after all in-flight work has drained, even when tasks fail.
func Dispatch(ctx context.Context, tasks []planner.Task, workers int, transform func(planner.Task) Result, collect func(Result)) {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan planner.Task)
	results := make(chan Result)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- transform(task)
			}
		}()
	}

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			collect(res)
		}
	}()

	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case jobs <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone
}
