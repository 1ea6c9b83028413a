package pipeline

import (
	"runtime"
	"sync"
)

type job[T any] struct {
	index int
	item  T
}

// Run calls fn for every item on a bounded pool of workers and returns the
// errors it produced, in no particular order. fn receives the item's index so
// callers can store results without extra locking.
func Run[T any](items []T, workers int, fn func(index int, item T) error) []error {
	if len(items) == 0 || fn == nil {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan job[T])
	errs := make(chan error, len(items))
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := fn(j.index, j.item); err != nil {
					errs <- err
				}
			}
		}()
	}

	for i, item := range items {
		jobs <- job[T]{index: i, item: item}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	out := make([]error, 0, len(errs))
	for err := range errs {
		out = append(out, err)
	}
	return out
}
