package assembly

import (
	"context"
	"sync"
)

// runOrdered fans fn out over items with bounded concurrency and returns
// the results in input order. The join is the phase barrier: nothing that
// depends on all files being built may run before runOrdered returns.
// Cancellation is checked before each item; a canceled context discards
// the partial results and reports the context error.
func runOrdered[T any, R any](ctx context.Context, items []T, concurrency int, fn func(T) R) ([]R, error) {
	if len(items) == 0 {
		return nil, ctx.Err()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(items) {
		concurrency = len(items)
	}

	sem := make(chan struct{}, concurrency)
	results := make([]R, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				return
			}
			results[i] = fn(item)
		}(i, item)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
