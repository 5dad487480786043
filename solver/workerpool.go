package solver

import "sync"

// parallelFor runs fn(i) for every i in [0, n) across at most workers
// goroutines and blocks until all have returned. It is used only to
// fan out the independent per-factor residual/Jacobian evaluations
// within one LM iteration (spec.md §5) — never for anything that
// mutates shared state, so no locking is needed inside fn.
func parallelFor(n, workers int, fn func(i int)) {
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}
	wg.Wait()
}
