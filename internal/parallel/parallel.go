package parallel

import (
	"runtime"
	"sync"
)

// serialCutoff keeps small kernels on the calling goroutine. Loss evaluation
// mostly touches tensors of a few thousand elements, where spawning workers
// costs more than the loop body.
const serialCutoff = 2048

func For(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers <= 1 || n < serialCutoff {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
