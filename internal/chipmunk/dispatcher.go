package chipmunk

import (
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs scene work on a fixed number of goroutines.
type Dispatcher struct {
	node
	workers int
}

func (d *Dispatcher) Workers() int { return d.workers }

func (d *Dispatcher) Release() error {
	return d.release()
}

// ParallelFor calls fn over [0, n) split into at most Workers chunks of at
// least minChunk items. Small ranges run on the calling goroutine.
func (d *Dispatcher) ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if minChunk < 1 {
		minChunk = 1
	}
	workers := d.workers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if n <= minChunk || workers <= 1 || d.released {
		fn(0, n)
		return
	}

	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(d.workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			fn(start, end)
			return nil
		})
	}
	_ = g.Wait()
}
