// Package workers runs data-parallel loops over point indices on a shared
// goroutine pool.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// minChunk is the smallest range worth handing to another goroutine.
const minChunk = 64

// Pool splits index ranges into contiguous chunks and runs them on an ants
// pool. A nil *Pool runs everything on the calling goroutine.
type Pool struct {
	pool *ants.Pool
	size int
}

// NewPool creates a pool with the given number of workers.
// Zero or negative uses runtime.NumCPU().
func NewPool(size int) (*Pool, error) {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p, size: size}, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	if p == nil {
		return 1
	}
	return p.size
}

// ParallelFor calls fn(lo, hi) over disjoint ranges covering [0, n).
// fn must only write to outputs indexed inside its own range.
func (p *Pool) ParallelFor(ctx context.Context, n int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	workers := p.Size()
	if workers <= 1 || n <= minChunk {
		fn(0, n)
		return nil
	}

	chunkSize := (n + workers - 1) / workers
	if chunkSize < minChunk {
		chunkSize = minChunk
	}

	var wg sync.WaitGroup
	var submitErr error
	for lo := 0; lo < n; lo += chunkSize {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}

		hi := lo + chunkSize
		if hi > n {
			hi = n
		}

		lo, hi := lo, hi
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			fn(lo, hi)
		}); err != nil {
			wg.Done()
			submitErr = fmt.Errorf("submit chunk [%d,%d): %w", lo, hi, err)
			break
		}
	}

	wg.Wait()
	return submitErr
}

// Release shuts the pool down. Safe on a nil pool.
func (p *Pool) Release() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Release()
}
