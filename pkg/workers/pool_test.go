package workers

import (
	"context"
	"sync/atomic"
	"testing"
)

func TestParallelForCoversRange(t *testing.T) {
	p, err := NewPool(4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Release()

	for _, n := range []int{0, 1, 63, 64, 65, 1000, 4097} {
		hits := make([]int32, n)
		err := p.ParallelFor(context.Background(), n, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		if err != nil {
			t.Fatalf("n=%d: ParallelFor: %v", n, err)
		}
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("n=%d: index %d visited %d times", n, i, h)
			}
		}
	}
}

func TestParallelForNilPool(t *testing.T) {
	var p *Pool
	sum := 0
	if err := p.ParallelFor(context.Background(), 10, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			sum += i
		}
	}); err != nil {
		t.Fatalf("ParallelFor: %v", err)
	}
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}
	p.Release()
}

func TestParallelForCancelled(t *testing.T) {
	p, err := NewPool(2)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = p.ParallelFor(ctx, 1000, func(lo, hi int) { called = true })
	if err == nil {
		t.Error("expected context error")
	}
	if called {
		t.Error("fn should not run on a cancelled context")
	}
}

func TestSizeDefault(t *testing.T) {
	p, err := NewPool(0)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Release()
	if p.Size() < 1 {
		t.Errorf("Size() = %d", p.Size())
	}
}
