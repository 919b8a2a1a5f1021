package cover

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

// ErrUncoveredPoint is returned when some point lies outside every ball.
var ErrUncoveredPoint = errors.New("point not covered by any landmark ball")

// UncoveredError reports the first point outside the cover.
type UncoveredError struct {
	Point  int
	Radius float64
}

func (e *UncoveredError) Error() string {
	return fmt.Sprintf("point %d not covered at radius %g", e.Point, e.Radius)
}

// Unwrap lets errors.Is match ErrUncoveredPoint.
func (e *UncoveredError) Unwrap() error { return ErrUncoveredPoint }

// Partition is a partition of unity subordinate to the open balls
// B(l_j, r).
type Partition struct {
	// Weights is L×N; each column sums to one.
	Weights [][]float64

	// Representative[i] is the smallest landmark index whose ball contains
	// point i.
	Representative []int

	Radius float64
}

// BuildPartition computes phi_j(b) = r - d(l_j, b) on the open ball and
// normalizes each point's column.
func BuildPartition(ctx context.Context, pool *workers.Pool, landData [][]float64, r float64) (*Partition, error) {
	nl := len(landData)
	if nl == 0 {
		return nil, fmt.Errorf("%w: no landmarks", ErrUncoveredPoint)
	}
	n := len(landData[0])

	p := &Partition{
		Weights:        make([][]float64, nl),
		Representative: make([]int, n),
		Radius:         r,
	}
	for j := range p.Weights {
		p.Weights[j] = make([]float64, n)
	}

	var mu sync.Mutex
	var firstErr *UncoveredError

	err := pool.ParallelFor(ctx, n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			rep := -1
			var sum float64
			for j := 0; j < nl; j++ {
				d := landData[j][i]
				if d < r {
					phi := r - d
					p.Weights[j][i] = phi
					sum += phi
					if rep < 0 {
						rep = j
					}
				}
			}

			if sum == 0 {
				mu.Lock()
				if firstErr == nil || i < firstErr.Point {
					firstErr = &UncoveredError{Point: i, Radius: r}
				}
				mu.Unlock()
				continue
			}

			for j := 0; j < nl; j++ {
				p.Weights[j][i] /= sum
			}
			p.Representative[i] = rep
		}
	})
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return p, nil
}
