// Package landmark selects landmark subsets by greedy furthest-point sampling.
package landmark

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

// Common errors returned by the sampler.
var (
	ErrInvalidLandmarkCount = errors.New("landmark count must be at least 1")
	ErrTooManyLandmarks     = errors.New("more landmarks requested than points")
	ErrInvalidSeed          = errors.New("seed index out of range")
	ErrUnsupportedPointSet  = errors.New("unsupported point set")
)

// picked marks chosen points in the running-minimum buffer so they are
// never selected twice, even when the remaining points coincide.
const picked = -1.0

// ProgressFunc is called after each landmark is chosen.
type ProgressFunc func(done, total int)

// Options tunes the sampler.
type Options struct {
	// Seed is the index of the first landmark. Default 0.
	Seed int

	// Pool parallelizes distance rows over data points. Nil runs inline.
	Pool *workers.Pool

	// Progress is optional.
	Progress ProgressFunc
}

// Landmarks is the output of greedy sampling.
type Landmarks struct {
	// Indices are the chosen points, seed first.
	Indices []int

	// Lambdas holds insertion radii; Lambdas[0] is 0.
	Lambdas []float64

	// LandData is L×N: distance from landmark i to every point.
	LandData [][]float64

	// LandLand is L×L: distances among landmarks.
	LandLand [][]float64
}

// Len returns the number of landmarks.
func (l *Landmarks) Len() int { return len(l.Indices) }

// DistanceMatrix returns LandLand as a distance matrix for the cohomology
// oracle.
func (l *Landmarks) DistanceMatrix() *types.DistanceMatrix {
	n := len(l.LandLand)
	data := make([]float64, 0, n*n)
	for _, row := range l.LandLand {
		data = append(data, row...)
	}
	return &types.DistanceMatrix{N: n, Data: data}
}

// Coverage returns max over points of the distance to the nearest landmark.
func Coverage(landData [][]float64) float64 {
	if len(landData) == 0 {
		return 0
	}
	n := len(landData[0])
	var coverage float64
	for i := 0; i < n; i++ {
		nearest := landData[0][i]
		for j := 1; j < len(landData); j++ {
			if landData[j][i] < nearest {
				nearest = landData[j][i]
			}
		}
		if nearest > coverage {
			coverage = nearest
		}
	}
	return coverage
}

// rowFunc fills dst with the distances from point idx to all points.
type rowFunc func(ctx context.Context, idx int, dst []float64) error

// Sample dispatches on the point set's representation.
func Sample(ctx context.Context, ps types.PointSet, n int, opts Options) (*Landmarks, error) {
	switch p := ps.(type) {
	case *types.PointCloud:
		return GreedyEuclidean(ctx, p, n, opts)
	case *types.DistanceMatrix:
		return GreedyMatrix(ctx, p, n, opts)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedPointSet, ps)
	}
}

// GreedyEuclidean samples n landmarks from a point cloud. Rows are computed
// on demand from the squared-norm expansion, so no N×N matrix is built.
func GreedyEuclidean(ctx context.Context, pc *types.PointCloud, n int, opts Options) (*Landmarks, error) {
	norms := pmath.RowSquaredNorms(pc.Data, pc.N, pc.Dim)

	row := func(ctx context.Context, idx int, dst []float64) error {
		x := pc.Row(idx)
		return opts.Pool.ParallelFor(ctx, pc.N, func(lo, hi int) {
			pmath.CrossDistances(dst[lo:hi], x, norms[idx], pc.Data, norms, pc.Dim, lo, hi)
		})
	}

	return greedy(ctx, pc.N, n, opts, row)
}

// GreedyMatrix samples n landmarks using rows of a precomputed distance
// matrix.
func GreedyMatrix(ctx context.Context, dm *types.DistanceMatrix, n int, opts Options) (*Landmarks, error) {
	row := func(_ context.Context, idx int, dst []float64) error {
		copy(dst, dm.Row(idx))
		return nil
	}
	return greedy(ctx, dm.N, n, opts, row)
}

func greedy(ctx context.Context, total, n int, opts Options, row rowFunc) (*Landmarks, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLandmarkCount, n)
	}
	if n > total {
		return nil, fmt.Errorf("%w: requested %d, have %d", ErrTooManyLandmarks, n, total)
	}
	if opts.Seed < 0 || opts.Seed >= total {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidSeed, opts.Seed, total)
	}

	lm := &Landmarks{
		Indices:  make([]int, n),
		Lambdas:  make([]float64, n),
		LandData: make([][]float64, n),
	}

	first := make([]float64, total)
	if err := row(ctx, opts.Seed, first); err != nil {
		return nil, fmt.Errorf("distances from seed: %w", err)
	}
	lm.Indices[0] = opts.Seed
	lm.LandData[0] = first

	ds := append([]float64(nil), first...)
	ds[opts.Seed] = picked
	if opts.Progress != nil {
		opts.Progress(1, n)
	}

	for i := 1; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := floats.MaxIdx(ds)
		lm.Indices[i] = idx
		lm.Lambdas[i] = ds[idx]

		r := make([]float64, total)
		if err := row(ctx, idx, r); err != nil {
			return nil, fmt.Errorf("distances from landmark %d: %w", i, err)
		}
		lm.LandData[i] = r

		for j, d := range r {
			if ds[j] != picked && d < ds[j] {
				ds[j] = d
			}
		}
		ds[idx] = picked

		if opts.Progress != nil {
			opts.Progress(i+1, n)
		}
	}

	lm.LandLand = make([][]float64, n)
	for i := range lm.LandLand {
		lm.LandLand[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := lm.LandData[i][lm.Indices[j]]
			lm.LandLand[i][j] = d
			lm.LandLand[j][i] = d
		}
	}

	return lm, nil
}
