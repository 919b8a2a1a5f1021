// Package ppca implements principal projective component analysis: it
// repeatedly projects points on a sphere onto the equator orthogonal to the
// direction of least variance until the target dimension is reached.
package ppca

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

// Common errors returned by Reduce.
var (
	ErrDimension     = errors.New("invalid projective dimension")
	ErrEmptyInput    = errors.New("class map is empty")
	ErrFactorization = errors.New("eigendecomposition failed")
)

// degenerate is the smallest rescaling denominator used as-is.
const degenerate = 1e-12

// Options tunes Reduce.
type Options struct {
	// Pool parallelizes the per-point passes. Nil runs inline.
	Pool *workers.Pool

	// Progress is called after each reduction step.
	Progress func(step, total int)
}

// Result holds the projective coordinates and explained variance.
type Result struct {
	// Coordinates is N×(projDim+1) with unit rows.
	Coordinates [][]float64

	// Variance has L-1 entries; step i fills entry L-2-i.
	Variance []float64
}

// Reduce runs L-1 reduction steps on the N×L class map and snapshots the
// coordinates when the ambient dimension reaches projDim+1.
func Reduce(ctx context.Context, classMap [][]float64, projDim int, opts Options) (*Result, error) {
	n := len(classMap)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	nDim := len(classMap[0])
	if projDim < 0 || projDim+1 > nDim {
		return nil, fmt.Errorf("%w: %d with %d landmarks", ErrDimension, projDim, nDim)
	}

	// X is dim×N: one column per point.
	x := mat.NewDense(nDim, n, nil)
	for j, row := range classMap {
		if len(row) != nDim {
			return nil, fmt.Errorf("%w: row %d has %d entries, expected %d", ErrDimension, j, len(row), nDim)
		}
		x.SetCol(j, row)
	}

	res := &Result{Variance: make([]float64, nDim-1)}
	if projDim+1 == nDim {
		res.Coordinates = columns(x)
	}

	total := nDim - 1
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, variance, err := step(ctx, opts.Pool, x)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		res.Variance[nDim-2-i] = variance
		x = next

		if i == nDim-projDim-2 {
			res.Coordinates = columns(x)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}

	return res, nil
}

// step removes the direction of least variance from x.
func step(ctx context.Context, pool *workers.Pool, x *mat.Dense) (*mat.Dense, float64, error) {
	dim, n := x.Dims()

	var gram mat.SymDense
	gram.SymOuterK(1, x)

	var eig mat.EigenSym
	if ok := eig.Factorize(&gram, true); !ok {
		return nil, 0, ErrFactorization
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues are ascending: column 0 is the least-variance direction,
	// the rest in descending order span the equator.
	u := mat.Col(nil, 0, &vecs)
	basis := mat.NewDense(dim, dim-1, nil)
	for k := 0; k < dim-1; k++ {
		basis.SetCol(k, mat.Col(nil, dim-1-k, &vecs))
	}

	var next mat.Dense
	next.Mul(basis.T(), x)

	raw := next.RawMatrix()
	sq := make([]float64, n)
	err := pool.ParallelFor(ctx, n, func(lo, hi int) {
		col := make([]float64, dim)
		out := make([]float64, dim-1)
		for j := lo; j < hi; j++ {
			mat.Col(col, j, x)
			y := pmath.Clamp(math.Abs(floats.Dot(u, col)), 0, 1)
			a := math.Pi/2 - math.Acos(y)
			sq[j] = a * a

			for k := 0; k < dim-1; k++ {
				out[k] = raw.Data[k*raw.Stride+j]
			}
			rescale(out, y)
			for k := 0; k < dim-1; k++ {
				raw.Data[k*raw.Stride+j] = out[k]
			}
		}
	})
	if err != nil {
		return nil, 0, err
	}

	return &next, floats.Sum(sq) / float64(n), nil
}

// rescale divides the projected point by sqrt(1 - y²). When that is too
// small to divide by, the point is renormalized directly, and a point that
// projected to the origin is sent to the first basis vector.
func rescale(v []float64, y float64) {
	denom := math.Sqrt(math.Max(1-y*y, 0))
	if denom >= degenerate {
		floats.Scale(1/denom, v)
		return
	}
	if pmath.NormalizeInPlace(v) == 0 && len(v) > 0 {
		v[0] = 1
	}
}

func columns(x *mat.Dense) [][]float64 {
	_, n := x.Dims()
	out := make([][]float64, n)
	for j := range out {
		out[j] = mat.Col(nil, j, x)
	}
	return out
}

// CumulativeVariance returns the running sum of the variance vector
// normalized by its total.
func CumulativeVariance(variance []float64) []float64 {
	out := make([]float64, len(variance))
	floats.CumSum(out, variance)
	if len(out) == 0 || out[len(out)-1] == 0 {
		return out
	}
	floats.Scale(1/out[len(out)-1], out)
	return out
}
