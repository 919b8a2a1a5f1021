package types

import (
	"errors"
	"fmt"
	"math"
)

// Input validation errors.
var (
	ErrShape            = errors.New("invalid shape")
	ErrNegativeDistance = errors.New("negative distance")
	ErrAsymmetric       = errors.New("distance matrix is not symmetric")
	ErrNonZeroDiagonal  = errors.New("distance matrix has non-zero diagonal")
	ErrNonFinite        = errors.New("non-finite value")
)

// symmetryTolerance bounds |d(i,j) - d(j,i)| relative to the larger entry.
const symmetryTolerance = 1e-9

// PointSet is the input to the pipeline: either a *PointCloud or a
// *DistanceMatrix.
type PointSet interface {
	// Len returns the number of points.
	Len() int
}

// PointCloud holds N points in R^Dim as a row-major buffer.
type PointCloud struct {
	N    int
	Dim  int
	Data []float64
}

// NewPointCloud copies rows into a PointCloud. All rows must share one
// non-zero dimension and contain only finite values.
func NewPointCloud(rows [][]float64) (*PointCloud, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: point cloud is empty", ErrShape)
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: points have zero dimension", ErrShape)
	}

	data := make([]float64, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d coordinates, expected %d", ErrShape, i, len(row), dim)
		}
		for _, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
			}
		}
		data = append(data, row...)
	}

	return &PointCloud{N: len(rows), Dim: dim, Data: data}, nil
}

// Len returns the number of points.
func (p *PointCloud) Len() int { return p.N }

// Row returns point i. The slice aliases the cloud's buffer.
func (p *PointCloud) Row(i int) []float64 {
	return p.Data[i*p.Dim : (i+1)*p.Dim]
}

// DistanceMatrix is a symmetric N×N matrix of non-negative distances with a
// zero diagonal, stored row-major.
type DistanceMatrix struct {
	N    int
	Data []float64
}

// NewDistanceMatrix copies rows into a DistanceMatrix and validates it.
func NewDistanceMatrix(rows [][]float64) (*DistanceMatrix, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: distance matrix is empty", ErrShape)
	}

	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d entries, expected %d", ErrShape, i, len(row), n)
		}
		data = append(data, row...)
	}

	dm := &DistanceMatrix{N: n, Data: data}
	if err := dm.Validate(); err != nil {
		return nil, err
	}
	return dm, nil
}

// Validate checks shape, sign, symmetry and the diagonal.
func (d *DistanceMatrix) Validate() error {
	if d.N <= 0 || len(d.Data) != d.N*d.N {
		return fmt.Errorf("%w: expected %d entries, got %d", ErrShape, d.N*d.N, len(d.Data))
	}

	for i := 0; i < d.N; i++ {
		if d.At(i, i) != 0 {
			return fmt.Errorf("%w: entry (%d,%d) = %g", ErrNonZeroDiagonal, i, i, d.At(i, i))
		}
		for j := i + 1; j < d.N; j++ {
			a, b := d.At(i, j), d.At(j, i)
			if math.IsNaN(a) || math.IsNaN(b) {
				return fmt.Errorf("%w: entry (%d,%d)", ErrNonFinite, i, j)
			}
			if a < 0 || b < 0 {
				return fmt.Errorf("%w: entry (%d,%d)", ErrNegativeDistance, i, j)
			}
			if math.Abs(a-b) > symmetryTolerance*math.Max(1, math.Max(a, b)) {
				return fmt.Errorf("%w: (%d,%d) = %g but (%d,%d) = %g", ErrAsymmetric, i, j, a, j, i, b)
			}
		}
	}
	return nil
}

// Len returns the number of points.
func (d *DistanceMatrix) Len() int { return d.N }

// At returns the distance between points i and j.
func (d *DistanceMatrix) At(i, j int) float64 {
	return d.Data[i*d.N+j]
}

// Row returns the distances from point i. The slice aliases the matrix.
func (d *DistanceMatrix) Row(i int) []float64 {
	return d.Data[i*d.N : (i+1)*d.N]
}

// Rows returns a copy of the matrix as nested slices.
func (d *DistanceMatrix) Rows() [][]float64 {
	out := make([][]float64, d.N)
	for i := range out {
		out[i] = append([]float64(nil), d.Row(i)...)
	}
	return out
}
