package math

import (
	"math"
)

// Dot computes the inner product of two float64 vectors.
// Returns 0 if the lengths differ or either vector is empty.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	n := len(a)

	// Process 4 elements at a time for better CPU pipelining
	i := 0
	for ; i <= n-4; i += 4 {
		sum += a[i]*b[i] +
			a[i+1]*b[i+1] +
			a[i+2]*b[i+2] +
			a[i+3]*b[i+3]
	}

	for ; i < n; i++ {
		sum += a[i] * b[i]
	}

	return sum
}

// SquaredNorm returns the squared L2 norm of v.
func SquaredNorm(v []float64) float64 {
	return Dot(v, v)
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// SquaredEuclidean computes the squared L2 distance between two vectors.
func SquaredEuclidean(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}

	var sum float64
	n := len(a)

	i := 0
	for ; i <= n-4; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}

	for ; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

// EuclideanDistance computes the L2 distance between two vectors.
func EuclideanDistance(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// NormalizeInPlace scales v to unit length and returns its original norm.
// A zero vector is left untouched.
func NormalizeInPlace(v []float64) float64 {
	mag := Norm(v)
	if mag == 0 {
		return 0
	}

	inv := 1.0 / mag
	for i := range v {
		v[i] *= inv
	}
	return mag
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// RowSquaredNorms returns |row_i|² for each row of a row-major n×dim buffer.
func RowSquaredNorms(data []float64, n, dim int) []float64 {
	norms := make([]float64, n)
	for i := 0; i < n; i++ {
		row := data[i*dim : (i+1)*dim]
		norms[i] = Dot(row, row)
	}
	return norms
}

// CrossDistances fills dst[j-lo] with the Euclidean distance between x and
// row j of data for j in [lo, hi). Distances come from the expansion
// |x|² + |y|² - 2x·y with negative values clamped to zero before the root,
// so rounding never produces NaN.
func CrossDistances(dst []float64, x []float64, xNorm float64, data []float64, norms []float64, dim, lo, hi int) {
	for j := lo; j < hi; j++ {
		row := data[j*dim : (j+1)*dim]
		d2 := xNorm + norms[j] - 2*Dot(x, row)
		if d2 < 0 {
			d2 = 0
		}
		dst[j-lo] = math.Sqrt(d2)
	}
}

// Widen converts a float32 vector to float64.
func Widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Narrow converts a float64 vector to float32, used when writing
// coordinates back to a vector index.
func Narrow(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
