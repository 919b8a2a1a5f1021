package projective

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Distances returns the pairwise geodesic distances arccos |x·y| between
// projective coordinates as a distance matrix.
func Distances(coords [][]float64) *types.DistanceMatrix {
	n := len(coords)
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Acos(pmath.Clamp(math.Abs(pmath.Dot(coords[i], coords[j])), 0, 1))
			data[i*n+j] = d
			data[j*n+i] = d
		}
	}
	return &types.DistanceMatrix{N: n, Data: data}
}

// DistanceCorrelation reports the Pearson correlation between the
// projective distances of coords and the reference distances in dm, taken
// over all unordered pairs.
func DistanceCorrelation(coords [][]float64, dm *types.DistanceMatrix) (float64, error) {
	if len(coords) != dm.N {
		return 0, fmt.Errorf("%w: %d coordinates, %d reference points", types.ErrShape, len(coords), dm.N)
	}
	if dm.N < 3 {
		return 0, fmt.Errorf("%w: need at least 3 points", types.ErrShape)
	}

	got := Distances(coords)
	pairs := dm.N * (dm.N - 1) / 2
	x := make([]float64, 0, pairs)
	y := make([]float64, 0, pairs)
	for i := 0; i < dm.N; i++ {
		for j := i + 1; j < dm.N; j++ {
			x = append(x, got.At(i, j))
			y = append(y, dm.At(i, j))
		}
	}
	return stat.Correlation(x, y, nil), nil
}
