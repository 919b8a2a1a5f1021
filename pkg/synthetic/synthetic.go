// Package synthetic generates sample manifolds with known topology for
// demos and tests.
package synthetic

import (
	"math"
	"math/rand"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Circle returns n points evenly spaced on the unit circle.
func Circle(n int) *types.PointCloud {
	data := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		t := 2 * math.Pi * float64(i) / float64(n)
		data = append(data, math.Cos(t), math.Sin(t))
	}
	return &types.PointCloud{N: n, Dim: 2, Data: data}
}

// Sphere returns n points drawn uniformly from S² using the given seed.
func Sphere(n int, seed int64) *types.PointCloud {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, 0, 3*n)
	for len(data) < 3*n {
		x, y, z := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		norm := math.Sqrt(x*x + y*y + z*z)
		if norm < 1e-12 {
			continue
		}
		data = append(data, x/norm, y/norm, z/norm)
	}
	return &types.PointCloud{N: n, Dim: 3, Data: data}
}

// ProjectivePlane samples S² and returns the samples together with the
// geodesic distance on RP², d(x, y) = arccos |x·y|.
func ProjectivePlane(n int, seed int64) (*types.PointCloud, *types.DistanceMatrix) {
	pc := Sphere(n, seed)
	return pc, ProjectiveDistances(pc)
}

// ProjectiveDistances computes arccos |x·y| between unit rows.
func ProjectiveDistances(pc *types.PointCloud) *types.DistanceMatrix {
	n := pc.N
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		xi := pc.Row(i)
		for j := i + 1; j < n; j++ {
			xj := pc.Row(j)
			var dot float64
			for k := range xi {
				dot += xi[k] * xj[k]
			}
			d := math.Acos(math.Min(math.Abs(dot), 1))
			data[i*n+j] = d
			data[j*n+i] = d
		}
	}
	return &types.DistanceMatrix{N: n, Data: data}
}

// KleinBottle returns res×res points of the Klein bottle embedded in R⁴
// with tube radius 1 around a circle of radius 2.
func KleinBottle(res int) *types.PointCloud {
	const R, r = 2.0, 1.0

	data := make([]float64, 0, 4*res*res)
	step := 0.0
	if res > 1 {
		step = 2 * math.Pi / float64(res-1)
	}
	for i := 0; i < res; i++ {
		phi := step * float64(i)
		for j := 0; j < res; j++ {
			theta := step * float64(j)
			data = append(data,
				(R+r*math.Cos(theta))*math.Cos(phi),
				(R+r*math.Cos(theta))*math.Sin(phi),
				r*math.Sin(theta)*math.Cos(phi/2),
				r*math.Sin(theta)*math.Sin(phi/2),
			)
		}
	}
	return &types.PointCloud{N: res * res, Dim: 4, Data: data}
}
