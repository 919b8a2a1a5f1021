// Package classmap builds the classifying map from a partition of unity and
// a Z/2 cocycle onto the unit sphere in R^L.
package classmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/Siddhant-K-code/projcoords/pkg/cover"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Common errors returned by the builder.
var (
	ErrInvalidCocycleValue = errors.New("cocycle value must be +1 or -1")
	ErrCocycleVertex       = errors.New("cocycle vertex out of range")
	ErrShape               = errors.New("sign matrix does not match partition")
)

// SignMatrix returns the L×L transition signs: -1 on every cocycle edge
// (both orientations), +1 elsewhere.
func SignMatrix(l int, cocycle types.Cocycle) ([][]float64, error) {
	signs := make([][]float64, l)
	for i := range signs {
		signs[i] = make([]float64, l)
		for j := range signs[i] {
			signs[i][j] = 1
		}
	}

	for _, e := range cocycle {
		if e.Value != 1 && e.Value != -1 {
			return nil, fmt.Errorf("%w: edge (%d,%d) has value %d", ErrInvalidCocycleValue, e.A, e.B, e.Value)
		}
		if e.A < 0 || e.B < 0 || e.A >= l || e.B >= l {
			return nil, fmt.Errorf("%w: edge (%d,%d) with %d landmarks", ErrCocycleVertex, e.A, e.B, l)
		}
		signs[e.A][e.B] = -1
		signs[e.B][e.A] = -1
	}

	return signs, nil
}

// Map is the N×L classifying map; every row has unit norm.
type Map [][]float64

// Build evaluates row i = sqrt(varphi[:, i]) * signs[rep(i), :].
func Build(p *cover.Partition, signs [][]float64) (Map, error) {
	l := len(p.Weights)
	if len(signs) != l {
		return nil, fmt.Errorf("%w: %d landmarks, %d sign rows", ErrShape, l, len(signs))
	}
	n := len(p.Representative)

	m := make(Map, n)
	for i := 0; i < n; i++ {
		row := make([]float64, l)
		s := signs[p.Representative[i]]
		for j := 0; j < l; j++ {
			row[j] = math.Sqrt(p.Weights[j][i]) * s[j]
		}
		m[i] = row
	}
	return m, nil
}

// Dim returns L.
func (m Map) Dim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
