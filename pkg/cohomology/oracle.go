// Package cohomology computes degree-k persistence diagrams and
// representative 1-cocycles with Z/2 coefficients for Vietoris–Rips
// filtrations of finite metric spaces.
package cohomology

import (
	"context"
	"errors"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Common errors returned by oracles.
var (
	ErrUnsupportedDimension = errors.New("unsupported homological dimension")
	ErrEmptyInput           = errors.New("distance matrix is empty")
)

// MaxSupportedDim is the highest degree the Rips oracle will compute.
const MaxSupportedDim = 2

// Oracle computes persistent cohomology of a distance matrix.
type Oracle interface {
	// Compute returns diagrams for degrees 0..maxDim and representative
	// cocycles for degree 1.
	Compute(ctx context.Context, dm *types.DistanceMatrix, maxDim int) (*Result, error)
}

// Result holds the output of an oracle run.
type Result struct {
	// Diagrams[k] is the degree-k diagram.
	Diagrams []types.Diagram `json:"dgms"`

	// Cocycles[1][i] represents the class of Diagrams[1][i]. Entries for
	// other degrees are nil.
	Cocycles [][]types.Cocycle `json:"cocycles"`

	// Simplices counts the columns reduced per degree.
	Simplices []int `json:"simplices"`
}

// H1 returns the degree-1 diagram and its cocycles.
func (r *Result) H1() (types.Diagram, []types.Cocycle) {
	if len(r.Diagrams) < 2 {
		return nil, nil
	}
	return r.Diagrams[1], r.Cocycles[1]
}
