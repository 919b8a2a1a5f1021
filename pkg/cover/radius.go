// Package cover picks the cover radius from a persistence diagram and builds
// the partition of unity subordinate to the landmark balls.
package cover

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Siddhant-K-code/projcoords/pkg/landmark"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Common errors returned by the cover stage.
var (
	ErrCocycleIndex       = errors.New("cocycle index out of range")
	ErrNoClassSelected    = errors.New("no cohomology class selected")
	ErrEmptyCoverInterval = errors.New("selected classes have no common lifetime")
	ErrInvalidPercentage  = errors.New("percentage must be in [0, 1]")
	ErrMismatchedCocycles = errors.New("cocycles do not match diagram")
)

// rescale maps Rips diameters to ball radii so the Čech cover at r is
// contained in the Rips complex at 2r.
const rescale = 0.5

// Selection is the outcome of SelectRadius.
type Selection struct {
	// Radius is the cover radius.
	Radius float64

	// Cocycle is the mod-2 sum of the selected cocycles.
	Cocycle types.Cocycle

	// CohomDeath is the latest (rescaled) birth among the selected classes.
	CohomDeath float64

	// CohomBirth is the earliest (rescaled) death among the selected classes.
	CohomBirth float64

	// Coverage is the largest distance from a point to its nearest landmark.
	Coverage float64

	// Order lists diagram indices from most to least persistent.
	Order []int

	// Diagram is the rescaled diagram multiplied back by two.
	Diagram types.Diagram
}

// SortByPersistence returns diagram indices ordered by persistence,
// largest first. Ties keep diagram order.
func SortByPersistence(dgm types.Diagram) []int {
	order := make([]int, len(dgm))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dgm[order[a]].Persistence() > dgm[order[b]].Persistence()
	})
	return order
}

// SelectRadius chooses the cover radius for the classes at positions
// classIdx of the persistence-sorted diagram.
func SelectRadius(dgm types.Diagram, cocycles []types.Cocycle, classIdx []int, landData [][]float64, perc float64) (*Selection, error) {
	if perc < 0 || perc > 1 || math.IsNaN(perc) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidPercentage, perc)
	}
	if len(classIdx) == 0 {
		return nil, ErrNoClassSelected
	}
	if len(cocycles) != len(dgm) {
		return nil, fmt.Errorf("%w: %d intervals, %d cocycles", ErrMismatchedCocycles, len(dgm), len(cocycles))
	}

	scaled := dgm.Scale(rescale)
	order := SortByPersistence(scaled)

	sel := &Selection{
		CohomDeath: math.Inf(-1),
		CohomBirth: math.Inf(1),
		Order:      order,
		Diagram:    scaled.Scale(1 / rescale),
	}

	for _, k := range classIdx {
		if k < 0 || k >= len(order) {
			return nil, fmt.Errorf("%w: %d (diagram has %d classes)", ErrCocycleIndex, k, len(order))
		}
		iv := scaled[order[k]]
		if iv.IsEssential() {
			return nil, fmt.Errorf("%w: class %d never dies", ErrEmptyCoverInterval, k)
		}

		sel.Cocycle = sel.Cocycle.Add(cocycles[order[k]])
		sel.CohomDeath = math.Max(sel.CohomDeath, iv.Birth)
		sel.CohomBirth = math.Min(sel.CohomBirth, iv.Death)
	}

	// Lifetimes that only touch still admit r = CohomBirth.
	if sel.CohomDeath > sel.CohomBirth {
		return nil, fmt.Errorf("%w: latest birth %g, earliest death %g", ErrEmptyCoverInterval, sel.CohomDeath, sel.CohomBirth)
	}

	sel.Coverage = landmark.Coverage(landData)
	sel.Radius = (1-perc)*math.Max(sel.CohomDeath, sel.Coverage) + perc*sel.CohomBirth

	return sel, nil
}
