package cohomology

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// checkEvery is how many columns are reduced between context checks.
const checkEvery = 256

// Rips computes persistent cohomology of the full Vietoris–Rips
// filtration by reducing the coboundary matrix column by column, skipping
// simplices already paired one degree below.
type Rips struct {
	// Threshold drops simplices with a larger diameter. Zero or negative
	// means no threshold.
	Threshold float64
}

// NewRips returns a Rips oracle without a threshold.
func NewRips() *Rips {
	return &Rips{}
}

// Compute implements Oracle.
func (r *Rips) Compute(ctx context.Context, dm *types.DistanceMatrix, maxDim int) (*Result, error) {
	if dm == nil || dm.N == 0 {
		return nil, ErrEmptyInput
	}
	if maxDim < 0 || maxDim > MaxSupportedDim {
		return nil, fmt.Errorf("%w: %d (supported 0..%d)", ErrUnsupportedDimension, maxDim, MaxSupportedDim)
	}

	threshold := r.Threshold
	if threshold <= 0 {
		threshold = math.Inf(1)
	}

	c := &filtration{
		dm:        dm,
		n:         dm.N,
		threshold: threshold,
		binom:     newBinomials(dm.N, maxDim+2),
	}

	res := &Result{
		Diagrams:  make([]types.Diagram, maxDim+1),
		Cocycles:  make([][]types.Cocycle, maxDim+1),
		Simplices: make([]int, maxDim+1),
	}

	dgm0, cleared, edges := c.degreeZero()
	res.Diagrams[0] = dgm0
	res.Simplices[0] = c.n

	columns := edges
	for k := 1; k <= maxDim; k++ {
		if k > 1 {
			columns = c.simplices(k)
		}
		// Reverse filtration order.
		sort.Slice(columns, func(i, j int) bool { return columns[j].before(columns[i]) })

		dgm, cocycles, next, err := c.reduce(ctx, k, columns, cleared)
		if err != nil {
			return nil, err
		}
		res.Diagrams[k] = dgm
		res.Simplices[k] = len(columns)
		if k == 1 {
			res.Cocycles[1] = cocycles
		}
		cleared = next
	}

	return res, nil
}

type filtration struct {
	dm        *types.DistanceMatrix
	n         int
	threshold float64
	binom     *binomials
}

// degreeZero runs union-find over edges in filtration order. It returns the
// H0 diagram, the set of edges that merged components (already paired, so
// cleared from degree 1), and the full edge list.
func (c *filtration) degreeZero() (types.Diagram, map[int64]bool, []entry) {
	edges := make([]entry, 0, c.n*(c.n-1)/2)
	for j := 1; j < c.n; j++ {
		for i := 0; i < j; i++ {
			d := c.dm.At(i, j)
			if d > c.threshold {
				continue
			}
			edges = append(edges, entry{diam: d, index: c.binom.c(j, 2) + int64(i)})
		}
	}
	sortFiltration(edges)

	parent := make([]int, c.n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	var dgm types.Diagram
	cleared := make(map[int64]bool, c.n)
	var verts []int
	for _, e := range edges {
		verts = c.binom.vertices(e.index, 1, c.n-1, verts)
		a, b := find(verts[0]), find(verts[1])
		if a == b {
			continue
		}
		if a < b {
			parent[b] = a
		} else {
			parent[a] = b
		}
		cleared[e.index] = true
		if e.diam > 0 {
			dgm = append(dgm, types.Interval{Birth: 0, Death: e.diam})
		}
	}

	for i := 0; i < c.n; i++ {
		if find(i) == i {
			dgm = append(dgm, types.Interval{Birth: 0, Death: math.Inf(1)})
		}
	}

	return dgm, cleared, edges
}

// simplices enumerates all k-simplices within the threshold.
func (c *filtration) simplices(k int) []entry {
	var out []entry
	verts := make([]int, 0, k+1)

	var rec func(start int, diam float64)
	rec = func(start int, diam float64) {
		if len(verts) == k+1 {
			out = append(out, entry{diam: diam, index: c.binom.index(verts)})
			return
		}
		for v := start; v < c.n; v++ {
			d := diam
			for _, u := range verts {
				if duv := c.dm.At(u, v); duv > d {
					d = duv
				}
			}
			if d > c.threshold {
				continue
			}
			verts = append(verts, v)
			rec(v+1, d)
			verts = verts[:len(verts)-1]
		}
	}
	rec(0, 0)

	return out
}

// coboundary returns the cofacets of a k-simplex in filtration order.
func (c *filtration) coboundary(s entry, k int, verts []int) []entry {
	col := make([]entry, 0, c.n-k-1)
	buf := make([]int, 0, k+2)
	for v := 0; v < c.n; v++ {
		diam := s.diam
		inside := false
		for _, u := range verts {
			if u == v {
				inside = true
				break
			}
			if d := c.dm.At(u, v); d > diam {
				diam = d
			}
		}
		if inside || diam > c.threshold {
			continue
		}

		buf = buf[:0]
		placed := false
		for _, u := range verts {
			if !placed && v < u {
				buf = append(buf, v)
				placed = true
			}
			buf = append(buf, u)
		}
		if !placed {
			buf = append(buf, v)
		}
		col = append(col, entry{diam: diam, index: c.binom.index(buf)})
	}
	sortFiltration(col)
	return col
}

type reduced struct {
	column []entry
	v      []int64
}

// reduce runs the cohomology reduction for degree k. Columns must be in
// reverse filtration order. It returns the diagram, degree-1 cocycles when
// k == 1, and the cofacets used as pivots, which are cleared in degree k+1.
func (c *filtration) reduce(ctx context.Context, k int, columns []entry, cleared map[int64]bool) (types.Diagram, []types.Cocycle, map[int64]bool, error) {
	var dgm types.Diagram
	var cocycles []types.Cocycle
	pivots := make(map[int64]*reduced)
	verts := make([]int, 0, k+1)

	for n, s := range columns {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, nil, err
			}
		}
		if cleared[s.index] {
			continue
		}

		verts = c.binom.vertices(s.index, k, c.n-1, verts)
		working := c.coboundary(s, k, verts)
		v := []int64{s.index}

		for len(working) > 0 {
			other, ok := pivots[working[0].index]
			if !ok {
				break
			}
			working = symDiff(working, other.column)
			v = symDiffIndex(v, other.v)
		}

		if len(working) == 0 {
			dgm = append(dgm, types.Interval{Birth: s.diam, Death: math.Inf(1)})
			if k == 1 {
				cocycles = append(cocycles, c.cocycle(v))
			}
			continue
		}

		pivot := working[0]
		pivots[pivot.index] = &reduced{column: working, v: v}
		if pivot.diam > s.diam {
			dgm = append(dgm, types.Interval{Birth: s.diam, Death: pivot.diam})
			if k == 1 {
				cocycles = append(cocycles, c.cocycle(v))
			}
		}
	}

	next := make(map[int64]bool, len(pivots))
	for idx := range pivots {
		next[idx] = true
	}
	return dgm, cocycles, next, nil
}

// cocycle decodes a set of edge indices.
func (c *filtration) cocycle(edges []int64) types.Cocycle {
	out := make(types.Cocycle, 0, len(edges))
	var verts []int
	for _, e := range edges {
		verts = c.binom.vertices(e, 1, c.n-1, verts)
		out = append(out, types.CocycleEntry{A: verts[0], B: verts[1], Value: 1})
	}
	return out.Canonical()
}
