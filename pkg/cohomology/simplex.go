package cohomology

import (
	"sort"
)

// entry is a simplex in the filtration: its combinatorial index and
// diameter. The filtration order on one dimension is (diam, index)
// ascending.
type entry struct {
	diam  float64
	index int64
}

func (a entry) before(b entry) bool {
	if a.diam != b.diam {
		return a.diam < b.diam
	}
	return a.index < b.index
}

// binomials is a table of C(v, k) for v in [0, n] and k in [0, maxK].
type binomials struct {
	table [][]int64
}

func newBinomials(n, maxK int) *binomials {
	t := make([][]int64, n+1)
	for v := 0; v <= n; v++ {
		t[v] = make([]int64, maxK+1)
		t[v][0] = 1
		for k := 1; k <= maxK && k <= v; k++ {
			if k == v {
				t[v][k] = 1
				continue
			}
			t[v][k] = t[v-1][k-1] + t[v-1][k]
		}
	}
	return &binomials{table: t}
}

func (b *binomials) c(v, k int) int64 {
	if v < k || k < 0 {
		return 0
	}
	return b.table[v][k]
}

// index encodes ascending vertices a[0] < ... < a[k] as sum C(a[i], i+1).
func (b *binomials) index(verts []int) int64 {
	var idx int64
	for i, v := range verts {
		idx += b.c(v, i+1)
	}
	return idx
}

// vertices decodes a simplex with k+1 vertices into ascending order.
// top is an upper bound on the largest vertex.
func (b *binomials) vertices(idx int64, k, top int, dst []int) []int {
	dst = dst[:0]
	for i := 0; i <= k; i++ {
		dst = append(dst, 0)
	}
	v := top
	for i := k + 1; i >= 1; i-- {
		for v > 0 && b.c(v, i) > idx {
			v--
		}
		dst[i-1] = v
		idx -= b.c(v, i)
		v--
	}
	return dst
}

// symDiff returns the mod-2 sum of two columns sorted in filtration order.
func symDiff(a, b []entry) []entry {
	out := make([]entry, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].index == b[j].index:
			i++
			j++
		case a[i].before(b[j]):
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// symDiffIndex is symDiff for ascending index sets.
func symDiffIndex(a, b []int64) []int64 {
	out := make([]int64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func sortFiltration(col []entry) {
	sort.Slice(col, func(i, j int) bool { return col[i].before(col[j]) })
}
