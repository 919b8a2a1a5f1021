package types

import "sort"

// CocycleEntry is one edge of a 1-cocycle over landmark indices.
// Value is +1 or -1; the sign map treats both as the non-trivial element
// of Z/2.
type CocycleEntry struct {
	A     int `json:"a"`
	B     int `json:"b"`
	Value int `json:"value"`
}

// Cocycle is a sparse 1-cocycle with coefficients in Z/2.
type Cocycle []CocycleEntry

type edge struct{ a, b int }

func edgeOf(e CocycleEntry) edge {
	if e.A > e.B {
		return edge{e.B, e.A}
	}
	return edge{e.A, e.B}
}

// Canonical returns a copy with every edge written as A < B, duplicates
// cancelled in pairs, and entries sorted by (A, B).
func (c Cocycle) Canonical() Cocycle {
	return c.Add(nil)
}

// Add returns the mod-2 sum of two cocycles: an edge present in both
// cancels, all others are kept. The result is canonical, so Add is
// commutative and c.Add(c) is empty.
func (c Cocycle) Add(other Cocycle) Cocycle {
	count := make(map[edge]int, len(c)+len(other))
	value := make(map[edge]int, len(c)+len(other))
	for _, src := range []Cocycle{c, other} {
		for _, e := range src {
			k := edgeOf(e)
			count[k]++
			if _, ok := value[k]; !ok {
				value[k] = e.Value
			}
		}
	}

	out := make(Cocycle, 0, len(count))
	for k, n := range count {
		if n%2 == 1 {
			out = append(out, CocycleEntry{A: k.a, B: k.b, Value: value[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Sum returns the mod-2 sum of all cocycles.
func Sum(cocycles ...Cocycle) Cocycle {
	var out Cocycle
	for _, c := range cocycles {
		out = out.Add(c)
	}
	return out.Canonical()
}
