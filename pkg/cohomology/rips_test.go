package cohomology

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// circleMatrix returns chord distances between n evenly spaced points,
// computed from the step count so equal chords are bit-identical.
func circleMatrix(n int) *types.DistanceMatrix {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			step := i - j
			if step < 0 {
				step = -step
			}
			if n-step < step {
				step = n - step
			}
			data[i*n+j] = 2 * math.Sin(math.Pi*float64(step)/float64(n))
		}
	}
	return &types.DistanceMatrix{N: n, Data: data}
}

func chord(n, step int) float64 {
	return 2 * math.Sin(math.Pi*float64(step)/float64(n))
}

func TestBinomialIndexRoundTrip(t *testing.T) {
	b := newBinomials(10, 4)
	seen := make(map[int64]bool)
	var dst []int
	for i := 0; i < 10; i++ {
		for j := i + 1; j < 10; j++ {
			for k := j + 1; k < 10; k++ {
				verts := []int{i, j, k}
				idx := b.index(verts)
				assert.False(t, seen[idx], "index %d reused", idx)
				seen[idx] = true
				dst = b.vertices(idx, 2, 9, dst)
				assert.Equal(t, verts, dst)
			}
		}
	}
	assert.Len(t, seen, 120)
}

func TestSymDiff(t *testing.T) {
	a := []entry{{1, 3}, {2, 1}, {2, 4}}
	b := []entry{{1, 3}, {2, 2}, {3, 0}}
	got := symDiff(a, b)
	assert.Equal(t, []entry{{2, 1}, {2, 2}, {2, 4}, {3, 0}}, got)
	assert.Empty(t, symDiff(a, a))
	assert.Equal(t, []int64{1, 4}, symDiffIndex([]int64{1, 2, 3}, []int64{2, 3, 4}))
}

func TestRipsSquare(t *testing.T) {
	s2 := math.Sqrt2
	dm, err := types.NewDistanceMatrix([][]float64{
		{0, 1, s2, 1},
		{1, 0, 1, s2},
		{s2, 1, 0, 1},
		{1, s2, 1, 0},
	})
	require.NoError(t, err)

	res, err := NewRips().Compute(context.Background(), dm, 1)
	require.NoError(t, err)

	require.Len(t, res.Diagrams, 2)
	assert.Len(t, res.Diagrams[0], 4)
	essential := 0
	for _, iv := range res.Diagrams[0] {
		if iv.IsEssential() {
			essential++
		} else {
			assert.Equal(t, 1.0, iv.Death)
		}
	}
	assert.Equal(t, 1, essential)

	dgm1, cocycles := res.H1()
	require.Len(t, dgm1, 1)
	assert.Equal(t, types.Interval{Birth: 1, Death: s2}, dgm1[0])
	require.Len(t, cocycles, 1)

	// The cocycle evaluates to 1 on the boundary cycle of the square.
	cycle := map[[2]int]bool{{0, 1}: true, {1, 2}: true, {2, 3}: true, {0, 3}: true}
	hits := 0
	for _, e := range cocycles[0] {
		assert.Less(t, e.A, e.B)
		assert.Equal(t, 1, e.Value)
		if cycle[[2]int{e.A, e.B}] {
			hits++
		}
	}
	assert.Equal(t, 1, hits%2)
}

func TestRipsCircle(t *testing.T) {
	const n = 12
	dm := circleMatrix(n)

	res, err := NewRips().Compute(context.Background(), dm, 1)
	require.NoError(t, err)

	finite := res.Diagrams[0].Finite()
	assert.Len(t, finite, n-1)
	for _, iv := range finite {
		assert.Equal(t, chord(n, 1), iv.Death)
	}

	dgm1, cocycles := res.H1()
	require.Len(t, dgm1, 1)
	assert.Equal(t, chord(n, 1), dgm1[0].Birth)
	assert.Equal(t, chord(n, 4), dgm1[0].Death)
	assert.InDelta(t, math.Sqrt(3), dgm1[0].Death, 1e-12)

	// A representative must vanish on every triangle born before the class
	// dies and be non-trivial on the cycle through consecutive points.
	onEdge := make(map[[2]int]bool)
	for _, e := range cocycles[0] {
		onEdge[[2]int{e.A, e.B}] = true
	}
	has := func(a, b int) int {
		if a > b {
			a, b = b, a
		}
		if onEdge[[2]int{a, b}] {
			return 1
		}
		return 0
	}

	around := 0
	for i := 0; i < n; i++ {
		around += has(i, (i+1)%n)
	}
	assert.Equal(t, 1, around%2)

	death := dgm1[0].Death
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			for c := b + 1; c < n; c++ {
				diam := math.Max(dm.At(a, b), math.Max(dm.At(b, c), dm.At(a, c)))
				if diam >= death {
					continue
				}
				sum := has(a, b) + has(b, c) + has(a, c)
				assert.Equal(t, 0, sum%2, "coboundary non-zero on (%d,%d,%d)", a, b, c)
			}
		}
	}
}

func TestRipsCircleDegreeTwo(t *testing.T) {
	const n = 12
	res, err := NewRips().Compute(context.Background(), circleMatrix(n), 2)
	require.NoError(t, err)
	require.Len(t, res.Diagrams, 3)

	// The 4-step complex of 12 points on a circle is a wedge of three
	// 2-spheres, which fill in at the next step.
	dgm2 := res.Diagrams[2]
	require.Len(t, dgm2, 3)
	for _, iv := range dgm2 {
		assert.Equal(t, chord(n, 4), iv.Birth)
		assert.Equal(t, chord(n, 5), iv.Death)
	}
	assert.Nil(t, res.Cocycles[2])
}

func TestRipsThresholdEssential(t *testing.T) {
	const n = 12
	rips := &Rips{Threshold: chord(n, 2)}
	res, err := rips.Compute(context.Background(), circleMatrix(n), 1)
	require.NoError(t, err)

	dgm1, cocycles := res.H1()
	require.Len(t, dgm1, 1)
	assert.True(t, dgm1[0].IsEssential())
	assert.Equal(t, chord(n, 1), dgm1[0].Birth)
	assert.Len(t, cocycles, 1)
}

func TestRipsTwoClusters(t *testing.T) {
	dm, err := types.NewDistanceMatrix([][]float64{
		{0, 1, 10, 10},
		{1, 0, 10, 10},
		{10, 10, 0, 2},
		{10, 10, 2, 0},
	})
	require.NoError(t, err)

	res, err := NewRips().Compute(context.Background(), dm, 1)
	require.NoError(t, err)

	deaths := make([]float64, 0)
	for _, iv := range res.Diagrams[0].Finite() {
		deaths = append(deaths, iv.Death)
	}
	sort.Float64s(deaths)
	assert.Equal(t, []float64{1, 2, 10}, deaths)
	assert.Empty(t, res.Diagrams[1])
}

func TestRipsSinglePoint(t *testing.T) {
	res, err := NewRips().Compute(context.Background(), &types.DistanceMatrix{N: 1, Data: []float64{0}}, 1)
	require.NoError(t, err)
	require.Len(t, res.Diagrams[0], 1)
	assert.True(t, res.Diagrams[0][0].IsEssential())
	assert.Empty(t, res.Diagrams[1])
}

func TestRipsErrors(t *testing.T) {
	_, err := NewRips().Compute(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewRips().Compute(context.Background(), circleMatrix(4), 3)
	assert.ErrorIs(t, err, ErrUnsupportedDimension)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRips().Compute(ctx, circleMatrix(8), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
