package cover

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

func TestSortByPersistence(t *testing.T) {
	dgm := types.Diagram{
		{Birth: 0.1, Death: 0.2},
		{Birth: 0.1, Death: 1.0},
		{Birth: 0.3, Death: 0.5},
		{Birth: 0.2, Death: 0.3},
	}
	assert.Equal(t, []int{1, 2, 0, 3}, SortByPersistence(dgm))
}

func TestSelectRadius(t *testing.T) {
	dgm := types.Diagram{
		{Birth: 0.2, Death: 0.4},
		{Birth: 0.4, Death: 2.0},
	}
	cocycles := []types.Cocycle{
		{{A: 0, B: 1, Value: 1}},
		{{A: 1, B: 2, Value: 1}, {A: 0, B: 2, Value: 1}},
	}
	landData := [][]float64{
		{0, 0.5, 0.3},
		{0.5, 0, 0.1},
	}

	sel, err := SelectRadius(dgm, cocycles, []int{0}, landData, 0.99)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0}, sel.Order)
	assert.InDelta(t, 0.2, sel.CohomDeath, 1e-12)
	assert.InDelta(t, 1.0, sel.CohomBirth, 1e-12)
	assert.InDelta(t, 0.1, sel.Coverage, 1e-12)
	assert.InDelta(t, 0.01*0.2+0.99*1.0, sel.Radius, 1e-12)
	assert.Equal(t, types.Cocycle{{A: 0, B: 2, Value: 1}, {A: 1, B: 2, Value: 1}}, sel.Cocycle)
	assert.Equal(t, dgm, sel.Diagram)
}

func TestSelectRadiusCoverageDominates(t *testing.T) {
	dgm := types.Diagram{{Birth: 0.2, Death: 2.0}}
	cocycles := []types.Cocycle{{{A: 0, B: 1, Value: 1}}}
	landData := [][]float64{{0.9, 0.9}, {0.7, 0.95}, {0.8, 0.6}}

	sel, err := SelectRadius(dgm, cocycles, []int{0}, landData, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, sel.Coverage, 1e-12)
	assert.InDelta(t, 0.5*0.7+0.5*1.0, sel.Radius, 1e-12)
}

func TestSelectRadiusSumsCocycles(t *testing.T) {
	dgm := types.Diagram{
		{Birth: 0.2, Death: 1.2},
		{Birth: 0.4, Death: 1.6},
	}
	cocycles := []types.Cocycle{
		{{A: 0, B: 1, Value: 1}, {A: 1, B: 2, Value: 1}},
		{{A: 1, B: 2, Value: 1}, {A: 2, B: 3, Value: 1}},
	}
	landData := [][]float64{{0}}

	sel, err := SelectRadius(dgm, cocycles, []int{0, 1}, landData, 1)
	require.NoError(t, err)

	assert.Equal(t, types.Cocycle{{A: 0, B: 1, Value: 1}, {A: 2, B: 3, Value: 1}}, sel.Cocycle)
	assert.InDelta(t, 0.2, sel.CohomDeath, 1e-12)
	assert.InDelta(t, 0.6, sel.CohomBirth, 1e-12)
	assert.InDelta(t, 0.6, sel.Radius, 1e-12)
}

func TestSelectRadiusTouchingLifetimes(t *testing.T) {
	dgm := types.Diagram{
		{Birth: 0.2, Death: 0.6},
		{Birth: 0.6, Death: 1.0},
	}
	cocycles := make([]types.Cocycle, 2)
	landData := [][]float64{{0}}

	sel, err := SelectRadius(dgm, cocycles, []int{0, 1}, landData, 0.5)
	require.NoError(t, err)
	assert.Equal(t, sel.CohomDeath, sel.CohomBirth)
	assert.InDelta(t, 0.3, sel.Radius, 1e-12)
}

func TestSelectRadiusErrors(t *testing.T) {
	dgm := types.Diagram{
		{Birth: 0.1, Death: 0.3},
		{Birth: 0.5, Death: 0.9},
		{Birth: 0.2, Death: math.Inf(1)},
	}
	cocycles := make([]types.Cocycle, 3)
	landData := [][]float64{{0}}

	tests := []struct {
		name     string
		dgm      types.Diagram
		cocycles []types.Cocycle
		idx      []int
		perc     float64
		want     error
	}{
		{"index out of range", dgm, cocycles, []int{3}, 0.9, ErrCocycleIndex},
		{"negative index", dgm, cocycles, []int{-1}, 0.9, ErrCocycleIndex},
		{"no class", dgm, cocycles, nil, 0.9, ErrNoClassSelected},
		{"bad percentage", dgm, cocycles, []int{1}, 1.5, ErrInvalidPercentage},
		{"disjoint lifetimes", dgm, cocycles, []int{1, 2}, 0.9, ErrEmptyCoverInterval},
		{"essential class", dgm, cocycles, []int{0}, 0.9, ErrEmptyCoverInterval},
		{"cocycle count", dgm, cocycles[:1], []int{1}, 0.9, ErrMismatchedCocycles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectRadius(tt.dgm, tt.cocycles, tt.idx, landData, tt.perc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildPartition(t *testing.T) {
	landData := [][]float64{
		{0.0, 0.5, 0.9, 1.5},
		{0.8, 0.4, 0.2, 0.1},
		{1.0, 1.0, 1.0, 0.7},
	}

	pool, err := workers.NewPool(2)
	require.NoError(t, err)
	defer pool.Release()

	p, err := BuildPartition(context.Background(), pool, landData, 1.0)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		var sum float64
		for j := range landData {
			w := p.Weights[j][i]
			assert.GreaterOrEqual(t, w, 0.0)
			if landData[j][i] >= 1.0 {
				assert.Equal(t, 0.0, w, "point %d outside ball %d", i, j)
			}
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}

	assert.Equal(t, []int{0, 0, 0, 1}, p.Representative)
	assert.InDelta(t, 1.0/1.2, p.Weights[0][0], 1e-12)
	assert.InDelta(t, 0.2/1.2, p.Weights[1][0], 1e-12)
}

func TestBuildPartitionUncovered(t *testing.T) {
	landData := [][]float64{
		{0.0, 2.0, 3.0},
		{1.0, 1.5, 0.0},
	}

	_, err := BuildPartition(context.Background(), nil, landData, 1.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUncoveredPoint)

	var ue *UncoveredError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 1, ue.Point)

	// A zero radius covers nothing, including the landmarks themselves.
	_, err = BuildPartition(context.Background(), nil, landData, 0)
	assert.ErrorIs(t, err, ErrUncoveredPoint)
}
