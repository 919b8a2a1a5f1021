package landmark

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/synthetic"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

func fullDistances(pc *types.PointCloud) *types.DistanceMatrix {
	data := make([]float64, pc.N*pc.N)
	for i := 0; i < pc.N; i++ {
		for j := 0; j < pc.N; j++ {
			if i != j {
				data[i*pc.N+j] = pmath.EuclideanDistance(pc.Row(i), pc.Row(j))
			}
		}
	}
	return &types.DistanceMatrix{N: pc.N, Data: data}
}

func TestGreedyCircle(t *testing.T) {
	pc := synthetic.Circle(200)
	lm, err := GreedyEuclidean(context.Background(), pc, 50, Options{})
	require.NoError(t, err)

	require.Len(t, lm.Indices, 50)
	assert.Equal(t, 0, lm.Indices[0])
	assert.Equal(t, 100, lm.Indices[1], "antipode is furthest from the seed")
	assert.Equal(t, 0.0, lm.Lambdas[0])
	assert.InDelta(t, 2.0, lm.Lambdas[1], 1e-9)

	seen := make(map[int]bool)
	for _, idx := range lm.Indices {
		assert.False(t, seen[idx], "landmark %d chosen twice", idx)
		seen[idx] = true
	}

	for i := 2; i < len(lm.Lambdas); i++ {
		assert.LessOrEqual(t, lm.Lambdas[i], lm.Lambdas[i-1]+1e-12, "lambda %d increased", i)
	}

	// Greedy sampling is within a factor of two of the uniform cover.
	uniform := math.Pi / 50
	last := lm.Lambdas[len(lm.Lambdas)-1]
	assert.GreaterOrEqual(t, last, 0.5*uniform)
	assert.LessOrEqual(t, last, 2*uniform)
}

func TestGreedyMatchesMatrixVariant(t *testing.T) {
	pc := synthetic.Sphere(150, 7)
	dm := fullDistances(pc)

	pool, err := workers.NewPool(4)
	require.NoError(t, err)
	defer pool.Release()

	a, err := GreedyEuclidean(context.Background(), pc, 30, Options{Pool: pool})
	require.NoError(t, err)
	b, err := GreedyMatrix(context.Background(), dm, 30, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Indices, b.Indices)
	for i := range a.Lambdas {
		assert.InDelta(t, a.Lambdas[i], b.Lambdas[i], 1e-9)
	}
	for i := range a.LandData {
		for j := range a.LandData[i] {
			assert.InDelta(t, a.LandData[i][j], b.LandData[i][j], 1e-9)
		}
	}
}

func TestGreedyLandLandSymmetric(t *testing.T) {
	pc := synthetic.Sphere(80, 3)
	lm, err := Sample(context.Background(), pc, 20, Options{})
	require.NoError(t, err)

	for i := range lm.LandLand {
		assert.Equal(t, 0.0, lm.LandLand[i][i])
		for j := range lm.LandLand {
			assert.Equal(t, lm.LandLand[i][j], lm.LandLand[j][i])
			assert.InDelta(t, lm.LandData[i][lm.Indices[j]], lm.LandLand[i][j], 1e-12)
		}
	}
	require.NoError(t, lm.DistanceMatrix().Validate())
}

func TestGreedyCoverageMatchesNextLambda(t *testing.T) {
	pc := synthetic.Sphere(120, 11)
	lm, err := GreedyEuclidean(context.Background(), pc, 21, Options{})
	require.NoError(t, err)

	// The coverage of the first 20 landmarks is the radius at which the
	// 21st was inserted.
	assert.InDelta(t, lm.Lambdas[20], Coverage(lm.LandData[:20]), 1e-12)
}

func TestGreedyDuplicatePointsStayDistinct(t *testing.T) {
	pc, err := types.NewPointCloud([][]float64{{1, 1}, {1, 1}, {1, 1}, {2, 2}})
	require.NoError(t, err)

	lm, err := GreedyEuclidean(context.Background(), pc, 4, Options{})
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, idx := range lm.Indices {
		assert.False(t, seen[idx])
		seen[idx] = true
	}
	assert.Equal(t, 3, lm.Indices[1])
}

func TestGreedyErrors(t *testing.T) {
	pc := synthetic.Circle(10)

	tests := []struct {
		name string
		n    int
		opts Options
		want error
	}{
		{"too many", 11, Options{}, ErrTooManyLandmarks},
		{"zero", 0, Options{}, ErrInvalidLandmarkCount},
		{"bad seed", 3, Options{Seed: 10}, ErrInvalidSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GreedyEuclidean(context.Background(), pc, tt.n, tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Sample(context.Background(), nil, 1, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedPointSet)
}

func TestGreedyAllPointsAndProgress(t *testing.T) {
	pc := synthetic.Circle(12)
	var calls int
	lm, err := GreedyEuclidean(context.Background(), pc, 12, Options{
		Progress: func(done, total int) {
			calls++
			assert.Equal(t, 12, total)
			assert.Equal(t, calls, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, calls)
	assert.Equal(t, 0.0, Coverage(lm.LandData))
}

func TestGreedyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := GreedyMatrix(ctx, fullDistances(synthetic.Circle(20)), 5, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
