// Package source loads point sets for the projective coordinates pipeline
// from local files or from vector databases.
package source

import (
	"context"
	"errors"
	"fmt"

	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Common errors returned by sources.
var (
	ErrNotFound         = errors.New("not found")
	ErrNoVectors        = errors.New("source returned no vectors")
	ErrMissingSeed      = errors.New("seed id is required")
	ErrUnsupportedInput = errors.New("unsupported input format")
)

// Source fetches a neighborhood of stored vectors around a seed vector.
type Source interface {
	// Neighborhood returns the topK nearest stored vectors to the vector
	// with id seedID, values included.
	Neighborhood(ctx context.Context, seedID string, topK int) (*Dataset, error)

	// Close releases any resources held by the source.
	Close() error
}

// Config holds common vector database settings.
type Config struct {
	// APIKey for authentication
	APIKey string

	// Host is the vector database endpoint
	Host string

	// Namespace to query when the backend supports it.
	Namespace string

	// TimeoutSeconds bounds each request.
	TimeoutSeconds int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{TimeoutSeconds: 30}
}

// Dataset is a labeled point set.
type Dataset struct {
	// IDs labels each point. May be nil for anonymous input.
	IDs []string

	// Points is a *types.PointCloud or a *types.DistanceMatrix.
	Points types.PointSet

	// Metadata holds optional per-point payloads.
	Metadata []map[string]interface{}
}

// Len returns the number of points.
func (d *Dataset) Len() int {
	if d.Points == nil {
		return 0
	}
	return d.Points.Len()
}

// ID returns the label of point i, or its index when unlabeled.
func (d *Dataset) ID(i int) string {
	if i < len(d.IDs) && d.IDs[i] != "" {
		return d.IDs[i]
	}
	return fmt.Sprintf("%d", i)
}

// FromVectors builds a Dataset from float32 vectors as returned by vector
// databases. All vectors must share a dimension.
func FromVectors(ids []string, vectors [][]float32, metadata []map[string]interface{}) (*Dataset, error) {
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		rows[i] = pmath.Widen(v)
	}
	pc, err := types.NewPointCloud(rows)
	if err != nil {
		return nil, err
	}
	return &Dataset{IDs: ids, Points: pc, Metadata: metadata}, nil
}

// Fetch loads the neighborhood of seedID from src inside a source span.
func Fetch(ctx context.Context, src Source, tp *telemetry.Provider, backend, seedID string, topK int) (*Dataset, error) {
	if seedID == "" {
		return nil, ErrMissingSeed
	}

	ctx, span := tp.StartSource(ctx, backend, topK)
	defer span.End()

	ds, err := src.Neighborhood(ctx, seedID, topK)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s neighborhood of %q: %w", backend, seedID, err)
	}
	return ds, nil
}
