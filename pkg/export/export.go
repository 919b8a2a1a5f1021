// Package export writes projective coordinates to a vector index in
// concurrent batches.
package export

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Siddhant-K-code/projcoords/pkg/logging"
	pmath "github.com/Siddhant-K-code/projcoords/pkg/math"
	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
	"github.com/Siddhant-K-code/projcoords/pkg/source"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// ErrIncomplete is returned when some batches could not be written.
var ErrIncomplete = errors.New("export incomplete")

// Sink stores a batch of vectors. *pinecone.Client implements it.
type Sink interface {
	UpsertBatch(ctx context.Context, vectors []types.Vector) error
}

// Config holds exporter configuration.
type Config struct {
	// BatchSize is the number of vectors per upsert. Pinecone optimal: 100
	BatchSize int

	// Workers is the number of concurrent upserts.
	Workers int

	// Index names the destination, for logs and spans only.
	Index string
}

// DefaultConfig returns sensible defaults for exporting.
func DefaultConfig() Config {
	return Config{
		BatchSize: 100,
		Workers:   runtime.NumCPU(),
	}
}

// Stats tracks an export.
type Stats struct {
	TotalVectors     int64
	UploadedVectors  int64
	FailedVectors    int64
	BatchesProcessed int64
	StartTime        time.Time
	EndTime          time.Time
}

// Duration returns the total processing duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// VectorsPerSecond returns the throughput.
func (s *Stats) VectorsPerSecond() float64 {
	d := s.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(s.UploadedVectors) / d
}

// ProgressCallback is called after every batch with a stats snapshot.
type ProgressCallback func(stats Stats)

// Exporter uploads vectors to a Sink.
type Exporter struct {
	cfg     Config
	sink    Sink
	logger  *zap.Logger
	tracer  *telemetry.Provider
	metrics *metrics.Metrics
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.logger = logging.OrNop(l) }
}

// WithTracer sets the tracing provider.
func WithTracer(tp *telemetry.Provider) Option {
	return func(e *Exporter) { e.tracer = tp }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Exporter) { e.metrics = m }
}

// New creates an exporter writing to sink.
func New(sink Sink, cfg Config, opts ...Option) *Exporter {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	e := &Exporter{cfg: cfg, sink: sink, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export uploads vectors. A failed batch is counted and the remaining
// batches still run; the returned error then wraps ErrIncomplete and the
// first batch error. Cancellation stops the export.
func (e *Exporter) Export(ctx context.Context, vectors []types.Vector, progress ProgressCallback) (*Stats, error) {
	stats := &Stats{StartTime: time.Now(), TotalVectors: int64(len(vectors))}

	ctx, span := e.tracer.StartExport(ctx, len(vectors), e.cfg.Index)
	defer span.End()

	var (
		mu       sync.Mutex
		firstErr error
		uploaded atomic.Int64
		failed   atomic.Int64
		batches  atomic.Int64
	)
	snapshot := func() Stats {
		return Stats{
			TotalVectors:     stats.TotalVectors,
			UploadedVectors:  uploaded.Load(),
			FailedVectors:    failed.Load(),
			BatchesProcessed: batches.Load(),
			StartTime:        stats.StartTime,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	for start := 0; start < len(vectors); start += e.cfg.BatchSize {
		if gctx.Err() != nil {
			break
		}
		batch := vectors[start:min(start+e.cfg.BatchSize, len(vectors))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := e.sink.UpsertBatch(gctx, batch)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed.Add(int64(len(batch)))
				if firstErr == nil {
					firstErr = err
				}
				e.logger.Warn("batch upsert failed", zap.Int("vectors", len(batch)), zap.Error(err))
			} else {
				uploaded.Add(int64(len(batch)))
			}
			batches.Add(1)
			if progress != nil {
				progress(snapshot())
			}
			return nil
		})
	}
	waitErr := g.Wait()

	*stats = snapshot()
	stats.EndTime = time.Now()
	e.metrics.RecordExport(stats.UploadedVectors, stats.FailedVectors)

	e.logger.Info("export finished",
		zap.String("index", e.cfg.Index),
		zap.Int64("uploaded", stats.UploadedVectors),
		zap.Int64("failed", stats.FailedVectors),
		zap.Duration("elapsed", stats.Duration()),
	)

	switch {
	case waitErr != nil:
		telemetry.RecordError(span, waitErr)
		return stats, waitErr
	case ctx.Err() != nil:
		telemetry.RecordError(span, ctx.Err())
		return stats, ctx.Err()
	case firstErr != nil:
		err := fmt.Errorf("%w: %d of %d vectors failed: %w", ErrIncomplete, stats.FailedVectors, stats.TotalVectors, firstErr)
		telemetry.RecordError(span, err)
		return stats, err
	}
	return stats, nil
}

// Vectors pairs each point of ds with its projective coordinates. Point
// metadata is carried over and annotated with the run parameters.
func Vectors(ds *source.Dataset, res *projective.Result) ([]types.Vector, error) {
	if ds.Len() != len(res.Coordinates) {
		return nil, fmt.Errorf("dataset has %d points but result has %d coordinates", ds.Len(), len(res.Coordinates))
	}

	landmarks := make(map[int]bool, len(res.Perm))
	for _, idx := range res.Perm {
		landmarks[idx] = true
	}

	out := make([]types.Vector, len(res.Coordinates))
	for i, row := range res.Coordinates {
		meta := make(map[string]interface{})
		if i < len(ds.Metadata) {
			for k, v := range ds.Metadata[i] {
				meta[k] = v
			}
		}
		meta["cover_radius"] = res.Radius
		meta["proj_dim"] = len(row) - 1
		meta["landmark"] = landmarks[i]

		out[i] = types.Vector{
			ID:       ds.ID(i),
			Values:   pmath.Narrow(row),
			Metadata: meta,
		}
	}
	return out, nil
}
