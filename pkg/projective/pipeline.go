// Package projective wires landmark sampling, persistent cohomology, the
// cover and classifying map, and PPCA into a single pipeline that maps data
// into real projective space.
package projective

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Siddhant-K-code/projcoords/pkg/classmap"
	"github.com/Siddhant-K-code/projcoords/pkg/cohomology"
	"github.com/Siddhant-K-code/projcoords/pkg/cover"
	"github.com/Siddhant-K-code/projcoords/pkg/landmark"
	"github.com/Siddhant-K-code/projcoords/pkg/logging"
	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/ppca"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

// Defaults for Input fields left at their zero value by callers that go
// through WithDefaults.
const (
	DefaultPercentage = 0.99
	DefaultMaxDim     = 1
	DefaultProjDim    = 3
)

// Common errors returned by the pipeline.
var (
	ErrNoPoints     = errors.New("no input points")
	ErrNoLandmarks  = errors.New("landmark count must be positive")
	ErrMaxDimTooLow = errors.New("max dimension must be at least 1")
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages in execution order.
const (
	StageLandmarks   Stage = "landmarks"
	StagePersistence Stage = "persistence"
	StageCover       Stage = "cover"
	StageClassMap    Stage = "classmap"
	StagePPCA        Stage = "ppca"
)

// ProgressFunc receives progress within a stage.
type ProgressFunc func(stage Stage, done, total int)

// Input describes one run.
type Input struct {
	// Points is a *types.PointCloud or a *types.DistanceMatrix.
	Points types.PointSet

	// Landmarks is the number of landmarks to sample.
	Landmarks int

	// Percentage interpolates the cover radius between coverage and the
	// earliest death of the selected classes.
	Percentage float64

	// MaxDim is the highest degree handed to the cohomology oracle.
	MaxDim int

	// Cocycles indexes classes in order of decreasing persistence; the
	// selected cocycles are summed.
	Cocycles []int

	// ProjDim is the target projective dimension.
	ProjDim int
}

// WithDefaults fills unset optional fields.
func (in Input) WithDefaults() Input {
	if in.Percentage == 0 {
		in.Percentage = DefaultPercentage
	}
	if in.MaxDim == 0 {
		in.MaxDim = DefaultMaxDim
	}
	if len(in.Cocycles) == 0 {
		in.Cocycles = []int{0}
	}
	if in.ProjDim == 0 {
		in.ProjDim = DefaultProjDim
	}
	return in
}

// Stats records how long each stage took.
type Stats struct {
	Landmarks   time.Duration `json:"landmarks_ns"`
	Persistence time.Duration `json:"persistence_ns"`
	Cover       time.Duration `json:"cover_ns"`
	ClassMap    time.Duration `json:"classmap_ns"`
	PPCA        time.Duration `json:"ppca_ns"`
	Total       time.Duration `json:"total_ns"`
}

// Result is the output of a run.
type Result struct {
	// Variance has Landmarks-1 entries.
	Variance []float64 `json:"variance"`

	// Coordinates is N×(ProjDim+1) with unit rows.
	Coordinates [][]float64 `json:"coordinates"`

	// Cocycle is the combined cocycle used for the classifying map.
	Cocycle types.Cocycle `json:"cocycle"`

	LandLand [][]float64 `json:"dist_land_land"`
	LandData [][]float64 `json:"dist_land_data"`

	// Diagram is the degree-1 diagram as reported by the oracle.
	Diagram types.Diagram `json:"dgm1"`

	// SortOrder lists Diagram indices by decreasing persistence.
	SortOrder []int `json:"idx_p1"`

	// Perm holds the landmark indices, seed first.
	Perm []int `json:"perm"`

	// Lambdas holds the landmark insertion radii.
	Lambdas []float64 `json:"lambdas"`

	Radius   float64 `json:"cover_radius"`
	Coverage float64 `json:"coverage"`

	// Persistence is the oracle output as computed: diagrams for every
	// degree and the degree-1 cocycles before any are combined.
	Persistence *cohomology.Result `json:"rips"`

	Stats Stats `json:"stats"`
}

// Config configures a Pipeline.
type Config struct {
	// Oracle computes persistent cohomology. Defaults to cohomology.NewRips().
	Oracle cohomology.Oracle

	// Workers sizes the worker pool. Zero uses runtime.NumCPU().
	Workers int

	// Seed is the first landmark.
	Seed int

	Logger   *zap.Logger
	Tracer   *telemetry.Provider
	Metrics  *metrics.Metrics
	Progress ProgressFunc
}

// Pipeline runs the projective coordinates computation.
type Pipeline struct {
	cfg    Config
	oracle cohomology.Oracle
	pool   *workers.Pool
	logger *zap.Logger
}

// New creates a pipeline. Call Close to release its workers.
func New(cfg Config) (*Pipeline, error) {
	pool, err := workers.NewPool(cfg.Workers)
	if err != nil {
		return nil, err
	}

	oracle := cfg.Oracle
	if oracle == nil {
		oracle = cohomology.NewRips()
	}

	return &Pipeline{
		cfg:    cfg,
		oracle: oracle,
		pool:   pool,
		logger: logging.OrNop(cfg.Logger),
	}, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() {
	p.pool.Release()
}

// Run computes projective coordinates for in.
func (p *Pipeline) Run(ctx context.Context, in Input) (res *Result, err error) {
	start := time.Now()

	if err := validate(in); err != nil {
		return nil, err
	}
	n := in.Points.Len()

	ctx, span := p.cfg.Tracer.StartRun(ctx, n, in.Landmarks, in.ProjDim)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
			p.cfg.Metrics.RecordRun(n, in.Landmarks, 0, err)
		} else {
			telemetry.RecordResult(span, n, in.Landmarks, res.Radius, res.Stats.Total)
			p.cfg.Metrics.RecordRun(n, in.Landmarks, res.Radius, nil)
		}
		span.End()
	}()

	p.logger.Info("computing projective coordinates",
		zap.Int("points", n),
		zap.Int("landmarks", in.Landmarks),
		zap.Int("max_dim", in.MaxDim),
		zap.Ints("cocycles", in.Cocycles),
		zap.Int("proj_dim", in.ProjDim),
		zap.Float64("percentage", in.Percentage),
	)

	res = &Result{}

	// Step 1: greedy landmark permutation.
	var lm *landmark.Landmarks
	err = p.stage(ctx, StageLandmarks, &res.Stats.Landmarks,
		func(ctx context.Context) (context.Context, trace.Span) {
			return p.cfg.Tracer.StartLandmarks(ctx, n, in.Landmarks, mode(in.Points))
		},
		func(ctx context.Context) error {
			var err error
			lm, err = landmark.Sample(ctx, in.Points, in.Landmarks, landmark.Options{
				Seed:     p.cfg.Seed,
				Pool:     p.pool,
				Progress: p.progress(StageLandmarks),
			})
			return err
		})
	if err != nil {
		return nil, err
	}
	res.Perm, res.Lambdas = lm.Indices, lm.Lambdas
	res.LandLand, res.LandData = lm.LandLand, lm.LandData

	// Step 2: degree-1 cohomology of the landmark Rips filtration.
	var ph *cohomology.Result
	err = p.stage(ctx, StagePersistence, &res.Stats.Persistence,
		func(ctx context.Context) (context.Context, trace.Span) {
			return p.cfg.Tracer.StartPersistence(ctx, in.Landmarks, in.MaxDim)
		},
		func(ctx context.Context) error {
			var err error
			ph, err = p.oracle.Compute(ctx, lm.DistanceMatrix(), in.MaxDim)
			return err
		})
	if err != nil {
		return nil, err
	}
	dgm1, cocycles := ph.H1()
	res.Persistence = ph
	p.logger.Debug("persistence computed", zap.Int("h1_classes", len(dgm1)))

	// Step 3: cover radius and partition of unity.
	var part *cover.Partition
	err = p.stage(ctx, StageCover, &res.Stats.Cover,
		func(ctx context.Context) (context.Context, trace.Span) {
			return p.cfg.Tracer.StartCover(ctx, in.Cocycles, in.Percentage)
		},
		func(ctx context.Context) error {
			sel, err := cover.SelectRadius(dgm1, cocycles, in.Cocycles, lm.LandData, in.Percentage)
			if err != nil {
				return err
			}
			res.Radius, res.Coverage = sel.Radius, sel.Coverage
			res.Cocycle, res.Diagram, res.SortOrder = sel.Cocycle, sel.Diagram, sel.Order
			p.logger.Debug("cover radius selected",
				zap.Float64("r_cover", sel.Radius),
				zap.Float64("coverage", sel.Coverage),
				zap.Float64("cohom_death", sel.CohomDeath),
				zap.Float64("cohom_birth", sel.CohomBirth),
			)

			part, err = cover.BuildPartition(ctx, p.pool, lm.LandData, sel.Radius)
			return err
		})
	if err != nil {
		return nil, err
	}

	// Step 4: classifying map onto the sphere.
	var cm classmap.Map
	err = p.stage(ctx, StageClassMap, &res.Stats.ClassMap,
		func(ctx context.Context) (context.Context, trace.Span) {
			return p.cfg.Tracer.StartClassMap(ctx, n, len(res.Cocycle))
		},
		func(ctx context.Context) error {
			signs, err := classmap.SignMatrix(in.Landmarks, res.Cocycle)
			if err != nil {
				return err
			}
			cm, err = classmap.Build(part, signs)
			return err
		})
	if err != nil {
		return nil, err
	}

	// Step 5: projective dimensionality reduction.
	err = p.stage(ctx, StagePPCA, &res.Stats.PPCA,
		func(ctx context.Context) (context.Context, trace.Span) {
			return p.cfg.Tracer.StartPPCA(ctx, in.Landmarks, in.ProjDim)
		},
		func(ctx context.Context) error {
			out, err := ppca.Reduce(ctx, cm, in.ProjDim, ppca.Options{
				Pool:     p.pool,
				Progress: p.progress(StagePPCA),
			})
			if err != nil {
				return err
			}
			res.Coordinates, res.Variance = out.Coordinates, out.Variance
			return nil
		})
	if err != nil {
		return nil, err
	}

	res.Stats.Total = time.Since(start)
	p.logger.Info("projective coordinates computed",
		zap.Float64("r_cover", res.Radius),
		zap.Duration("elapsed", res.Stats.Total),
	)
	return res, nil
}

// stage runs fn inside a span, times it and records the duration.
func (p *Pipeline) stage(ctx context.Context, name Stage, elapsed *time.Duration,
	startSpan func(context.Context) (context.Context, trace.Span), fn func(context.Context) error) error {
	ctx, span := startSpan(ctx)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	*elapsed = time.Since(start)
	p.cfg.Metrics.RecordStage(string(name), *elapsed)

	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Debug("stage complete", zap.String("stage", string(name)), zap.Duration("elapsed", *elapsed))
	return nil
}

func (p *Pipeline) progress(stage Stage) func(done, total int) {
	if p.cfg.Progress == nil {
		return nil
	}
	return func(done, total int) {
		p.cfg.Progress(stage, done, total)
	}
}

func validate(in Input) error {
	if in.Points == nil || in.Points.Len() == 0 {
		return ErrNoPoints
	}
	if in.Landmarks <= 0 {
		return fmt.Errorf("%w: got %d", ErrNoLandmarks, in.Landmarks)
	}
	if in.Landmarks > in.Points.Len() {
		return fmt.Errorf("%w: requested %d, have %d", landmark.ErrTooManyLandmarks, in.Landmarks, in.Points.Len())
	}
	if in.MaxDim < 1 {
		return fmt.Errorf("%w: got %d", ErrMaxDimTooLow, in.MaxDim)
	}
	if in.ProjDim < 0 || in.ProjDim+1 > in.Landmarks {
		return fmt.Errorf("%w: %d with %d landmarks", ppca.ErrDimension, in.ProjDim, in.Landmarks)
	}
	if dm, ok := in.Points.(*types.DistanceMatrix); ok {
		if err := dm.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func mode(ps types.PointSet) string {
	if _, ok := ps.(*types.DistanceMatrix); ok {
		return "distance_matrix"
	}
	return "euclidean"
}
