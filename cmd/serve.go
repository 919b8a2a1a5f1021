package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Siddhant-K-code/projcoords/pkg/cache"
	"github.com/Siddhant-K-code/projcoords/pkg/classmap"
	"github.com/Siddhant-K-code/projcoords/pkg/cohomology"
	"github.com/Siddhant-K-code/projcoords/pkg/config"
	"github.com/Siddhant-K-code/projcoords/pkg/cover"
	"github.com/Siddhant-K-code/projcoords/pkg/landmark"
	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/ppca"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
	"github.com/Siddhant-K-code/projcoords/pkg/sse"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the projcoords HTTP server",
	Long: `Starts an HTTP server that computes projective coordinates for point
clouds or distance matrices posted as JSON.

Example:
  projcoords serve --port 8080 --cache-size 256

The server exposes:
  POST /v1/projcoords         - Compute projective coordinates
  POST /v1/projcoords/stream  - Same, streaming stage progress as SSE
  GET  /health                - Health check
  GET  /metrics               - Prometheus metrics`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, pipelineKeys); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{
			"server.port":       "port",
			"server.host":       "host",
			"server.max_points": "max-points",
			"cache.enabled":     "cache",
			"cache.max_size":    "cache-size",
			"cache.ttl":         "cache-ttl",
		})
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server settings
	serveCmd.Flags().IntP("port", "p", 8080, "HTTP server port")
	serveCmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	serveCmd.Flags().Int("max-points", 20000, "largest accepted point set")

	// Cache settings
	serveCmd.Flags().Bool("cache", true, "cache results by request")
	serveCmd.Flags().Int("cache-size", 128, "maximum cached results")
	serveCmd.Flags().Duration("cache-ttl", time.Hour, "cached result lifetime")

	// Defaults for requests that omit parameters
	pipelineFlags(serveCmd.Flags())
}

// Server holds the HTTP server state.
type Server struct {
	cfg      *config.Config
	results  *cache.Results
	progress *progressHub
	logger   *zap.Logger
	tracer  *telemetry.Provider
	metrics *metrics.Metrics
}

// ComputeRequest is the JSON request body for /v1/projcoords. Exactly one
// of Points and Distances must be set; omitted parameters take the server
// defaults.
type ComputeRequest struct {
	Points     [][]float64 `json:"points,omitempty"`
	Distances  [][]float64 `json:"distances,omitempty"`
	Landmarks  int         `json:"landmarks,omitempty"`
	Percentage *float64    `json:"perc,omitempty"`
	MaxDim     int         `json:"max_dim,omitempty"`
	Cocycles   []int       `json:"cocycle_idx,omitempty"`
	ProjDim    *int        `json:"proj_dim,omitempty"`
}

// errBadRequest marks request errors detected before the pipeline runs.
var errBadRequest = errors.New("bad request")

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	tp, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	server := newServer(cfg, logger, tp, metrics.New())
	defer server.Close()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("projcoords server starting",
		zap.String("addr", addr),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Int("max_points", cfg.Server.MaxPoints),
	)
	fmt.Println("Endpoints:")
	fmt.Printf("  POST http://%s/v1/projcoords\n", addr)
	fmt.Printf("  POST http://%s/v1/projcoords/stream\n", addr)
	fmt.Printf("  GET  http://%s/health\n", addr)
	fmt.Printf("  GET  http://%s/metrics\n", addr)
	fmt.Println()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("server stopped")
	return nil
}

func newServer(cfg *config.Config, logger *zap.Logger, tp *telemetry.Provider, m *metrics.Metrics) *Server {
	s := &Server{cfg: cfg, progress: newProgressHub(), logger: logger, tracer: tp, metrics: m}
	if cfg.Cache.Enabled {
		store := cache.NewMemoryCache(cache.Config{
			MaxSize:    int64(cfg.Cache.MaxSize),
			DefaultTTL: cfg.Cache.TTL,
		})
		s.results = cache.NewResults(store, cfg.Cache.TTL, m, tp,
			cache.WithComputeTimeout(cfg.Server.WriteTimeout))
	}
	return s
}

// Close releases the result cache.
func (s *Server) Close() {
	if s.results != nil {
		_ = s.results.Close()
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projcoords", s.metrics.Middleware("/v1/projcoords", s.handleCompute))
	mux.HandleFunc("/v1/projcoords/stream", s.metrics.Middleware("/v1/projcoords/stream", s.handleStream))
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer.StartRequest(r.Context(), "/v1/projcoords")
	defer span.End()

	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	out, hit, err := s.compute(ctx, &req, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	_, _ = w.Write(out)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer.StartRequest(r.Context(), "/v1/projcoords/stream")
	defer span.End()

	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	stream := sse.NewWriter(w)
	if stream == nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	out, hit, err := s.compute(ctx, &req, stream.Progress(0.05))
	if err != nil {
		telemetry.RecordError(span, err)
		_ = stream.SendError(err.Error())
		return
	}
	_ = stream.SendComplete(out, hit)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.results != nil {
		stats := s.results.Stats()
		resp["cache"] = map[string]interface{}{
			"size":     stats.Size,
			"hit_rate": stats.HitRate(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// compute runs the pipeline for req, through the result cache when enabled,
// and returns the JSON-encoded result.
func (s *Server) compute(ctx context.Context, req *ComputeRequest, progress projective.ProgressFunc) ([]byte, bool, error) {
	in, err := s.input(req)
	if err != nil {
		return nil, false, err
	}

	run := func(progress projective.ProgressFunc) func(context.Context) ([]byte, error) {
		return func(ctx context.Context) ([]byte, error) {
			pipeline, err := projective.New(projective.Config{
				Workers:  s.cfg.Pipeline.Workers,
				Seed:     s.cfg.Pipeline.Seed,
				Logger:   s.logger,
				Tracer:   s.tracer,
				Metrics:  s.metrics,
				Progress: progress,
			})
			if err != nil {
				return nil, err
			}
			defer pipeline.Close()

			res, err := pipeline.Run(ctx, in)
			if err != nil {
				return nil, err
			}
			return json.Marshal(res)
		}
	}

	if s.results == nil {
		out, err := run(progress)(ctx)
		return out, false, err
	}

	key, err := cache.RequestKey(req)
	if err != nil {
		return nil, false, err
	}

	// A shared computation outlives the caller that started it, so progress
	// goes through the hub to whichever streams are still attached.
	if progress != nil {
		defer s.progress.subscribe(key, progress)()
	}
	return s.results.Do(ctx, key, run(s.progress.publisher(key)))
}

// progressHub fans pipeline progress out to every stream waiting on the
// same request key.
type progressHub struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]projective.ProgressFunc
}

func newProgressHub() *progressHub {
	return &progressHub{subs: make(map[string]map[int]projective.ProgressFunc)}
}

// subscribe attaches fn to key. After the returned func returns, fn is
// never called again.
func (h *progressHub) subscribe(key string, fn projective.ProgressFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	if h.subs[key] == nil {
		h.subs[key] = make(map[int]projective.ProgressFunc)
	}
	h.subs[key][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[key], id)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
	}
}

// publisher returns a progress callback delivering to key's subscribers.
func (h *progressHub) publisher(key string) projective.ProgressFunc {
	return func(stage projective.Stage, done, total int) {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, fn := range h.subs[key] {
			fn(stage, done, total)
		}
	}
}

// input validates req, fills server defaults in place and builds the
// pipeline input.
func (s *Server) input(req *ComputeRequest) (projective.Input, error) {
	var (
		ps  types.PointSet
		err error
	)
	switch {
	case len(req.Points) > 0 && len(req.Distances) > 0:
		return projective.Input{}, fmt.Errorf("%w: set either points or distances, not both", errBadRequest)
	case len(req.Points) > 0:
		ps, err = types.NewPointCloud(req.Points)
	case len(req.Distances) > 0:
		ps, err = types.NewDistanceMatrix(req.Distances)
	default:
		return projective.Input{}, fmt.Errorf("%w: points or distances is required", errBadRequest)
	}
	if err != nil {
		return projective.Input{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	n := ps.Len()
	if limit := s.cfg.Server.MaxPoints; limit > 0 && n > limit {
		return projective.Input{}, fmt.Errorf("%w: %d points exceeds the limit of %d", errBadRequest, n, limit)
	}

	p := s.cfg.Pipeline
	if req.Landmarks == 0 {
		req.Landmarks = min(p.Landmarks, n)
	}
	if req.Percentage == nil {
		perc := p.Percentage
		req.Percentage = &perc
	}
	if req.MaxDim == 0 {
		req.MaxDim = p.MaxDim
	}
	if len(req.Cocycles) == 0 {
		req.Cocycles = p.Cocycles
	}
	if len(req.Cocycles) == 0 {
		req.Cocycles = []int{0}
	}
	if req.ProjDim == nil {
		dim := min(p.ProjDim, req.Landmarks-1)
		req.ProjDim = &dim
	}

	return projective.Input{
		Points:     ps,
		Landmarks:  req.Landmarks,
		Percentage: *req.Percentage,
		MaxDim:     req.MaxDim,
		Cocycles:   req.Cocycles,
		ProjDim:    *req.ProjDim,
	}, nil
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case isAny(err,
		errBadRequest,
		projective.ErrNoPoints,
		projective.ErrNoLandmarks,
		projective.ErrMaxDimTooLow,
		landmark.ErrTooManyLandmarks,
		landmark.ErrInvalidLandmarkCount,
		ppca.ErrDimension,
		cohomology.ErrUnsupportedDimension,
		cover.ErrInvalidPercentage,
		types.ErrShape,
		types.ErrNegativeDistance,
		types.ErrAsymmetric,
		types.ErrNonZeroDiagonal,
		types.ErrNonFinite,
	):
		return http.StatusBadRequest
	case isAny(err,
		cover.ErrUncoveredPoint,
		cover.ErrCocycleIndex,
		cover.ErrNoClassSelected,
		cover.ErrEmptyCoverInterval,
		classmap.ErrInvalidCocycleValue,
	):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
