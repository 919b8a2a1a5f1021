// Package metrics provides Prometheus instrumentation for projcoords.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for projcoords.
// Recording methods are no-ops on a nil *Metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  prometheus.Gauge
	RunsTotal       *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	PointsProcessed prometheus.Counter
	Landmarks       prometheus.Histogram
	CoverRadius     prometheus.Gauge
	CacheLookups    *prometheus.CounterVec
	VectorsExported *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all projcoords metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	// Include default Go and process collectors
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projcoords_requests_total",
				Help: "Total HTTP requests by endpoint and status code.",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projcoords_request_duration_seconds",
				Help:    "HTTP request latency distribution.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),
		ActiveRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "projcoords_active_requests",
				Help: "Number of requests currently being processed.",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projcoords_runs_total",
				Help: "Pipeline runs by outcome (ok/error).",
			},
			[]string{"status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projcoords_stage_duration_seconds",
				Help:    "Duration of each pipeline stage.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"stage"},
		),
		PointsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "projcoords_points_processed_total",
				Help: "Total data points mapped to projective coordinates.",
			},
		),
		Landmarks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "projcoords_landmarks",
				Help:    "Number of landmarks per run.",
				Buckets: []float64{10, 25, 50, 100, 200, 400, 800},
			},
		),
		CoverRadius: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "projcoords_cover_radius",
				Help: "Cover radius chosen by the most recent run.",
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projcoords_cache_lookups_total",
				Help: "Result cache lookups by outcome (hit/miss).",
			},
			[]string{"result"},
		),
		VectorsExported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projcoords_vectors_exported_total",
				Help: "Coordinate vectors written to a vector index by outcome.",
			},
			[]string{"status"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RunsTotal,
		m.StageDuration,
		m.PointsProcessed,
		m.Landmarks,
		m.CoverRadius,
		m.CacheLookups,
		m.VectorsExported,
	)

	return m
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed request's metrics.
func (m *Metrics) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRun records the outcome of a pipeline run.
func (m *Metrics) RecordRun(points, landmarks int, radius float64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("ok").Inc()
	m.PointsProcessed.Add(float64(points))
	m.Landmarks.Observe(float64(landmarks))
	m.CoverRadius.Set(radius)
}

// RecordCacheLookup records a result cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// RecordExport records exported vector counts.
func (m *Metrics) RecordExport(uploaded, failed int64) {
	if m == nil {
		return
	}
	m.VectorsExported.WithLabelValues("uploaded").Add(float64(uploaded))
	m.VectorsExported.WithLabelValues("failed").Add(float64(failed))
}

// Middleware returns an HTTP middleware that instruments requests.
func (m *Metrics) Middleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.ActiveRequests.Inc()
		defer m.ActiveRequests.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rw, r)

		m.RecordRequest(endpoint, rw.statusCode, time.Since(start))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the wrapped writer so streaming handlers keep working.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
