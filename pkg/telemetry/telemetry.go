// Package telemetry provides OpenTelemetry tracing for projcoords.
// Each pipeline stage gets its own span under a run span; spans export to
// OTLP or stdout.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/Siddhant-K-code/projcoords"

// Config holds tracing configuration.
type Config struct {
	// Enabled turns tracing on/off.
	Enabled bool

	// Exporter selects the trace exporter: "otlp", "stdout", or "none".
	Exporter string

	// Endpoint is the OTLP collector address (e.g., "localhost:4317").
	Endpoint string

	// SampleRate controls the sampling ratio (0.0 to 1.0).
	SampleRate float64

	// ServiceName overrides the default service name.
	ServiceName string

	// Insecure disables TLS for the OTLP exporter.
	Insecure bool
}

// DefaultConfig returns tracing defaults (disabled).
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Exporter:    "otlp",
		Endpoint:    "localhost:4317",
		SampleRate:  1.0,
		ServiceName: "projcoords",
		Insecure:    true,
	}
}

// Provider wraps the OTEL TracerProvider and exposes stage helpers.
// A nil *Provider hands out no-op spans.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init sets up the global TracerProvider based on the config.
// Returns a Provider that must be shut down with Shutdown().
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	case "none", "":
		return Noop(), nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %q (supported: otlp, stdout, none)", cfg.Exporter)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
		resource.WithProcessRuntimeDescription(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return NewProvider(tp), nil
}

// NewProvider wraps an existing SDK TracerProvider.
func NewProvider(tp *sdktrace.TracerProvider) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}
}

// Noop returns a provider whose spans are discarded.
func Noop() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// Shutdown flushes pending spans and shuts down the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the projcoords tracer for creating spans.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return noop.NewTracerProvider().Tracer(tracerName)
	}
	return p.tracer
}

// --- Span helpers for pipeline stages ---

// StartRequest creates a root span for an incoming HTTP request.
func (p *Provider) StartRequest(ctx context.Context, endpoint string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.request",
		trace.WithAttributes(attribute.String("projcoords.endpoint", endpoint)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartRun creates the parent span for one pipeline run.
func (p *Provider) StartRun(ctx context.Context, points, landmarks, projDim int) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.run",
		trace.WithAttributes(
			attribute.Int("projcoords.run.points", points),
			attribute.Int("projcoords.run.landmarks", landmarks),
			attribute.Int("projcoords.run.proj_dim", projDim),
		),
	)
}

// StartLandmarks creates a span for greedy landmark sampling.
func (p *Provider) StartLandmarks(ctx context.Context, points, landmarks int, mode string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.landmarks",
		trace.WithAttributes(
			attribute.Int("projcoords.landmarks.points", points),
			attribute.Int("projcoords.landmarks.count", landmarks),
			attribute.String("projcoords.landmarks.mode", mode),
		),
	)
}

// StartPersistence creates a span for the cohomology computation.
func (p *Provider) StartPersistence(ctx context.Context, landmarks, maxDim int) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.persistence",
		trace.WithAttributes(
			attribute.Int("projcoords.persistence.landmarks", landmarks),
			attribute.Int("projcoords.persistence.max_dim", maxDim),
		),
	)
}

// StartCover creates a span for radius selection and the partition of unity.
func (p *Provider) StartCover(ctx context.Context, classes []int, perc float64) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.cover",
		trace.WithAttributes(
			attribute.IntSlice("projcoords.cover.classes", classes),
			attribute.Float64("projcoords.cover.percentage", perc),
		),
	)
}

// StartClassMap creates a span for the classifying map.
func (p *Provider) StartClassMap(ctx context.Context, points, cocycleEdges int) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.classmap",
		trace.WithAttributes(
			attribute.Int("projcoords.classmap.points", points),
			attribute.Int("projcoords.classmap.cocycle_edges", cocycleEdges),
		),
	)
}

// StartPPCA creates a span for projective dimensionality reduction.
func (p *Provider) StartPPCA(ctx context.Context, fromDim, projDim int) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.ppca",
		trace.WithAttributes(
			attribute.Int("projcoords.ppca.from_dim", fromDim),
			attribute.Int("projcoords.ppca.proj_dim", projDim),
		),
	)
}

// StartCacheLookup creates a span for a cache lookup.
func (p *Provider) StartCacheLookup(ctx context.Context, key string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.cache.lookup",
		trace.WithAttributes(attribute.String("projcoords.cache.key", key)),
	)
}

// StartSource creates a span for loading points from a vector database.
func (p *Provider) StartSource(ctx context.Context, backend string, topK int) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.source",
		trace.WithAttributes(
			attribute.String("projcoords.source.backend", backend),
			attribute.Int("projcoords.source.top_k", topK),
		),
	)
}

// StartExport creates a span for writing coordinates to a vector index.
func (p *Provider) StartExport(ctx context.Context, vectors int, index string) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, "projcoords.export",
		trace.WithAttributes(
			attribute.Int("projcoords.export.vectors", vectors),
			attribute.String("projcoords.export.index", index),
		),
	)
}

// RecordResult adds run result attributes to a span.
func RecordResult(span trace.Span, points, landmarks int, radius float64, latency time.Duration) {
	span.SetAttributes(
		attribute.Int("projcoords.result.points", points),
		attribute.Int("projcoords.result.landmarks", landmarks),
		attribute.Float64("projcoords.result.cover_radius", radius),
		attribute.Int64("projcoords.result.latency_ms", latency.Milliseconds()),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("error", true))
}
