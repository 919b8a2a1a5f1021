package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
)

// Results fronts a Cache for expensive computations. Concurrent callers with
// the same key share one computation.
type Results struct {
	store   Cache
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	tracer  *telemetry.Provider
}

// ResultsOption configures Results.
type ResultsOption func(*Results)

// WithComputeTimeout bounds a shared computation. Zero means no bound.
func WithComputeTimeout(d time.Duration) ResultsOption {
	return func(r *Results) { r.timeout = d }
}

// NewResults wraps store. m and tp may be nil.
func NewResults(store Cache, ttl time.Duration, m *metrics.Metrics, tp *telemetry.Provider, opts ...ResultsOption) *Results {
	r := &Results{store: store, ttl: ttl, metrics: m, tracer: tp}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do returns the cached value for key, or runs compute and stores its
// output. hit reports whether the value came from the cache.
//
// compute runs detached from the caller that started it: a caller whose ctx
// ends gets ctx.Err() while the computation continues for the callers that
// joined it, up to the compute timeout.
func (r *Results) Do(ctx context.Context, key string, compute func(context.Context) ([]byte, error)) (value []byte, hit bool, err error) {
	lookupCtx, span := r.tracer.StartCacheLookup(ctx, key)
	value, err = r.store.Get(lookupCtx, key)
	span.End()

	switch {
	case err == nil:
		r.metrics.RecordCacheLookup(true)
		return value, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}
	r.metrics.RecordCacheLookup(false)

	ch := r.group.DoChan(key, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, r.timeout)
			defer cancel()
		}

		out, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		if err := r.store.Set(flightCtx, key, out, r.ttl); err != nil && !errors.Is(err, ErrValueTooLarge) {
			return nil, err
		}
		return out, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.([]byte), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Stats returns the underlying store's statistics.
func (r *Results) Stats() Stats {
	return r.store.Stats()
}

// Close closes the underlying store.
func (r *Results) Close() error {
	return r.store.Close()
}
