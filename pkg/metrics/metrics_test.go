package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/projcoords", 200, 50*time.Millisecond)
	m.RecordRequest("/v1/projcoords", 200, 100*time.Millisecond)
	m.RecordRequest("/v1/projcoords", 400, 5*time.Millisecond)

	// Check counter
	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/projcoords", "status", "200")
	if val != 2 {
		t.Errorf("expected 2 requests with status 200, got %f", val)
	}

	val = counterValue(t, m.RequestsTotal, "endpoint", "/v1/projcoords", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestRecordRun(t *testing.T) {
	m := New()
	m.RecordRun(1000, 50, 0.42, nil)
	m.RecordRun(500, 25, 0.5, nil)
	m.RecordRun(0, 0, 0, errors.New("boom"))

	if val := counterValue(t, m.RunsTotal, "status", "ok"); val != 2 {
		t.Errorf("expected 2 ok runs, got %f", val)
	}
	if val := counterValue(t, m.RunsTotal, "status", "error"); val != 1 {
		t.Errorf("expected 1 failed run, got %f", val)
	}

	var metric dto.Metric
	if err := m.PointsProcessed.Write(&metric); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if metric.GetCounter().GetValue() != 1500 {
		t.Errorf("expected 1500 points, got %f", metric.GetCounter().GetValue())
	}

	metric.Reset()
	if err := m.CoverRadius.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 0.5 {
		t.Errorf("expected cover radius 0.5, got %f", metric.GetGauge().GetValue())
	}
}

func TestRecordStage(t *testing.T) {
	m := New()
	m.RecordStage("persistence", 20*time.Millisecond)
	m.RecordStage("persistence", 40*time.Millisecond)

	obs, err := m.StageDuration.GetMetricWithLabelValues("persistence")
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := obs.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Errorf("expected 2 observations, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestRecordCacheAndExport(t *testing.T) {
	m := New()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordExport(90, 10)

	if val := counterValue(t, m.CacheLookups, "result", "miss"); val != 2 {
		t.Errorf("expected 2 misses, got %f", val)
	}
	if val := counterValue(t, m.VectorsExported, "status", "uploaded"); val != 90 {
		t.Errorf("expected 90 uploaded, got %f", val)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	// Should not panic
	m.RecordRun(1, 1, 1, nil)
	m.RecordStage("ppca", time.Millisecond)
	m.RecordCacheLookup(true)
	m.RecordExport(1, 0)
	m.RecordRequest("/health", 200, time.Millisecond)
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/projcoords", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/projcoords", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/projcoords", "status", "200")
	if val != 1 {
		t.Errorf("expected 1 request recorded, got %f", val)
	}
}

func TestMiddleware_ErrorStatus(t *testing.T) {
	m := New()

	handler := m.Middleware("/v1/projcoords", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/projcoords", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/v1/projcoords", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRequest("/v1/projcoords", 200, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "projcoords_requests_total") {
		t.Error("metrics output missing projcoords_requests_total")
	}
	if !strings.Contains(body, "projcoords_request_duration_seconds") {
		t.Error("metrics output missing projcoords_request_duration_seconds")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

func TestActiveRequests(t *testing.T) {
	m := New()

	started := make(chan struct{})
	release := make(chan struct{})

	handler := m.Middleware("/v1/projcoords", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/projcoords", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}()

	<-started

	var metric dto.Metric
	if err := m.ActiveRequests.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("expected 1 active request, got %f", metric.GetGauge().GetValue())
	}

	close(release)
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
