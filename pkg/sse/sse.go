// Package sse provides Server-Sent Events support for streaming
// pipeline progress to clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Siddhant-K-code/projcoords/pkg/projective"
)

// ProgressEvent is sent during processing to report stage progress.
type ProgressEvent struct {
	Stage    projective.Stage `json:"stage"`
	Done     int              `json:"done"`
	Total    int              `json:"total"`
	Progress float64          `json:"progress"`
}

// CompleteEvent is sent when processing finishes.
type CompleteEvent struct {
	Result json.RawMessage `json:"result"`
	Cached bool            `json:"cached"`
}

// ErrorEvent is sent when processing fails.
type ErrorEvent struct {
	Error string `json:"error"`
}

// Writer wraps an http.ResponseWriter for SSE output.
// It sets the required headers and provides methods to send typed events.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for SSE streaming.
// Returns nil if the ResponseWriter does not support flushing.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{w: w, flusher: flusher}
}

// SendProgress emits a progress event for the given stage.
func (s *Writer) SendProgress(stage projective.Stage, done, total int) error {
	evt := ProgressEvent{Stage: stage, Done: done, Total: total}
	if total > 0 {
		evt.Progress = float64(done) / float64(total)
	}
	return s.sendEvent("progress", evt)
}

// SendComplete emits the final event carrying the encoded result.
func (s *Writer) SendComplete(result json.RawMessage, cached bool) error {
	return s.sendEvent("complete", CompleteEvent{Result: result, Cached: cached})
}

// SendError emits an error event.
func (s *Writer) SendError(errMsg string) error {
	return s.sendEvent("error", ErrorEvent{Error: errMsg})
}

// sendEvent writes a single SSE event and flushes.
func (s *Writer) sendEvent(eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Progress returns a pipeline progress callback that forwards to s. Within
// a stage, an event is sent only when progress has advanced by at least
// step since the last event, and always on the final tick.
func (s *Writer) Progress(step float64) projective.ProgressFunc {
	var (
		mu    sync.Mutex
		stage projective.Stage
		last  float64
	)
	return func(st projective.Stage, done, total int) {
		if total <= 0 {
			return
		}
		frac := float64(done) / float64(total)

		mu.Lock()
		if st != stage {
			stage, last = st, -1
		}
		emit := done == total || frac-last >= step
		if emit {
			last = frac
		}
		mu.Unlock()

		if emit {
			_ = s.SendProgress(st, done, total)
		}
	}
}
