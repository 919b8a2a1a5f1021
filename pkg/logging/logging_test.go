package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_getters(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{"defaults", DefaultConfig(), zapcore.InfoLevel, false},
		{"debug json", Config{Level: "debug", Format: "json"}, zapcore.DebugLevel, false},
		{"empty", Config{}, zapcore.InfoLevel, false},
		{"bad level", Config{Level: "loud"}, 0, true},
		{"bad format", Config{Format: "xml"}, 0, true},
		{"bad stacktrace", Config{StacktraceLevel: "never"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithWriter(tt.cfg, &bytes.Buffer{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewWithWriter: %v", err)
			}
			level, err := tt.cfg.getLevel()
			if err != nil {
				t.Fatalf("getLevel: %v", err)
			}
			if level.Level() != tt.wantLevel {
				t.Errorf("level = %v, want %v", level.Level(), tt.wantLevel)
			}
		})
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "info", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("NewWithWriter: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("landmarks selected", zap.Int("count", 50))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["msg"] != "landmarks selected" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["count"] != float64(50) {
		t.Errorf("count = %v", entry["count"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v", entry["level"])
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
}
