// Package logging builds the zap loggers used across projcoords.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration.
type Config struct {
	// Level is debug, info, warn or error.
	Level string `mapstructure:"level"`

	// Format is "console" or "json".
	Format string `mapstructure:"format"`

	// StacktraceLevel attaches stack traces at and above this level.
	StacktraceLevel string `mapstructure:"stacktrace_level"`
}

// DefaultConfig returns logger defaults.
func DefaultConfig() Config {
	return Config{
		Level:           "info",
		Format:          "console",
		StacktraceLevel: "panic",
	}
}

// New builds a logger writing to stderr.
func New(cfg Config) (*zap.Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter builds a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) (*zap.Logger, error) {
	level, err := cfg.getLevel()
	if err != nil {
		return nil, err
	}
	encoder, err := cfg.getEncoder()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.getOptions()
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, opts...), nil
}

func (cfg *Config) getLevel() (zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	name := cfg.Level
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return level, nil
}

func (cfg *Config) getEncoder() (zapcore.Encoder, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	switch strings.ToLower(cfg.Format) {
	case "", "console":
		return zapcore.NewConsoleEncoder(encoderConfig), nil
	case "json":
		return zapcore.NewJSONEncoder(encoderConfig), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q (supported: console, json)", cfg.Format)
	}
}

func (cfg *Config) getOptions() ([]zap.Option, error) {
	name := cfg.StacktraceLevel
	if name == "" {
		name = "panic"
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return nil, fmt.Errorf("invalid stacktrace level %q: %w", cfg.StacktraceLevel, err)
	}
	return []zap.Option{zap.AddStacktrace(level), zap.AddCaller()}, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
