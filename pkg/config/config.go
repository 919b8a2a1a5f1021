// Package config provides configuration file support for projcoords.
// It handles loading, validation, and environment variable interpolation
// for projcoords.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/projcoords/pkg/logging"
)

// Config represents the full projcoords configuration.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Source    SourceConfig    `mapstructure:"source"`
	Export    ExportConfig    `mapstructure:"export"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   logging.Config  `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PipelineConfig holds defaults for projective coordinate runs.
type PipelineConfig struct {
	Landmarks  int     `mapstructure:"landmarks"`
	Percentage float64 `mapstructure:"percentage"`
	MaxDim     int     `mapstructure:"max_dim"`
	Cocycles   []int   `mapstructure:"cocycles"`
	ProjDim    int     `mapstructure:"proj_dim"`
	Workers    int     `mapstructure:"workers"`
	Seed       int     `mapstructure:"seed"`
}

// SourceConfig holds vector DB settings for loading point clouds.
type SourceConfig struct {
	Backend   string `mapstructure:"backend"`
	Index     string `mapstructure:"index"`
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	SeedID    string `mapstructure:"seed_id"`
	TopK      int    `mapstructure:"top_k"`
}

// ExportConfig holds settings for upserting coordinates to Pinecone.
type ExportConfig struct {
	Index     string `mapstructure:"index"`
	Namespace string `mapstructure:"namespace"`
	BatchSize int    `mapstructure:"batch_size"`
	Workers   int    `mapstructure:"workers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxPoints    int           `mapstructure:"max_points"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxSize int           `mapstructure:"max_size"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
	Insecure   bool    `mapstructure:"insecure"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Landmarks:  200,
			Percentage: 0.99,
			MaxDim:     1,
			Cocycles:   []int{0},
			ProjDim:    3,
		},
		Source: SourceConfig{
			Backend: "pinecone",
			TopK:    1000,
		},
		Export: ExportConfig{
			BatchSize: 100,
			Workers:   4,
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxPoints:    20000,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxSize: 128,
			TTL:     time.Hour,
		},
		Logging: logging.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "otlp",
				Endpoint:   "localhost:4317",
				SampleRate: 1.0,
				Insecure:   true,
			},
		},
	}
}

// Load reads configuration from the given viper instance and returns
// a validated Config. Environment variables in string values are
// interpolated using ${VAR} syntax.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Interpolate environment variables in string fields
	interpolateConfig(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a specific config file and returns a validated Config.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Load(v)
}

// Validate checks the configuration for errors and returns a descriptive
// error if any field is invalid.
func Validate(cfg *Config) error {
	var errs []string

	// Pipeline validation
	p := cfg.Pipeline
	if p.Landmarks < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.landmarks: must be non-negative, got %d", p.Landmarks))
	}
	if p.Percentage < 0 || p.Percentage > 1 {
		errs = append(errs, fmt.Sprintf("pipeline.percentage: must be between 0 and 1, got %f", p.Percentage))
	}
	if p.MaxDim < 1 || p.MaxDim > 2 {
		errs = append(errs, fmt.Sprintf("pipeline.max_dim: must be 1 or 2, got %d", p.MaxDim))
	}
	for _, c := range p.Cocycles {
		if c < 0 {
			errs = append(errs, fmt.Sprintf("pipeline.cocycles: indices must be non-negative, got %d", c))
			break
		}
	}
	if p.ProjDim < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.proj_dim: must be non-negative, got %d", p.ProjDim))
	}
	if p.Landmarks > 0 && p.ProjDim+1 > p.Landmarks {
		errs = append(errs, fmt.Sprintf("pipeline.proj_dim: %d needs at least %d landmarks, got %d", p.ProjDim, p.ProjDim+1, p.Landmarks))
	}
	if p.Workers < 0 {
		errs = append(errs, "pipeline.workers: must be non-negative")
	}
	if p.Seed < 0 {
		errs = append(errs, "pipeline.seed: must be non-negative")
	}

	// Source validation
	validBackends := map[string]bool{"pinecone": true, "qdrant": true, "": true}
	if !validBackends[cfg.Source.Backend] {
		errs = append(errs, fmt.Sprintf("source.backend: unsupported backend %q (supported: pinecone, qdrant)", cfg.Source.Backend))
	}
	if cfg.Source.TopK < 0 {
		errs = append(errs, "source.top_k: must be non-negative")
	}

	// Export validation
	if cfg.Export.BatchSize < 0 || cfg.Export.BatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("export.batch_size: must be between 0 and 1000, got %d", cfg.Export.BatchSize))
	}
	if cfg.Export.Workers < 0 {
		errs = append(errs, "export.workers: must be non-negative")
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port: must be between 0 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout: must be non-negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout: must be non-negative")
	}
	if cfg.Server.MaxPoints < 0 {
		errs = append(errs, "server.max_points: must be non-negative")
	}

	// Cache validation
	if cfg.Cache.MaxSize < 0 {
		errs = append(errs, "cache.max_size: must be non-negative")
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl: must be non-negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level: unsupported level %q (supported: debug, info, warn, error)", cfg.Logging.Level))
	}
	validFormats := map[string]bool{"console": true, "json": true, "": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format: unsupported format %q (supported: console, json)", cfg.Logging.Format))
	}

	// Telemetry validation
	validExporters := map[string]bool{"otlp": true, "stdout": true, "none": true, "": true}
	if !validExporters[cfg.Telemetry.Tracing.Exporter] {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.exporter: unsupported exporter %q (supported: otlp, stdout, none)", cfg.Telemetry.Tracing.Exporter))
	}
	if cfg.Telemetry.Tracing.SampleRate < 0 || cfg.Telemetry.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("telemetry.tracing.sample_rate: must be between 0 and 1, got %f", cfg.Telemetry.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnv replaces ${VAR} and ${VAR:-default} patterns in a string
// with the corresponding environment variable values.
func InterpolateEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		if defaultVal != "" {
			return defaultVal
		}
		return match
	})
}

// interpolateConfig applies environment variable interpolation to all
// string fields in the config.
func interpolateConfig(cfg *Config) {
	cfg.Source.Backend = InterpolateEnv(cfg.Source.Backend)
	cfg.Source.Index = InterpolateEnv(cfg.Source.Index)
	cfg.Source.Host = InterpolateEnv(cfg.Source.Host)
	cfg.Source.Namespace = InterpolateEnv(cfg.Source.Namespace)
	cfg.Source.SeedID = InterpolateEnv(cfg.Source.SeedID)

	cfg.Export.Index = InterpolateEnv(cfg.Export.Index)
	cfg.Export.Namespace = InterpolateEnv(cfg.Export.Namespace)

	cfg.Server.Host = InterpolateEnv(cfg.Server.Host)

	cfg.Logging.Level = InterpolateEnv(cfg.Logging.Level)
	cfg.Logging.Format = InterpolateEnv(cfg.Logging.Format)

	cfg.Telemetry.Tracing.Exporter = InterpolateEnv(cfg.Telemetry.Tracing.Exporter)
	cfg.Telemetry.Tracing.Endpoint = InterpolateEnv(cfg.Telemetry.Tracing.Endpoint)
}

// GenerateTemplate returns a YAML template string with all available
// configuration options and their defaults, suitable for writing to
// a projcoords.yaml file.
func GenerateTemplate() string {
	return `# projcoords configuration
# See: https://github.com/Siddhant-K-code/projcoords

pipeline:
  landmarks: 200
  percentage: 0.99     # interpolates between coverage and first death
  max_dim: 1           # 1 or 2
  cocycles: [0]        # summed, by decreasing persistence
  proj_dim: 3
  workers: 0           # 0 uses all CPUs
  seed: 0

source:
  backend: pinecone    # pinecone or qdrant
  index: ""
  host: ""             # required for qdrant
  namespace: ""
  seed_id: ""
  top_k: 1000

export:
  index: ""
  namespace: ""
  batch_size: 100
  workers: 4

server:
  port: 8080
  host: 0.0.0.0
  read_timeout: 30s
  write_timeout: 5m
  max_points: 20000

cache:
  enabled: true
  max_size: 128
  ttl: 1h

logging:
  level: info          # debug, info, warn, error
  format: console      # console or json

telemetry:
  tracing:
    enabled: false
    exporter: otlp       # otlp, stdout, or none
    endpoint: localhost:4317
    sample_rate: 1.0     # 0.0 to 1.0
    insecure: true
`
}
