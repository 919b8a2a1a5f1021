// Package cache stores serialized pipeline results so repeated requests for
// the same point set and parameters skip recomputation.
package cache

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrValueTooLarge = errors.New("value exceeds maximum size")
)

// Cache stores byte values by key.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. Zero TTL falls back to the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// Stats returns cache statistics.
	Stats() Stats

	// Close releases resources.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`

	// Size is the current number of entries.
	Size int64 `json:"size"`

	// SizeBytes is the summed length of stored keys and values.
	SizeBytes int64 `json:"size_bytes"`
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Config holds cache configuration.
type Config struct {
	// MaxSize is the maximum number of entries (0 = DefaultConfig().MaxSize).
	MaxSize int64

	// MaxSizeBytes bounds the summed entry size (0 = unlimited).
	MaxSizeBytes int64

	// DefaultTTL applies to entries set without a TTL (0 = never expire).
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// DefaultConfig returns cache defaults sized for coordinate results.
func DefaultConfig() Config {
	return Config{
		MaxSize:         128,
		MaxSizeBytes:    512 * 1024 * 1024,
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
}

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *entry) size() int64 {
	return int64(len(e.key) + len(e.value))
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
