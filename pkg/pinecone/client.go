// Package pinecone upserts coordinate vectors into a Pinecone index.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

// Config holds Pinecone client configuration.
type Config struct {
	APIKey    string
	IndexName string
	Namespace string

	// Retry settings
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// upserter is the subset of *pinecone.IndexConnection the client needs.
type upserter interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

// Client writes vectors to a Pinecone index with retries.
type Client struct {
	cfg     Config
	idxConn upserter
	retries atomic.Int64
}

// NewClient connects to the configured index.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %q: %w", cfg.IndexName, err)
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      idx.Host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	return newClient(cfg, idxConn), nil
}

func newClient(cfg Config, conn upserter) *Client {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return &Client{cfg: cfg, idxConn: conn}
}

// UpsertBatch upserts a batch of vectors, retrying throttled or
// unavailable responses with exponential backoff.
func (c *Client) UpsertBatch(ctx context.Context, vectors []types.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	batch := make([]*pinecone.Vector, len(vectors))
	for i := range vectors {
		values := vectors[i].Values
		batch[i] = &pinecone.Vector{
			Id:       vectors[i].ID,
			Values:   &values,
			Metadata: convertMetadata(vectors[i].Metadata),
		}
	}

	var lastErr error
	backoff := c.cfg.InitialBackoff
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.retries.Add(1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
		}

		_, err := c.idxConn.UpsertVectors(ctx, batch)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return fmt.Errorf("upsert of %d vectors failed: %w", len(vectors), lastErr)
}

// Retries returns how many retries have been issued.
func (c *Client) Retries() int64 {
	return c.retries.Load()
}

// Close closes the index connection.
func (c *Client) Close() error {
	if c.idxConn != nil {
		return c.idxConn.Close()
	}
	return nil
}

// convertMetadata converts a map to Pinecone Struct metadata. Values that
// structpb cannot represent drop the metadata.
func convertMetadata(m map[string]interface{}) *structpb.Struct {
	if len(m) == 0 {
		return nil
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil
	}
	return s
}

// isRetryable reports whether err is throttling or a transient outage.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Aborted:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "temporarily")
}
