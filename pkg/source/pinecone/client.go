// Package pinecone loads point clouds from a Pinecone index.
package pinecone

import (
	"context"
	"fmt"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"

	"github.com/Siddhant-K-code/projcoords/pkg/source"
)

// maxTopK is the largest topK Pinecone accepts for a query with values.
const maxTopK = 1000

// Client implements source.Source for Pinecone.
type Client struct {
	cfg     Config
	idxConn *pinecone.IndexConnection
}

var _ source.Source = (*Client)(nil)

// Config holds Pinecone-specific configuration.
type Config struct {
	source.Config

	// IndexName is the Pinecone index to query
	IndexName string

	// IndexHost is the direct host URL (optional, will be resolved from IndexName)
	IndexHost string
}

// NewClient creates a Pinecone source.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.IndexName == "" && cfg.IndexHost == "" {
		return nil, fmt.Errorf("index name or host is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	host := cfg.IndexHost
	if host == "" {
		idx, err := pc.DescribeIndex(ctx, cfg.IndexName)
		if err != nil {
			return nil, fmt.Errorf("failed to describe index %q: %w", cfg.IndexName, err)
		}
		host = idx.Host
	}

	idxConn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	return &Client{cfg: cfg, idxConn: idxConn}, nil
}

// Neighborhood returns the topK nearest vectors to the stored vector
// seedID, values and metadata included.
func (c *Client) Neighborhood(ctx context.Context, seedID string, topK int) (*source.Dataset, error) {
	if topK <= 0 || topK > maxTopK {
		topK = maxTopK
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	resp, err := c.idxConn.QueryByVectorId(ctx, &pinecone.QueryByVectorIdRequest{
		VectorId:        seedID,
		TopK:            uint32(topK),
		IncludeValues:   true,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("query by ID failed: %w", err)
	}
	if len(resp.Matches) == 0 {
		return nil, source.ErrNotFound
	}

	ids := make([]string, 0, len(resp.Matches))
	vectors := make([][]float32, 0, len(resp.Matches))
	meta := make([]map[string]interface{}, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		if match.Vector == nil || match.Vector.Values == nil {
			continue
		}
		ids = append(ids, match.Vector.Id)
		vectors = append(vectors, *match.Vector.Values)
		if match.Vector.Metadata != nil {
			meta = append(meta, match.Vector.Metadata.AsMap())
		} else {
			meta = append(meta, nil)
		}
	}

	return source.FromVectors(ids, vectors, meta)
}

// Close releases resources.
func (c *Client) Close() error {
	if c.idxConn != nil {
		return c.idxConn.Close()
	}
	return nil
}
