// Package qdrant loads point clouds from a Qdrant collection.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/Siddhant-K-code/projcoords/pkg/source"
)

// Client implements source.Source for Qdrant.
type Client struct {
	cfg        Config
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

var _ source.Source = (*Client)(nil)

// Config holds Qdrant-specific configuration.
type Config struct {
	source.Config

	// Collection is the Qdrant collection to query
	Collection string

	// UseTLS enables TLS for the connection
	UseTLS bool

	// GRPCPort is the gRPC port (default: 6334)
	GRPCPort int
}

// NewClient connects to Qdrant over gRPC.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &Client{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
	}, nil
}

// Neighborhood fetches the seed point's vector and returns its topK nearest
// neighbors, vectors and payloads included. The seed itself is usually the
// first match.
func (c *Client) Neighborhood(ctx context.Context, seedID string, topK int) (*source.Dataset, error) {
	if topK <= 0 {
		topK = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	if c.cfg.APIKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", c.cfg.APIKey)
	}

	getResp, err := c.points.Get(ctx, &pb.GetPoints{
		CollectionName: c.collection,
		Ids:            []*pb.PointId{PointID(seedID)},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get point failed: %w", err)
	}
	if len(getResp.Result) == 0 {
		return nil, source.ErrNotFound
	}

	seed := getResp.Result[0].GetVectors().GetVector().GetData()
	if len(seed) == 0 {
		return nil, fmt.Errorf("point %s has no vector", seedID)
	}

	resp, err := c.points.Search(ctx, &pb.SearchPoints{
		CollectionName: c.collection,
		Vector:         seed,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(resp.Result))
	vectors := make([][]float32, 0, len(resp.Result))
	meta := make([]map[string]interface{}, 0, len(resp.Result))
	for _, point := range resp.Result {
		vec := point.GetVectors().GetVector().GetData()
		if len(vec) == 0 {
			continue
		}
		ids = append(ids, FormatID(point.Id))
		vectors = append(vectors, vec)
		meta = append(meta, convertPayloadToMap(point.Payload))
	}

	return source.FromVectors(ids, vectors, meta)
}

// Close releases resources.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PointID maps a string id onto a Qdrant point id: unsigned integers are
// numeric ids, anything else is treated as a UUID.
func PointID(id string) *pb.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: n}}
	}
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

// FormatID renders a Qdrant point id as a string.
func FormatID(id *pb.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *pb.PointId_Num:
		return strconv.FormatUint(v.Num, 10)
	case *pb.PointId_Uuid:
		return v.Uuid
	}
	return ""
}

// convertPayloadToMap converts Qdrant payload to a Go map.
func convertPayloadToMap(payload map[string]*pb.Value) map[string]interface{} {
	if payload == nil {
		return nil
	}

	result := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		result[k] = convertQdrantValue(v)
	}
	return result
}

// convertQdrantValue converts a Qdrant Value to a Go interface{}.
func convertQdrantValue(v *pb.Value) interface{} {
	if v == nil {
		return nil
	}

	switch val := v.Kind.(type) {
	case *pb.Value_NullValue:
		return nil
	case *pb.Value_DoubleValue:
		return val.DoubleValue
	case *pb.Value_IntegerValue:
		return val.IntegerValue
	case *pb.Value_StringValue:
		return val.StringValue
	case *pb.Value_BoolValue:
		return val.BoolValue
	case *pb.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		list := make([]interface{}, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			list[i] = convertQdrantValue(item)
		}
		return list
	case *pb.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return convertPayloadToMap(val.StructValue.Fields)
	default:
		return nil
	}
}
