package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Siddhant-K-code/projcoords/pkg/config"
	"github.com/Siddhant-K-code/projcoords/pkg/landmark"
	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/ppca"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
	"github.com/Siddhant-K-code/projcoords/pkg/workers"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start projcoords as an MCP server",
	Long: `Starts projcoords as a Model Context Protocol (MCP) server so AI
assistants can compute projective coordinates directly.

Transports:
  stdio (default) - For local desktop apps
  http            - For remote deployments

Tools exposed:
  projective_coordinates - Map points into RP^k
  landmarks              - Greedy maxmin landmark sampling only

Resources exposed:
  projcoords://config    - Pipeline defaults

Example:
  projcoords mcp
  projcoords mcp --transport http --port 8081`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, pipelineKeys)
	},
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	// Transport settings
	mcpCmd.Flags().String("transport", "stdio", "Transport type: stdio or http")
	mcpCmd.Flags().Int("port", 8081, "HTTP server port (for http transport)")
	mcpCmd.Flags().String("host", "0.0.0.0", "HTTP server host (for http transport)")

	// Defaults for tool calls that omit parameters
	pipelineFlags(mcpCmd.Flags())
}

// MCPServer exposes the pipeline as MCP tools.
type MCPServer struct {
	cfg     config.PipelineConfig
	logger  *zap.Logger
	tracer  *telemetry.Provider
	metrics *metrics.Metrics
}

func runMCP(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs always go to stderr.
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signalContext()
	defer cancel()

	tp, err := newTracer(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mcpSrv := &MCPServer{cfg: cfg.Pipeline, logger: logger, tracer: tp, metrics: metrics.New()}
	s := mcpSrv.newServer()

	// Start server based on transport
	switch transport {
	case "stdio":
		if err := server.ServeStdio(s); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}

	case "http":
		addr := fmt.Sprintf("%s:%d", host, port)
		logger.Info("projcoords MCP server starting", zap.String("endpoint", "http://"+addr+"/mcp"))

		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok","server":"projcoords-mcp"}`))
		})
		mux.Handle("/mcp", server.NewStreamableHTTPServer(s, server.WithStateful(true)))
		mux.Handle("/metrics", mcpSrv.metrics.Handler())

		httpServer := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = httpServer.Close()
		}()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}

	default:
		return fmt.Errorf("unsupported transport: %s (use 'stdio' or 'http')", transport)
	}

	return nil
}

func (m *MCPServer) newServer() *server.MCPServer {
	s := server.NewMCPServer(
		"projcoords",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)
	m.registerTools(s)
	m.registerResources(s)
	return s
}

func (m *MCPServer) registerTools(s *server.MCPServer) {
	pointArgs := []mcp.ToolOption{
		mcp.WithArray("points",
			mcp.Description("Point cloud as an array of equal-length coordinate arrays. Either 'points' or 'distances' is required."),
		),
		mcp.WithArray("distances",
			mcp.Description("Symmetric distance matrix with zero diagonal, as an array of rows."),
		),
		mcp.WithNumber("landmarks",
			mcp.Description(fmt.Sprintf("Number of landmarks (default: %d, capped at the number of points)", m.cfg.Landmarks)),
		),
	}

	coordsTool := mcp.NewTool("projective_coordinates", append([]mcp.ToolOption{
		mcp.WithDescription(`Map a point cloud into real projective space RP^k.

Uses the most persistent degree-1 mod-2 cohomology class of a landmark
Vietoris-Rips filtration to build a classifying map, then reduces it with
principal projective component analysis.

OUTPUT: coordinates (unit vectors, antipodal points identified), cover radius,
the H1 persistence diagram and cumulative PPCA variance.`),
		mcp.WithNumber("perc",
			mcp.Description(fmt.Sprintf("Cover radius interpolation between coverage (0) and first death (1) (default: %g)", m.cfg.Percentage)),
		),
		mcp.WithNumber("proj_dim",
			mcp.Description(fmt.Sprintf("Target projective dimension (default: %d)", m.cfg.ProjDim)),
		),
		mcp.WithArray("cocycle_idx",
			mcp.Description("Indices of the classes to combine, by decreasing persistence (default: [0])"),
		),
	}, pointArgs...)...)
	s.AddTool(coordsTool, m.handleProjectiveCoordinates)

	landmarksTool := mcp.NewTool("landmarks", append([]mcp.ToolOption{
		mcp.WithDescription(`Pick well-spread landmarks with greedy maxmin sampling.

OUTPUT: landmark indices in insertion order, their insertion radii and the
coverage radius (largest distance from a point to its nearest landmark).`),
	}, pointArgs...)...)
	s.AddTool(landmarksTool, m.handleLandmarks)
}

func (m *MCPServer) registerResources(s *server.MCPServer) {
	configResource := mcp.NewResource(
		"projcoords://config",
		"projcoords Configuration",
		mcp.WithResourceDescription("Pipeline defaults used when tool arguments are omitted"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(configResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		configJSON, _ := json.MarshalIndent(map[string]interface{}{
			"landmarks":  m.cfg.Landmarks,
			"percentage": m.cfg.Percentage,
			"max_dim":    m.cfg.MaxDim,
			"cocycles":   m.cfg.Cocycles,
			"proj_dim":   m.cfg.ProjDim,
		}, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "projcoords://config",
				MIMEType: "application/json",
				Text:     string(configJSON),
			},
		}, nil
	})
}

// pointSetArg parses the points or distances argument.
func pointSetArg(args map[string]interface{}) (types.PointSet, error) {
	var rows [][]float64
	if raw, ok := args["points"]; ok {
		if err := remarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("invalid points: %w", err)
		}
		if len(rows) > 0 {
			return types.NewPointCloud(rows)
		}
	}
	if raw, ok := args["distances"]; ok {
		if err := remarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("invalid distances: %w", err)
		}
		if len(rows) > 0 {
			return types.NewDistanceMatrix(rows)
		}
	}
	return nil, fmt.Errorf("points or distances is required")
}

// remarshal converts a decoded JSON value into out.
func remarshal(raw interface{}, out interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (m *MCPServer) landmarkCount(request mcp.CallToolRequest, n int) int {
	return min(int(request.GetFloat("landmarks", float64(m.cfg.Landmarks))), n)
}

func (m *MCPServer) handleProjectiveCoordinates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ps, err := pointSetArg(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in := projective.Input{
		Points:     ps,
		Landmarks:  m.landmarkCount(request, ps.Len()),
		Percentage: request.GetFloat("perc", m.cfg.Percentage),
		MaxDim:     m.cfg.MaxDim,
		Cocycles:   m.cfg.Cocycles,
	}
	in.ProjDim = int(request.GetFloat("proj_dim", float64(min(m.cfg.ProjDim, in.Landmarks-1))))
	if raw, ok := args["cocycle_idx"]; ok {
		if err := remarshal(raw, &in.Cocycles); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid cocycle_idx: %v", err)), nil
		}
	}
	if len(in.Cocycles) == 0 {
		in.Cocycles = []int{0}
	}

	pipeline, err := projective.New(projective.Config{
		Workers: m.cfg.Workers,
		Seed:    m.cfg.Seed,
		Logger:  m.logger,
		Tracer:  m.tracer,
		Metrics: m.metrics,
	})
	if err != nil {
		return nil, err
	}
	defer pipeline.Close()

	res, err := pipeline.Run(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("projective coordinates failed: %v", err)), nil
	}

	top := make([]types.Interval, 0, 5)
	for _, idx := range res.SortOrder[:min(5, len(res.SortOrder))] {
		top = append(top, res.Diagram[idx])
	}

	result := map[string]interface{}{
		"summary": map[string]interface{}{
			"points":       ps.Len(),
			"landmarks":    in.Landmarks,
			"proj_dim":     in.ProjDim,
			"cocycles":     in.Cocycles,
			"coverage":     res.Coverage,
			"cover_radius": res.Radius,
			"elapsed_ms":   res.Stats.Total.Milliseconds(),
		},
		"top_classes":         top,
		"cumulative_variance": ppca.CumulativeVariance(res.Variance),
		"coordinates":         res.Coordinates,
	}

	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (m *MCPServer) handleLandmarks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ps, err := pointSetArg(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pool, err := workers.NewPool(m.cfg.Workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	lm, err := landmark.Sample(ctx, ps, m.landmarkCount(request, ps.Len()), landmark.Options{
		Seed: m.cfg.Seed,
		Pool: pool,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("landmark sampling failed: %v", err)), nil
	}

	result := map[string]interface{}{
		"indices":  lm.Indices,
		"lambdas":  lm.Lambdas,
		"coverage": landmark.Coverage(lm.LandData),
	}
	resultJSON, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}
