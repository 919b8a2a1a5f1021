package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Siddhant-K-code/projcoords/pkg/config"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
	"github.com/Siddhant-K-code/projcoords/pkg/source"
	pcsource "github.com/Siddhant-K-code/projcoords/pkg/source/pinecone"
	qdsource "github.com/Siddhant-K-code/projcoords/pkg/source/qdrant"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
)

// inputFlags registers the flags selecting where points come from.
func inputFlags(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "path to a JSONL or CSV file of points")
	fs.Bool("distance-matrix", false, "treat the file rows as a distance matrix")

	fs.String("backend", "", "vector DB backend to load points from (pinecone, qdrant)")
	fs.StringP("index", "i", "", "index/collection name")
	fs.String("db-host", "", "vector DB host (for Qdrant)")
	fs.StringP("namespace", "n", "", "vector DB namespace")
	fs.String("seed-id", "", "id of the vector whose neighborhood is loaded")
	fs.Int("top-k", 1000, "neighborhood size")
	fs.String("api-key", "", "vector DB API key (or use PINECONE_API_KEY / QDRANT_API_KEY)")
}

var sourceKeys = map[string]string{
	"source.backend":   "backend",
	"source.index":     "index",
	"source.host":      "db-host",
	"source.namespace": "namespace",
	"source.seed_id":   "seed-id",
	"source.top_k":     "top-k",
}

// loadDataset reads --file when given, otherwise the configured source.
func loadDataset(ctx context.Context, cmd *cobra.Command, cfg *config.Config, tp *telemetry.Provider) (*source.Dataset, error) {
	filePath, _ := cmd.Flags().GetString("file")
	distances, _ := cmd.Flags().GetBool("distance-matrix")
	if filePath != "" {
		ds, err := source.LoadFile(filePath, distances)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", filePath, err)
		}
		return ds, nil
	}

	if cfg.Source.Index == "" {
		return nil, fmt.Errorf("no input: use --file, or --backend with --index and --seed-id")
	}
	apiKey, _ := cmd.Flags().GetString("api-key")
	src, err := openSource(ctx, cfg.Source, apiKey)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	return source.Fetch(ctx, src, tp, cfg.Source.Backend, cfg.Source.SeedID, cfg.Source.TopK)
}

func openSource(ctx context.Context, sc config.SourceConfig, apiKey string) (source.Source, error) {
	base := source.DefaultConfig()
	base.Host = sc.Host
	base.Namespace = sc.Namespace

	switch sc.Backend {
	case "pinecone", "":
		if apiKey == "" {
			apiKey = os.Getenv("PINECONE_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("Pinecone API key required (--api-key or PINECONE_API_KEY)")
		}
		base.APIKey = apiKey
		src, err := pcsource.NewClient(ctx, pcsource.Config{Config: base, IndexName: sc.Index})
		if err != nil {
			return nil, fmt.Errorf("failed to create Pinecone source: %w", err)
		}
		return src, nil

	case "qdrant":
		if sc.Host == "" {
			return nil, fmt.Errorf("Qdrant host required (--db-host)")
		}
		if apiKey == "" {
			apiKey = os.Getenv("QDRANT_API_KEY")
		}
		base.APIKey = apiKey
		src, err := qdsource.NewClient(ctx, qdsource.Config{Config: base, Collection: sc.Index})
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant source: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s (use 'pinecone' or 'qdrant')", sc.Backend)
	}
}

// pipelineInput builds a run from the pipeline config section. A zero
// percentage is kept: it places the cover radius at the coverage radius.
func pipelineInput(p config.PipelineConfig, ds *source.Dataset) projective.Input {
	cocycles := p.Cocycles
	if len(cocycles) == 0 {
		cocycles = []int{0}
	}
	return projective.Input{
		Points:     ds.Points,
		Landmarks:  p.Landmarks,
		Percentage: p.Percentage,
		MaxDim:     p.MaxDim,
		Cocycles:   cocycles,
		ProjDim:    p.ProjDim,
	}
}

// stageBars renders one progress bar per pipeline stage on stderr.
type stageBars struct {
	mu    sync.Mutex
	stage projective.Stage
	bar   *progressbar.ProgressBar
}

func (s *stageBars) update(stage projective.Stage, done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stage != s.stage || s.bar == nil {
		s.finishLocked()
		s.stage = stage
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("%-10s", stage)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = s.bar.Set(done)
}

func (s *stageBars) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

func (s *stageBars) finishLocked() {
	if s.bar != nil {
		_ = s.bar.Finish()
		fmt.Fprintln(os.Stderr)
		s.bar = nil
	}
}
