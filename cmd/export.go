package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Siddhant-K-code/projcoords/pkg/export"
	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	pc "github.com/Siddhant-K-code/projcoords/pkg/pinecone"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Compute projective coordinates and upsert them to Pinecone",
	Long: `Computes projective coordinates for a point cloud and writes one vector
per point to a Pinecone index using parallel workers. Each vector keeps the
point's id and metadata and is annotated with cover_radius, proj_dim and
landmark.

Example:
  projcoords export --file data.jsonl --to-index coords --proj-dim 2

Environment Variables:
  PINECONE_API_KEY    Your Pinecone API key (required)`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, pipelineKeys); err != nil {
			return err
		}
		if err := bindFlags(cmd, sourceKeys); err != nil {
			return err
		}
		return bindFlags(cmd, map[string]string{
			"export.index":      "to-index",
			"export.namespace":  "to-namespace",
			"export.batch_size": "batch-size",
			"export.workers":    "export-workers",
		})
	},
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	inputFlags(exportCmd.Flags())
	pipelineFlags(exportCmd.Flags())

	// Destination settings
	exportCmd.Flags().String("to-index", "", "Pinecone index receiving the coordinates (required)")
	exportCmd.Flags().String("to-namespace", "", "Pinecone namespace receiving the coordinates")
	exportCmd.Flags().IntP("batch-size", "b", 100, "vectors per batch (Pinecone optimal: 100)")
	exportCmd.Flags().Int("export-workers", 4, "number of upload workers")
}

func runExport(cmd *cobra.Command, args []string) error {
	apiKey, _ := cmd.Flags().GetString("api-key")
	verbose := viper.GetBool("verbose")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Export.Index == "" {
		return fmt.Errorf("destination index is required: use --to-index")
	}
	if apiKey == "" {
		apiKey = os.Getenv("PINECONE_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("pinecone API key is required: set PINECONE_API_KEY or use --api-key")
	}

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
	defer func() { _ = tp.Shutdown(ctx) }()
	m := metrics.New()

	ds, err := loadDataset(ctx, cmd, cfg, tp)
	if err != nil {
		return err
	}

	bars := &stageBars{}
	pipeline, err := projective.New(projective.Config{
		Workers:  cfg.Pipeline.Workers,
		Seed:     cfg.Pipeline.Seed,
		Logger:   logger,
		Tracer:   tp,
		Metrics:  m,
		Progress: bars.update,
	})
	if err != nil {
		return err
	}
	defer pipeline.Close()

	in := pipelineInput(cfg.Pipeline, ds)
	res, err := pipeline.Run(ctx, in)
	bars.finish()
	if err != nil {
		return fmt.Errorf("projective coordinates failed: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Computed RP^%d coordinates for %d points (cover radius %.4f)\n",
		in.ProjDim, ds.Len(), res.Radius)

	vectors, err := export.Vectors(ds, res)
	if err != nil {
		return err
	}

	// Connect to Pinecone
	fmt.Fprintf(os.Stderr, "Connecting to Pinecone index %q...\n", cfg.Export.Index)
	pcCfg := pc.DefaultConfig()
	pcCfg.APIKey = apiKey
	pcCfg.IndexName = cfg.Export.Index
	pcCfg.Namespace = cfg.Export.Namespace

	client, err := pc.NewClient(ctx, pcCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Pinecone: %w", err)
	}
	defer func() { _ = client.Close() }()

	exporter := export.New(client, export.Config{
		BatchSize: cfg.Export.BatchSize,
		Workers:   cfg.Export.Workers,
		Index:     cfg.Export.Index,
	}, export.WithLogger(logger), export.WithTracer(tp), export.WithMetrics(m))

	bar := progressbar.NewOptions64(
		int64(len(vectors)),
		progressbar.OptionSetDescription("Uploading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("vectors"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)

	progressFn := func(stats export.Stats) {
		_ = bar.Set64(stats.UploadedVectors + stats.FailedVectors)
	}

	stats, err := exporter.Export(ctx, vectors, progressFn)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	printExportSummary(stats, client.Retries(), verbose)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}

func printExportSummary(stats *export.Stats, retries int64, verbose bool) {
	fmt.Println()
	fmt.Println("=== Export Complete ===")
	fmt.Println()
	fmt.Printf("Vectors uploaded:    %d\n", stats.UploadedVectors)
	fmt.Printf("Vectors failed:      %d\n", stats.FailedVectors)
	fmt.Printf("Batches processed:   %d\n", stats.BatchesProcessed)
	fmt.Printf("Duration:            %v\n", stats.Duration().Round(time.Millisecond))
	fmt.Printf("Throughput:          %.0f vectors/sec\n", stats.VectorsPerSecond())
	if verbose {
		fmt.Printf("Retries:             %d\n", retries)
	}
	fmt.Println()
}
