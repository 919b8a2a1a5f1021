package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Siddhant-K-code/projcoords/pkg/metrics"
	"github.com/Siddhant-K-code/projcoords/pkg/ppca"
	"github.com/Siddhant-K-code/projcoords/pkg/projective"
	"github.com/Siddhant-K-code/projcoords/pkg/source"
	"github.com/Siddhant-K-code/projcoords/pkg/types"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute projective coordinates for a point cloud",
	Long: `Loads a point cloud (or a distance matrix) and maps it into RP^k using
the most persistent degree-1 cohomology class of a landmark Rips filtration.

Example:
  projcoords compute --file circle.jsonl --landmarks 100 --proj-dim 2
  projcoords compute --file dists.csv --distance-matrix --cocycle 0,1 --output result.json
  projcoords compute --backend qdrant --db-host localhost --index docs --seed-id 42 --top-k 500

Points come from --file (JSONL or CSV) or from the topK neighborhood of a
stored vector in Pinecone or Qdrant.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, pipelineKeys); err != nil {
			return err
		}
		return bindFlags(cmd, sourceKeys)
	},
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	inputFlags(computeCmd.Flags())
	pipelineFlags(computeCmd.Flags())
	computeCmd.Flags().StringP("output", "o", "", "write the full result as JSON to this file")
	computeCmd.Flags().Bool("no-progress", false, "disable progress bars")
}

func runCompute(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	verbose := viper.GetBool("verbose")

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	loadStart := time.Now()
	ds, err := loadDataset(ctx, cmd, cfg, tp)
	if err != nil {
		return err
	}
	logger.Info("points loaded", zap.Int("points", ds.Len()), zap.Duration("elapsed", time.Since(loadStart)))

	bars := &stageBars{}
	pcfg := projective.Config{
		Workers: cfg.Pipeline.Workers,
		Seed:    cfg.Pipeline.Seed,
		Logger:  logger,
		Tracer:  tp,
		Metrics: metrics.New(),
	}
	if !noProgress {
		pcfg.Progress = bars.update
	}

	pipeline, err := projective.New(pcfg)
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

	printComputeReport(ds, in, res, verbose)

	if output != "" {
		if err := writeResult(output, res); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	}
	return nil
}

func writeResult(path string, res *projective.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

func printComputeReport(ds *source.Dataset, in projective.Input, res *projective.Result, verbose bool) {
	fmt.Println()
	fmt.Println("=== Projective Coordinates ===")
	fmt.Println()
	fmt.Printf("Points:                  %d\n", ds.Len())
	fmt.Printf("Landmarks:               %d\n", in.Landmarks)
	fmt.Printf("Target space:            RP^%d\n", in.ProjDim)
	fmt.Printf("Cocycles:                %v\n", in.Cocycles)
	fmt.Printf("Coverage:                %.4f\n", res.Coverage)
	fmt.Printf("Cover radius:            %.4f\n", res.Radius)
	fmt.Println()

	top := min(5, len(res.SortOrder))
	if top > 0 {
		fmt.Println("Most persistent H1 classes:")
		for rank, idx := range res.SortOrder[:top] {
			iv := res.Diagram[idx]
			fmt.Printf("  #%d  [%.4f, %.4f)  persistence %.4f\n", rank, iv.Birth, iv.Death, iv.Persistence())
		}
		fmt.Println()
	}

	cum := ppca.CumulativeVariance(res.Variance)
	if len(cum) > 0 {
		fmt.Println("Cumulative PPCA variance:")
		shown := min(len(cum), in.ProjDim+2)
		for k := 0; k < shown; k++ {
			fmt.Printf("  RP^%-3d %.4f\n", k+1, cum[k])
		}
		fmt.Println()
	}

	if dm, ok := ds.Points.(*types.DistanceMatrix); ok {
		if r, err := projective.DistanceCorrelation(res.Coordinates, dm); err == nil {
			fmt.Printf("Distance correlation:    %.4f\n", r)
			fmt.Println()
		}
	}

	fmt.Printf("Processing time:         %v\n", res.Stats.Total.Round(time.Millisecond))
	if verbose {
		stages := []struct {
			name string
			d    time.Duration
		}{
			{"landmarks", res.Stats.Landmarks},
			{"persistence", res.Stats.Persistence},
			{"cover", res.Stats.Cover},
			{"classmap", res.Stats.ClassMap},
			{"ppca", res.Stats.PPCA},
		}
		sort.SliceStable(stages, func(i, j int) bool { return stages[i].d > stages[j].d })
		for _, s := range stages {
			fmt.Printf("  %-12s %v\n", s.name, s.d.Round(time.Microsecond))
		}
	}
}
