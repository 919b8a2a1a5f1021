package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Siddhant-K-code/projcoords/pkg/config"
	"github.com/Siddhant-K-code/projcoords/pkg/logging"
	"github.com/Siddhant-K-code/projcoords/pkg/telemetry"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "projcoords",
	Short: "projcoords - Multiscale projective coordinates for point clouds",
	Long: `projcoords maps a point cloud (or a distance matrix) into real projective
space RP^k using a degree-1 persistent cohomology class of a landmark
Vietoris-Rips filtration.

Pipeline:
  - Greedy maxmin landmark sampling
  - Mod-2 persistent cohomology of the landmark Rips filtration
  - Cover radius selection and partition of unity
  - Classifying map onto the sphere
  - Principal projective component analysis (PPCA)

Environment Variables:
  PINECONE_API_KEY    For Pinecone source and export
  QDRANT_API_KEY      For Qdrant source
  PROJCOORDS_*        Overrides any config key (e.g. PROJCOORDS_PIPELINE_LANDMARKS)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	registerCompletions()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.projcoords.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	// Bind to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".projcoords")
	}

	// Read environment variables
	viper.SetEnvPrefix("PROJCOORDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// bindFlags binds command flags to config keys. Bindings are made when the
// command runs so commands sharing a key do not shadow each other.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q for key %q", name, key)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// pipelineFlags registers the pipeline tuning flags shared by compute,
// export and serve.
func pipelineFlags(fs *pflag.FlagSet) {
	fs.IntP("landmarks", "l", 200, "number of landmarks")
	fs.Float64("perc", 0.99, "cover radius interpolation between coverage and first death")
	fs.Int("max-dim", 1, "highest cohomology degree to compute (1 or 2)")
	fs.IntSlice("cocycle", []int{0}, "cocycle indices by decreasing persistence, summed")
	fs.Int("proj-dim", 3, "target projective dimension")
	fs.IntP("workers", "w", 0, "number of parallel workers (0 = NumCPU)")
	fs.Int("seed", 0, "index of the first landmark")
}

var pipelineKeys = map[string]string{
	"pipeline.landmarks":  "landmarks",
	"pipeline.percentage": "perc",
	"pipeline.max_dim":    "max-dim",
	"pipeline.cocycles":   "cocycle",
	"pipeline.proj_dim":   "proj-dim",
	"pipeline.workers":    "workers",
	"pipeline.seed":       "seed",
}

// loadConfig merges defaults, the config file, env and bound flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if viper.GetBool("verbose") {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func newTracer(ctx context.Context, cfg *config.Config) (*telemetry.Provider, error) {
	t := cfg.Telemetry.Tracing
	tp, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     t.Enabled,
		Exporter:    t.Exporter,
		Endpoint:    t.Endpoint,
		SampleRate:  t.SampleRate,
		ServiceName: "projcoords",
		Insecure:    t.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return tp, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
