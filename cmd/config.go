package cmd

import (
	"fmt"
	"os"

	"github.com/Siddhant-K-code/projcoords/pkg/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage projcoords configuration",
	Long:  `Commands for creating and validating projcoords.yaml configuration files.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a projcoords.yaml template",
	Long: `Creates a projcoords.yaml configuration file with all available options
and their default values.

Example:
  projcoords config init
  projcoords config init --output /etc/projcoords/projcoords.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a projcoords.yaml configuration file",
	Long: `Reads and validates a configuration file, reporting any errors.

Example:
  projcoords config validate
  projcoords config validate projcoords.yaml
  projcoords config validate --config /etc/projcoords/projcoords.yaml`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringP("output", "o", "projcoords.yaml", "output file path")
	configInitCmd.Flags().Bool("stdout", false, "print to stdout instead of file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	toStdout, _ := cmd.Flags().GetBool("stdout")
	output, _ := cmd.Flags().GetString("output")

	template := config.GenerateTemplate()

	if toStdout {
		fmt.Print(template)
		return nil
	}

	// Check if file already exists
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("file %s already exists (use --stdout to print to stdout)", output)
	}

	if err := os.WriteFile(output, []byte(template), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created %s\n", output)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	var cfgPath string

	if len(args) > 0 {
		cfgPath = args[0]
	} else if cfgFile != "" {
		cfgPath = cfgFile
	} else {
		// Search default locations
		candidates := []string{
			"projcoords.yaml",
			".projcoords.yaml",
		}
		home, err := os.UserHomeDir()
		if err == nil {
			candidates = append(candidates,
				home+"/.projcoords.yaml",
				home+"/projcoords.yaml",
			)
		}

		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				cfgPath = c
				break
			}
		}

		if cfgPath == "" {
			return fmt.Errorf("no config file found (try: projcoords config validate <file>)")
		}
	}

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return fmt.Errorf("validation failed for %s:\n%w", cfgPath, err)
	}

	fmt.Fprintf(os.Stderr, "Config file %s is valid\n", cfgPath)
	fmt.Fprintf(os.Stderr, "  pipeline: %d landmarks, RP^%d, cocycles %v, perc %g\n",
		cfg.Pipeline.Landmarks, cfg.Pipeline.ProjDim, cfg.Pipeline.Cocycles, cfg.Pipeline.Percentage)
	if cfg.Source.Index != "" {
		fmt.Fprintf(os.Stderr, "  source:   %s index %q\n", cfg.Source.Backend, cfg.Source.Index)
	}
	return nil
}
