package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/powerhawk/cli/internal/config"
	"github.com/telhawk-systems/powerhawk/cli/pkg/output"
)

var (
	cfgFile      string
	profileName  string
	outputFormat string
	cfg          *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pwctl",
	Short: "PowerHawk CLI",
	Long: `pwctl is the command-line interface for the PowerHawk telemetry pipeline.

Manage the device registry, inspect latest and historical readings,
run database migrations and simulate device fleets from your terminal.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !output.ValidFormat(outputFormat) {
			return fmt.Errorf("unsupported output format %q (use table, json or yaml)", outputFormat)
		}
		return nil
	},
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		return err
	}
	return nil
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.pwctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatTable, "output format: table, json, yaml")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// activeProfile resolves the endpoints for this invocation.
func activeProfile() (config.Profile, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg.Resolve(profileName)
}

func render(cmd *cobra.Command, v any, table *output.Table) error {
	return output.Render(cmd.OutOrStdout(), outputFormat, v, table)
}
