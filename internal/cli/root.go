// Package cli provides the command-line interface for parcelboard.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/parcelstack-labs/parcelboard/internal/cli/commands"
	"github.com/parcelstack-labs/parcelboard/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "parcelboard",
		Short: "Parcelboard - Real-Estate Dashboard Sync Engine",
		Long: `Parcelboard is the synchronization and layout-persistence engine behind
a multi-panel real-estate analytics dashboard.

It coordinates cross-panel events with loop protection, tracks live panel
state, and persists named layout configurations with schema migration.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cfg)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./parcelboard.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "API server port")
	rootCmd.PersistentFlags().String("state", "", "Path to layout database")
	rootCmd.PersistentFlags().String("templates-dir", "", "Path to layout templates directory")
	rootCmd.PersistentFlags().Int("max-depth", 0, "Event propagation depth cap")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewLayoutsCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
