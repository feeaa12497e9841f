// Package cli implements the adcarbon command line.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/adcarbon/internal/config"
	"github.com/rshade/adcarbon/internal/logging"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the adcarbon CLI. It loads
// configuration, wires logging and registers every subcommand.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "adcarbon",
		Short:         "Marketing activity emissions tracker",
		Long:          "adcarbon records marketing activities, reconciles their unit quantities and estimates their CO2e emissions.",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default $ADCARBON_HOME/config.yaml)")
	cmd.PersistentFlags().String("project-dir", "", "project directory holding .adcarbon/config.yaml")

	cmd.AddCommand(
		newActivityCmd(),
		NewConvertCmd(),
		NewReportCmd(),
		NewEditCmd(),
		NewServeCmd(),
		newConfigCmd(),
		newCacheCmd(),
	)
	return cmd
}

// loadConfig resolves the effective configuration: an explicit --config file,
// or the user config with the project overlay on top.
func loadConfig(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		config.SetGlobalConfig(cfg)
		return nil
	}

	flagDir, _ := cmd.Flags().GetString("project-dir")
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	projectDir := config.ResolveProjectDir(cmd.Context(), flagDir, cwd)
	config.SetGlobalConfig(config.NewWithProjectDir(cmd.Context(), projectDir))
	return nil
}

const rootCmdExample = `  # Record travel for an ad shoot; kWh is derived from km
  adcarbon activity add --channel "Ad Production" --market UK --scope 3 --unit km=120

  # Preview unit reconciliation without saving
  adcarbon convert --channel "Ad Production" --set km=120 --set render_hours=4

  # Resolve emissions for every activity and print totals
  adcarbon report --output json

  # Enter activities interactively with a live emissions preview
  adcarbon edit --channel Print

  # Serve the HTTP API and reference compute service
  adcarbon serve --addr 127.0.0.1:8080

  # Point at a remote compute service
  adcarbon config set compute.endpoint https://compute.example.com`

// newActivityCmd creates the activity command group.
func newActivityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "activity", Short: "Record and manage marketing activities"}
	cmd.AddCommand(
		NewActivityAddCmd(), NewActivityUpdateCmd(), NewActivityListCmd(),
		NewActivityShowCmd(), NewActivityRemoveCmd(),
	)
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(
		NewConfigInitCmd(), NewConfigSetCmd(), NewConfigGetCmd(),
		NewConfigListCmd(), NewConfigValidateCmd(),
	)
	return cmd
}

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage persisted emission results"}
	cmd.AddCommand(NewCacheStatsCmd(), NewCacheClearCmd(), NewCacheCleanupCmd())
	return cmd
}
