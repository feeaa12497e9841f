package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/config"
)

// configTarget returns the config file a config subcommand edits: the
// project overlay when one is resolved and global is false, else the user
// config.
func configTarget(cmd *cobra.Command, global bool) (path string, project string, err error) {
	if !global {
		flagDir, _ := cmd.Flags().GetString("project-dir")
		cwd, wdErr := os.Getwd()
		if wdErr != nil {
			return "", "", fmt.Errorf("resolving working directory: %w", wdErr)
		}
		if dir := config.ResolveProjectDir(cmd.Context(), flagDir, cwd); dir != "" {
			return filepath.Join(dir, "config.yaml"), dir, nil
		}
	}
	path, err = config.DefaultPath()
	return path, "", err
}

// NewConfigInitCmd creates the config init command for initializing configuration.
// Inside a project (a directory tree with .adcarbon/, or with --project-dir)
// it writes the project overlay and a .gitignore. Otherwise it writes the
// user config at $ADCARBON_HOME/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force   bool
		global  bool
		project bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

Inside a project, creates $PROJECT/.adcarbon/config.yaml with a .gitignore
that keeps local databases and caches out of version control. Use --project
to start a project in the current directory, --global to write the user
configuration even inside a project.`,
		Example: `  # Create the user configuration
  adcarbon config init --global

  # Start a project in the current directory
  adcarbon config init --project

  # Overwrite an existing configuration
  adcarbon config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if global && project {
				return errors.New("--global and --project are mutually exclusive")
			}
			if project {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("resolving working directory: %w", err)
				}
				return initProjectConfig(cmd, filepath.Join(cwd, config.ProjectDirName), force)
			}
			path, projectDir, err := configTarget(cmd, global)
			if err != nil {
				return err
			}
			if projectDir != "" {
				return initProjectConfig(cmd, projectDir, force)
			}
			return initGlobalConfig(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "write the user configuration even inside a project")
	cmd.Flags().BoolVar(&project, "project", false, "create .adcarbon/ in the current directory")

	return cmd
}

// refuseOverwrite fails when path exists and force is not set.
func refuseOverwrite(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return errors.New("configuration file already exists, use --force to overwrite")
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access config path %s: %w", path, err)
	}
	return nil
}

// initProjectConfig creates projectDir/config.yaml with a .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")
	if err := refuseOverwrite(configPath, force); err != nil {
		return err
	}

	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return fmt.Errorf("failed to create project config directory: %w", err)
	}

	cfg := config.Default()
	cfg.SetPath(configPath)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Never overwrites an existing .gitignore.
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep local data out of version control\n")
	}
	return nil
}

// initGlobalConfig creates the user config at path.
func initGlobalConfig(cmd *cobra.Command, path string, force bool) error {
	if err := refuseOverwrite(path, force); err != nil {
		return err
	}
	cfg := config.Default()
	cfg.SetPath(path)
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", path)
	return nil
}

// NewConfigSetCmd creates the config set command.
func NewConfigSetCmd() *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: `Sets one dotted configuration key and saves the file. The project overlay
is edited when inside a project unless --global is given. Run
"adcarbon config list" for the accepted keys.`,
		Example: `  adcarbon config set compute.endpoint https://compute.example.com
  adcarbon config set output.total_precision 3 --global`,
		Args: cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := configTarget(cmd, global)
			if err != nil {
				return err
			}
			cfg, err := config.ReadFile(path)
			if err != nil {
				return err
			}
			if err = cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			if err = cfg.Save(); err != nil {
				return err
			}
			cmd.Printf("Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "edit the user configuration even inside a project")
	return cmd
}

// NewConfigGetCmd creates the config get command.
func NewConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of a configuration key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.GetGlobalConfig().Get(args[0])
			if err != nil {
				return err
			}
			cmd.Println(v)
			return nil
		},
	}
}

// NewConfigListCmd creates the config list command.
func NewConfigListCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"show"},
		Short:   "List every configuration key with its effective value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			cfg := config.GetGlobalConfig()
			values := make(map[string]string, len(config.Keys()))
			for _, k := range config.Keys() {
				values[k], _ = cfg.Get(k)
			}
			if format == formatJSON {
				return renderJSON(cmd.OutOrStdout(), values)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, tabPadding, ' ', 0)
			for _, k := range config.Keys() {
				fmt.Fprintf(tw, "%s\t%s\n", k, values[k])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	return cmd
}

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Long: `Validates the merged configuration: value ranges, and that the conversion
and emission factor tables it names can be loaded.`,
		Example: `  adcarbon config validate
  adcarbon config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")
	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	table, est, err := loadTables(cfg)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("Configuration is valid\n")
	if !verbose {
		return nil
	}

	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.Path())
	cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
	cmd.Printf("  Total precision: %d\n", cfg.Output.TotalPrecision)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Store: %s\n", cfg.Store.Driver)
	if cfg.Compute.Enabled() {
		cmd.Printf("  Compute endpoint: %s (timeout %s)\n", cfg.Compute.Endpoint, cfg.Compute.TimeoutDuration())
	} else {
		cmd.Println("  No compute endpoint configured (local estimates only)")
	}
	cmd.Printf("  Channels: %d\n", len(table.Channels()))
	cmd.Printf("  Conversion factors: %d\n", table.Len())
	cmd.Printf("  Emission factors: %d\n", len(est.Units()))
	return nil
}
