package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rshade/adcarbon/internal/logging"
)

// ProjectDirName is the project-local configuration directory.
const ProjectDirName = ".adcarbon"

// ResolveProjectDir returns the project-local .adcarbon directory. It checks,
// in order, flagValue, ADCARBON_PROJECT_DIR and a walk up from startDir for an
// existing .adcarbon directory. It returns "" when none is found and never
// creates anything. The user's home config directory is not a project.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}
	if envDir := os.Getenv("ADCARBON_PROJECT_DIR"); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	home, _ := GetConfigDir()
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ProjectDirName)
		info, statErr := os.Stat(candidate)
		switch {
		case statErr == nil && info.IsDir() && candidate != home:
			return candidate
		case statErr != nil && !errors.Is(statErr, fs.ErrNotExist):
			logging.FromContext(ctx).Warn().
				Str("component", "config").
				Err(statErr).
				Str("dir", candidate).
				Msg("unexpected error during project discovery")
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// NewWithProjectDir loads the global configuration and shallow-merges
// projectDir/config.yaml on top. A missing or broken overlay leaves the
// global configuration in place.
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	cfg := New()
	if projectDir == "" {
		return cfg
	}

	overlayPath := filepath.Join(projectDir, configFileName)
	if _, err := os.Stat(overlayPath); err != nil {
		return cfg
	}

	merged := New()
	if err := ShallowMergeYAML(merged, overlayPath); err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global config")
		return cfg
	}
	// Environment variables still win over the project file.
	merged.ApplyEnv()
	return merged
}

// toAbsProjectDir makes dir absolute and appends .adcarbon unless present.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}
	if filepath.Base(abs) == ProjectDirName {
		return abs
	}
	return filepath.Join(abs, ProjectDirName)
}
