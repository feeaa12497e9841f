package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestShallowMergeYAML(t *testing.T) {
	tests := []struct {
		name    string
		overlay string
		check   func(t *testing.T, c *Config)
	}{
		{
			name:    "section replaced wholesale",
			overlay: "compute:\n  endpoint: http://localhost:9000\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "http://localhost:9000", c.Compute.Endpoint)
				assert.Empty(t, c.Compute.Timeout, "absent nested fields are not inherited")
				assert.Equal(t, DefaultLogLevel, c.Logging.Level, "other sections untouched")
			},
		},
		{
			name:    "unknown keys ignored",
			overlay: "budgets:\n  monthly: 10\noutput:\n  default_format: json\n  total_precision: 1\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "json", c.Output.DefaultFormat)
				assert.Equal(t, 1, c.Output.TotalPrecision)
			},
		},
		{
			name:    "comment only file",
			overlay: "# nothing here\n",
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, Default().Compute, c.Compute)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, ShallowMergeYAML(cfg, writeOverlay(t, tt.overlay)))
			tt.check(t, cfg)
		})
	}
}

func TestShallowMergeYAMLErrors(t *testing.T) {
	require.Error(t, ShallowMergeYAML(nil, "x"))
	require.Error(t, ShallowMergeYAML(Default(), filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, ShallowMergeYAML(Default(), writeOverlay(t, "store: [")))
	require.Error(t, ShallowMergeYAML(Default(), writeOverlay(t, "preview:\n  debounce_ms: soon\n")))
}
