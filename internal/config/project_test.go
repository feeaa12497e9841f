package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveProjectDir(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	root := t.TempDir()
	project := filepath.Join(root, ProjectDirName)
	nested := filepath.Join(root, "campaigns", "q3")
	require.NoError(t, os.MkdirAll(project, 0o750))
	require.NoError(t, os.MkdirAll(nested, 0o750))

	t.Run("walks up", func(t *testing.T) {
		assert.Equal(t, project, ResolveProjectDir(ctx, "", nested))
	})

	t.Run("flag wins", func(t *testing.T) {
		other := t.TempDir()
		assert.Equal(t, filepath.Join(other, ProjectDirName), ResolveProjectDir(ctx, other, nested))
		assert.Equal(t, project, ResolveProjectDir(ctx, project, nested))
	})

	t.Run("env var", func(t *testing.T) {
		other := t.TempDir()
		t.Setenv("ADCARBON_PROJECT_DIR", other)
		assert.Equal(t, filepath.Join(other, ProjectDirName), ResolveProjectDir(ctx, "", nested))
	})

	t.Run("none found", func(t *testing.T) {
		assert.Empty(t, ResolveProjectDir(ctx, "", t.TempDir()))
	})
}

func TestResolveProjectDirSkipsHome(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	home := filepath.Join(root, ProjectDirName)
	require.NoError(t, os.MkdirAll(home, 0o750))
	t.Setenv("ADCARBON_HOME", home)

	assert.Empty(t, ResolveProjectDir(context.Background(), "", root))
}

func TestNewWithProjectDir(t *testing.T) {
	isolate(t)
	ctx := context.Background()
	project := filepath.Join(t.TempDir(), ProjectDirName)
	require.NoError(t, os.MkdirAll(project, 0o750))

	assert.Equal(t, DefaultOutputFormat, NewWithProjectDir(ctx, "").Output.DefaultFormat)
	assert.Equal(t, DefaultOutputFormat, NewWithProjectDir(ctx, project).Output.DefaultFormat)

	require.NoError(t, os.WriteFile(filepath.Join(project, "config.yaml"),
		[]byte("output:\n  default_format: json\n  total_precision: 4\n"), 0o600))
	cfg := NewWithProjectDir(ctx, project)
	assert.Equal(t, "json", cfg.Output.DefaultFormat)
	assert.Equal(t, 4, cfg.Output.TotalPrecision)

	t.Setenv("ADCARBON_OUTPUT_FORMAT", "table")
	assert.Equal(t, "table", NewWithProjectDir(ctx, project).Output.DefaultFormat)

	require.NoError(t, os.WriteFile(filepath.Join(project, "config.yaml"), []byte("output: ["), 0o600))
	assert.Equal(t, DefaultOutputFormat, NewWithProjectDir(ctx, project).Output.DefaultFormat)
}

func TestEnsureGitignore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ProjectDirName)

	created, err := EnsureGitignore(dir)
	require.NoError(t, err)
	assert.True(t, created)
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, GitignoreContent(), string(data))
	assert.Contains(t, string(data), "*.db")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("custom\n"), 0o600))
	created, err = EnsureGitignore(dir)
	require.NoError(t, err)
	assert.False(t, created)
	data, err = os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data))
}
