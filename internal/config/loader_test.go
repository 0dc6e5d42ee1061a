package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probe-search/probe/internal/config"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultReranker, cfg.Search.DefaultReranker)
	assert.Equal(t, config.DefaultMaxResults, cfg.Search.DefaultMaxResults)
}

func TestLoadConfig_ExplicitFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")

	content := "server:\n  port: 9999\nsearch:\n  default_reranker: bm25\n  default_max_results: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "bm25", cfg.Search.DefaultReranker)
	assert.Equal(t, 10, cfg.Search.DefaultMaxResults)
}

func TestLoadConfig_InvalidOverrideFailsValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "probe.yaml")

	content := "search:\n  default_reranker: not-a-real-reranker\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := config.LoadConfig(path)
	assert.ErrorIs(t, err, config.ErrInvalidReranker)
}
