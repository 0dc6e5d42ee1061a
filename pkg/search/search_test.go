package search_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probe-search/probe/pkg/search"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func sampleRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeTestFile(t, dir, "main.go", "package main\n\nfunc parseConfig() {\n\treturn\n}\n")
	writeTestFile(t, dir, "util.go", "package main\n\nfunc unrelated() {}\n")
	writeTestFile(t, dir, "node_modules/vendor.js", "function parseConfig() {}\n")

	return dir
}

func TestSearch_EndToEndFindsMatchingBlock(t *testing.T) {
	t.Parallel()

	dir := sampleRepo(t)

	cfg := search.NewConfig("parseConfig")
	cfg.Paths = []string{dir}

	result, err := search.Search(context.Background(), cfg)
	require.NoError(t, err)
	require.NotEmpty(t, result.Blocks)
	assert.Equal(t, filepath.Join(dir, "main.go"), result.Blocks[0].Block.Path)
	assert.False(t, result.Cancelled)
}

func TestSearch_EmptyPatternIsConfigError(t *testing.T) {
	t.Parallel()

	cfg := search.NewConfig("")

	_, err := search.Search(context.Background(), cfg)
	assert.ErrorIs(t, err, search.ErrEmptyPattern)
}

func TestSearch_UnknownPathIsPathError(t *testing.T) {
	t.Parallel()

	cfg := search.NewConfig("anything")
	cfg.Paths = []string{filepath.Join(t.TempDir(), "does-not-exist")}

	_, err := search.Search(context.Background(), cfg)
	assert.ErrorIs(t, err, search.ErrPathNotFound)
}

func TestSearch_CancelledContextReturnsCancelledResult(t *testing.T) {
	t.Parallel()

	dir := sampleRepo(t)

	cfg := search.NewConfig("parseConfig")
	cfg.Paths = []string{dir}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := search.Search(ctx, cfg)
	assert.ErrorIs(t, err, search.ErrCancelled)
	assert.True(t, result.Cancelled)
}

func TestSearch_IsDeterministicAcrossRepeatedRuns(t *testing.T) {
	t.Parallel()

	dir := sampleRepo(t)

	cfg := search.NewConfig("parseConfig")
	cfg.Paths = []string{dir}

	first, err := search.Search(context.Background(), cfg)
	require.NoError(t, err)

	second, err := search.Search(context.Background(), cfg)
	require.NoError(t, err)

	require.Equal(t, len(first.Blocks), len(second.Blocks))

	for i := range first.Blocks {
		assert.Equal(t, first.Blocks[i].Block.Path, second.Blocks[i].Block.Path)
		assert.Equal(t, first.Blocks[i].Block.StartLine, second.Blocks[i].Block.StartLine)
		assert.InDelta(t, first.Blocks[i].Score, second.Blocks[i].Score, 1e-9)
	}
}

func TestSearch_FilesOnlyDedupesToOneEntryPerPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestFile(t, dir, "a.go", "needle\nneedle\nneedle\n")

	cfg := search.NewConfig("needle")
	cfg.Paths = []string{dir}
	cfg.FilesOnly = true

	result, err := search.Search(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
}
