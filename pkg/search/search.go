package search

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/probe-search/probe/pkg/search/extract"
	"github.com/probe-search/probe/pkg/search/index"
	"github.com/probe-search/probe/pkg/search/langreg"
	"github.com/probe-search/probe/pkg/search/query"
	"github.com/probe-search/probe/pkg/search/rank"
	"github.com/probe-search/probe/pkg/search/scanner"
	"github.com/probe-search/probe/pkg/search/selector"
)

// Search runs the full pipeline (query → scan → extract → index → rank →
// select) and is the sole public entry point to this package (spec §6.1,
// §4.I orchestrator). It wires the Language Registry, File Scanner, Block
// Extractor, Index/Statistics, Rankers, and Result Selector in sequence,
// checking ctx for cancellation between each stage.
func Search(ctx context.Context, cfg Config) (Result, error) {
	cfg, err := cfg.Normalize()
	if err != nil {
		return Result{}, err
	}

	if err := checkPaths(cfg.Paths); err != nil {
		return Result{}, err
	}

	processed, err := processQuery(cfg)
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	registry := langreg.New()

	fileHits, err := scanner.Scan(ctx, cfg.Paths, processed.Combined, processed.TermPatterns, scanner.Options{
		Ignore:      cfg.Ignore,
		FilesOnly:   cfg.FilesOnly,
		Concurrency: runtime.GOMAXPROCS(0),
	})
	if err != nil {
		return Result{}, fmt.Errorf("search: %w", err)
	}

	if ctx.Err() != nil {
		return Result{Cancelled: true}, ErrCancelled
	}

	blocks, err := extractAll(ctx, registry, fileHits, cfg.ForceLanguage)
	if err != nil {
		return Result{}, err
	}

	if ctx.Err() != nil {
		return Result{Cancelled: true}, ErrCancelled
	}

	requireAll := !cfg.AnyTerm
	stats := index.Build(blocks, processed.Terms, requireAll, cfg.IncludeFilenames)

	scored := rank.Rank(stats, processed.Terms, cfg.Reranker, registry.AdaptersByName())

	if ctx.Err() != nil {
		return Result{Cancelled: true}, ErrCancelled
	}

	selected := selector.Select(scored, selector.Options{
		AllowTests:     cfg.AllowTests,
		MergeBlocks:    cfg.MergeBlocks,
		MergeThreshold: cfg.MergeThreshold,
		MaxResults:     cfg.MaxResults,
		MaxBytes:       cfg.MaxBytes,
		MaxTokens:      cfg.MaxTokens,
	})

	if cfg.FilesOnly {
		selected = dedupeFiles(selected)
	}

	return Result{Blocks: selected}, nil
}

// processQuery runs query.Process directly, or through cfg.QueryCache when
// the caller supplied one (see Config.QueryCache).
func processQuery(cfg Config) (query.Processed, error) {
	if cfg.QueryCache != nil {
		return cfg.QueryCache.Process(cfg.Pattern, cfg.Exact)
	}

	return query.Process(cfg.Pattern, cfg.Exact)
}

func checkPaths(paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrPathNotFound, p)
		}

		if info.IsDir() {
			f, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrPathNotReadable, p)
			}

			f.Close()
		}
	}

	return nil
}

// extractAll runs the Block Extractor over every file's hits concurrently,
// bounded by GOMAXPROCS, grounded on the same worker-pool shape the scanner
// uses (spec §5 "concurrency model is uniform across stages").
func extractAll(ctx context.Context, registry *langreg.Registry, fileHits []scanner.FileHits, forceLanguage string) ([]Block, error) {
	concurrency := runtime.GOMAXPROCS(0)

	jobs := make(chan scanner.FileHits)
	results := make(chan []Block, concurrency)

	var wg sync.WaitGroup

	for range concurrency {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for fh := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				adapter, ok := registry.ForPath(fh.Path)
				if !ok && forceLanguage != "" {
					adapter, _ = registry.ByName(forceLanguage)
				}

				blocks, err := extract.Blocks(ctx, adapter, fh.Source, fh.Path, fh.Hits)
				if err != nil {
					continue
				}

				results <- blocks
			}
		}()
	}

	go func() {
		defer close(jobs)

		for _, fh := range fileHits {
			select {
			case <-ctx.Done():
				return
			case jobs <- fh:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []Block
	for blocks := range results {
		all = append(all, blocks...)
	}

	return all, nil
}

// dedupeFiles collapses files_only results to one entry per path, since
// every hit in that mode is the same synthetic whole-file block.
func dedupeFiles(blocks []ScoredBlock) []ScoredBlock {
	seen := make(map[string]struct{}, len(blocks))

	out := make([]ScoredBlock, 0, len(blocks))

	for _, b := range blocks {
		if _, ok := seen[b.Block.Path]; ok {
			continue
		}

		seen[b.Block.Path] = struct{}{}

		out = append(out, b)
	}

	return out
}
