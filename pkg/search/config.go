package search

import (
	"errors"
	"fmt"

	"github.com/probe-search/probe/pkg/search/cache"
)

// Reranker selects one of the four interchangeable scoring strategies.
type Reranker string

// Supported reranker names (spec §6.1).
const (
	RerankerHybrid  Reranker = "hybrid"
	RerankerHybrid2 Reranker = "hybrid2"
	RerankerBM25    Reranker = "bm25"
	RerankerTFIDF   Reranker = "tfidf"
)

// defaultMergeThreshold is the default line gap (inclusive) under which two
// adjacent blocks in the same file are merged.
const defaultMergeThreshold = 5

// Config is the Orchestrator's single input, covering every recognized
// option from spec §6.1. Zero-value booleans are all "off"; build a Config
// via NewConfig to pick up the documented defaults (FrequencySearch=true,
// MergeThreshold=5) before overriding fields on the returned value.
type Config struct {
	// Pattern is the user query. Required.
	Pattern string

	// Paths lists the directory roots to search. Defaults to ["."].
	Paths []string

	// Ignore adds glob patterns to the default ignore set.
	Ignore []string

	// Reranker selects the scoring strategy. Defaults to RerankerHybrid.
	Reranker Reranker

	// MaxResults, MaxBytes, MaxTokens are optional budgets. Zero means
	// unset (no truncation on that dimension).
	MaxResults int
	MaxBytes   int
	MaxTokens  int

	// MergeThreshold is the maximum line gap honored by MergeBlocks.
	MergeThreshold int

	FilesOnly        bool
	IncludeFilenames bool
	FrequencySearch  bool
	Exact            bool
	AllowTests       bool
	AnyTerm          bool
	MergeBlocks      bool

	// ForceLanguage names a Language Adapter (by its registry name, e.g.
	// "python") to use for files the Language Registry can't resolve from
	// their extension alone, such as extensionless shebang scripts. Files
	// with a recognized extension are unaffected.
	ForceLanguage string

	// QueryCache, when set, memoizes query.Process across calls sharing this
	// Config's cache instance. Nil (the default) keeps the orchestrator
	// itself stateless between invocations (spec §5 "no global mutable
	// state during a search"); long-running callers such as the MCP server
	// set this once and reuse it across tool calls.
	QueryCache *cache.QueryCache
}

// NewConfig returns a Config with every documented default applied
// (§6.1: FrequencySearch=true, MergeThreshold=5, Reranker=hybrid, Paths=["."]),
// ready for the caller to override individual fields before Normalize.
func NewConfig(pattern string) Config {
	return Config{
		Pattern:         pattern,
		Paths:           []string{"."},
		Reranker:        RerankerHybrid,
		FrequencySearch: true,
		MergeThreshold:  defaultMergeThreshold,
	}
}

// Sentinel configuration errors (spec §7, "Configuration error").
var (
	ErrEmptyPattern      = errors.New("pattern is required")
	ErrUnknownReranker   = errors.New("unknown reranker")
	ErrNegativeLimit     = errors.New("limit must be a positive integer")
	ErrNegativeThreshold = errors.New("merge threshold must not be negative")
)

// Normalize fills in any still-zero defaults and validates the
// configuration. It returns a new Config; the receiver is left untouched.
// Exact, when set, always overrides FrequencySearch (§6.1).
func (c Config) Normalize() (Config, error) {
	normalized := c

	if normalized.Pattern == "" {
		return Config{}, ErrEmptyPattern
	}

	if len(normalized.Paths) == 0 {
		normalized.Paths = []string{"."}
	}

	if normalized.Reranker == "" {
		normalized.Reranker = RerankerHybrid
	}

	switch normalized.Reranker {
	case RerankerHybrid, RerankerHybrid2, RerankerBM25, RerankerTFIDF:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownReranker, normalized.Reranker)
	}

	if normalized.Exact {
		normalized.FrequencySearch = false
	}

	if normalized.MergeThreshold == 0 && normalized.MergeBlocks {
		normalized.MergeThreshold = defaultMergeThreshold
	}

	if normalized.MergeThreshold < 0 {
		return Config{}, fmt.Errorf("%w: %d", ErrNegativeThreshold, normalized.MergeThreshold)
	}

	for name, value := range map[string]int{
		"max_results": normalized.MaxResults,
		"max_bytes":   normalized.MaxBytes,
		"max_tokens":  normalized.MaxTokens,
	} {
		if value < 0 {
			return Config{}, fmt.Errorf("%w: %s=%d", ErrNegativeLimit, name, value)
		}
	}

	return normalized, nil
}
