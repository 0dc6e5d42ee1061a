package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/probe-search/probe/pkg/observability"
	"github.com/probe-search/probe/pkg/search"
)

// ToolNameSearchCode is the MCP tool name for the search operation (spec §6.3).
const ToolNameSearchCode = "search_code"

// ErrEmptyQuery indicates the query parameter is empty.
var ErrEmptyQuery = errors.New("query parameter is required and must not be empty")

// SearchCodeInput is the input schema for the search_code tool. It maps
// field-for-field onto search.Config (spec §6.3); Query may be supplied as a
// single string or as a list of terms, joined with a space before being
// handed to the orchestrator as Config.Pattern.
type SearchCodeInput struct {
	Query            json.RawMessage `json:"query"                       jsonschema:"search query: a string or a list of terms"`
	Paths            []string        `json:"paths,omitempty"             jsonschema:"directory roots to search (default: [\".\"])"`
	Ignore           []string        `json:"ignore,omitempty"            jsonschema:"glob patterns added to the default ignore set"`
	Reranker         string          `json:"reranker,omitempty"          jsonschema:"one of hybrid (default), hybrid2, bm25, tfidf"`
	MaxResults       int             `json:"max_results,omitempty"       jsonschema:"maximum number of results"`
	MaxBytes         int             `json:"max_bytes,omitempty"         jsonschema:"maximum total bytes of returned block text"`
	MaxTokens        int             `json:"max_tokens,omitempty"        jsonschema:"maximum total estimated tokens of returned block text"`
	MergeThreshold   int             `json:"merge_threshold,omitempty"   jsonschema:"max line gap for merging adjacent blocks (default: 5)"`
	FilesOnly        bool            `json:"files_only,omitempty"        jsonschema:"return one whole-file block (lines 1..N) per matching file, no AST expansion"`
	IncludeFilenames bool            `json:"include_filenames,omitempty" jsonschema:"include blocks whose path tokens match query terms"`
	FrequencySearch  bool            `json:"frequency_search,omitempty"  jsonschema:"enable stemming and stopword removal (default: true)"`
	Exact            bool            `json:"exact,omitempty"             jsonschema:"lowercased whole-word term matching without stemming or stopword removal, overrides frequency_search"`
	AllowTests       bool            `json:"allow_tests,omitempty"       jsonschema:"include blocks from test files (default: false)"`
	AnyTerm          bool            `json:"any_term,omitempty"          jsonschema:"require any query term instead of all (default: false)"`
	MergeBlocks      bool            `json:"merge_blocks,omitempty"      jsonschema:"merge adjacent blocks in the same file"`
	Language         string          `json:"language,omitempty"          jsonschema:"force a language adapter (by name) for extensionless files"`
}

// handleSearchCode processes search_code tool calls.
func (s *Server) handleSearchCode(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input SearchCodeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	pattern, err := decodeQuery(input.Query)
	if err != nil {
		return errorResult(err)
	}

	cfg := s.buildConfig(pattern, input)

	lenBefore := 0
	if s.queries != nil {
		lenBefore = s.queries.Len()
	}

	result, err := search.Search(ctx, cfg)
	if err != nil {
		return errorResult(fmt.Errorf("search: %w", err))
	}

	if s.queries != nil {
		s.searchMetrics.RecordQueryCacheHit(ctx, s.queries.Len() == lenBefore)
	}

	s.searchMetrics.RecordRun(ctx, observability.SearchRunStats{
		BlocksReturned: len(result.Blocks),
	})

	return jsonResult(result.Blocks)
}

// buildConfig applies the server's configured defaults (spec §6.3:
// "maps field-for-field onto Configuration") before layering the caller's
// explicit input on top, matching search.NewConfig's documented default
// posture (FrequencySearch=true, MergeThreshold=5, Reranker=hybrid).
func (s *Server) buildConfig(pattern string, input SearchCodeInput) search.Config {
	cfg := search.NewConfig(pattern)
	cfg.QueryCache = s.queries

	if s.defs.DefaultReranker != "" {
		cfg.Reranker = search.Reranker(s.defs.DefaultReranker)
	}

	if s.defs.DefaultMaxResults > 0 {
		cfg.MaxResults = s.defs.DefaultMaxResults
	}

	if s.defs.DefaultMergeThreshold > 0 {
		cfg.MergeThreshold = s.defs.DefaultMergeThreshold
	}

	cfg.AllowTests = s.defs.AllowTestsByDefault

	if len(input.Paths) > 0 {
		cfg.Paths = input.Paths
	}

	cfg.Ignore = input.Ignore

	if input.Reranker != "" {
		cfg.Reranker = search.Reranker(input.Reranker)
	}

	if input.MaxResults > 0 {
		cfg.MaxResults = input.MaxResults
	}

	if input.MaxBytes > 0 {
		cfg.MaxBytes = input.MaxBytes
	}

	if input.MaxTokens > 0 {
		cfg.MaxTokens = input.MaxTokens
	}

	if input.MergeThreshold > 0 {
		cfg.MergeThreshold = input.MergeThreshold
	}

	cfg.FilesOnly = input.FilesOnly
	cfg.IncludeFilenames = input.IncludeFilenames
	cfg.Exact = input.Exact
	cfg.AnyTerm = input.AnyTerm
	cfg.MergeBlocks = input.MergeBlocks
	cfg.ForceLanguage = input.Language

	if input.AllowTests {
		cfg.AllowTests = true
	}

	if input.Exact {
		cfg.FrequencySearch = false
	} else if input.FrequencySearch {
		cfg.FrequencySearch = true
	}

	return cfg
}

// decodeQuery accepts the query field as either a JSON string or a JSON
// array of strings, joining array elements with a space (spec §6.3).
func decodeQuery(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyQuery
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.TrimSpace(asString) == "" {
			return "", ErrEmptyQuery
		}

		return asString, nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		joined := strings.Join(asList, " ")
		if strings.TrimSpace(joined) == "" {
			return "", ErrEmptyQuery
		}

		return joined, nil
	}

	return "", fmt.Errorf("%w: query must be a string or list of strings", ErrEmptyQuery)
}
