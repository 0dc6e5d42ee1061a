// Package index implements the Index/Statistics component (spec §4.F): it
// tokenizes each candidate block's text with identifier-aware splitting,
// computes the per-term and per-block statistics the rankers need, and
// applies the any_term/all_term gate.
package index

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/probe-search/probe/pkg/search"
)

// BlockStats holds the term-frequency statistics for one block, keyed by
// the query's own term strings so the ranker can look them up directly.
type BlockStats struct {
	Block        search.Block
	TermCounts   map[string]int
	LengthTokens int
	FilenameHit  bool
}

// Stats is the corpus-level view handed to the rankers: per-block
// statistics plus document-frequency and average-length aggregates.
type Stats struct {
	Blocks        []BlockStats
	DocFreq       map[string]int
	TotalDocs     int
	AvgLenTokens  float64
}

// wordBoundary matches the same token shape as the Query Processor's
// tokenPattern (query.go), including underscore, so a raw identifier like
// "get_user_name" is captured whole rather than split at the regex stage
// into "get", "user", "name" before splitCompound ever sees it.
var wordBoundary = regexp.MustCompile(`[A-Za-z0-9_]+`)

// Build tokenizes every block's text and produces the Stats the rankers
// operate over, gated by requireAllTerms (spec §4.F any_term vs all_term).
func Build(blocks []search.Block, terms []string, requireAllTerms, includeFilenames bool) Stats {
	docFreq := make(map[string]int, len(terms))

	out := make([]BlockStats, 0, len(blocks))

	totalTokens := 0

	for _, b := range blocks {
		counts := tokenize(b.Text)

		filenameHit := false
		if includeFilenames {
			filenameCounts := tokenize(b.Path)
			filenameHit = matchesAnyTerm(filenameCounts, terms)
		}

		if !matchesGate(counts, terms, requireAllTerms, filenameHit) {
			continue
		}

		length := 0
		for _, c := range counts {
			length += c
		}

		for _, term := range terms {
			if counts[term] > 0 {
				docFreq[term]++
			}
		}

		out = append(out, BlockStats{
			Block:        b,
			TermCounts:   counts,
			LengthTokens: length,
			FilenameHit:  filenameHit,
		})

		totalTokens += length
	}

	avg := 0.0
	if len(out) > 0 {
		avg = float64(totalTokens) / float64(len(out))
	}

	return Stats{Blocks: out, DocFreq: docFreq, TotalDocs: len(out), AvgLenTokens: avg}
}

func matchesGate(counts map[string]int, terms []string, requireAll, filenameHit bool) bool {
	if filenameHit {
		return true
	}

	if requireAll {
		for _, t := range terms {
			if counts[t] == 0 {
				return false
			}
		}

		return len(terms) > 0
	}

	return matchesAnyTerm(counts, terms)
}

func matchesAnyTerm(counts map[string]int, terms []string) bool {
	for _, t := range terms {
		if counts[t] > 0 {
			return true
		}
	}

	return false
}

// tokenize splits text into raw alphanumeric tokens, then expands every
// compound identifier into its snake_case/camelCase parts, lowercasing
// everything. The compound form itself is also counted so an exact
// identifier match still scores.
func tokenize(text string) map[string]int {
	counts := make(map[string]int)

	for _, raw := range wordBoundary.FindAllString(text, -1) {
		lower := strings.ToLower(raw)
		counts[lower]++

		for _, part := range splitCompound(raw) {
			if part == lower {
				continue
			}

			counts[part]++
		}
	}

	return counts
}

// splitCompound breaks a single identifier token on underscores and
// camelCase boundaries, returning lowercased parts.
func splitCompound(token string) []string {
	var parts []string

	var current []rune

	runes := []rune(token)

	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.ToLower(string(current)))
			current = nil
		}
	}

	for i, r := range runes {
		switch {
		case r == '_':
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()

			current = append(current, r)
		default:
			current = append(current, r)
		}
	}

	flush()

	if len(parts) <= 1 {
		return nil
	}

	return parts
}
