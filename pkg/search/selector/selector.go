// Package selector implements the Result Selector (spec §4.H): it drops
// test-code blocks unless requested, merges adjacent blocks from the same
// file, re-sorts by score, and truncates to the configured budgets in
// order without reordering.
package selector

import (
	"sort"

	"github.com/probe-search/probe/pkg/search"
)

// Options configures selection.
type Options struct {
	AllowTests     bool
	MergeBlocks    bool
	MergeThreshold int
	MaxResults     int
	MaxBytes       int
	MaxTokens      int
}

// Select applies test filtering, optional adjacent-block merging, a
// re-sort by score, and budget truncation, in that order (spec §4.H).
func Select(blocks []search.ScoredBlock, opts Options) []search.ScoredBlock {
	filtered := filterTests(blocks, opts.AllowTests)

	if opts.MergeBlocks {
		filtered = mergeAdjacent(filtered, opts.MergeThreshold)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}

		if filtered[i].Block.Path != filtered[j].Block.Path {
			return filtered[i].Block.Path < filtered[j].Block.Path
		}

		return filtered[i].Block.StartLine < filtered[j].Block.StartLine
	})

	return truncate(filtered, opts)
}

func filterTests(blocks []search.ScoredBlock, allowTests bool) []search.ScoredBlock {
	if allowTests {
		return blocks
	}

	out := make([]search.ScoredBlock, 0, len(blocks))

	for _, b := range blocks {
		if b.Block.IsTest {
			continue
		}

		out = append(out, b)
	}

	return out
}

// mergeAdjacent combines same-path blocks whose line ranges are within
// threshold lines of each other into a single "merged" block, keeping the
// higher score. Idempotent: running it twice on its own output is a no-op.
func mergeAdjacent(blocks []search.ScoredBlock, threshold int) []search.ScoredBlock {
	if len(blocks) == 0 {
		return blocks
	}

	byPath := make(map[string][]search.ScoredBlock)

	var order []string

	for _, b := range blocks {
		if _, ok := byPath[b.Block.Path]; !ok {
			order = append(order, b.Block.Path)
		}

		byPath[b.Block.Path] = append(byPath[b.Block.Path], b)
	}

	var out []search.ScoredBlock

	for _, path := range order {
		group := byPath[path]

		sort.Slice(group, func(i, j int) bool { return group[i].Block.StartLine < group[j].Block.StartLine })

		merged := []search.ScoredBlock{group[0]}

		for _, b := range group[1:] {
			last := &merged[len(merged)-1]

			if b.Block.StartLine-last.Block.EndLine <= threshold {
				*last = mergeTwo(*last, b)

				continue
			}

			merged = append(merged, b)
		}

		out = append(out, merged...)
	}

	return out
}

func mergeTwo(a, b search.ScoredBlock) search.ScoredBlock {
	if b.Block.EndLine > a.Block.EndLine {
		a.Block.EndLine = b.Block.EndLine
	}

	if b.Block.StartLine < a.Block.StartLine {
		a.Block.StartLine = b.Block.StartLine
	}

	hits := make(map[int]struct{})
	for _, l := range a.Block.HitLines() {
		hits[l] = struct{}{}
	}

	for _, l := range b.Block.HitLines() {
		hits[l] = struct{}{}
	}

	a.Block.SetHitLines(hits)
	a.Block.NodeKind = "merged"
	a.Block.IsTest = a.Block.IsTest && b.Block.IsTest

	if b.Score > a.Score {
		a.Score = b.Score
		a.Components = b.Components
	}

	return a
}

// truncate applies max_results, then max_bytes, then max_tokens, greedily
// and without reordering (spec §4.H "budgets apply in order, no
// reordering"). A zero bound means unlimited.
func truncate(blocks []search.ScoredBlock, opts Options) []search.ScoredBlock {
	out := blocks

	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}

	if opts.MaxBytes > 0 {
		out = truncateByBytes(out, opts.MaxBytes)
	}

	if opts.MaxTokens > 0 {
		out = truncateByTokens(out, opts.MaxTokens)
	}

	return out
}

func truncateByBytes(blocks []search.ScoredBlock, maxBytes int) []search.ScoredBlock {
	used := 0

	for i, b := range blocks {
		used += len(b.Block.Text)
		if used > maxBytes {
			return blocks[:i]
		}
	}

	return blocks
}

// truncateByTokens estimates token count at one token per four bytes of
// block text, a conservative whole-word approximation (spec §4.H does not
// mandate a specific tokenizer for the budget check).
func truncateByTokens(blocks []search.ScoredBlock, maxTokens int) []search.ScoredBlock {
	used := 0

	for i, b := range blocks {
		used += estimateTokens(b.Block.Text)
		if used > maxTokens {
			return blocks[:i]
		}
	}

	return blocks
}

func estimateTokens(text string) int {
	const bytesPerToken = 4

	tokens := len(text) / bytesPerToken
	if tokens == 0 && len(text) > 0 {
		tokens = 1
	}

	return tokens
}
