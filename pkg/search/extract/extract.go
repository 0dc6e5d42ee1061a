// Package extract implements the Block Extractor (spec §4.D), the central
// algorithm of the search pipeline: given a file's matching lines, it climbs
// the parsed AST from each hit to the smallest enclosing acceptable-parent
// node, merges overlapping candidates, and falls back to a line-only block
// when no adapter or no enclosing node is available.
package extract

import (
	"context"

	"github.com/probe-search/probe/pkg/search"
	"github.com/probe-search/probe/pkg/search/lang"
	"github.com/probe-search/probe/pkg/search/scanner"
)

// lineIndex maps 1-based line numbers to byte offsets, built once per file
// so block text can be sliced without re-scanning.
type lineIndex struct {
	starts []int // starts[i] = byte offset of the start of line i+1
}

func buildLineIndex(source []byte) *lineIndex {
	starts := []int{0}

	// A trailing newline ends the last line; it does not open a new one.
	for i, b := range source {
		if b == '\n' && i+1 < len(source) {
			starts = append(starts, i+1)
		}
	}

	return &lineIndex{starts: starts}
}

func (li *lineIndex) numLines() int {
	return len(li.starts)
}

func (li *lineIndex) textRange(source []byte, startLine, endLine int) string {
	if startLine < 1 {
		startLine = 1
	}

	if endLine > li.numLines() {
		endLine = li.numLines()
	}

	startOff := li.starts[startLine-1]

	var endOff int
	if endLine >= li.numLines() {
		endOff = len(source)
	} else {
		endOff = li.starts[endLine]
	}

	if endOff > startOff && source[endOff-1] == '\n' {
		endOff--
	}

	return string(source[startOff:endOff])
}

// candidate is a raw, pre-merge block span discovered from one or more hit
// lines.
type candidate struct {
	start, end int
	kind       string
	node       lang.Node
	hasNode    bool
}

// Blocks extracts candidate Blocks for one file's hits. adapter may be nil
// (unsupported extension); if adapter is non-nil but parsing fails, Blocks
// falls back to line-only mode for every hit, per spec §4.D "unparseable
// or unsupported files degrade to whole-line blocks".
func Blocks(ctx context.Context, adapter *lang.Adapter, source []byte, path string, hits []scanner.Hit) ([]search.Block, error) {
	li := buildLineIndex(source)

	if len(hits) == 1 && hits[0].Line == 0 {
		return []search.Block{wholeFileBlock(path, source, li, adapter)}, nil
	}

	var tree *lang.Tree

	if adapter != nil {
		parsed, err := adapter.Parse(ctx, source)
		if err == nil {
			tree = parsed
			defer tree.Close()
		}
	}

	candidates := make([]candidate, 0, len(hits))

	for _, hit := range hits {
		if tree != nil {
			if c, ok := climbToAcceptable(adapter, tree.Root, source, hit.Line); ok {
				candidates = append(candidates, c)

				continue
			}
		}

		candidates = append(candidates, lineOnlyCandidate(hit.Line))
	}

	merged := mergeCandidates(candidates)

	blocks := make([]search.Block, 0, len(merged))

	for _, c := range merged {
		blocks = append(blocks, buildBlock(path, source, li, adapter, c))
	}

	attachHits(blocks, hits)

	return blocks, nil
}

func wholeFileBlock(path string, source []byte, li *lineIndex, adapter *lang.Adapter) search.Block {
	language := ""
	if adapter != nil {
		language = adapter.Name
	}

	isTest := adapter != nil && adapter.IsTestFile(path)

	b := search.Block{
		Path:      path,
		Language:  language,
		NodeKind:  "file",
		Text:      li.textRange(source, 1, li.numLines()),
		StartLine: 1,
		EndLine:   li.numLines(),
		IsTest:    isTest,
	}
	b.AddHitLine(0)

	return b
}

// climbToAcceptable descends to the deepest node covering line, then climbs
// back up to the nearest acceptable-parent ancestor, expanding over any
// immediately preceding comment/attribute/decorator siblings.
func climbToAcceptable(adapter *lang.Adapter, root lang.Node, source []byte, line int) (candidate, bool) {
	deepest, ok := deepestNodeForLine(root, line)
	if !ok {
		return candidate{}, false
	}

	for n := deepest; !n.IsNull(); n = n.Parent() {
		if !adapter.IsAcceptableParent(n.Type()) {
			continue
		}

		start, end := nodeLineRange(n)
		start = expandOverLeadingComments(n, start)

		return candidate{start: start, end: end, kind: n.Type(), node: n, hasNode: true}, true
	}

	return candidate{}, false
}

// deepestNodeForLine returns the most deeply nested node whose span covers
// the given 1-based line.
func deepestNodeForLine(root lang.Node, line int) (lang.Node, bool) {
	row := uint32(line - 1)

	current := root
	found := false

	for {
		if current.StartPoint().Row > row || current.EndPoint().Row < row {
			break
		}

		found = true

		var next lang.Node

		nextFound := false

		count := int(current.NamedChildCount())
		for i := 0; i < count; i++ {
			child := current.NamedChild(i)
			if child.StartPoint().Row <= row && child.EndPoint().Row >= row {
				next = child
				nextFound = true

				break
			}
		}

		if !nextFound {
			break
		}

		current = next
	}

	return current, found
}

func nodeLineRange(n lang.Node) (int, int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

// expandOverLeadingComments walks preceding siblings of n that are
// comment-shaped and contiguous (no blank line gap) with the node above
// them, absorbing doc comments and attributes into the block (spec §4.D).
func expandOverLeadingComments(n lang.Node, start int) int {
	prevEnd := start

	for sib := n.PrevSibling(); !sib.IsNull(); sib = sib.PrevSibling() {
		if !isCommentLike(sib.Type()) {
			break
		}

		sibStart, sibEnd := nodeLineRange(sib)
		if prevEnd-sibEnd > 1 {
			break
		}

		start = sibStart
		prevEnd = sibStart
	}

	return start
}

func isCommentLike(kind string) bool {
	switch kind {
	case "comment", "line_comment", "block_comment", "attribute_item", "decorator":
		return true
	default:
		return false
	}
}

func lineOnlyCandidate(line int) candidate {
	return candidate{start: line, end: line, kind: "line"}
}

// mergeCandidates sorts by start line and collapses spans that overlap or
// are equal, keeping the outer span (spec §4.D "if two candidates overlap
// or are equal, keep the one with the outer span"). Merely adjacent spans
// (no overlap) are left as separate blocks; that merge is the Selector's
// separate, opt-in merge_blocks feature (spec §4.H).
func mergeCandidates(cs []candidate) []candidate {
	if len(cs) == 0 {
		return nil
	}

	sorted := make([]candidate, len(cs))
	copy(sorted, cs)

	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].start > sorted[j].start; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	merged := []candidate{sorted[0]}

	for _, c := range sorted[1:] {
		last := &merged[len(merged)-1]

		if c.start <= last.end {
			if c.end > last.end {
				last.end = c.end
				last.kind = c.kind
				last.node = c.node
				last.hasNode = c.hasNode
			}

			continue
		}

		merged = append(merged, c)
	}

	return merged
}

func buildBlock(path string, source []byte, li *lineIndex, adapter *lang.Adapter, c candidate) search.Block {
	language := ""
	if adapter != nil {
		language = adapter.Name
	}

	isTest := false
	if adapter != nil {
		if c.hasNode {
			isTest = adapter.IsTestNode(c.node, source) || adapter.IsTestFile(path)
		} else {
			isTest = adapter.IsTestFile(path)
		}
	}

	return search.Block{
		Path:      path,
		Language:  language,
		NodeKind:  c.kind,
		Text:      li.textRange(source, c.start, c.end),
		StartLine: c.start,
		EndLine:   c.end,
		IsTest:    isTest,
	}
}

// attachHits records which original hit lines fall within each block's
// final range, for downstream hit_density scoring (spec §4.G).
func attachHits(blocks []search.Block, hits []scanner.Hit) {
	for i := range blocks {
		b := &blocks[i]

		for _, h := range hits {
			if h.Line >= b.StartLine && h.Line <= b.EndLine {
				b.AddHitLine(h.Line)
			}
		}
	}
}
