// Package lang implements per-language Language Adapters (spec §4.B): each
// adapter knows how to parse a file with tree-sitter, which node kinds count
// as a "complete code block", and which nodes/files are test code.
package lang

import (
	"context"
	"fmt"
	"sync"

	forest "github.com/alexaandru/go-sitter-forest"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Node is a tree-sitter concrete syntax tree node. Re-exported so callers
// outside this package (extract, index) never need to import
// go-tree-sitter-bare directly.
type Node = sitter.Node

// Tree owns a parsed tree-sitter tree and the source bytes it was parsed
// from. Callers must call Close once finished with it (spec §9 "AST
// ownership": tree and source are dropped together after block extraction).
type Tree struct {
	tree   *sitter.Tree
	Root   Node
	Source []byte
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
	}
}

// Adapter is the per-language capability set described in spec §4.B.
type Adapter struct {
	// Name is the tree-sitter grammar name understood by go-sitter-forest.
	Name string

	// Extensions are the lowercase file extensions (without the leading
	// dot) this adapter claims, per spec §4.A.
	Extensions []string

	// AcceptableParents is the set of node kinds considered "complete code
	// blocks" for this language.
	AcceptableParents map[string]struct{}

	// ContainerParents is the subset of node kinds treated as
	// module/namespace containers for hybrid2's structural_bonus signal
	// (0.5, vs. 1.0 for function/method/struct/class/impl kinds).
	ContainerParents map[string]struct{}

	// IsTestNode reports whether the given node (already known to be an
	// AcceptableParents match) is test code, given the full file source.
	IsTestNode func(n Node, source []byte) bool

	// IsTestFile reports whether a path (by name, not content) is test
	// code, e.g. `*_test.go` or `test_*.py`.
	IsTestFile func(path string) bool

	language     *sitter.Language
	languageOnce sync.Once
}

// newAdapter builds an Adapter and resolves its tree-sitter language lazily
// on first Parse call, so package init never touches cgo.
func newAdapter(name string, exts []string, acceptable, containers []string, isTestNode func(Node, []byte) bool, isTestFile func(string) bool) *Adapter {
	acceptSet := make(map[string]struct{}, len(acceptable))
	for _, k := range acceptable {
		acceptSet[k] = struct{}{}
	}

	containerSet := make(map[string]struct{}, len(containers))
	for _, k := range containers {
		containerSet[k] = struct{}{}
	}

	return &Adapter{
		Name:              name,
		Extensions:        exts,
		AcceptableParents: acceptSet,
		ContainerParents:  containerSet,
		IsTestNode:        isTestNode,
		IsTestFile:        isTestFile,
	}
}

// IsAcceptableParent reports whether kind is a complete code block kind for
// this adapter.
func (a *Adapter) IsAcceptableParent(kind string) bool {
	_, ok := a.AcceptableParents[kind]

	return ok
}

// StructuralBonusFor returns hybrid2's structural_bonus weight for a node
// kind: 1.0 for function/method/struct/class/impl-like kinds, 0.5 for
// module/namespace containers, 0.0 otherwise (spec §4.G).
func (a *Adapter) StructuralBonusFor(kind string) float64 {
	if _, ok := a.AcceptableParents[kind]; ok {
		if _, isContainer := a.ContainerParents[kind]; isContainer {
			return 0.5
		}

		return 1.0
	}

	return 0.0
}

// Parse parses source with this adapter's tree-sitter grammar. It is
// resilient to syntax errors: tree-sitter always returns a best-effort
// tree, so the only failure mode is an unresolvable grammar (spec §4.B,
// §7 "the core never aborts on malformed source").
func (a *Adapter) Parse(ctx context.Context, source []byte) (*Tree, error) {
	a.languageOnce.Do(func() { a.language = forest.GetLanguage(a.Name) })

	if a.language == nil {
		return nil, fmt.Errorf("%w: %s", errGrammarUnavailable, a.Name)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(a.language)

	tree, err := parser.ParseString(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", a.Name, err)
	}

	return &Tree{tree: tree, Root: tree.RootNode(), Source: source}, nil
}

var errGrammarUnavailable = fmt.Errorf("tree-sitter grammar unavailable")
