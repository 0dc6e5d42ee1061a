// Package langreg implements the Language Registry (spec §4.A): a static
// mapping from file extension to Language Adapter.
package langreg

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/probe-search/probe/pkg/search/lang"
)

// Registry is a read-only, extension-keyed map of Language Adapters. Safe
// for concurrent use by multiple scanner/extractor workers (spec §5
// "Language Registry is read-only after initialization").
type Registry struct {
	byExtension map[string]*lang.Adapter
}

// New builds a Registry covering every adapter in lang.All.
func New() *Registry {
	return newFrom(lang.All())
}

func newFrom(adapters []*lang.Adapter) *Registry {
	reg := &Registry{byExtension: make(map[string]*lang.Adapter)}

	for _, adapter := range adapters {
		for _, ext := range adapter.Extensions {
			reg.byExtension[strings.ToLower(ext)] = adapter
		}
	}

	return reg
}

// ForPath returns the Language Adapter for path's extension, and whether
// one was found. Files with any other extension are processed in
// "line-only" mode (spec §4.A): no adapter, no AST expansion.
func (r *Registry) ForPath(path string) (*lang.Adapter, bool) {
	ext := extensionOf(path)
	if ext == "" {
		return nil, false
	}

	adapter, ok := r.byExtension[ext]

	return adapter, ok
}

// ByName returns the Language Adapter registered under the given language
// name (case-insensitive), for callers that need to force an adapter by
// name rather than resolve one from a file extension (spec's
// "--language override flag" supplemented feature, for extensionless
// files such as shebang scripts).
func (r *Registry) ByName(name string) (*lang.Adapter, bool) {
	name = strings.ToLower(name)

	for _, adapter := range r.byExtension {
		if strings.ToLower(adapter.Name) == name {
			return adapter, true
		}
	}

	return nil, false
}

// AdaptersByName returns the registry's adapters keyed by language name,
// for callers (the hybrid2 ranker) that need to look one up by the name
// recorded on a Block rather than by file path.
func (r *Registry) AdaptersByName() map[string]*lang.Adapter {
	out := make(map[string]*lang.Adapter)

	for _, adapter := range r.byExtension {
		out[adapter.Name] = adapter
	}

	return out
}

// Languages returns the sorted, deduplicated list of supported language
// names.
func (r *Registry) Languages() []string {
	seen := make(map[string]struct{})

	names := make([]string, 0, len(r.byExtension))

	for _, adapter := range r.byExtension {
		if _, ok := seen[adapter.Name]; ok {
			continue
		}

		seen[adapter.Name] = struct{}{}

		names = append(names, adapter.Name)
	}

	sort.Strings(names)

	return names
}

func extensionOf(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}

	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
