package scanner

import (
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreDirs are directory names always skipped during traversal
// (spec §4.C), regardless of user-supplied ignore globs.
var defaultIgnoreDirs = map[string]struct{}{
	".git":         {},
	"target":       {},
	"node_modules": {},
	"build":        {},
	"dist":         {},
	".venv":        {},
	"__pycache__":  {},
	".cache":       {},
}

// ignoreSet merges the default ignore directories, caller-supplied glob
// patterns, and any .gitignore files discovered along the walk. It is
// read-only once built for a given root and safe for concurrent lookups.
type ignoreSet struct {
	userGlobs []string
	gitignore map[string]*gitignore.GitIgnore // directory -> compiled matcher for it
}

func newIgnoreSet(extra []string) *ignoreSet {
	return &ignoreSet{
		userGlobs: append([]string(nil), extra...),
		gitignore: make(map[string]*gitignore.GitIgnore),
	}
}

// loadGitignore reads a .gitignore file in dir, if present, and compiles its
// patterns for matching against entries within dir.
func (is *ignoreSet) loadGitignore(dir string) {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return
	}

	lines := strings.Split(string(data), "\n")

	matcher := gitignore.CompileIgnoreLines(lines...)
	if matcher != nil {
		is.gitignore[dir] = matcher
	}
}

// isDirIgnored reports whether directory name should be pruned from the
// walk, by default-set membership or a matching user glob.
func (is *ignoreSet) isDirIgnored(fullPath, name string) bool {
	if _, ok := defaultIgnoreDirs[name]; ok {
		return true
	}

	return is.matchesAny(fullPath, name)
}

// isFileIgnored reports whether a regular file should be skipped.
func (is *ignoreSet) isFileIgnored(fullPath, name string) bool {
	if is.matchesAny(fullPath, name) {
		return true
	}

	for dir, matcher := range is.gitignore {
		rel, err := filepath.Rel(dir, fullPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}

		if matcher.MatchesPath(rel) {
			return true
		}
	}

	return false
}

func (is *ignoreSet) matchesAny(fullPath, name string) bool {
	for _, pattern := range is.userGlobs {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}

		if matched, _ := filepath.Match(pattern, fullPath); matched {
			return true
		}
	}

	return false
}
