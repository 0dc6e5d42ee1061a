// Package query implements the Query Processor (spec §4.E): it tokenizes
// the raw search pattern into a deduplicated term list, applies stopword
// removal and stemming in frequency mode, and compiles the word-boundary
// regular expressions the scanner and ranker use.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// Processed is the Query Processor's output: the regex consumed by the
// scanner for fast line matching, the per-term regexes used to attribute a
// match to a term, and the deduplicated term strings used by the indexer.
type Processed struct {
	Combined     *regexp.Regexp
	TermPatterns []*regexp.Regexp
	Terms        []string
}

// tokenPattern splits on anything that is not a letter, digit, or
// underscore, which keeps snake_case identifiers intact as single tokens
// (spec §4.E).
var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// stopwords are removed only in frequency-search mode; exact mode never
// drops a token the caller typed.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "is": {}, "it": {}, "for": {}, "on": {}, "with": {}, "as": {},
	"by": {}, "at": {}, "be": {}, "this": {}, "that": {}, "from": {},
}

// Process tokenizes pattern and compiles it into a Processed query.
//
// In exact mode, tokens are lowercased only. In frequency mode (the
// default), stopwords are removed and remaining tokens are Porter-stemmed;
// a token that stems to the empty string, or a query that would be
// stopword-emptied entirely, falls back to its original unstemmed form so a
// query never becomes unmatchable (spec §4.E edge case).
func Process(pattern string, exact bool) (Processed, error) {
	raw := tokenPattern.FindAllString(pattern, -1)

	terms := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, tok := range raw {
		term := strings.ToLower(tok)

		if !exact {
			if _, stop := stopwords[term]; stop && len(raw) > 1 {
				continue
			}

			term = stem(term)
		}

		if _, dup := seen[term]; dup {
			continue
		}

		seen[term] = struct{}{}

		terms = append(terms, term)
	}

	if len(terms) == 0 {
		for _, tok := range raw {
			term := strings.ToLower(tok)
			if _, dup := seen[term]; dup {
				continue
			}

			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}

	if len(terms) == 0 {
		return Processed{}, fmt.Errorf("query: %w", errEmptyPattern)
	}

	termPatterns := make([]*regexp.Regexp, len(terms))

	for i, term := range terms {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			return Processed{}, fmt.Errorf("query: compile term %q: %w", term, err)
		}

		termPatterns[i] = re
	}

	combined, err := regexp.Compile(`(?i)` + strings.Join(quoteAll(terms), "|"))
	if err != nil {
		return Processed{}, fmt.Errorf("query: compile combined pattern: %w", err)
	}

	return Processed{Combined: combined, TermPatterns: termPatterns, Terms: terms}, nil
}

func quoteAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = `\b` + regexp.QuoteMeta(t) + `\b`
	}

	return out
}

// stem applies Porter stemming via kljensen/snowball, falling back to the
// original token when stemming would otherwise empty it.
func stem(term string) string {
	stemmed, err := snowball.Stem(term, "english", true)
	if err != nil || stemmed == "" {
		return term
	}

	return stemmed
}

var errEmptyPattern = fmt.Errorf("pattern produced no searchable terms")
