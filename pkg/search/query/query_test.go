package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probe-search/probe/pkg/search/query"
)

func TestProcess_FrequencyMode_StemsAndDropsStopwords(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("parsing the configuration", false)
	require.NoError(t, err)

	assert.NotContains(t, processed.Terms, "the")
	assert.Contains(t, processed.Terms, "pars")
	assert.Contains(t, processed.Terms, "configur")
}

func TestProcess_ExactMode_NeverStemsOrDropsStopwords(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("parsing the configuration", true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"parsing", "the", "configuration"}, processed.Terms)
}

func TestProcess_PreservesSnakeCaseIdentifier(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("max_results", true)
	require.NoError(t, err)

	assert.Equal(t, []string{"max_results"}, processed.Terms)
}

func TestProcess_StopwordOnlyQueryFallsBackUnstemmed(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("the", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"the"}, processed.Terms)
}

func TestProcess_EmptyPatternErrors(t *testing.T) {
	t.Parallel()

	_, err := query.Process("   ---   ", false)
	require.Error(t, err)
}

func TestProcess_DeduplicatesTerms(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("parse parse parsing", false)
	require.NoError(t, err)

	assert.Len(t, processed.Terms, len(uniqueStrings(processed.Terms)))
}

func TestProcess_CombinedPatternMatchesAnyTerm(t *testing.T) {
	t.Parallel()

	processed, err := query.Process("config reranker", true)
	require.NoError(t, err)

	assert.True(t, processed.Combined.MatchString("the Reranker selects a strategy"))
	assert.False(t, processed.Combined.MatchString("unrelated text entirely"))
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))

	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}

		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}
