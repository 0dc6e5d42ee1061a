package langreg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probe-search/probe/pkg/search/langreg"
)

func TestNew_ForPath_ResolvesByExtension(t *testing.T) {
	t.Parallel()

	reg := langreg.New()

	adapter, ok := reg.ForPath("pkg/search/search.go")
	require.True(t, ok)
	assert.Equal(t, "go", adapter.Name)

	adapter, ok = reg.ForPath("src/App.TSX")
	require.True(t, ok)
	assert.Equal(t, "tsx", adapter.Name)
}

func TestForPath_UnknownExtensionReturnsFalse(t *testing.T) {
	t.Parallel()

	reg := langreg.New()

	_, ok := reg.ForPath("README")
	assert.False(t, ok)

	_, ok = reg.ForPath("data.bin")
	assert.False(t, ok)
}

func TestLanguages_ReturnsSortedDeduplicatedNames(t *testing.T) {
	t.Parallel()

	reg := langreg.New()
	names := reg.Languages()

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}

	assert.Contains(t, names, "go")
	assert.Contains(t, names, "python")
}

func TestAdaptersByName_KeyedByLanguageName(t *testing.T) {
	t.Parallel()

	reg := langreg.New()
	byName := reg.AdaptersByName()

	adapter, ok := byName["go"]
	require.True(t, ok)
	assert.Equal(t, "go", adapter.Name)
}

func TestByName_ResolvesCaseInsensitively(t *testing.T) {
	t.Parallel()

	reg := langreg.New()

	adapter, ok := reg.ByName("Python")
	require.True(t, ok)
	assert.Equal(t, "python", adapter.Name)

	_, ok = reg.ByName("not-a-language")
	assert.False(t, ok)
}
