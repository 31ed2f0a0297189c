package astbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackend_Supports(t *testing.T) {
	b := NewBackend()
	assert.True(t, b.Supports("go"))
	assert.True(t, b.Supports("python"))
	assert.True(t, b.Supports("c"))
	assert.False(t, b.Supports("toml"))
	assert.False(t, b.Supports("nonexistent-language"))
}

func TestBackend_Parse_Go(t *testing.T) {
	b := NewBackend()
	source := []byte("package main\n\nfunc main() {}\n")

	tree, err := b.Parse("go", source)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "go", tree.Language)
	assert.Equal(t, "ast", tree.Backend)
	assert.False(t, tree.Root.HasError)
	assert.NotEmpty(t, tree.Root.Children)
}

func TestBackend_Parse_UnknownLanguageReturnsBackendError(t *testing.T) {
	b := NewBackend()
	_, err := b.Parse("nonexistent-language", []byte("x"))
	assert.Error(t, err)
}

func TestBackend_Parse_ReusesPooledParserAcrossCalls(t *testing.T) {
	b := NewBackend()
	source := []byte("package main\n\nfunc main() {}\n")

	for i := 0; i < 3; i++ {
		tree, err := b.Parse("go", source)
		require.NoError(t, err)
		require.NotNil(t, tree.Root)
	}
}

func TestBackend_CompileQueryAndRunQuery_Go(t *testing.T) {
	b := NewBackend()
	source := []byte("package main\n\nfunc greet() {}\n")

	tree, err := b.Parse("go", source)
	require.NoError(t, err)

	query, err := b.CompileQuery("go", `(function_declaration name: (identifier) @function.name) @function`)
	require.NoError(t, err)
	require.NotNil(t, query)

	captures, err := b.RunQuery(tree, query)
	require.NoError(t, err)
	require.NotEmpty(t, captures)

	var names []string
	for _, c := range captures {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "function.name")
}

func TestBackend_CompileQuery_UnknownLanguageErrors(t *testing.T) {
	b := NewBackend()
	_, err := b.CompileQuery("nonexistent-language", "(identifier)")
	assert.Error(t, err)
}

func TestBackend_DefaultPatternSource_KnownLanguageReturnsUsableQuery(t *testing.T) {
	b := NewBackend()
	source, ok := b.DefaultPatternSource("go")
	require.True(t, ok)
	require.NotEmpty(t, source)

	query, err := b.CompileQuery("go", source)
	require.NoError(t, err)
	require.NotNil(t, query)
}

func TestBackend_DefaultPatternSource_UnknownLanguageReturnsFalse(t *testing.T) {
	b := NewBackend()
	_, ok := b.DefaultPatternSource("nonexistent-language")
	assert.False(t, ok)
}

func TestBackend_Languages_CoversEveryRegisteredGrammar(t *testing.T) {
	b := NewBackend()
	langs := b.Languages()
	assert.Contains(t, langs, "go")
	assert.Contains(t, langs, "python")
	assert.Contains(t, langs, "typescript")
	assert.Len(t, langs, 11)
}
