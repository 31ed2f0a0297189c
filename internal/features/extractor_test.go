package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func TestExtractor_Build_CategorizesByPatternCategory(t *testing.T) {
	reg := registry.New()
	reg.RegisterPattern(&types.Pattern{
		ID: "func-def", LanguageID: "python", Category: types.CategoryStructure,
		Kind: types.PatternKindLiteral, Compiled: "def",
	})

	matches := []types.PatternMatch{
		{PatternID: "func-def", NodeKind: "function_definition", PrimarySpan: types.Span{StartByte: 0, EndByte: 5}},
	}

	e := NewExtractor()
	fs := e.Build(nil, "python", matches, reg)

	require.Contains(t, fs, types.CategoryStructure)
	assert.Len(t, fs[types.CategoryStructure], 1)
	assert.Equal(t, "function_definition", fs[types.CategoryStructure][0].Name)
}

func TestExtractor_Build_UnknownPatternIsSkipped(t *testing.T) {
	reg := registry.New()
	matches := []types.PatternMatch{{PatternID: "nonexistent", NodeKind: "x"}}

	e := NewExtractor()
	fs := e.Build(nil, "python", matches, reg)
	assert.Empty(t, fs)
}

func TestExtractor_Build_AddsNamingDerivedItem(t *testing.T) {
	reg := registry.New()
	reg.RegisterPattern(&types.Pattern{
		ID: "fn", LanguageID: "go", Category: types.CategoryStructure,
		Kind: types.PatternKindLiteral, Compiled: "fetchUserData",
	})
	matches := []types.PatternMatch{
		{PatternID: "fn", NodeKind: "fetchUserData", PrimarySpan: types.Span{StartByte: 0, EndByte: 13}},
	}

	e := NewExtractor()
	fs := e.Build(nil, "go", matches, reg)

	require.Contains(t, fs, types.CategoryNaming)
	naming := fs[types.CategoryNaming][0]
	assert.Equal(t, "fetchUserData", naming.Name)
	assert.Equal(t, "camelCase", naming.Attrs["casing"])
	assert.Equal(t, []string{"fetch", "user", "data"}, naming.Attrs["words"])
}

func TestExtractor_Build_NameComesFromCaptureNotNodeKind(t *testing.T) {
	reg := registry.New()
	reg.RegisterPattern(&types.Pattern{
		ID: "func-def", LanguageID: "python", Category: types.CategorySyntax,
		Kind: types.PatternKindLiteral, Compiled: "def",
	})

	source := []byte("def foo(a, b):\n    return a + b\n")
	tree := &types.ParseTree{Source: source, Language: "python"}
	matches := []types.PatternMatch{
		{
			PatternID:   "func-def",
			NodeKind:    "function_definition",
			PrimarySpan: types.Span{StartByte: 0, EndByte: uint32(len(source))},
			Captures:    map[string][]types.Span{"name": {{StartByte: 4, EndByte: 7}}},
		},
	}

	e := NewExtractor()
	fs := e.Build(tree, "python", matches, reg)

	require.Contains(t, fs, types.CategorySyntax)
	assert.Equal(t, "foo", fs[types.CategorySyntax][0].Name)
}

func TestExtractor_Build_FallsBackToNodeKindWithoutNameCapture(t *testing.T) {
	reg := registry.New()
	reg.RegisterPattern(&types.Pattern{
		ID: "func-def", LanguageID: "python", Category: types.CategorySyntax,
		Kind: types.PatternKindLiteral, Compiled: "def",
	})
	matches := []types.PatternMatch{
		{PatternID: "func-def", NodeKind: "function_definition", PrimarySpan: types.Span{StartByte: 0, EndByte: 5}},
	}

	e := NewExtractor()
	fs := e.Build(nil, "python", matches, reg)

	require.Contains(t, fs, types.CategorySyntax)
	assert.Equal(t, "function_definition", fs[types.CategorySyntax][0].Name)
}

func TestClassifyCasing(t *testing.T) {
	assert.Equal(t, "snake_case", classifyCasing("user_id"))
	assert.Equal(t, "SCREAMING_SNAKE_CASE", classifyCasing("MAX_SIZE"))
	assert.Equal(t, "kebab-case", classifyCasing("my-component"))
	assert.Equal(t, "PascalCase", classifyCasing("UserAccount"))
	assert.Equal(t, "camelCase", classifyCasing("userAccount"))
}

func TestIsIdentifierLike(t *testing.T) {
	assert.True(t, isIdentifierLike("user_id"))
	assert.False(t, isIdentifierLike("user id"))
	assert.False(t, isIdentifierLike(""))
}
