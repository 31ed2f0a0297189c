package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func TestNormalize_Aliases(t *testing.T) {
	assert.Equal(t, "javascript", Normalize("js"))
	assert.Equal(t, "yaml", Normalize("yml"))
	assert.Equal(t, "cpp", Normalize("C++"))
}

func TestRegistry_RegisterAndPatternsFor(t *testing.T) {
	r := New()
	r.RegisterPattern(&types.Pattern{
		ID:         "func-def",
		LanguageID: "python",
		Category:   types.CategorySyntax,
		Kind:       types.PatternKindRegex,
		Source:     `^\s*def\s+(\w+)`,
	})

	byCat := r.PatternsFor("python")
	require.Contains(t, byCat, types.CategorySyntax)
	assert.Len(t, byCat[types.CategorySyntax], 1)
	assert.Equal(t, "func-def", byCat[types.CategorySyntax][0].ID)
}

func TestRegistry_GetCompilesLazily(t *testing.T) {
	r := New()
	r.RegisterPattern(&types.Pattern{
		ID: "x", LanguageID: "go", Category: types.CategorySyntax,
		Kind: types.PatternKindRegex, Source: `func\s+\w+`,
	})
	p := r.Get("go", "x")
	require.NotNil(t, p)
	assert.NotNil(t, p.Compiled)
}

func TestRegistry_InvalidRegexMarksUnusable(t *testing.T) {
	r := New()
	r.RegisterPattern(&types.Pattern{
		ID: "bad", LanguageID: "go", Category: types.CategorySyntax,
		Kind: types.PatternKindRegex, Source: `(unclosed`,
	})
	byCat := r.PatternsFor("go")
	assert.Empty(t, byCat[types.CategorySyntax], "unusable pattern must be excluded")
}

func TestRegistry_ClearLanguage(t *testing.T) {
	r := New()
	r.RegisterPattern(&types.Pattern{ID: "a", LanguageID: "go", Category: types.CategorySyntax, Kind: types.PatternKindLiteral, Source: "TODO"})
	require.NotNil(t, r.Get("go", "a"))
	r.ClearLanguage("go")
	assert.Nil(t, r.Get("go", "a"))
}

func TestRegistry_Validate(t *testing.T) {
	r := New()
	p := &types.Pattern{ID: "v", LanguageID: "go", Kind: types.PatternKindRegex, Source: `\d+`}
	res := r.Validate(p)
	assert.True(t, res.OK)

	bad := &types.Pattern{ID: "bad", LanguageID: "go", Kind: types.PatternKindRegex, Source: `(`}
	res2 := r.Validate(bad)
	assert.False(t, res2.OK)
	assert.NotEmpty(t, res2.Errors)
}

func TestRegistry_Validate_RunsRegexTestCasesAgainstSamples(t *testing.T) {
	r := New()
	p := &types.Pattern{
		ID: "func-def", LanguageID: "python", Kind: types.PatternKindRegex,
		Source: `^\s*def\s+(?P<name>\w+)`,
		TestCases: []types.PatternTestCase{
			{Input: "def foo():", ExpectMatch: true, ExpectedName: "foo"},
			{Input: "x = 1", ExpectMatch: false},
		},
	}
	res := r.Validate(p)
	assert.True(t, res.OK)
	assert.Empty(t, res.Warnings)
}

func TestRegistry_Validate_FlagsMismatchedTestCaseAsWarning(t *testing.T) {
	r := New()
	p := &types.Pattern{
		ID: "func-def", LanguageID: "python", Kind: types.PatternKindRegex,
		Source: `^\s*def\s+(?P<name>\w+)`,
		TestCases: []types.PatternTestCase{
			{Input: "def foo():", ExpectMatch: true, ExpectedName: "bar"},
			{Input: "def baz():", ExpectMatch: false},
		},
	}
	res := r.Validate(p)
	assert.True(t, res.OK, "test-case mismatches are warnings, not validation failures")
	assert.Len(t, res.Warnings, 2)
}

func TestRegistry_Validate_LiteralPatternRunsTestCases(t *testing.T) {
	r := New()
	p := &types.Pattern{
		ID: "todo", LanguageID: "go", Kind: types.PatternKindLiteral, Source: "TODO",
		TestCases: []types.PatternTestCase{
			{Input: "// TODO: fix this", ExpectMatch: true},
			{Input: "// done", ExpectMatch: false},
		},
	}
	res := r.Validate(p)
	assert.True(t, res.OK)
	assert.Empty(t, res.Warnings)
}

func TestRegistry_Validate_ASTQuerySkipsTestCaseEvaluationWithWarning(t *testing.T) {
	r := New()
	r.RegisterCompiler(types.PatternKindASTQuery, func(p *types.Pattern) (any, error) {
		return p.Source, nil
	})
	p := &types.Pattern{
		ID: "q", LanguageID: "go", Kind: types.PatternKindASTQuery, Source: "(function_declaration)",
		TestCases: []types.PatternTestCase{{Input: "func f() {}", ExpectMatch: true}},
	}
	res := r.Validate(p)
	assert.True(t, res.OK)
	assert.NotEmpty(t, res.Warnings)
}
