package engine

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/config"
	"github.com/Zmaroo/RepoAnalyzer/internal/telemetry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Version: 1,
		Project: config.Project{Root: "."},
		Cache: config.Cache{
			ASTBudgetBytes:            1 << 20,
			PatternBudgetBytes:        1 << 20,
			ClassificationBudgetBytes: 1 << 20,
			TTLSeconds:                60,
		},
		Pattern: config.Pattern{
			MaxWorkers:          2,
			PatternTimeoutMS:    1000,
			RequestCacheEnabled: true,
			ExtractFeatures:     true,
			ExtractBlocks:       true,
		},
	}
}

func TestNew_ParsesPlaintextAndCustomFormats(t *testing.T) {
	e := New(testConfig())

	result := e.Parse(context.Background(), "README", []byte("hello"), e.DefaultParserOptions())
	assert.True(t, result.Success)

	result = e.Parse(context.Background(), "config.toml", []byte("[table]\nkey = \"value\"\n"), e.DefaultParserOptions())
	require.True(t, result.Success)
	assert.Equal(t, "toml", result.Classification.LanguageID)
}

func TestNew_RegisterPatternAndPatternsFor(t *testing.T) {
	e := New(testConfig())
	// The registry already has built-in regex/literal compilers and New wires
	// the AST-query compiler; this replaces the regex compiler with a host one.
	e.RegisterPatternCompiler(types.PatternKindRegex, func(p *types.Pattern) (any, error) {
		return regexp.Compile(p.Source)
	})
	e.RegisterPattern(&types.Pattern{
		ID:         "python.function",
		LanguageID: "python",
		Category:   types.CategorySyntax,
		Kind:       types.PatternKindRegex,
		Source:     `def\s+(\w+)\(`,
	})

	patterns := e.PatternsFor("python")
	assert.NotEmpty(t, patterns[types.CategorySyntax])
}

func TestNew_SeedsOneDefaultASTQueryPatternPerLanguage(t *testing.T) {
	e := New(testConfig())
	patterns := e.PatternsFor("go")
	require.NotEmpty(t, patterns[types.CategoryStructure])
	assert.Equal(t, "go.default", patterns[types.CategoryStructure][0].ID)
}

func TestNew_InvalidatePrefixAndSubscribeDoNotPanic(t *testing.T) {
	e := New(testConfig())
	e.InvalidatePrefix("/some/path")

	var received []telemetry.MetricRecord
	e.Subscribe(func(rec telemetry.MetricRecord) {
		received = append(received, rec)
	})
	_ = e.Parse(context.Background(), "foo.py", []byte("plain"), e.DefaultParserOptions())
}
