package patternengine

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/astbackend"
	"github.com/Zmaroo/RepoAnalyzer/internal/cache"
	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func newTestEngine() *Engine {
	backend := astbackend.NewBackend()
	reg := registry.New()
	coord := cache.NewCoordinator(1<<20, 1<<20, 1<<20, time.Hour)
	return NewEngine(backend, reg, coord, 4)
}

func TestDedupeAndSort_OrdersByStartThenSpanThenPatternID(t *testing.T) {
	matches := []types.PatternMatch{
		{PatternID: "b", PrimarySpan: types.Span{StartByte: 10, EndByte: 12}},
		{PatternID: "a", PrimarySpan: types.Span{StartByte: 0, EndByte: 5}},
		{PatternID: "a", PrimarySpan: types.Span{StartByte: 0, EndByte: 8}},
	}
	out := dedupeAndSort(matches)
	require.Len(t, out, 3)
	assert.Equal(t, uint32(0), out[0].PrimarySpan.StartByte)
	assert.Equal(t, 8, out[0].PrimarySpan.Len(), "wider span at the same start sorts first")
	assert.Equal(t, uint32(10), out[2].PrimarySpan.StartByte)
}

func TestDedupeAndSort_MergesIdenticalPatternAndSpan(t *testing.T) {
	matches := []types.PatternMatch{
		{PatternID: "a", PrimarySpan: types.Span{StartByte: 0, EndByte: 5}, Captures: map[string][]types.Span{"x": {{StartByte: 0, EndByte: 5}}}},
		{PatternID: "a", PrimarySpan: types.Span{StartByte: 0, EndByte: 5}, Captures: map[string][]types.Span{"y": {{StartByte: 0, EndByte: 5}}}},
	}
	out := dedupeAndSort(matches)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Captures, "x")
	assert.Contains(t, out[0].Captures, "y")
}

func TestShouldAttemptRecovery_OnlySyntaxAndStructure(t *testing.T) {
	tree := &types.ParseTree{Source: []byte("x"), Language: "go"}
	syntax := &types.Pattern{Category: types.CategorySyntax}
	naming := &types.Pattern{Category: types.CategoryNaming}

	assert.True(t, shouldAttemptRecovery(tree, syntax))
	assert.False(t, shouldAttemptRecovery(tree, naming))
}

func TestShouldAttemptRecovery_FalseOnEmptySource(t *testing.T) {
	tree := &types.ParseTree{Source: []byte{}, Language: "go"}
	p := &types.Pattern{Category: types.CategorySyntax}
	assert.False(t, shouldAttemptRecovery(tree, p))
}

func TestRegexMatches_FindsAllOccurrences(t *testing.T) {
	p := &types.Pattern{ID: "todo"}
	re := regexp.MustCompile(`TODO`)
	matches := regexMatches(p, re, []byte("TODO: a\nTODO: b\n"))
	require.Len(t, matches, 2)
	assert.Equal(t, "regex", matches[0].NodeKind)
	assert.InDelta(t, 0.9, matches[0].Confidence, 0.0001)
}

func TestLiteralMatches_FindsNonOverlappingOccurrences(t *testing.T) {
	p := &types.Pattern{ID: "marker"}
	matches := literalMatches(p, "ab", []byte("ababab"))
	require.Len(t, matches, 3)
	assert.Equal(t, "literal", matches[0].NodeKind)
}

func TestEngine_RecoverRegexFallback_SynthesizesLowConfidenceMatches(t *testing.T) {
	e := newTestEngine()
	p := &types.Pattern{ID: "func-def", LanguageID: "python", RecoveryRegex: `^\s*def\s+\w+`}
	source := []byte("def foo():\n    pass\nx = 1\ndef bar():\n    pass\n")

	matches := e.recoverRegexFallback(p, source)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "regex-recovery", m.NodeKind)
		assert.InDelta(t, 0.4, m.Confidence, 0.0001)
	}
}

func TestEngine_RecoverRegexFallback_PopulatesNamedCaptureFromSubmatch(t *testing.T) {
	e := newTestEngine()
	p := &types.Pattern{ID: "func-def", LanguageID: "python", RecoveryRegex: `^\s*def\s+(?P<name>\w+)`}
	source := []byte("def foo(:\n    pass")

	matches := e.recoverRegexFallback(p, source)
	require.Len(t, matches, 1)
	m := matches[0]
	assert.Equal(t, "regex-recovery", m.NodeKind)
	assert.InDelta(t, 0.4, m.Confidence, 0.0001)
	require.Contains(t, m.Captures, "name")
	require.Len(t, m.Captures["name"], 1)
	nameSpan := m.Captures["name"][0]
	assert.Equal(t, "foo", string(source[nameSpan.StartByte:nameSpan.EndByte]))
}

func TestEngine_RecoverRegexFallback_PositionalGroupUsesGroupIndexKey(t *testing.T) {
	e := newTestEngine()
	p := &types.Pattern{ID: "func-def", LanguageID: "python", RecoveryRegex: `^\s*def\s+(\w+)`}
	source := []byte("def foo():\n    pass\n")

	matches := e.recoverRegexFallback(p, source)
	require.Len(t, matches, 1)
	require.Contains(t, matches[0].Captures, "group1")
	span := matches[0].Captures["group1"][0]
	assert.Equal(t, "foo", string(source[span.StartByte:span.EndByte]))
}

func TestEngine_Process_UnusablePatternIsRejected(t *testing.T) {
	e := newTestEngine()
	tree := &types.ParseTree{Source: []byte("x"), Language: "go"}
	p := &types.Pattern{ID: "bad", LanguageID: "go", Unusable: true}

	_, err := e.Process(context.Background(), tree, p, nil)
	assert.Error(t, err)
}

func TestEngine_ProcessAll_EmptyWhenNoPatternsRegistered(t *testing.T) {
	e := newTestEngine()
	tree := &types.ParseTree{Source: []byte("x"), Language: "nonexistent-language"}
	matches, err := e.ProcessAll(context.Background(), tree, "nonexistent-language", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEngine_Process_MemoizesInPersistentCache(t *testing.T) {
	e := newTestEngine()
	tree := &types.ParseTree{Source: []byte("x = 1\n"), Language: "python"}
	p := &types.Pattern{
		ID: "marker", LanguageID: "python", Category: types.CategoryDocumentation,
		Kind: types.PatternKindLiteral, Compiled: "x",
	}

	first, err := e.Process(context.Background(), tree, p, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	nc, ok := e.coord.Cache("pattern")
	require.True(t, ok)
	key := persistentKey(p, cache.ContentHash(tree.Source))
	_, hit := nc.Get(key)
	assert.True(t, hit, "terminal (non-recovered) results must be memoized in the persistent pattern cache")
}
