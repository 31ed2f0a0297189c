package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

func span(start, end uint32) types.Span {
	return types.Span{StartByte: start, EndByte: end}
}

func TestFromNode_ReturnsNodeItselfWhenBlockCapable(t *testing.T) {
	source := []byte("def f():\n    pass\n")
	fn := &types.Node{Kind: "function_definition", Span: span(0, uint32(len(source)))}
	tree := &types.ParseTree{Root: fn, Source: source, Language: "python", Backend: "ast"}

	e := New()
	block, ok := e.FromNode("python", source, tree, fn, false)
	require.True(t, ok)
	assert.Equal(t, "function_definition", block.NodeKind)
	assert.Equal(t, string(source), block.Content)
}

func TestFromNode_WalksAncestorsToBlockCapableKind(t *testing.T) {
	source := []byte("def f():\n    x = 1\n")
	identExpr := &types.Node{Kind: "identifier", Span: span(15, 16)}
	body := &types.Node{Kind: "block", Span: span(10, uint32(len(source))), Children: []*types.Node{identExpr}}
	fn := &types.Node{Kind: "function_definition", Span: span(0, uint32(len(source))), Children: []*types.Node{body}}
	tree := &types.ParseTree{Root: fn, Source: source, Language: "python", Backend: "ast"}

	e := New()
	block, ok := e.FromNode("python", source, tree, identExpr, false)
	require.True(t, ok)
	assert.Equal(t, "block", block.NodeKind, "block is in the generic fallback set and is the nearest ancestor")
}

func TestFromNode_PreferBodyReturnsChildBlock(t *testing.T) {
	source := []byte("func f() { x() }")
	body := &types.Node{Kind: "compound_statement", Span: span(9, uint32(len(source)))}
	fn := &types.Node{Kind: "function_definition", Span: span(0, uint32(len(source))), Children: []*types.Node{body}}
	tree := &types.ParseTree{Root: fn, Source: source, Language: "go", Backend: "ast"}

	e := New()
	block, ok := e.FromNode("go", source, tree, fn, true)
	require.True(t, ok)
	assert.Equal(t, "compound_statement", block.NodeKind)
	assert.Equal(t, "function_definition", block.ParentKind)
}

func TestFromNode_NoBlockCapableAncestorOnASTTreeReturnsFalse(t *testing.T) {
	source := []byte("x")
	leaf := &types.Node{Kind: "identifier", Span: span(0, 1)}
	tree := &types.ParseTree{Root: leaf, Source: source, Language: "go", Backend: "ast"}

	e := New()
	_, ok := e.FromNode("go", source, tree, leaf, false)
	assert.False(t, ok)
}

func TestFromNode_CustomBackendDegradesToHeuristic(t *testing.T) {
	source := []byte("first line\nsecond line with TOKEN\nthird\n")
	token := &types.Node{Kind: "text", Span: span(28, 33)}
	root := &types.Node{Kind: "document", Span: span(0, uint32(len(source))), Children: []*types.Node{token}}
	tree := &types.ParseTree{Root: root, Source: source, Language: "toml", Backend: "toml"}

	e := New()
	block, ok := e.FromNode("toml", source, tree, token, false)
	require.True(t, ok)
	assert.Equal(t, "heuristic", block.NodeKind)
	assert.Equal(t, "second line with TOKEN", block.Content)
}

func TestFromMatch_ResolvesPrimarySpanToContainingNode(t *testing.T) {
	source := []byte("def f():\n    pass\n")
	fn := &types.Node{Kind: "function_definition", Span: span(0, uint32(len(source)))}
	tree := &types.ParseTree{Root: fn, Source: source, Language: "python", Backend: "ast"}
	match := types.PatternMatch{PrimarySpan: span(0, uint32(len(source)))}

	e := New()
	block, ok := e.FromMatch("python", source, tree, match, false)
	require.True(t, ok)
	assert.Equal(t, "function_definition", block.NodeKind)
}
