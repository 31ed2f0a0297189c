// Package blocks implements resolving a node or a pattern match to the
// syntactically coherent source region that contains it. Block text is
// always the verbatim source byte slice of the resolved node, never
// reconstructed from the tree.
package blocks

import (
	"strings"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

const heuristicKind = "heuristic"

type kindSet map[string]bool

func setOf(kinds ...string) kindSet {
	m := make(kindSet, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

var pythonBlocks = setOf(
	"function_definition", "class_definition", "if_statement",
	"for_statement", "try_statement", "with_statement",
)

var braceBlocks = setOf(
	"compound_statement", "function_definition", "class_specifier",
	"method_definition", "if_statement", "for_statement", "while_statement",
)

var fallbackBlocks = setOf("block", "body", "statement_block")

// braceLanguages lists the language ids that use braceBlocks rather than
// pythonBlocks as their block-capable set.
var braceLanguages = setOf(
	"go", "java", "c", "cpp", "c-sharp", "javascript",
	"typescript", "rust", "php", "zig",
)

func blockCapable(languageID, kind string) bool {
	if fallbackBlocks[kind] {
		return true
	}
	if languageID == "python" {
		return pythonBlocks[kind]
	}
	if braceLanguages[languageID] {
		return braceBlocks[kind]
	}
	return false
}

// Extractor resolves nodes and matches to ExtractedBlocks.
type Extractor struct{}

// New returns a ready-to-use block extractor.
func New() *Extractor { return &Extractor{} }

// FromMatch resolves a PatternMatch's primary span to the smallest
// syntactically coherent enclosing block.
func (e *Extractor) FromMatch(languageID string, source []byte, tree *types.ParseTree, match types.PatternMatch, preferBody bool) (*types.ExtractedBlock, bool) {
	if tree == nil || tree.Root == nil {
		return nil, false
	}
	node := findNodeAtSpan(tree.Root, match.PrimarySpan)
	if node == nil {
		return nil, false
	}
	return e.FromNode(languageID, source, tree, node, preferBody)
}

// FromNode resolves a node to the source's coherent block: the node itself
// if it's already block-capable, else the nearest block-capable ancestor,
// else (for custom-backend trees only) a line-range heuristic.
func (e *Extractor) FromNode(languageID string, source []byte, tree *types.ParseTree, node *types.Node, preferBody bool) (*types.ExtractedBlock, bool) {
	if tree == nil || tree.Root == nil || node == nil {
		return nil, false
	}

	if blockCapable(languageID, node.Kind) {
		return build(source, node, preferBody), true
	}

	if path, ok := findPath(tree.Root, node); ok {
		for i := len(path) - 2; i >= 0; i-- {
			ancestor := path[i]
			if blockCapable(languageID, ancestor.Kind) {
				return build(source, ancestor, preferBody), true
			}
		}
	}

	if tree.Backend != "ast" {
		return heuristicBlock(source, node), true
	}
	return nil, false
}

func build(source []byte, node *types.Node, preferBody bool) *types.ExtractedBlock {
	target := node
	parentKind := ""
	if preferBody {
		if body := findBodyChild(node); body != nil {
			parentKind = node.Kind
			target = body
		}
	}
	return &types.ExtractedBlock{
		Content:    string(source[target.Span.StartByte:target.Span.EndByte]),
		StartPoint: target.Span.StartPoint,
		EndPoint:   target.Span.EndPoint,
		NodeKind:   target.Kind,
		ParentKind: parentKind,
	}
}

func findBodyChild(node *types.Node) *types.Node {
	for _, c := range node.Children {
		if c.Kind == "block" || c.Kind == "compound_statement" || strings.HasSuffix(c.Kind, "_body") {
			return c
		}
	}
	return nil
}

func heuristicBlock(source []byte, node *types.Node) *types.ExtractedBlock {
	start, end := expandToLines(source, int(node.Span.StartByte), int(node.Span.EndByte))
	return &types.ExtractedBlock{
		Content:    string(source[start:end]),
		StartPoint: types.Point{Row: node.Span.StartPoint.Row, Column: 0},
		EndPoint:   node.Span.EndPoint,
		NodeKind:   heuristicKind,
		ParentKind: node.Kind,
	}
}

func expandToLines(source []byte, start, end int) (int, int) {
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for end < len(source) && source[end] != '\n' {
		end++
	}
	return start, end
}

// findPath returns the root-to-target path (inclusive of both ends) by
// pointer identity; types.Node carries no parent link, so ancestor
// resolution walks down from the root once per lookup.
func findPath(root, target *types.Node) ([]*types.Node, bool) {
	if root == target {
		return []*types.Node{root}, true
	}
	for _, c := range root.Children {
		if path, ok := findPath(c, target); ok {
			return append([]*types.Node{root}, path...), true
		}
	}
	return nil, false
}

// findNodeAtSpan returns the smallest node whose span contains span.
func findNodeAtSpan(root *types.Node, span types.Span) *types.Node {
	if root == nil || !spanContains(root.Span, span) {
		return nil
	}
	for _, c := range root.Children {
		if found := findNodeAtSpan(c, span); found != nil {
			return found
		}
	}
	return root
}

func spanContains(outer, inner types.Span) bool {
	return outer.StartByte <= inner.StartByte && outer.EndByte >= inner.EndByte
}
