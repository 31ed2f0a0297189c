// Package custombackend implements backends that produce the same
// ParseTree shape the AST backend does for languages/formats tree-sitter
// doesn't cover (or, for JavaScript, a faster path than the full grammar).
package custombackend

import (
	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// JavaScript is a go-fAST-backed custom backend. It produces one child node
// per top-level statement rather than a full expression tree: go-fAST
// doesn't expose a uniform node-to-byte-range accessor across statement
// kinds, so the backend sticks to the boundaries it can compute precisely
// (statement starts) and lets the Block Extractor's heuristic degradation
// path handle anything finer-grained.
type JavaScript struct{}

// NewJavaScript returns a ready-to-use JavaScript custom backend.
func NewJavaScript() *JavaScript { return &JavaScript{} }

// Supports reports whether this backend handles the given format/language id.
func (j *JavaScript) Supports(format string) bool {
	return format == "javascript"
}

// Parse implements the custom backend's parse(bytes) -> ParseTree-like
// contract. A go-fAST parse failure still returns a successful, partial
// tree whose root is flagged has_error — the engine's recovery strategies
// take it from there.
func (j *JavaScript) Parse(source []byte) (*types.ParseTree, error) {
	content := string(source)
	program, err := parser.ParseFile(content)
	if err != nil {
		return &types.ParseTree{
			Root:     &types.Node{Kind: "text", HasError: true, Span: fullSpan(source), Text: source},
			Source:   source,
			Language: "javascript",
			Backend:  "javascript-fast",
		}, nil
	}

	lineStarts := computeLineStarts(content)
	children := make([]*types.Node, 0, len(program.Body))
	offsets := make([]int, 0, len(program.Body))
	for _, stmt := range program.Body {
		offsets = append(offsets, stmtStart(stmt.Stmt))
	}

	for i, stmt := range program.Body {
		start := offsets[i]
		end := len(content)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start < 0 || start > len(content) {
			start = 0
		}
		if end < start || end > len(content) {
			end = len(content)
		}
		children = append(children, &types.Node{
			Kind:      stmtKind(stmt.Stmt),
			Span:      byteRangeToSpan(start, end, lineStarts),
			Text:      source[start:end],
			HasError:  false,
			FieldName: "",
		})
	}

	root := &types.Node{
		Kind:     "program",
		Span:     fullSpan(source),
		Children: children,
	}
	return &types.ParseTree{Root: root, Source: source, Language: "javascript", Backend: "javascript-fast"}, nil
}

func fullSpan(source []byte) types.Span {
	return types.Span{StartByte: 0, EndByte: uint32(len(source))}
}

func stmtStart(stmt ast.Stmt) int {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		if s.Function != nil {
			return int(s.Function.Function)
		}
	case *ast.ClassDeclaration:
		if s.Class != nil {
			return int(s.Class.Class)
		}
	case *ast.VariableDeclaration:
		return int(s.Idx)
	case *ast.ReturnStatement:
		return int(s.Idx)
	case *ast.IfStatement:
		return int(s.Idx)
	case *ast.BlockStatement:
		return int(s.Idx)
	case *ast.ExpressionStatement:
		return int(s.Idx)
	}
	return 0
}

func stmtKind(stmt ast.Stmt) string {
	switch stmt.(type) {
	case *ast.FunctionDeclaration:
		return "function_declaration"
	case *ast.ClassDeclaration:
		return "class_declaration"
	case *ast.VariableDeclaration:
		return "variable_declaration"
	case *ast.ReturnStatement:
		return "return_statement"
	case *ast.IfStatement:
		return "if_statement"
	case *ast.BlockStatement:
		return "block_statement"
	case *ast.ExpressionStatement:
		return "expression_statement"
	default:
		return "text"
	}
}

// computeLineStarts records the byte offset each source line begins at, so
// byteRangeToSpan can turn a byte offset into a (row, column) pair without
// rescanning the whole prefix for every node.
func computeLineStarts(content string) []int {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetToPoint(offset int, lineStarts []int) types.Point {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return types.Point{Row: lo, Column: offset - lineStarts[lo]}
}

func byteRangeToSpan(start, end int, lineStarts []int) types.Span {
	return types.Span{
		StartByte:  uint32(start),
		EndByte:    uint32(end),
		StartPoint: offsetToPoint(start, lineStarts),
		EndPoint:   offsetToPoint(end, lineStarts),
	}
}
