package custombackend

import (
	"bytes"

	"github.com/pelletier/go-toml/v2"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// TOML is a go-toml-backed custom backend. go-toml/v2's public API decodes
// into Go values rather than exposing a byte-ranged AST, so this backend
// uses Unmarshal purely to validate the document (and detect parse errors
// the way the engine's recovery strategies expect) and builds the ParseTree
// itself from a line scan, the same way the JavaScript backend falls back
// to statement-level granularity where go-fAST doesn't expose finer spans.
type TOML struct{}

// NewTOML returns a ready-to-use TOML custom backend.
func NewTOML() *TOML { return &TOML{} }

// Supports reports whether this backend handles the given format id.
func (t *TOML) Supports(format string) bool { return format == "toml" }

// Parse implements the custom backend contract for TOML documents.
func (t *TOML) Parse(source []byte) (*types.ParseTree, error) {
	var doc map[string]any
	if err := toml.Unmarshal(source, &doc); err != nil {
		return &types.ParseTree{
			Root:     &types.Node{Kind: "text", HasError: true, Span: fullSpan(source), Text: source},
			Source:   source,
			Language: "toml",
			Backend:  "toml",
		}, nil
	}

	lineStarts := computeLineStarts(string(source))
	lines := bytes.Split(source, []byte("\n"))
	children := make([]*types.Node, 0, len(lines))

	offset := 0
	for _, line := range lines {
		end := offset + len(line)
		trimmed := bytes.TrimSpace(line)
		switch {
		case len(trimmed) == 0:
			offset = end + 1
			continue
		case trimmed[0] == '#':
			children = append(children, tomlLineNode("comment", offset, end, lineStarts, source))
		case bytes.HasPrefix(trimmed, []byte("[[")):
			children = append(children, tomlLineNode("table_array_header", offset, end, lineStarts, source))
		case trimmed[0] == '[':
			children = append(children, tomlLineNode("table_header", offset, end, lineStarts, source))
		case bytes.ContainsRune(trimmed, '='):
			children = append(children, tomlLineNode("key_value_pair", offset, end, lineStarts, source))
		default:
			children = append(children, tomlLineNode("text", offset, end, lineStarts, source))
		}
		offset = end + 1
	}

	root := &types.Node{Kind: "document", Span: fullSpan(source), Children: children}
	return &types.ParseTree{Root: root, Source: source, Language: "toml", Backend: "toml"}, nil
}

func tomlLineNode(kind string, start, end int, lineStarts []int, source []byte) *types.Node {
	return &types.Node{
		Kind: kind,
		Span: byteRangeToSpan(start, end, lineStarts),
		Text: source[start:end],
	}
}
