package custombackend

import (
	"bytes"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// lineBackend is a line-oriented custom backend for formats that have no
// dedicated parsing library available: Markdown, RST, AsciiDoc, INI, YAML,
// XML, JSON, EditorConfig, env, GraphQL-lite, and plaintext. Each of these
// formats is either line-structured (INI/env/EditorConfig key=value pairs,
// Markdown headings) or, lacking a grounded parser, falls back to one
// "text" leaf per line: nodes with no natural kind use kind=text. There is
// no library available for these formats' grammars, so each backend here
// is deliberately minimal rather than a hand-rolled replacement for a real
// parser — see DESIGN.md.
type lineBackend struct {
	format   string
	classify lineClassifier
}

type lineClassifier func(trimmed []byte) string

// NewINI, NewEnv, NewEditorConfig, NewMarkdown, NewRST, NewAsciiDoc,
// NewGraphQLLite, NewXML, NewJSON, NewYAML, and NewPlainText each return a
// ready-to-use backend for one of the custom line-oriented formats above.
func NewINI() *lineBackend          { return &lineBackend{format: "ini", classify: classifyKeyValueLine} }
func NewEnv() *lineBackend          { return &lineBackend{format: "env", classify: classifyKeyValueLine} }
func NewEditorConfig() *lineBackend {
	return &lineBackend{format: "editorconfig", classify: classifyKeyValueLine}
}
func NewYAML() *lineBackend { return &lineBackend{format: "yaml", classify: classifyKeyValueLine} }
func NewMarkdown() *lineBackend {
	return &lineBackend{format: "markdown", classify: classifyMarkdownLine}
}
func NewRST() *lineBackend      { return &lineBackend{format: "rst", classify: classifyMarkdownLine} }
func NewAsciiDoc() *lineBackend {
	return &lineBackend{format: "asciidoc", classify: classifyMarkdownLine}
}
func NewGraphQLLite() *lineBackend {
	return &lineBackend{format: "graphql", classify: classifyBraceLine}
}
func NewXML() *lineBackend       { return &lineBackend{format: "xml", classify: classifyTagLine} }
func NewJSON() *lineBackend      { return &lineBackend{format: "json", classify: classifyTagLine} }
func NewPlainText() *lineBackend {
	return &lineBackend{format: "plaintext", classify: classifyPlainLine}
}

// Supports reports whether this backend handles the given format id.
func (l *lineBackend) Supports(format string) bool { return format == l.format }

// Parse splits source into lines and classifies each one, producing one
// child node per non-blank line.
func (l *lineBackend) Parse(source []byte) (*types.ParseTree, error) {
	lineStarts := computeLineStarts(string(source))
	lines := bytes.Split(source, []byte("\n"))
	children := make([]*types.Node, 0, len(lines))

	offset := 0
	for _, line := range lines {
		end := offset + len(line)
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			offset = end + 1
			continue
		}
		children = append(children, &types.Node{
			Kind: l.classify(trimmed),
			Span: byteRangeToSpan(offset, end, lineStarts),
			Text: source[offset:end],
		})
		offset = end + 1
	}

	root := &types.Node{Kind: "document", Span: fullSpan(source), Children: children}
	return &types.ParseTree{Root: root, Source: source, Language: l.format, Backend: "generic-lines"}, nil
}

func classifyKeyValueLine(trimmed []byte) string {
	switch {
	case trimmed[0] == '#' || trimmed[0] == ';':
		return "comment"
	case trimmed[0] == '[':
		return "section_header"
	case bytes.ContainsRune(trimmed, '='):
		return "key_value_pair"
	case bytes.ContainsRune(trimmed, ':'):
		return "key_value_pair"
	default:
		return "text"
	}
}

func classifyMarkdownLine(trimmed []byte) string {
	switch {
	case bytes.HasPrefix(trimmed, []byte("#")):
		return "heading"
	case bytes.HasPrefix(trimmed, []byte("```")) || bytes.HasPrefix(trimmed, []byte("~~~")):
		return "fence"
	case bytes.HasPrefix(trimmed, []byte(">")):
		return "blockquote"
	case bytes.HasPrefix(trimmed, []byte("-")) || bytes.HasPrefix(trimmed, []byte("*")):
		return "list_item"
	default:
		return "text"
	}
}

func classifyBraceLine(trimmed []byte) string {
	switch trimmed[0] {
	case '{', '}':
		return "brace"
	case '#':
		return "comment"
	default:
		return "text"
	}
}

func classifyTagLine(trimmed []byte) string {
	switch {
	case trimmed[0] == '<':
		return "tag"
	case trimmed[0] == '{' || trimmed[0] == '[':
		return "brace"
	default:
		return "text"
	}
}

func classifyPlainLine(trimmed []byte) string {
	return "text"
}
