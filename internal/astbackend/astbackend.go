// Package astbackend parses bytes into a ParseTree via tree-sitter
// grammars and runs compiled queries over the result.
//
// Lazy per-language setup, sync.Pool-backed parser reuse, a defensive
// buffer copy before Parse (tree-sitter's C library may retain or mutate
// the input), and a panic-recovery guard around Parse keep a native
// parser memory-safe and non-panicking from Go's perspective. The public
// surface centres on two operations, Parse and CompileQuery/RunQuery,
// plus the Supports/Languages/DefaultPatternSource lookups.
package astbackend

import (
	"fmt"
	"sort"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/Zmaroo/RepoAnalyzer/internal/debug"
	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// Capture is one named capture produced by RunQuery.
type Capture struct {
	Name string
	Span types.Span
	Node *types.Node
}

type grammarEntry struct {
	language           *tree_sitter.Language
	defaultQuery       *tree_sitter.Query
	defaultQuerySource string
	pool               sync.Pool
}

// Backend is the static, lazily-initialized registry of language grammars.
// Registration happens once at construction (NewBackend); there is no
// runtime reflection-based discovery.
type Backend struct {
	mu       sync.RWMutex
	grammars map[string]*grammarEntry
	lazyInit map[string]func() *grammarEntry
}

// NewBackend registers every grammar the engine ships with. Each entry is
// set up lazily on first Parse/RunQuery call for that language.
func NewBackend() *Backend {
	b := &Backend{
		grammars: make(map[string]*grammarEntry),
		lazyInit: make(map[string]func() *grammarEntry),
	}
	b.registerLazy("go", setupGo)
	b.registerLazy("python", setupPython)
	b.registerLazy("rust", setupRust)
	b.registerLazy("java", setupJava)
	b.registerLazy("c", setupCpp)
	b.registerLazy("cpp", setupCpp)
	b.registerLazy("c-sharp", setupCSharp)
	b.registerLazy("php", setupPHP)
	b.registerLazy("zig", setupZig)
	b.registerLazy("javascript", setupJavaScript)
	b.registerLazy("typescript", setupTypeScript)
	return b
}

func (b *Backend) registerLazy(languageID string, setup func() *grammarEntry) {
	b.lazyInit[languageID] = setup
}

// Languages returns every language id this backend can lazily initialize a
// grammar for, in no particular order.
func (b *Backend) Languages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	langs := make([]string, 0, len(b.lazyInit))
	for id := range b.lazyInit {
		langs = append(langs, id)
	}
	return langs
}

// DefaultPatternSource returns the built-in extraction query shipped with
// languageID's grammar (the same query setupXxx registers as the grammar's
// defaultQuery), for a host to register as a starter AST_Query pattern.
// The second result is false if the language is unknown or its grammar
// failed to attach.
func (b *Backend) DefaultPatternSource(languageID string) (string, bool) {
	g, ok := b.ensure(languageID)
	if !ok || g.defaultQuery == nil {
		return "", false
	}
	return g.defaultQuerySource, true
}

// Supports reports whether a grammar is registered for languageID, without
// triggering its lazy initialization. The Unified Parser facade uses
// this to decide backend precedence before committing to a Parse call.
func (b *Backend) Supports(languageID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.grammars[languageID]; ok {
		return true
	}
	_, ok := b.lazyInit[languageID]
	return ok
}

func (b *Backend) ensure(languageID string) (*grammarEntry, bool) {
	b.mu.RLock()
	g, ok := b.grammars[languageID]
	b.mu.RUnlock()
	if ok {
		return g, true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.grammars[languageID]; ok {
		return g, true
	}
	setup, ok := b.lazyInit[languageID]
	if !ok {
		return nil, false
	}
	g = setup()
	if g == nil {
		return nil, false
	}
	b.grammars[languageID] = g
	return g, true
}

func (g *grammarEntry) acquireParser() *tree_sitter.Parser {
	if p, ok := g.pool.Get().(*tree_sitter.Parser); ok {
		return p
	}
	p := tree_sitter.NewParser()
	_ = p.SetLanguage(g.language)
	return p
}

func (g *grammarEntry) releaseParser(p *tree_sitter.Parser) {
	g.pool.Put(p)
}

// Parse implements parse(language_id, bytes) -> ParseTree. Parsing is
// total and never panics: malformed input produces has_error/is_missing
// nodes, and any CGO panic is recovered and turned into a BackendError.
func (b *Backend) Parse(languageID string, source []byte) (tree *types.ParseTree, err error) {
	g, ok := b.ensure(languageID)
	if !ok {
		return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, languageID, fmt.Errorf("no grammar registered"))
	}

	// Defensive copy: tree-sitter's C core may retain pointers into the
	// buffer it was given across the parser's lifetime.
	buf := make([]byte, len(source))
	copy(buf, source)

	defer func() {
		if r := recover(); r != nil {
			debug.LogIndexing("astbackend: recovered panic parsing %s: %v", languageID, r)
			err = cerrors.NewBackendError(cerrors.BackendUnavailable, languageID, fmt.Errorf("parser panic: %v", r))
		}
	}()

	parser := g.acquireParser()
	defer g.releaseParser(parser)

	tsTree := parser.Parse(buf, nil)
	if tsTree == nil {
		return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, languageID, fmt.Errorf("parse returned nil tree"))
	}
	defer tsTree.Close()

	root := convertNode(tsTree.RootNode(), buf)
	return &types.ParseTree{Root: root, Source: buf, Language: languageID, Backend: "ast"}, nil
}

func convertNode(n *tree_sitter.Node, source []byte) *types.Node {
	if n == nil {
		return nil
	}
	start, end := n.StartPosition(), n.EndPosition()
	span := types.Span{
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: types.Point{Row: int(start.Row), Column: int(start.Column)},
		EndPoint:   types.Point{Row: int(end.Row), Column: int(end.Column)},
	}

	node := &types.Node{
		Kind:      n.Kind(),
		Span:      span,
		HasError:  n.HasError(),
		IsMissing: n.IsMissing(),
	}

	childCount := int(n.ChildCount())
	if childCount == 0 {
		if int(span.EndByte) <= len(source) {
			node.Text = source[span.StartByte:span.EndByte]
		}
		return node
	}

	node.Children = make([]*types.Node, 0, childCount)
	for i := 0; i < childCount; i++ {
		child := n.Child(uint(i))
		if child == nil {
			continue
		}
		converted := convertNode(child, source)
		if fieldName := n.FieldNameForChild(uint(i)); fieldName != "" {
			converted.FieldName = fieldName
		}
		node.Children = append(node.Children, converted)
	}
	return node
}

// CompileQuery compiles a tree-sitter query string for one language, for
// use as a Pattern's Compiled value (wired into the Pattern Registry via
// RegisterCompiler(PatternKindASTQuery, backend.CompileQuery)).
func (b *Backend) CompileQuery(languageID, source string) (*tree_sitter.Query, error) {
	g, ok := b.ensure(languageID)
	if !ok {
		return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, languageID, fmt.Errorf("no grammar registered"))
	}
	q, err := tree_sitter.NewQuery(g.language, source)
	if q == nil {
		// The go-tree-sitter binding can return a typed-nil error even on
		// success; treat a nil query as the only reliable failure signal.
		if err == nil {
			err = fmt.Errorf("query compilation produced no query")
		}
		return nil, err
	}
	return q, nil
}

// RunQuery implements run_query(tree, compiled_query) -> []Capture.
// Captures are produced in a deterministic pre-order traversal; ties
// between overlapping captures are broken by (earlier start_byte, then
// longer span, then registration order within the match).
func (b *Backend) RunQuery(tree *types.ParseTree, compiled *tree_sitter.Query) ([]Capture, error) {
	g, ok := b.ensure(tree.Language)
	if !ok {
		return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, tree.Language, fmt.Errorf("no grammar registered"))
	}

	parser := g.acquireParser()
	defer g.releaseParser(parser)

	tsTree := parser.Parse(tree.Source, nil)
	if tsTree == nil {
		return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, tree.Language, fmt.Errorf("re-parse for query failed"))
	}
	defer tsTree.Close()

	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	names := compiled.CaptureNames()
	matches := cursor.Matches(compiled, tsTree.RootNode(), tree.Source)

	var captures []Capture
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			start, end := c.Node.StartPosition(), c.Node.EndPosition()
			span := types.Span{
				StartByte:  c.Node.StartByte(),
				EndByte:    c.Node.EndByte(),
				StartPoint: types.Point{Row: int(start.Row), Column: int(start.Column)},
				EndPoint:   types.Point{Row: int(end.Row), Column: int(end.Column)},
			}
			name := ""
			if int(c.Index) < len(names) {
				name = names[c.Index]
			}
			captures = append(captures, Capture{
				Name: name,
				Span: span,
				Node: convertNode(&c.Node, tree.Source),
			})
		}
	}

	sort.SliceStable(captures, func(i, j int) bool {
		if captures[i].Span.StartByte != captures[j].Span.StartByte {
			return captures[i].Span.StartByte < captures[j].Span.StartByte
		}
		return captures[i].Span.Len() > captures[j].Span.Len()
	})

	return captures, nil
}
