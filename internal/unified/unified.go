// Package unified implements the facade every host calls: parse(path,
// bytes, options) -> ParserResult. It is the only component that knows
// about every other one — classifier, AST/custom backends, registry,
// pattern engine, block extractor, feature extractor, cache coordinator,
// and telemetry hub — and its entire job is wiring them in a fixed order
// while guaranteeing the call never panics and never returns anything but
// a ParserResult.
//
// The total-parse guarantee is enforced the same way astbackend already
// enforces it for a single grammar: every stage's error is converted into
// a result value and attached to ParserResult.Errors rather than allowed
// to escape, and a deferred recover() is the last line of defense against
// a subcomponent panic the individual packages didn't already guard.
package unified

import (
	"context"
	"fmt"
	"time"

	"github.com/Zmaroo/RepoAnalyzer/internal/astbackend"
	"github.com/Zmaroo/RepoAnalyzer/internal/blocks"
	"github.com/Zmaroo/RepoAnalyzer/internal/cache"
	"github.com/Zmaroo/RepoAnalyzer/internal/classifier"
	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
	"github.com/Zmaroo/RepoAnalyzer/internal/features"
	"github.com/Zmaroo/RepoAnalyzer/internal/patternengine"
	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/telemetry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// CustomBackend is the polymorphic contract for formats without a
// tree-sitter grammar: parse bytes for one named format, and report
// whether this instance handles a given format id. Every custombackend.*
// type (JavaScript, TOML, and the line-oriented Markdown/RST/INI/...
// family) satisfies this.
type CustomBackend interface {
	Supports(format string) bool
	Parse(source []byte) (*types.ParseTree, error)
}

// treeEntry adapts a cached ParseTree to the persistent cache's Sizeable
// contract with a cheap structural estimate, the same way patternengine's
// matchList does for cached matches.
type treeEntry struct{ tree *types.ParseTree }

func (t treeEntry) SizeBytes() int {
	if t.tree == nil {
		return 32
	}
	return 64 + len(t.tree.Source) + countNodes(t.tree.Root)*48
}

func countNodes(n *types.Node) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

// Parser is the Unified Parser facade. Construct one with New and reuse it
// across every parse call; it holds no per-call mutable state itself (each
// call builds its own request cache, pattern engine instance, and
// telemetry session).
type Parser struct {
	classify   *classifier.Classifier
	ast        *astbackend.Backend
	custom     []CustomBackend
	registry   *registry.Registry
	coord      *cache.Coordinator
	hub        *telemetry.Hub
	blockExt   *blocks.Extractor
	featureExt *features.Extractor
	maxWorkers int
}

// New wires the facade from its already-constructed subcomponents. custom
// is the set of registered custom-format backends (order matters only in
// that the first Supports match wins); reg should already have its
// AST-query compiler registered (see RegisterASTQueryCompiler).
func New(cl *classifier.Classifier, ast *astbackend.Backend, custom []CustomBackend, reg *registry.Registry, coord *cache.Coordinator, hub *telemetry.Hub, maxWorkers int) *Parser {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Parser{
		classify:   cl,
		ast:        ast,
		custom:     custom,
		registry:   reg,
		coord:      coord,
		hub:        hub,
		blockExt:   blocks.New(),
		featureExt: features.NewExtractor(),
		maxWorkers: maxWorkers,
	}
}

// Registry exposes the pattern registry this facade was built with, for
// hosts that need to register patterns/compilers after construction or
// expose patterns_for directly.
func (p *Parser) Registry() *registry.Registry {
	return p.registry
}

// RegisterASTQueryCompiler wires the AST backend's query compilation into
// the registry as the PatternKindASTQuery compiler, so patterns of that
// kind become runnable the first time the registry lazily compiles them.
func RegisterASTQueryCompiler(reg *registry.Registry, ast *astbackend.Backend) {
	reg.RegisterCompiler(types.PatternKindASTQuery, func(p *types.Pattern) (any, error) {
		return ast.CompileQuery(p.LanguageID, p.Source)
	})
}

// RegisterDefaultPatterns registers one built-in AST_Query pattern per
// language ast knows a grammar for, sourced from that grammar's own
// default extraction query (functions, methods, classes, imports, ...).
// A host that wants patterns_for(language) to return something out of
// the box, without supplying its own pattern set, calls this once after
// RegisterASTQueryCompiler; a host with a curated pattern set of its own
// can skip it entirely.
func RegisterDefaultPatterns(reg *registry.Registry, ast *astbackend.Backend) {
	for _, lang := range ast.Languages() {
		source, ok := ast.DefaultPatternSource(lang)
		if !ok || source == "" {
			continue
		}
		reg.RegisterPattern(&types.Pattern{
			ID:         lang + ".default",
			LanguageID: lang,
			Category:   types.CategoryStructure,
			Kind:       types.PatternKindASTQuery,
			Source:     source,
		})
	}
}

// Parse runs parse(path, bytes, options) -> ParserResult. It never panics
// and never returns an error; failures are reported inside the returned
// ParserResult.
func (p *Parser) Parse(ctx context.Context, path string, source []byte, opts types.ParserOptions) (result types.ParserResult) {
	session := p.hub.NewSession()

	defer func() {
		if r := recover(); r != nil {
			session.RecordError(cerrors.NewClassificationError(path, errPanic{r}))
			result.Success = false
			result.Errors = session.Errors()
			result.Telemetry = session.Finish()
		}
	}()

	sniffLen := len(source)
	if sniffLen > 64*1024 {
		sniffLen = 64 * 1024
	}
	classification, err := p.classify.Classify(path, source[:sniffLen])
	if err != nil {
		session.RecordError(err)
		return types.ParserResult{
			Success:        false,
			Classification: classification,
			Errors:         session.Errors(),
			Telemetry:      session.Finish(),
		}
	}

	// Short-circuit: no parser serves this unit (binary content, or a
	// format the engine has no backend for). Still a successful result
	// with empty matches/blocks.
	if classification.ParserKind == types.ParserKindNone || classification.FileKind == types.FileKindBinary {
		return types.ParserResult{
			Success:        true,
			Classification: classification,
			Telemetry:      session.Finish(),
		}
	}

	select {
	case <-ctx.Done():
		session.RecordError(cerrors.NewCancelledError("unified-parse"))
		return types.ParserResult{
			Success:        false,
			Classification: classification,
			Errors:         session.Errors(),
			Telemetry:      session.Finish(),
		}
	default:
	}

	tree, backendErr := p.resolveAndParse(classification, source)
	if backendErr != nil {
		session.RecordError(backendErr)
		return types.ParserResult{
			Success:        false,
			Classification: classification,
			Errors:         session.Errors(),
			Telemetry:      session.Finish(),
		}
	}

	request := cache.NewRequestCache()
	if !opts.RequestCacheEnabled {
		request = nil
	}

	engine := patternengine.NewEngine(p.ast, p.registry, p.coord, p.maxWorkers)
	engine.SetRecorder(session)

	for _, pattern := range p.registry.PatternsFor(classification.LanguageID) {
		for _, ptn := range pattern {
			session.MarkPatternRun(ptn.ID)
		}
	}

	patternCtx, cancel := boundedContext(ctx, opts.PatternTimeoutMS)
	defer cancel()

	matches, err := engine.ProcessAll(patternCtx, tree, classification.LanguageID, opts.Categories, request)
	if err != nil {
		session.RecordError(err)
		matches = nil
	}
	session.AddMatches(len(matches))

	var extractedBlocks []types.ExtractedBlock
	if opts.ExtractBlocks {
		for _, m := range matches {
			if block, ok := p.blockExt.FromMatch(classification.LanguageID, tree.Source, tree, m, true); ok {
				extractedBlocks = append(extractedBlocks, *block)
			}
		}
	}

	var featureSet types.FeatureSet
	if opts.ExtractFeatures {
		featureSet = p.featureExt.Build(tree, classification.LanguageID, matches, p.registry)
	}

	res := types.ParserResult{
		Success:        true,
		Classification: classification,
		Matches:        matches,
		Blocks:         extractedBlocks,
		Features:       featureSet,
		Errors:         session.Errors(),
		Telemetry:      session.Finish(),
	}
	if opts.IncludeAST {
		res.Tree = tree
	}
	return res
}

// boundedContext derives the per-call pattern-matching deadline from
// pattern_timeout_ms: a non-positive timeout leaves ctx unbounded,
// otherwise the returned context is cancelled no later than timeoutMS
// after now, whichever deadline fires first.
func boundedContext(ctx context.Context, timeoutMS int) (context.Context, context.CancelFunc) {
	if timeoutMS <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
}

// resolveAndParse picks a backend (custom if registered for the
// language, else AST, else the classifier's declared fallbacks) and
// consults the persistent "ast" cache by content hash before invoking
// it.
func (p *Parser) resolveAndParse(classification types.Classification, source []byte) (*types.ParseTree, error) {
	contentHash := cache.ContentHash(source)
	key := contentHashKey(classification.LanguageID, contentHash)

	if nc, ok := p.coord.Cache("ast"); ok {
		if v, hit := nc.Get(key); hit {
			if te, ok := v.(treeEntry); ok {
				return te.tree, nil
			}
		}
	}

	tree, err := p.parseWithBackend(classification.LanguageID, source)
	if err != nil {
		for _, fallback := range classification.Fallbacks {
			tree, err = p.parseWithBackend(fallback, source)
			if err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	if nc, ok := p.coord.Cache("ast"); ok {
		nc.Set(key, treeEntry{tree: tree}, 0, nil)
	}
	return tree, nil
}

func contentHashKey(languageID string, hash uint64) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hextable[hash&0xf]
		hash >>= 4
	}
	return languageID + "/" + string(buf)
}

// parseWithBackend tries the custom backends first when one is registered
// for languageID (custom backends are narrower and cheaper than firing up
// a tree-sitter grammar), then the AST backend.
func (p *Parser) parseWithBackend(languageID string, source []byte) (*types.ParseTree, error) {
	for _, cb := range p.custom {
		if cb.Supports(languageID) {
			return cb.Parse(source)
		}
	}
	if p.ast.Supports(languageID) {
		return p.ast.Parse(languageID, source)
	}
	return nil, cerrors.NewBackendError(cerrors.BackendUnavailable, languageID, errNoBackend{})
}

type errNoBackend struct{}

func (errNoBackend) Error() string { return "no backend registered for language" }

// errPanic wraps a recovered panic value so it can travel through the
// errors package's ClassificationError the same way any other error does.
type errPanic struct{ v any }

func (e errPanic) Error() string { return fmt.Sprintf("recovered panic in unified parser: %v", e.v) }
