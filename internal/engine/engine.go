// Package engine wires a loaded config.Config into a ready-to-use Unified
// Parser and exposes the external-interface surface an embedding host
// needs: parse, classify, patterns_for, cache_coordinator.invalidate
// (prefix), and telemetry.subscribe(sink). It is the single construction
// point every cmd/ entrypoint (CLI, MCP server, file watcher) calls
// instead of wiring every subsystem by hand.
package engine

import (
	"context"
	"time"

	"github.com/Zmaroo/RepoAnalyzer/internal/astbackend"
	"github.com/Zmaroo/RepoAnalyzer/internal/cache"
	"github.com/Zmaroo/RepoAnalyzer/internal/classifier"
	"github.com/Zmaroo/RepoAnalyzer/internal/config"
	"github.com/Zmaroo/RepoAnalyzer/internal/custombackend"
	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/telemetry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
	"github.com/Zmaroo/RepoAnalyzer/internal/unified"
)

// Engine bundles one cfg-driven Unified Parser with the cache coordinator
// and telemetry hub a host needs direct access to for invalidation and
// monitoring — operations a host drives independently of
// parse/classify/patterns_for.
type Engine struct {
	cfg        *config.Config
	classifier *classifier.Classifier
	parser     *unified.Parser
	coord      *cache.Coordinator
	hub        *telemetry.Hub
}

// New builds every subsystem from cfg: the classifier (seeded with
// cfg.Exclude), the tree-sitter AST backend, the full set of
// custombackend.* formats (TOML and JavaScript have dedicated parsers;
// the remaining line-oriented formats share custombackend.lineBackend),
// a pattern registry with the AST query compiler and one built-in
// AST_Query pattern per grammar language pre-registered, a cache
// coordinator sized from cfg.Cache, and a telemetry hub — then
// assembles the Unified Parser facade from all of it.
func New(cfg *config.Config) *Engine {
	cl := classifier.New().WithExcludeGlobs(cfg.Exclude)
	ast := astbackend.NewBackend()

	reg := registry.New()
	unified.RegisterASTQueryCompiler(reg, ast)
	unified.RegisterDefaultPatterns(reg, ast)

	coord := cache.NewCoordinator(
		cfg.Cache.ASTBudgetBytes,
		cfg.Cache.PatternBudgetBytes,
		cfg.Cache.ClassificationBudgetBytes,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second,
	)
	hub := telemetry.NewHub()

	custom := []unified.CustomBackend{
		custombackend.NewTOML(),
		custombackend.NewJavaScript(),
		custombackend.NewINI(),
		custombackend.NewEnv(),
		custombackend.NewEditorConfig(),
		custombackend.NewYAML(),
		custombackend.NewMarkdown(),
		custombackend.NewRST(),
		custombackend.NewAsciiDoc(),
		custombackend.NewGraphQLLite(),
		custombackend.NewXML(),
		custombackend.NewJSON(),
		custombackend.NewPlainText(),
	}

	parser := unified.New(cl, ast, custom, reg, coord, hub, cfg.Pattern.MaxWorkers)

	return &Engine{
		cfg:        cfg,
		classifier: cl,
		parser:     parser,
		coord:      coord,
		hub:        hub,
	}
}

// RegisterPattern adds a pattern to the engine's registry. Hosts call this
// during startup to populate the patterns a later PatternsFor/Parse call
// can match against, alongside the "<language>.default" pattern New
// already registers for each grammar.
func (e *Engine) RegisterPattern(p *types.Pattern) {
	e.parser.Registry().RegisterPattern(p)
}

// RegisterPatternCompiler installs the compiler for a pattern kind,
// replacing any existing one (the registry has built-in regex and literal
// compilers, and New wires the AST-query compiler).
func (e *Engine) RegisterPatternCompiler(kind types.PatternKind, c registry.Compiler) {
	e.parser.Registry().RegisterCompiler(kind, c)
}

// Parse runs the full pipeline for one file: classify, resolve a
// backend, extract patterns/blocks/features, and return a ParserResult
// that is always populated even on internal failure.
func (e *Engine) Parse(ctx context.Context, path string, source []byte, opts types.ParserOptions) types.ParserResult {
	return e.parser.Parse(ctx, path, source, opts)
}

// Classify runs the classifier alone, for hosts that only need a file's
// language and kind without paying for a full parse.
func (e *Engine) Classify(path string, bytesPrefix []byte) (types.Classification, error) {
	return e.classifier.Classify(path, bytesPrefix)
}

// PatternsFor returns every registered pattern for languageID, grouped by
// category, the same shape the underlying registry exposes internally.
func (e *Engine) PatternsFor(languageID string) map[types.PatternCategory][]*types.Pattern {
	return e.parser.Registry().PatternsFor(languageID)
}

// InvalidatePrefix evicts every cached entry (AST, pattern match, and
// classification) whose key starts with prefix, the hook a file watcher
// calls after a filesystem change.
func (e *Engine) InvalidatePrefix(prefix string) {
	e.coord.InvalidatePrefix(prefix)
}

// Subscribe registers sink to receive every pattern-recovery metric the
// engine emits from this point on.
func (e *Engine) Subscribe(sink telemetry.Sink) {
	e.hub.Subscribe(sink)
}

// CacheStats reports hit-rate health per named cache, for a host's own
// status surface.
func (e *Engine) CacheStats() map[string]cache.NamedCacheStats {
	return e.coord.Stats()
}

// TelemetrySnapshot reports the running per-pattern success-rate tally,
// for a host's own status surface.
func (e *Engine) TelemetrySnapshot() map[string]telemetry.PatternStats {
	return e.hub.Snapshot()
}

// DefaultParserOptions returns the ParserOptions cfg.Pattern seeds, for
// hosts that want the configured defaults before applying their own
// per-call overrides.
func (e *Engine) DefaultParserOptions() types.ParserOptions {
	return e.cfg.Pattern.ToParserOptions()
}
