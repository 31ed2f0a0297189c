// Package patternengine runs compiled patterns from the Pattern Registry
// over a parse tree and orchestrates the three recovery strategies a
// pattern falls back through when it comes back empty on a unit that
// should plausibly have matched.
//
// The fast/slow split here is "AST query succeeded" vs "recovery
// strategy", and results are memoized through the shared persistent/
// request cache tiers instead of a dedicated cache type.
package patternengine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/Zmaroo/RepoAnalyzer/internal/astbackend"
	"github.com/Zmaroo/RepoAnalyzer/internal/cache"
	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

const defaultStrategyBudget = 50 * time.Millisecond

// Recorder observes a single strategy attempt, feeding C10 telemetry.
// Callers that don't care about telemetry may leave it unset.
type Recorder interface {
	RecordAttempt(patternID, strategy string, success bool, elapsed time.Duration)
}

type nullRecorder struct{}

func (nullRecorder) RecordAttempt(string, string, bool, time.Duration) {}

// matchList adapts []types.PatternMatch to the persistent cache's Sizeable
// contract with a cheap structural estimate rather than exact serialization.
type matchList []types.PatternMatch

func (m matchList) SizeBytes() int {
	size := 64
	for _, match := range m {
		size += 96
		for name, spans := range match.Captures {
			size += len(name) + len(spans)*24
		}
	}
	return size
}

// Engine evaluates patterns against parse trees.
type Engine struct {
	backend    *astbackend.Backend
	registry   *registry.Registry
	coord      *cache.Coordinator
	maxWorkers int
	recorder   Recorder
}

// NewEngine wires the pieces the engine needs: the AST backend to run
// compiled queries, the registry to resolve fallback pattern ids, and the
// cache coordinator for the persistent pattern-result memoization.
func NewEngine(backend *astbackend.Backend, reg *registry.Registry, coord *cache.Coordinator, maxWorkers int) *Engine {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Engine{backend: backend, registry: reg, coord: coord, maxWorkers: maxWorkers, recorder: nullRecorder{}}
}

// SetRecorder installs the telemetry sink for strategy attempts.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = nullRecorder{}
	}
	e.recorder = r
}

func persistentKey(pattern *types.Pattern, contentHash uint64) string {
	return fmt.Sprintf("%s/%s/%x", pattern.LanguageID, pattern.ID, contentHash)
}

// Process implements process(tree, source_bytes, pattern) -> []PatternMatch.
// request may be nil when no request-scoped cache is in play.
func (e *Engine) Process(ctx context.Context, tree *types.ParseTree, pattern *types.Pattern, request *cache.RequestCache) ([]types.PatternMatch, error) {
	if pattern == nil {
		return nil, fmt.Errorf("patternengine: nil pattern")
	}
	if pattern.Unusable {
		return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, pattern.ID, pattern.LanguageID, fmt.Errorf("pattern marked unusable"))
	}
	select {
	case <-ctx.Done():
		return nil, cerrors.NewCancelledError("pattern-engine")
	default:
	}

	contentHash := cache.ContentHash(tree.Source)
	key := persistentKey(pattern, contentHash)

	if nc, ok := e.coord.Cache("pattern"); ok {
		if v, hit := nc.Get(key); hit {
			if ml, ok := v.(matchList); ok {
				return []types.PatternMatch(ml), nil
			}
		}
	}
	if request != nil {
		if v, ok := request.Get("recovered:" + key); ok {
			if ml, ok := v.(matchList); ok {
				return []types.PatternMatch(ml), nil
			}
		}
	}

	matches, err := e.evaluate(tree, pattern)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 || !shouldAttemptRecovery(tree, pattern) {
		matches = dedupeAndSort(matches)
		if nc, ok := e.coord.Cache("pattern"); ok {
			nc.Set(key, matchList(matches), 0, nil)
		}
		return matches, nil
	}

	recovered := e.recover(ctx, tree, pattern, request)
	recovered = dedupeAndSort(recovered)
	if request != nil {
		request.Set("recovered:"+key, matchList(recovered))
	}
	return recovered, nil
}

// ProcessAll implements process_all(tree, source_bytes, language_id,
// categories?) -> []PatternMatch, fanning independent pattern evaluations
// for the same tree across a bounded worker pool.
func (e *Engine) ProcessAll(ctx context.Context, tree *types.ParseTree, languageID string, categories []types.PatternCategory, request *cache.RequestCache) ([]types.PatternMatch, error) {
	byCategory := e.registry.PatternsFor(languageID)
	var patterns []*types.Pattern
	if len(categories) == 0 {
		for _, ps := range byCategory {
			patterns = append(patterns, ps...)
		}
	} else {
		for _, cat := range categories {
			patterns = append(patterns, byCategory[cat]...)
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	results := make([][]types.PatternMatch, len(patterns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)

	for i, p := range patterns {
		i, p := i, p
		g.Go(func() error {
			matches, err := e.Process(gctx, tree, p, request)
			if err != nil {
				return err
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []types.PatternMatch
	for _, r := range results {
		all = append(all, r...)
	}
	return dedupeAndSort(all), nil
}

// evaluate runs one pattern's compiled form against the tree with no
// recovery attempted.
func (e *Engine) evaluate(tree *types.ParseTree, pattern *types.Pattern) ([]types.PatternMatch, error) {
	switch pattern.Kind {
	case types.PatternKindASTQuery:
		query, ok := pattern.Compiled.(*tree_sitter.Query)
		if !ok {
			return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, pattern.ID, pattern.LanguageID, fmt.Errorf("compiled value is not an AST query"))
		}
		captures, err := e.backend.RunQuery(tree, query)
		if err != nil {
			return nil, err
		}
		return capturesToMatches(pattern, captures), nil
	case types.PatternKindRegex:
		re, ok := pattern.Compiled.(*regexp.Regexp)
		if !ok {
			return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, pattern.ID, pattern.LanguageID, fmt.Errorf("compiled value is not a regex"))
		}
		return regexMatches(pattern, re, tree.Source), nil
	case types.PatternKindLiteral:
		lit, ok := pattern.Compiled.(string)
		if !ok {
			return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, pattern.ID, pattern.LanguageID, fmt.Errorf("compiled value is not a literal"))
		}
		return literalMatches(pattern, lit, tree.Source), nil
	default:
		return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, pattern.ID, pattern.LanguageID, fmt.Errorf("unknown pattern kind"))
	}
}

// shouldAttemptRecovery decides whether an empty match is worth
// recovering: language known, bytes non-empty, and the pattern's category
// is one where an empty result is surprising enough to chase.
func shouldAttemptRecovery(tree *types.ParseTree, pattern *types.Pattern) bool {
	if tree == nil || len(tree.Source) == 0 || tree.Language == "" {
		return false
	}
	switch pattern.Category {
	case types.CategorySyntax, types.CategoryStructure:
		return true
	default:
		return false
	}
}

// recover runs the three strategies in order, returning the first
// non-empty result. Each strategy attempt is recorded via e.recorder.
func (e *Engine) recover(ctx context.Context, tree *types.ParseTree, pattern *types.Pattern, request *cache.RequestCache) []types.PatternMatch {
	if matches := e.timedStrategy(ctx, "fallback-patterns", pattern.ID, func() []types.PatternMatch {
		return e.recoverFallbackPatterns(ctx, tree, pattern, request)
	}); len(matches) > 0 {
		return matches
	}

	if matches := e.timedStrategy(ctx, "regex-fallback", pattern.ID, func() []types.PatternMatch {
		return e.recoverRegexFallback(pattern, tree.Source)
	}); len(matches) > 0 {
		return matches
	}

	if matches := e.timedStrategy(ctx, "partial-match", pattern.ID, func() []types.PatternMatch {
		return e.recoverPartialMatch(tree, pattern)
	}); len(matches) > 0 {
		return matches
	}

	return nil
}

func (e *Engine) timedStrategy(ctx context.Context, name, patternID string, fn func() []types.PatternMatch) []types.PatternMatch {
	done := make(chan []types.PatternMatch, 1)
	start := time.Now()
	go func() {
		done <- fn()
	}()

	select {
	case matches := <-done:
		elapsed := time.Since(start)
		e.recorder.RecordAttempt(patternID, name, len(matches) > 0, elapsed)
		return matches
	case <-time.After(defaultStrategyBudget):
		e.recorder.RecordAttempt(patternID, name, false, defaultStrategyBudget)
		return nil
	case <-ctx.Done():
		e.recorder.RecordAttempt(patternID, name, false, time.Since(start))
		return nil
	}
}

// recoverFallbackPatterns tries each id in fallback_ids through the same
// engine; the first non-empty result wins.
func (e *Engine) recoverFallbackPatterns(ctx context.Context, tree *types.ParseTree, pattern *types.Pattern, request *cache.RequestCache) []types.PatternMatch {
	for _, fallbackID := range pattern.FallbackIDs {
		fb := e.registry.Get(pattern.LanguageID, fallbackID)
		if fb == nil || fb.Unusable {
			continue
		}
		matches, err := e.Process(ctx, tree, fb, request)
		if err == nil && len(matches) > 0 {
			return matches
		}
	}
	return nil
}

// recoverRegexFallback compiles recovery_regex (if present) and applies it
// line by line, synthesizing matches with confidence 0.4. Capturing groups
// in the regex become named captures on the synthesized match (named
// groups keyed by name, unnamed groups keyed by "group<N>"), in addition
// to the whole-match span under "recovery".
func (e *Engine) recoverRegexFallback(pattern *types.Pattern, source []byte) []types.PatternMatch {
	if pattern.RecoveryRegex == "" {
		return nil
	}
	re, err := regexp.Compile(pattern.RecoveryRegex)
	if err != nil {
		return nil
	}
	names := re.SubexpNames()

	var matches []types.PatternMatch
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	offset := uint32(0)
	row := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		loc := re.FindSubmatchIndex(line)
		if loc == nil {
			offset += uint32(len(line)) + 1
			row++
			continue
		}

		spanFor := func(start, end int) types.Span {
			return types.Span{
				StartByte:  offset + uint32(start),
				EndByte:    offset + uint32(end),
				StartPoint: types.Point{Row: row, Column: start},
				EndPoint:   types.Point{Row: row, Column: end},
			}
		}

		primary := spanFor(loc[0], loc[1])
		captures := map[string][]types.Span{"recovery": {primary}}
		for i := 1; i*2+1 < len(loc); i++ {
			start, end := loc[2*i], loc[2*i+1]
			if start < 0 || end < 0 {
				continue
			}
			name := ""
			if i < len(names) {
				name = names[i]
			}
			if name == "" {
				name = fmt.Sprintf("group%d", i)
			}
			captures[name] = append(captures[name], spanFor(start, end))
		}

		matches = append(matches, types.PatternMatch{
			PatternID:   pattern.ID,
			Captures:    captures,
			PrimarySpan: primary,
			NodeKind:    "regex-recovery",
			Confidence:  0.4,
		})

		offset += uint32(len(line)) + 1
		row++
	}
	return matches
}

// recoverPartialMatch runs the query against the tree and keeps only
// captures that fall entirely within one top-level child of the root,
// unioning the per-child results with confidence 0.5. The AST backend
// always re-derives its native tree from source bytes rather than holding
// a long-lived CGO handle, so "query each child separately" and "query
// once, then partition by child span" produce the same result set here.
func (e *Engine) recoverPartialMatch(tree *types.ParseTree, pattern *types.Pattern) []types.PatternMatch {
	if pattern.Kind != types.PatternKindASTQuery || tree.Root == nil {
		return nil
	}
	query, ok := pattern.Compiled.(*tree_sitter.Query)
	if !ok {
		return nil
	}
	captures, err := e.backend.RunQuery(tree, query)
	if err != nil {
		return nil
	}

	var kept []astbackend.Capture
	for _, c := range captures {
		for _, child := range tree.Root.Children {
			if c.Span.StartByte >= child.Span.StartByte && c.Span.EndByte <= child.Span.EndByte {
				kept = append(kept, c)
				break
			}
		}
	}
	matches := capturesToMatches(pattern, kept)
	for i := range matches {
		matches[i].NodeKind = "partial-match"
		matches[i].Confidence = 0.5
	}
	return matches
}

func capturesToMatches(pattern *types.Pattern, captures []astbackend.Capture) []types.PatternMatch {
	if len(captures) == 0 {
		return nil
	}
	byPrimary := make(map[types.Span]*types.PatternMatch)
	var order []types.Span

	for _, c := range captures {
		m, ok := byPrimary[c.Span]
		if !ok {
			confidence := 1.0
			nodeKind := ""
			if c.Node != nil {
				nodeKind = c.Node.Kind
				if c.Node.HasError {
					confidence = 0.5
				}
			}
			m = &types.PatternMatch{
				PatternID:   pattern.ID,
				Captures:    make(map[string][]types.Span),
				PrimarySpan: c.Span,
				NodeKind:    nodeKind,
				Confidence:  confidence,
			}
			byPrimary[c.Span] = m
			order = append(order, c.Span)
		}
		m.Captures[c.Name] = append(m.Captures[c.Name], c.Span)
	}

	// ExtractSpec is invoked downstream by the Feature Extractor, which
	// turns a match's captures into a FeatureItem's attrs; the engine's job
	// ends at producing well-formed PatternMatch values.
	matches := make([]types.PatternMatch, 0, len(order))
	for _, span := range order {
		matches = append(matches, *byPrimary[span])
	}
	return matches
}

func regexMatches(pattern *types.Pattern, re *regexp.Regexp, source []byte) []types.PatternMatch {
	locs := re.FindAllIndex(source, -1)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]types.PatternMatch, 0, len(locs))
	for _, loc := range locs {
		span := types.Span{StartByte: uint32(loc[0]), EndByte: uint32(loc[1])}
		matches = append(matches, types.PatternMatch{
			PatternID:   pattern.ID,
			Captures:    map[string][]types.Span{"match": {span}},
			PrimarySpan: span,
			NodeKind:    "regex",
			Confidence:  0.9,
		})
	}
	return matches
}

func literalMatches(pattern *types.Pattern, literal string, source []byte) []types.PatternMatch {
	if literal == "" {
		return nil
	}
	var matches []types.PatternMatch
	lit := []byte(literal)
	start := 0
	for {
		idx := bytes.Index(source[start:], lit)
		if idx < 0 {
			break
		}
		s := start + idx
		ee := s + len(lit)
		span := types.Span{StartByte: uint32(s), EndByte: uint32(ee)}
		matches = append(matches, types.PatternMatch{
			PatternID:   pattern.ID,
			Captures:    map[string][]types.Span{"match": {span}},
			PrimarySpan: span,
			NodeKind:    "literal",
			Confidence:  1.0,
		})
		start = ee
	}
	return matches
}

// dedupeAndSort orders and de-duplicates matches: sort by (start_byte,
// -span_length, pattern_id); identical (pattern_id, primary_span) pairs
// collapse into one, merging capture sets.
func dedupeAndSort(matches []types.PatternMatch) []types.PatternMatch {
	if len(matches) == 0 {
		return matches
	}

	type dedupeKey struct {
		patternID string
		span      types.Span
	}
	merged := make(map[dedupeKey]*types.PatternMatch)
	var order []dedupeKey

	for i := range matches {
		m := matches[i]
		key := dedupeKey{patternID: m.PatternID, span: m.PrimarySpan}
		if existing, ok := merged[key]; ok {
			for name, spans := range m.Captures {
				existing.Captures[name] = append(existing.Captures[name], spans...)
			}
			if m.Confidence > existing.Confidence {
				existing.Confidence = m.Confidence
			}
			continue
		}
		copyMatch := m
		copyMatch.Captures = make(map[string][]types.Span, len(m.Captures))
		for name, spans := range m.Captures {
			copyMatch.Captures[name] = append([]types.Span(nil), spans...)
		}
		merged[key] = &copyMatch
		order = append(order, key)
	}

	out := make([]types.PatternMatch, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PrimarySpan.StartByte != out[j].PrimarySpan.StartByte {
			return out[i].PrimarySpan.StartByte < out[j].PrimarySpan.StartByte
		}
		li, lj := out[i].PrimarySpan.Len(), out[j].PrimarySpan.Len()
		if li != lj {
			return li > lj
		}
		return out[i].PatternID < out[j].PatternID
	})
	return out
}
