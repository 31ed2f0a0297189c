// Package registry implements a static, lazily-compiling Pattern
// Registry. Patterns are registered up front by language (no reflection,
// no import-for-side-effects discovery — new languages are added by
// calling Register, the same static-registry idiom the engine already
// used for community tree-sitter grammars), then compiled lazily on first
// use and cached until an explicit Clear or ClearLanguage.
package registry

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	cerrors "github.com/Zmaroo/RepoAnalyzer/internal/errors"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// Compiler turns a Pattern's source into its Compiled form for one kind.
// AST backends register an ASTQueryCompiler; regex/literal patterns use
// the registry's built-in compiler.
type Compiler func(pattern *types.Pattern) (any, error)

// languageAliases closes the table of accepted spellings down to the
// canonical ids the registry stores patterns under.
var languageAliases = map[string]string{
	"js":  "javascript",
	"ts":  "typescript",
	"yml": "yaml",
	"c++": "cpp",
	"py":  "python",
	"rb":  "ruby",
}

// Normalize lower-cases and aliases a language identifier.
func Normalize(languageID string) string {
	id := strings.ToLower(languageID)
	if canon, ok := languageAliases[id]; ok {
		return canon
	}
	return id
}

type languageBucket struct {
	byCategory map[types.PatternCategory][]*types.Pattern
	byID       map[string]*types.Pattern
}

// Registry holds pattern definitions organized language_id -> category ->
// pattern_id -> Pattern, with lazy per-pattern compilation.
type Registry struct {
	mu        sync.RWMutex
	languages map[string]*languageBucket
	compilers map[types.PatternKind]Compiler
	group     singleflight.Group
}

// New returns an empty Registry. Compilers for AST_Query patterns must be
// supplied by the host wiring the AST backend in (RegisterCompiler);
// Regex and Literal patterns compile against the stdlib regexp package by
// default via the built-in compiler below.
func New() *Registry {
	r := &Registry{
		languages: make(map[string]*languageBucket),
		compilers: make(map[types.PatternKind]Compiler),
	}
	r.compilers[types.PatternKindRegex] = compileRegexPattern
	r.compilers[types.PatternKindLiteral] = compileLiteralPattern
	return r
}

// RegisterCompiler installs (or replaces) the compiler used for one
// PatternKind, e.g. the AST backend wires its query compiler in here.
func (r *Registry) RegisterCompiler(kind types.PatternKind, c Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compilers[kind] = c
}

// RegisterPattern adds one pattern definition. Registration is metadata
// only — compilation happens lazily on first PatternsFor/Get call.
func (r *Registry) RegisterPattern(p *types.Pattern) {
	lang := Normalize(p.LanguageID)
	p.LanguageID = lang

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.languages[lang]
	if !ok {
		bucket = &languageBucket{
			byCategory: make(map[types.PatternCategory][]*types.Pattern),
			byID:       make(map[string]*types.Pattern),
		}
		r.languages[lang] = bucket
	}
	bucket.byID[p.ID] = p
	bucket.byCategory[p.Category] = append(bucket.byCategory[p.Category], p)
}

// ensureCompiled compiles p exactly once across concurrent callers
// (singleflight), demoting it to Regex on AST compilation failure, or
// marking it Unusable if no recovery_regex exists.
func (r *Registry) ensureCompiled(p *types.Pattern) error {
	if p.Compiled != nil || p.Unusable {
		return nil
	}
	key := p.LanguageID + "/" + p.ID
	_, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		compiler, ok := r.compilers[p.Kind]
		r.mu.RUnlock()
		if !ok {
			return nil, cerrors.NewPatternError(cerrors.PatternInvalidSpec, p.ID, p.LanguageID,
				fmt.Errorf("no compiler registered for kind %v", p.Kind))
		}

		compiled, cerr := compiler(p)
		if cerr != nil {
			if p.Kind == types.PatternKindASTQuery && p.RecoveryRegex != "" {
				p.Kind = types.PatternKindRegex
				regexCompiler := r.compilers[types.PatternKindRegex]
				demoted := *p
				demoted.Source = p.RecoveryRegex
				if regexCompiled, rerr := regexCompiler(&demoted); rerr == nil {
					p.Compiled = regexCompiled
					return regexCompiled, nil
				}
			}
			p.Unusable = true
			return nil, cerrors.NewPatternError(cerrors.PatternCompilationFailed, p.ID, p.LanguageID, cerr)
		}
		p.Compiled = compiled
		return compiled, nil
	})
	return err
}

// PatternsFor returns every pattern registered for a language, grouped by
// category, compiling each lazily. Unusable patterns are excluded.
func (r *Registry) PatternsFor(languageID string) map[types.PatternCategory][]*types.Pattern {
	lang := Normalize(languageID)
	r.mu.RLock()
	bucket, ok := r.languages[lang]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	out := make(map[types.PatternCategory][]*types.Pattern)
	r.mu.RLock()
	snapshot := make(map[types.PatternCategory][]*types.Pattern, len(bucket.byCategory))
	for cat, ps := range bucket.byCategory {
		snapshot[cat] = append([]*types.Pattern(nil), ps...)
	}
	r.mu.RUnlock()

	for cat, ps := range snapshot {
		for _, p := range ps {
			_ = r.ensureCompiled(p)
			if !p.Unusable {
				out[cat] = append(out[cat], p)
			}
		}
	}
	return out
}

// Get returns one compiled pattern by id, or nil if unknown.
func (r *Registry) Get(languageID, patternID string) *types.Pattern {
	lang := Normalize(languageID)
	r.mu.RLock()
	bucket, ok := r.languages[lang]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	r.mu.RLock()
	p, ok := bucket.byID[patternID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	_ = r.ensureCompiled(p)
	return p
}

// Validate checks a pattern's syntax and runs its embedded test cases
// against the same compiler the registry uses for real matching, so a
// test case actually exercises the compiled pattern rather than a
// structural approximation of it.
func (r *Registry) Validate(p *types.Pattern) types.PatternValidation {
	v := types.PatternValidation{OK: true}

	if p.Source == "" {
		v.OK = false
		v.Errors = append(v.Errors, "empty pattern source")
		return v
	}

	r.mu.RLock()
	compiler, ok := r.compilers[p.Kind]
	r.mu.RUnlock()
	if !ok {
		v.OK = false
		v.Errors = append(v.Errors, fmt.Sprintf("no compiler for kind %v", p.Kind))
		return v
	}
	compiled, cerr := compiler(p)
	if cerr != nil {
		v.OK = false
		v.Errors = append(v.Errors, cerr.Error())
		return v
	}

	switch p.Kind {
	case types.PatternKindRegex:
		re, ok := compiled.(*regexp.Regexp)
		if !ok {
			v.Warnings = append(v.Warnings, "compiled value is not a *regexp.Regexp; skipping test-case evaluation")
			break
		}
		for _, tc := range p.TestCases {
			validateRegexTestCase(&v, re, tc)
		}
	case types.PatternKindLiteral:
		lit, ok := compiled.(string)
		if !ok {
			break
		}
		for _, tc := range p.TestCases {
			if matched := strings.Contains(tc.Input, lit); matched != tc.ExpectMatch {
				v.Warnings = append(v.Warnings, fmt.Sprintf("test case %q: expected match=%v, got %v", tc.Input, tc.ExpectMatch, matched))
			}
		}
	default:
		if len(p.TestCases) > 0 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("test-case evaluation is not supported for kind %v outside a parse tree; only syntactic compilation was checked", p.Kind))
		}
	}
	return v
}

func validateRegexTestCase(v *types.PatternValidation, re *regexp.Regexp, tc types.PatternTestCase) {
	sub := re.FindStringSubmatch(tc.Input)
	matched := sub != nil
	if matched != tc.ExpectMatch {
		v.Warnings = append(v.Warnings, fmt.Sprintf("test case %q: expected match=%v, got %v", tc.Input, tc.ExpectMatch, matched))
		return
	}
	if !matched || tc.ExpectedName == "" {
		return
	}
	names := re.SubexpNames()
	captured := ""
	for i, name := range names {
		if i == 0 || i >= len(sub) {
			continue
		}
		if name == "name" {
			captured = sub[i]
			break
		}
		if captured == "" {
			captured = sub[i]
		}
	}
	if captured != tc.ExpectedName {
		v.Warnings = append(v.Warnings, fmt.Sprintf("test case %q: expected captured name %q, got %q", tc.Input, tc.ExpectedName, captured))
	}
}

// Clear drops every registered pattern and compiled state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.languages = make(map[string]*languageBucket)
}

// ClearLanguage drops compiled state and definitions for one language.
func (r *Registry) ClearLanguage(languageID string) {
	lang := Normalize(languageID)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.languages, lang)
}
