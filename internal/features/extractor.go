// Package features implements categorizing Pattern Engine matches into
// a FeatureSet, plus deriving naming/documentation items (identifier
// casing, word splitting, stemming) as pure functions over primary spans.
package features

import (
	"strings"
	"unicode"

	"github.com/Zmaroo/RepoAnalyzer/internal/registry"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// Extractor builds a FeatureSet from a pattern match list.
type Extractor struct {
	splitter *NameSplitter
	stemmer  *Stemmer
}

// NewExtractor returns a ready-to-use feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		splitter: NewNameSplitter(),
		stemmer:  NewStemmer(true, "porter2", 3, nil),
	}
}

// Build categorizes matches into a FeatureSet: a pattern's
// category is authoritative, and its ExtractSpec (when present) turns
// captures into the item's attributes. Naming-derived items (casing,
// word split, stems) are then computed as pure functions over every
// item's name, with no re-parsing.
func (e *Extractor) Build(tree *types.ParseTree, languageID string, matches []types.PatternMatch, reg *registry.Registry) types.FeatureSet {
	fs := make(types.FeatureSet)
	for _, m := range matches {
		p := reg.Get(languageID, m.PatternID)
		if p == nil {
			continue
		}
		fs.Add(p.Category, e.itemFor(tree, m, p))
	}
	e.addNamingDerivedItems(fs)
	return fs
}

// nameCaptureKeys lists the capture names that identify a match's subject
// (a function/class/identifier name), in priority order. The first one
// present on the match wins; a match with none of these falls back to
// its node kind as its name.
var nameCaptureKeys = []string{"name", "function.name", "class.name", "identifier"}

func (e *Extractor) itemFor(tree *types.ParseTree, m types.PatternMatch, p *types.Pattern) types.FeatureItem {
	name := nameFromCaptures(tree, m)
	if name == "" {
		name = m.NodeKind
	}
	if p.ExtractSpec != nil {
		return types.FeatureItem{
			Name:  name,
			Span:  m.PrimarySpan,
			Attrs: p.ExtractSpec(tree, m.Captures),
		}
	}
	return types.FeatureItem{Name: name, Span: m.PrimarySpan}
}

// nameFromCaptures reads the match's identifying capture (see
// nameCaptureKeys) out of the source bytes, or "" if the match has none.
func nameFromCaptures(tree *types.ParseTree, m types.PatternMatch) string {
	if tree == nil || len(tree.Source) == 0 {
		return ""
	}
	for _, key := range nameCaptureKeys {
		spans, ok := m.Captures[key]
		if !ok || len(spans) == 0 {
			continue
		}
		span := spans[0]
		if int(span.EndByte) > len(tree.Source) || span.StartByte > span.EndByte {
			continue
		}
		return string(tree.Source[span.StartByte:span.EndByte])
	}
	return ""
}

// addNamingDerivedItems appends one CategoryNaming item per distinct
// identifier-like item name already present in fs, carrying its word
// split, stems, and casing style.
func (e *Extractor) addNamingDerivedItems(fs types.FeatureSet) {
	seen := make(map[string]bool)
	var derived []types.FeatureItem

	for category, items := range fs {
		if category == types.CategoryNaming {
			continue
		}
		for _, item := range items {
			if item.Name == "" || seen[item.Name] || !isIdentifierLike(item.Name) {
				continue
			}
			seen[item.Name] = true
			words := e.splitter.Split(item.Name)
			if len(words) == 0 {
				continue
			}
			derived = append(derived, types.FeatureItem{
				Name: item.Name,
				Span: item.Span,
				Attrs: map[string]any{
					"words":  words,
					"stems":  e.stemmer.StemAll(words),
					"casing": classifyCasing(item.Name),
				},
			})
		}
	}

	for _, item := range derived {
		fs.Add(types.CategoryNaming, item)
	}
}

func isIdentifierLike(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return name != ""
}

func classifyCasing(name string) string {
	switch {
	case strings.Contains(name, "_") && name == strings.ToUpper(name):
		return "SCREAMING_SNAKE_CASE"
	case strings.Contains(name, "_"):
		return "snake_case"
	case strings.Contains(name, "-"):
		return "kebab-case"
	case len(name) > 0 && unicode.IsUpper(rune(name[0])):
		return "PascalCase"
	default:
		return "camelCase"
	}
}
