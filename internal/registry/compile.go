package registry

import (
	"fmt"
	"regexp"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// compileRegexPattern is the registry's built-in compiler for
// PatternKindRegex patterns: p.Source (or, if empty, p.RecoveryRegex) must
// be a valid Go regular expression.
func compileRegexPattern(p *types.Pattern) (any, error) {
	src := p.Source
	if src == "" {
		src = p.RecoveryRegex
	}
	if src == "" {
		return nil, fmt.Errorf("regex pattern has no source")
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", src, err)
	}
	return re, nil
}

// compileLiteralPattern treats p.Source as a fixed string to search for
// verbatim; "compilation" is just validating it is non-empty.
func compileLiteralPattern(p *types.Pattern) (any, error) {
	if p.Source == "" {
		return nil, fmt.Errorf("literal pattern has no source")
	}
	return p.Source, nil
}
