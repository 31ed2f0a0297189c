package patternengine

import (
	"regexp"
	"strings"
)

// RegexClassifier flags regex sources that are unlikely to behave well as a
// recovery_regex: lookaheads/backreferences, deep nesting, or huge
// alternations are exactly the constructs that make the line-by-line
// regex-fallback strategy (spec §4.7 strategy 2) slow enough to blow its
// per-strategy time budget.
type RegexClassifier struct {
	complexPatterns []*regexp.Regexp
}

// NewRegexClassifier returns a classifier seeded with the default set of
// complexity signals.
func NewRegexClassifier() *RegexClassifier {
	return &RegexClassifier{
		complexPatterns: []*regexp.Regexp{
			regexp.MustCompile(`\(\?[=!]`), // lookahead/lookbehind
			regexp.MustCompile(`\(\?<`),
			regexp.MustCompile(`\\\d+`), // backreference
			regexp.MustCompile(`\(\?\(`),
			regexp.MustCompile(`\(\?>`),
			regexp.MustCompile(`\(\?[imsx-]+:`),
			regexp.MustCompile(`[*+?]\+`),
		},
	}
}

// IsSimple reports whether pattern avoids the complexity signals above and
// is structurally well-formed and shallow enough to run safely.
func (rc *RegexClassifier) IsSimple(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, complex := range rc.complexPatterns {
		if complex.MatchString(pattern) {
			return false
		}
	}
	if !rc.isBalanced(pattern) {
		return false
	}
	if rc.calculateNestingDepth(pattern) > 5 {
		return false
	}
	if rc.hasLongAlternations(pattern) {
		return false
	}
	return true
}

func (rc *RegexClassifier) isBalanced(pattern string) bool {
	parens, braces := 0, 0
	inCharClass, escaped := false, false

	for i, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '[':
			inCharClass = true
		case ']':
			if inCharClass && i > 0 && pattern[i-1] != '\\' {
				inCharClass = false
			}
		case '(':
			if !inCharClass {
				parens++
			}
		case ')':
			if !inCharClass {
				parens--
				if parens < 0 {
					return false
				}
			}
		case '{':
			if !inCharClass {
				braces++
			}
		case '}':
			if !inCharClass {
				braces--
				if braces < 0 {
					return false
				}
			}
		}
	}
	return parens == 0 && braces == 0
}

func (rc *RegexClassifier) calculateNestingDepth(pattern string) int {
	maxDepth, depth := 0, 0
	inCharClass, escaped := false, false

	for i, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '[':
			inCharClass = true
		case ']':
			if inCharClass && i > 0 && pattern[i-1] != '\\' {
				inCharClass = false
			}
		case '(':
			if !inCharClass {
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			}
		case ')':
			if !inCharClass && depth > 0 {
				depth--
			}
		}
	}
	return maxDepth
}

func (rc *RegexClassifier) hasLongAlternations(pattern string) bool {
	if strings.Count(pattern, "|") > 20 {
		return true
	}
	remaining := pattern
	for len(remaining) > 0 {
		var part string
		if idx := strings.IndexByte(remaining, '|'); idx >= 0 {
			part = remaining[:idx]
			remaining = remaining[idx+1:]
		} else {
			part = remaining
			remaining = ""
		}
		if len(part) > 1000 {
			return true
		}
	}
	return false
}
