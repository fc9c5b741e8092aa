package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/proctriage/triage/config"
)

// compiledPattern is a config.PatternEntry compiled once at enforcer construction, grounded on
// the original's CompiledPattern::compile (spec §4.5's literal/regex/glob matching).
type compiledPattern struct {
	original        string
	kind            config.PatternKind
	regex           *regexp.Regexp
	caseInsensitive bool
	notes           string
}

// compilePattern compiles one pattern entry. path is used only for error context.
func compilePattern(entry config.PatternEntry, path string) (compiledPattern, error) {
	cp := compiledPattern{
		original:        entry.Pattern,
		kind:            entry.Kind,
		caseInsensitive: entry.CaseInsensitive,
		notes:           entry.Notes,
	}

	switch entry.Kind {
	case config.PatternRegex:
		pattern := entry.Pattern
		if entry.CaseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return cp, fmt.Errorf("invalid pattern at %s: %w", path, err)
		}
		cp.regex = re

	case config.PatternGlob:
		re, err := compileGlob(entry.Pattern, entry.CaseInsensitive)
		if err != nil {
			return cp, fmt.Errorf("invalid pattern at %s: %w", path, err)
		}
		cp.regex = re

	case config.PatternLiteral:
		// matched by substring comparison in matches(), no regex needed
	}

	return cp, nil
}

// compileGlob translates glob syntax into a regular expression, char by char, matching the
// original's CompiledPattern::compile glob branch exactly: ** and * both become .*, ? becomes .,
// [...] passes through with [! negation rewritten to [^, and regex metacharacters are escaped.
func compileGlob(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	src := pattern
	if caseInsensitive {
		src = strings.ToLower(src)
	}
	runes := []rune(src)

	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString(".*")
		case '?':
			b.WriteRune('.')
		case '[':
			start := i
			i++
			if i < len(runes) && (runes[i] == '!' || runes[i] == '^') {
				i++
			}
			if i < len(runes) && runes[i] == ']' {
				i++
			}
			for i < len(runes) && runes[i] != ']' {
				i++
			}
			if i < len(runes) {
				class := string(runes[start : i+1])
				class = strings.Replace(class, "[!", "[^", 1)
				b.WriteString(class)
			} else {
				b.WriteString(`\[`)
				i = start
			}
		case '.', '+', '(', ')', '{', '}', '^', '$', '|', '\\':
			b.WriteRune('\\')
			b.WriteRune(c)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteString("$")

	full := b.String()
	if caseInsensitive {
		full = "(?i)" + full
	}
	return regexp.Compile(full)
}

// matches reports whether text satisfies this compiled pattern.
func (p compiledPattern) matches(text string) bool {
	switch p.kind {
	case config.PatternRegex, config.PatternGlob:
		return p.regex != nil && p.regex.MatchString(text)
	case config.PatternLiteral:
		if p.caseInsensitive {
			return strings.Contains(strings.ToLower(text), strings.ToLower(p.original))
		}
		return strings.Contains(text, p.original)
	}
	return false
}

func compilePatterns(entries []config.PatternEntry, prefix string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(entries))
	for i, e := range entries {
		cp, err := compilePattern(e, fmt.Sprintf("%s[%d]", prefix, i))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}
