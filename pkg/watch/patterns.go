package watch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// matcher matches slash-separated paths against glob patterns. "*" and "?"
// stay within one path segment, "**" crosses segments, and a pattern without
// a leading "/" may match at any depth.
type matcher struct {
	patterns []string
	regexps  []*regexp.Regexp
}

func newMatcher(patterns []string) (*matcher, error) {
	m := &matcher{}
	for _, p := range patterns {
		for _, expanded := range expandPattern(p) {
			re, err := globToRegex(expanded)
			if err != nil {
				return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
			}
			m.patterns = append(m.patterns, expanded)
			m.regexps = append(m.regexps, re)
		}
	}
	return m, nil
}

func (m *matcher) match(path string) bool {
	if m == nil {
		return false
	}
	path = filepath.ToSlash(path)
	for _, re := range m.regexps {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// expandPattern anchors relative patterns at any depth and lets a plain
// name cover everything below it
func expandPattern(pattern string) []string {
	pattern = strings.TrimSuffix(strings.TrimPrefix(filepath.ToSlash(pattern), "./"), "/")
	literal := !strings.ContainsAny(pattern, "*?[")
	if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, "**/") {
		pattern = "**/" + pattern
	}
	if literal {
		return []string{pattern, pattern + "/**"}
	}
	return []string{pattern}
}

func globToRegex(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			switch {
			case strings.HasPrefix(pattern[i:], "**/"):
				b.WriteString("(.*/)?")
				i += 3
			case strings.HasPrefix(pattern[i:], "**"):
				b.WriteString(".*")
				i += 2
			default:
				b.WriteString("[^/]*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
			i++
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 2
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}
