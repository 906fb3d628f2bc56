package types

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsPlaceholder reports whether v still contains a ${...} reference
func IsPlaceholder(v string) bool {
	return strings.Contains(v, "${")
}

// IsConcreteVersion reports whether v is a usable, fully resolved version
func IsConcreteVersion(v string) bool {
	return strings.TrimSpace(v) != "" && !IsPlaceholder(v)
}

// CompareVersions orders two versions. Versions that parse as semantic
// versions (leniently, so "4.3" and "1.0-SNAPSHOT" are accepted) compare
// semantically; anything else falls back to segment-wise comparison.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareSegments(a, b)
}

func compareSegments(a, b string) int {
	as := strings.FieldsFunc(a, isVersionSeparator)
	bs := strings.FieldsFunc(b, isVersionSeparator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	if isNumeric(a) && isNumeric(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isVersionSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
