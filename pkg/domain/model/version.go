package model

import (
	"strings"
)

// VersionToken is a single dot/dash separated component of a version string.
type VersionToken struct {
	Raw     string
	Numeric bool
}

// VersionKey is the comparable form of a version string.
type VersionKey []VersionToken

// ParseVersionKey splits a version on "." and "-". Tokens made only of ASCII
// digits compare numerically, everything else compares as text.
func ParseVersionKey(s string) VersionKey {
	parts := strings.Split(strings.ReplaceAll(s, "-", "."), ".")
	key := make(VersionKey, 0, len(parts))
	for _, p := range parts {
		key = append(key, VersionToken{Raw: p, Numeric: isDigits(p)})
	}
	return key
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Compare orders two tokens. Numeric tokens always sort before textual ones.
func (t VersionToken) Compare(o VersionToken) int {
	switch {
	case t.Numeric && o.Numeric:
		return compareDigits(t.Raw, o.Raw)
	case t.Numeric:
		return -1
	case o.Numeric:
		return 1
	default:
		return strings.Compare(t.Raw, o.Raw)
	}
}

// compareDigits compares unbounded decimal strings without parsing them.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Compare orders keys element-wise; a key that is a prefix of the other sorts first.
func (k VersionKey) Compare(o VersionKey) int {
	for i := 0; i < len(k) && i < len(o); i++ {
		if c := k[i].Compare(o[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k) < len(o):
		return -1
	case len(k) > len(o):
		return 1
	default:
		return 0
	}
}

// CompareVersions returns -1, 0 or 1 for a <, ==, > b.
func CompareVersions(a, b string) int {
	return ParseVersionKey(a).Compare(ParseVersionKey(b))
}

// IsNewer reports whether candidate sorts strictly after current.
func IsNewer(candidate, current string) bool {
	return CompareVersions(candidate, current) > 0
}

// MaxVersion returns the greatest version of the list. The first of equal
// maxima wins. ok is false for an empty list.
func MaxVersion(versions []string) (latest string, ok bool) {
	for i, v := range versions {
		if i == 0 || IsNewer(v, latest) {
			latest = v
			ok = true
		}
	}
	return latest, ok
}
