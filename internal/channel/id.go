package channel

import "regexp"

// Canonical channel identifiers are "UC" followed by a fixed-length
// base64url-ish token. Every extraction stage validates against this before
// accepting a value, so look-alike strings from unrelated fields are
// rejected.
var (
	idPattern     = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)
	idPathPattern = regexp.MustCompile(`/channel/(UC[0-9A-Za-z_-]{22})`)
)

// ValidID reports whether s is a well-formed canonical channel identifier.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}

// IDFromPath extracts a canonical identifier embedded in a /channel/ path
// segment of s, which may be a URL, a path, or raw document text.
func IDFromPath(s string) (string, bool) {
	m := idPathPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}
