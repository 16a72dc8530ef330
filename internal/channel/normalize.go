package channel

import (
	"net/url"
	"strings"
)

// Hosts configures the sites candidate lookup URLs are built against.
type Hosts struct {
	Canonical string
	Mobile    string
	Consent   string
}

// DefaultHosts returns the production host set.
func DefaultHosts() Hosts {
	return Hosts{
		Canonical: "www.youtube.com",
		Mobile:    "m.youtube.com",
		Consent:   "consent.youtube.com",
	}
}

// Normalizer parses raw channel references into NormalizedRefs. It never
// performs network I/O and never fails: unrecognized input yields
// KindUnknown with no candidates.
type Normalizer struct {
	hosts Hosts
}

// NewNormalizer builds a Normalizer; zero-valued hosts fall back to defaults.
func NewNormalizer(hosts Hosts) *Normalizer {
	def := DefaultHosts()
	if hosts.Canonical == "" {
		hosts.Canonical = def.Canonical
	}
	if hosts.Mobile == "" {
		hosts.Mobile = def.Mobile
	}
	if hosts.Consent == "" {
		hosts.Consent = def.Consent
	}
	return &Normalizer{hosts: hosts}
}

// Normalize classifies ref and derives its canonical cache value plus the
// ordered candidate URLs for document scraping. Canonical values are
// lower-cased for handle/vanity/url kinds so they are stable cache keys;
// identifiers are kept verbatim (they are case-sensitive and bypass the
// cache entirely).
func (n *Normalizer) Normalize(ref string) NormalizedRef {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return NormalizedRef{Kind: KindUnknown}
	}

	if ValidID(ref) {
		return NormalizedRef{Kind: KindID, CanonicalValue: ref}
	}

	if strings.HasPrefix(ref, "@") {
		return n.handleRef(strings.TrimPrefix(ref, "@"))
	}

	if strings.HasPrefix(ref, "/") {
		return n.pathRef(ref)
	}

	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" {
			return NormalizedRef{Kind: KindUnknown}
		}
		if nref, ok := n.classifyURL(u); ok {
			return nref
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		full := u.String()
		return NormalizedRef{
			Kind:           KindURL,
			CanonicalValue: strings.ToLower(full),
			CandidateURLs:  []string{full},
		}
	}

	return NormalizedRef{Kind: KindUnknown}
}

// classifyURL maps a full page URL on a known host onto the richer
// handle/vanity/id kinds so it benefits from multi-host candidate expansion.
func (n *Normalizer) classifyURL(u *url.URL) (NormalizedRef, bool) {
	host := strings.ToLower(u.Hostname())
	known := host == n.hosts.Canonical || host == n.hosts.Mobile ||
		host == strings.TrimPrefix(n.hosts.Canonical, "www.") ||
		host == "youtube.com"
	if !known {
		return NormalizedRef{}, false
	}
	nref := n.pathRef(u.Path)
	if nref.Kind == KindUnknown {
		return NormalizedRef{}, false
	}
	return nref, true
}

// pathRef classifies a relative path reference.
func (n *Normalizer) pathRef(p string) NormalizedRef {
	parts := splitPath(p)
	if len(parts) == 0 {
		return NormalizedRef{Kind: KindUnknown}
	}
	switch {
	case parts[0] == "channel" && len(parts) > 1 && ValidID(parts[1]):
		return NormalizedRef{Kind: KindID, CanonicalValue: parts[1]}
	case strings.HasPrefix(parts[0], "@"):
		return n.handleRef(strings.TrimPrefix(parts[0], "@"))
	case parts[0] == "c" && len(parts) > 1:
		return n.vanityRef(KindVanityC, parts[1], "/c/"+parts[1])
	case parts[0] == "user" && len(parts) > 1:
		return n.vanityRef(KindVanityUser, parts[1], "/user/"+parts[1])
	}
	return NormalizedRef{Kind: KindUnknown}
}

func (n *Normalizer) handleRef(name string) NormalizedRef {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return NormalizedRef{Kind: KindUnknown}
	}
	return NormalizedRef{
		Kind:           KindHandle,
		CanonicalValue: name,
		CandidateURLs:  n.expand("/@" + name),
	}
}

func (n *Normalizer) vanityRef(kind RefKind, name, path string) NormalizedRef {
	return NormalizedRef{
		Kind:           kind,
		CanonicalValue: strings.ToLower(name),
		CandidateURLs:  n.expand(path),
	}
}

// expand builds the candidate URL chain for a channel page path, ordered
// cheapest-first: canonical page, its about and featured sub-pages, the
// mobile variant, and finally the consent-redirect wrapper around the
// canonical URL.
func (n *Normalizer) expand(path string) []string {
	canonical := "https://" + n.hosts.Canonical + path
	return []string{
		canonical,
		canonical + "/about",
		canonical + "/featured",
		"https://" + n.hosts.Mobile + path,
		"https://" + n.hosts.Consent + "/m?continue=" + url.QueryEscape(canonical),
	}
}

func splitPath(p string) []string {
	var parts []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
