// Package channel defines the core domain types and interfaces shared by the
// membership engine and its collaborators: reference kinds, the canonical
// identifier format, and the contracts for the remote directory, document
// fetching, and time.
package channel

import (
	"context"
	"time"
)

// RefKind classifies a raw channel reference after normalization.
type RefKind string

// Reference kinds produced by Normalize.
const (
	KindID         RefKind = "id"
	KindHandle     RefKind = "handle"
	KindVanityC    RefKind = "vanity_c"
	KindVanityUser RefKind = "vanity_user"
	KindURL        RefKind = "url"
	KindUnknown    RefKind = "unknown"
)

// NormalizedRef is the typed, canonicalized form of a raw reference plus the
// ordered candidate URLs the scrape resolver should try. Canonical
// identifiers carry an empty candidate list: they need no resolution.
type NormalizedRef struct {
	Kind           RefKind  `json:"kind"`
	CanonicalValue string   `json:"canonical_value"`
	CandidateURLs  []string `json:"candidate_urls,omitempty"`
}

// CacheKey returns the key used by the reference cache. Unknown references
// have no usable key.
func (n NormalizedRef) CacheKey() string {
	if n.Kind == KindUnknown {
		return ""
	}
	return string(n.Kind) + ":" + n.CanonicalValue
}

// SubscriptionPage is one page of the remote subscription listing.
type SubscriptionPage struct {
	ChannelIDs    []string
	NextPageToken string
}

// SearchResult is a single item returned by the remote channel search.
type SearchResult struct {
	ChannelID string
	Title     string
	CustomURL string
}

// Directory abstracts the rate-limited remote API the engine depends on.
// Implementations surface authorization expiry as ErrAuthExpired so callers
// can invalidate the credential.
type Directory interface {
	// ListSubscriptions returns one page of the current user's
	// subscriptions, continuing from pageToken ("" for the first page).
	ListSubscriptions(ctx context.Context, pageToken string) (SubscriptionPage, error)
	// IsSubscribed reports whether the current user is subscribed to the
	// channel with the given canonical identifier.
	IsSubscribed(ctx context.Context, channelID string) (bool, error)
	// Search runs a text search over channels.
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher retrieves a single document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Document is a fetched page body plus the URL the fetch ended at.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
