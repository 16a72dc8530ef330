// Package store defines the persistent named-blob store the engine mirrors
// its caches into. The engine writes all of its blobs in a single Save so no
// backend can leave two caches persisted at different points in time.
package store

import "context"

// Blob names used by the engine.
const (
	BlobRefCache  = "ref_cache"
	BlobSubsIndex = "subs_index"
	BlobLegacy    = "legacy_cache"
)

// Store provides atomic named get/set for a handful of JSON blobs.
type Store interface {
	// Load returns the stored blobs for keys; missing keys are simply
	// absent from the result.
	Load(ctx context.Context, keys []string) (map[string][]byte, error)
	// Save persists the given blobs together.
	Save(ctx context.Context, blobs map[string][]byte) error
}
