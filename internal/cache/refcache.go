// Package cache holds the engine-owned lookup caches: the resolution
// memoization cache (with negative entries), the legacy per-channel fallback
// cache, and the negative-verification throttle. All are mutex-guarded maps;
// persistence is handled by the engine, which snapshots and restores them
// through exported entry types.
package cache

import (
	"sync"
	"time"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// Result classifies a reference-cache lookup.
type Result int

// Lookup outcomes.
const (
	Absent Result = iota
	Negative
	Hit
)

// RefEntry is a persisted reference-cache value: either a resolved
// identifier or a timestamped negative marker.
type RefEntry struct {
	ID       string    `json:"id,omitempty"`
	Negative bool      `json:"negative,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// RefCache memoizes normalized-reference -> identifier mappings, including
// negative (unresolved) results with their own TTL.
type RefCache struct {
	mu          sync.Mutex
	entries     map[string]RefEntry
	negativeTTL time.Duration
	clock       channel.Clock
}

// NewRefCache creates an empty RefCache.
func NewRefCache(negativeTTL time.Duration, clock channel.Clock) *RefCache {
	return &RefCache{
		entries:     make(map[string]RefEntry),
		negativeTTL: negativeTTL,
		clock:       clock,
	}
}

// Get looks up key. A negative entry older than the negative TTL reads as
// Absent so the resolution pipeline re-runs instead of trusting a stale
// failure.
func (c *RefCache) Get(key string) (string, Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", Absent
	}
	if e.Negative {
		if c.clock.Now().Sub(e.StoredAt) > c.negativeTTL {
			return "", Absent
		}
		return "", Negative
	}
	return e.ID, Hit
}

// PutPositive records a successful resolution.
func (c *RefCache) PutPositive(key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = RefEntry{ID: id, StoredAt: c.clock.Now()}
}

// PutNegative records a failed resolution with the current timestamp.
func (c *RefCache) PutNegative(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = RefEntry{Negative: true, StoredAt: c.clock.Now()}
}

// Invalidate removes an entry. Only the surface caller triggers this.
func (c *RefCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Snapshot copies the entries for persistence.
func (c *RefCache) Snapshot() map[string]RefEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]RefEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore replaces the entries wholesale from a persisted snapshot.
func (c *RefCache) Restore(entries map[string]RefEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]RefEntry, len(entries))
	for k, v := range entries {
		c.entries[k] = v
	}
}
