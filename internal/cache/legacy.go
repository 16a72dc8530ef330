package cache

import (
	"sync"
	"time"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// LegacyEntry is a persisted per-channel membership result. It is the
// short-TTL fallback used only when the full index is absent and budgets are
// exhausted.
type LegacyEntry struct {
	Status    bool      `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LegacyCache maps identifier -> last direct check result. It is
// overwritten on every direct per-identifier remote check.
type LegacyCache struct {
	mu      sync.Mutex
	entries map[string]LegacyEntry
	ttl     time.Duration
	clock   channel.Clock
}

// NewLegacyCache creates an empty LegacyCache.
func NewLegacyCache(ttl time.Duration, clock channel.Clock) *LegacyCache {
	return &LegacyCache{
		entries: make(map[string]LegacyEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached status if the entry is younger than the TTL.
func (c *LegacyCache) Get(id string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || c.clock.Now().Sub(e.UpdatedAt) > c.ttl {
		return false, false
	}
	return e.Status, true
}

// Peek returns the entry regardless of age, for best-effort status reads.
func (c *LegacyCache) Peek(id string) (LegacyEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// Put records the result of a direct check.
func (c *LegacyCache) Put(id string, status bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = LegacyEntry{Status: status, UpdatedAt: c.clock.Now()}
}

// Snapshot copies the entries for persistence.
func (c *LegacyCache) Snapshot() map[string]LegacyEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]LegacyEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore replaces the entries wholesale from a persisted snapshot.
func (c *LegacyCache) Restore(entries map[string]LegacyEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]LegacyEntry, len(entries))
	for k, v := range entries {
		c.entries[k] = v
	}
}

// VerifyThrottle prevents re-verifying the same negative answer more often
// than its TTL. It is deliberately not persisted: a restart re-opening the
// verification window costs at most one bucket token per identifier.
type VerifyThrottle struct {
	mu    sync.Mutex
	last  map[string]time.Time
	ttl   time.Duration
	clock channel.Clock
}

// NewVerifyThrottle creates an empty throttle.
func NewVerifyThrottle(ttl time.Duration, clock channel.Clock) *VerifyThrottle {
	return &VerifyThrottle{
		last:  make(map[string]time.Time),
		ttl:   ttl,
		clock: clock,
	}
}

// Allow reports whether id has not been verified within the TTL.
func (t *VerifyThrottle) Allow(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.last[id]
	return !ok || t.clock.Now().Sub(at) > t.ttl
}

// Stamp records a verification attempt for id, regardless of its outcome.
func (t *VerifyThrottle) Stamp(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[id] = t.clock.Now()
}
