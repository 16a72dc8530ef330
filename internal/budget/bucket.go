// Package budget implements the refill-by-reset token buckets that bound
// direct remote per-identifier checks. Two independently sized instances
// exist at runtime: a warm-start bucket used while the subscription index is
// missing or stale, and a smaller verification bucket used for re-checking
// negative answers. Keeping them separate means warm-up traffic cannot
// starve the correctness-preserving verification traffic.
package budget

import (
	"sync"
	"time"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// Bucket is a token bucket whose refill policy is a full reset to capacity
// once the refill interval has elapsed, not a proportional trickle. This
// bounds worst-case remote calls per window to exactly the capacity.
type Bucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	lastRefill time.Time
	interval   time.Duration
	clock      channel.Clock
}

// New creates a full Bucket.
func New(capacity int, interval time.Duration, clock channel.Clock) *Bucket {
	if capacity < 1 {
		capacity = 1
	}
	return &Bucket{
		tokens:     capacity,
		capacity:   capacity,
		lastRefill: clock.Now(),
		interval:   interval,
		clock:      clock,
	}
}

// Consume refills if the window has elapsed, then spends one token if
// available. It reports whether a token was spent.
func (b *Bucket) Consume() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if now.Sub(b.lastRefill) >= b.interval {
		b.tokens = b.capacity
		b.lastRefill = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the current token count without spending.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
