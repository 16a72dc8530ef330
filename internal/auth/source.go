// Package auth supplies bearer credentials to the remote client. The
// interactive consent flow that mints tokens is outside this process; this
// package only answers "a valid credential or none" and supports
// invalidation when the remote API rejects a token.
package auth

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chanwatch/chanwatch/internal/channel"
)

// Credential is a bearer token with its expiry.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Source yields a non-expired credential or reports none.
type Source interface {
	// Token returns the current credential if one is valid.
	Token() (Credential, bool)
	// Invalidate discards the current credential after an authorization
	// failure.
	Invalidate()
}

// StaticSource serves a fixed token (from config or a file) with a rolling
// expiry window. Invalidate drops it until Reset is called.
type StaticSource struct {
	mu          sync.Mutex
	token       string
	expiresAt   time.Time
	invalidated bool
	clock       channel.Clock
}

// NewStaticSource builds a StaticSource from a literal token.
func NewStaticSource(token string, ttl time.Duration, clock channel.Clock) *StaticSource {
	return &StaticSource{
		token:     strings.TrimSpace(token),
		expiresAt: clock.Now().Add(ttl),
		clock:     clock,
	}
}

// NewFileSource builds a StaticSource whose token is read from path.
func NewFileSource(path string, ttl time.Duration, clock channel.Clock) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticSource(string(data), ttl, clock), nil
}

// Token implements Source.
func (s *StaticSource) Token() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalidated || s.token == "" || !s.clock.Now().Before(s.expiresAt) {
		return Credential{}, false
	}
	return Credential{AccessToken: s.token, ExpiresAt: s.expiresAt}, true
}

// Invalidate implements Source.
func (s *StaticSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = true
}

// Reset installs a fresh token with a new expiry window.
func (s *StaticSource) Reset(token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	s.expiresAt = s.clock.Now().Add(ttl)
	s.invalidated = false
}
