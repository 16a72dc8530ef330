// Package subs maintains the local subscription index: a de-duplicated set
// of channel identifiers the user follows, refreshed in full from the
// paginated remote listing and tracked for staleness.
package subs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/auth"
	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/metrics"
)

// Snapshot is the persisted form of the index.
type Snapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	IDs       []string  `json:"ids"`
}

// Index is the locally owned subscription set.
type Index struct {
	mu        sync.Mutex
	ids       map[string]struct{}
	updatedAt time.Time
	syncing   bool

	ttl    time.Duration
	clock  channel.Clock
	dir    channel.Directory
	creds  auth.Source
	logger *zap.Logger
}

// New creates an empty Index.
func New(ttl time.Duration, clock channel.Clock, dir channel.Directory, creds auth.Source, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		ids:    make(map[string]struct{}),
		ttl:    ttl,
		clock:  clock,
		dir:    dir,
		creds:  creds,
		logger: logger,
	}
}

// Stale reports whether the index is older than its TTL. An index that has
// never synced is stale by definition.
func (i *Index) Stale() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.updatedAt.IsZero() || i.clock.Now().Sub(i.updatedAt) > i.ttl
}

// Syncing reports whether a refresh is currently running.
func (i *Index) Syncing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.syncing
}

// Contains reports membership of id in the index.
func (i *Index) Contains(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, ok := i.ids[id]
	return ok
}

// Len returns the number of indexed identifiers.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ids)
}

// UpdatedAt returns the time of the last successful full refresh.
func (i *Index) UpdatedAt() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.updatedAt
}

// Add appends a single identifier, used by the negative-verification safety
// net when it discovers a false negative. The index never shrinks outside a
// full refresh.
func (i *Index) Add(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids[id] = struct{}{}
}

// Refresh replaces the index wholesale from the remote listing. It is
// idempotent under concurrency: a boolean guard lets at most one refresh run
// and concurrent callers observe false immediately. With force unset, a
// fresh index also skips the work. A missing credential is a soft failure.
// On any paging error the partial accumulation is discarded and the previous
// index is left untouched.
func (i *Index) Refresh(ctx context.Context, force bool) bool {
	i.mu.Lock()
	if i.syncing {
		i.mu.Unlock()
		metrics.ObserveIndexRefresh("skipped")
		return false
	}
	if !force && !i.updatedAt.IsZero() && i.clock.Now().Sub(i.updatedAt) <= i.ttl {
		i.mu.Unlock()
		metrics.ObserveIndexRefresh("skipped")
		return false
	}
	i.syncing = true
	i.mu.Unlock()

	defer func() {
		i.mu.Lock()
		i.syncing = false
		i.mu.Unlock()
	}()

	if _, ok := i.creds.Token(); !ok {
		i.logger.Debug("index refresh skipped, no credential")
		metrics.ObserveIndexRefresh("skipped")
		return false
	}

	accumulated := make(map[string]struct{})
	pageToken := ""
	for {
		page, err := i.dir.ListSubscriptions(ctx, pageToken)
		if err != nil {
			if errors.Is(err, channel.ErrAuthExpired) {
				i.logger.Warn("index refresh aborted, authorization expired")
				i.creds.Invalidate()
			} else {
				i.logger.Warn("index refresh aborted", zap.Error(err))
			}
			metrics.ObserveIndexRefresh("failed")
			return false
		}
		for _, id := range page.ChannelIDs {
			if channel.ValidID(id) {
				accumulated[id] = struct{}{}
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	i.mu.Lock()
	i.ids = accumulated
	i.updatedAt = i.clock.Now()
	total := len(i.ids)
	i.mu.Unlock()

	i.logger.Info("subscription index refreshed", zap.Int("total", total))
	metrics.ObserveIndexRefresh("ok")
	return true
}

// Snapshot copies the index for persistence, identifiers sorted for
// deterministic serialization.
func (i *Index) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	ids := make([]string, 0, len(i.ids))
	for id := range i.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return Snapshot{UpdatedAt: i.updatedAt, IDs: ids}
}

// Restore replaces the index from a persisted snapshot.
func (i *Index) Restore(s Snapshot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = make(map[string]struct{}, len(s.IDs))
	for _, id := range s.IDs {
		if channel.ValidID(id) {
			i.ids[id] = struct{}{}
		}
	}
	i.updatedAt = s.UpdatedAt
}
