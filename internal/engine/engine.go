// Package engine composes the normalizer, resolution pipeline, subscription
// index, budgets, and caches into the membership decision function exposed
// to callers. All failure modes degrade to "not subscribed"; the engine
// never returns a false positive from a failure path and never propagates
// errors to the surface.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chanwatch/chanwatch/internal/auth"
	"github.com/chanwatch/chanwatch/internal/budget"
	"github.com/chanwatch/chanwatch/internal/cache"
	"github.com/chanwatch/chanwatch/internal/channel"
	"github.com/chanwatch/chanwatch/internal/metrics"
	"github.com/chanwatch/chanwatch/internal/store"
	"github.com/chanwatch/chanwatch/internal/subs"
)

// DocResolver resolves candidate URLs to an identifier by scraping.
type DocResolver interface {
	Resolve(ctx context.Context, candidates []string) (string, bool)
}

// SearchResolver resolves a normalized reference via remote search.
type SearchResolver interface {
	Resolve(ctx context.Context, nref channel.NormalizedRef) (string, bool)
}

// Config carries the engine's TTLs, budgets, and batch limits.
type Config struct {
	IndexTTL     time.Duration
	NegativeTTL  time.Duration
	VerifyNegTTL time.Duration
	LegacyTTL    time.Duration

	WarmCapacity   int
	WarmWindow     time.Duration
	VerifyCapacity int
	VerifyWindow   time.Duration

	BatchMax         int
	BatchConcurrency int
	SearchEnabled    bool
}

// Deps are the engine's injected collaborators.
type Deps struct {
	Normalizer *channel.Normalizer
	Scraper    DocResolver
	Searcher   SearchResolver
	Directory  channel.Directory
	Creds      auth.Source
	Clock      channel.Clock
	Store      store.Store
	Logger     *zap.Logger
}

// Engine owns all cache state. Construct one per process and call Load
// before serving.
type Engine struct {
	cfg  Config
	deps Deps

	refCache *cache.RefCache
	legacy   *cache.LegacyCache
	throttle *cache.VerifyThrottle
	index    *subs.Index
	warm     *budget.Bucket
	verify   *budget.Bucket

	saveMu sync.Mutex
}

// BatchResult is the bulk-check response. The stale/syncing flags let the
// caller adapt its polling cadence.
type BatchResult struct {
	Results    map[string]bool `json:"results"`
	IndexStale bool            `json:"index_stale"`
	Syncing    bool            `json:"syncing"`
}

// RefreshResult reports a refresh attempt.
type RefreshResult struct {
	Ran       bool      `json:"ok"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DebugReport exposes the intermediate state of one full pipeline run.
type DebugReport struct {
	Ref        string                `json:"ref"`
	Normalized channel.NormalizedRef `json:"normalized"`
	ResolvedID string                `json:"resolved_id,omitempty"`
	InIndex    bool                  `json:"in_index"`
	Decision   bool                  `json:"final_decision"`
}

// New constructs an Engine with empty caches.
func New(cfg Config, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 50
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	return &Engine{
		cfg:      cfg,
		deps:     deps,
		refCache: cache.NewRefCache(cfg.NegativeTTL, deps.Clock),
		legacy:   cache.NewLegacyCache(cfg.LegacyTTL, deps.Clock),
		throttle: cache.NewVerifyThrottle(cfg.VerifyNegTTL, deps.Clock),
		index:    subs.New(cfg.IndexTTL, deps.Clock, deps.Directory, deps.Creds, deps.Logger.Named("subs")),
		warm:     budget.New(cfg.WarmCapacity, cfg.WarmWindow, deps.Clock),
		verify:   budget.New(cfg.VerifyCapacity, cfg.VerifyWindow, deps.Clock),
	}
}

// Load restores persisted cache state. Called once at process start; a
// missing or partial blob set simply leaves the corresponding cache empty.
func (e *Engine) Load(ctx context.Context) error {
	blobs, err := e.deps.Store.Load(ctx, []string{store.BlobRefCache, store.BlobSubsIndex, store.BlobLegacy})
	if err != nil {
		return err
	}
	if data, ok := blobs[store.BlobRefCache]; ok {
		var entries map[string]cache.RefEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			e.refCache.Restore(entries)
		} else {
			e.deps.Logger.Warn("discarding unreadable reference cache blob", zap.Error(err))
		}
	}
	if data, ok := blobs[store.BlobSubsIndex]; ok {
		var snap subs.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			e.index.Restore(snap)
		} else {
			e.deps.Logger.Warn("discarding unreadable index blob", zap.Error(err))
		}
	}
	if data, ok := blobs[store.BlobLegacy]; ok {
		var entries map[string]cache.LegacyEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			e.legacy.Restore(entries)
		} else {
			e.deps.Logger.Warn("discarding unreadable legacy cache blob", zap.Error(err))
		}
	}
	return nil
}

// save persists the three caches together so the stored state is always
// internally consistent. Failures are logged, never propagated: persistence
// is a mirror, not the source of truth.
func (e *Engine) save(ctx context.Context) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	blobs := make(map[string][]byte, 3)
	if data, err := json.Marshal(e.refCache.Snapshot()); err == nil {
		blobs[store.BlobRefCache] = data
	}
	if data, err := json.Marshal(e.index.Snapshot()); err == nil {
		blobs[store.BlobSubsIndex] = data
	}
	if data, err := json.Marshal(e.legacy.Snapshot()); err == nil {
		blobs[store.BlobLegacy] = data
	}
	if err := e.deps.Store.Save(ctx, blobs); err != nil {
		e.deps.Logger.Warn("cache persist failed", zap.Error(err))
	}
}

// IsMember decides whether the current user follows the referenced channel.
// It never errors; anything that prevents a confident answer yields false.
func (e *Engine) IsMember(ctx context.Context, ref string) bool {
	nref := e.deps.Normalizer.Normalize(ref)

	id := nref.CanonicalValue
	if nref.Kind != channel.KindID {
		resolved, ok := e.resolveRef(ctx, nref)
		if !ok {
			metrics.ObserveDecision("unresolved")
			return false
		}
		id = resolved
	}

	if e.index.Len() > 0 {
		if e.index.Contains(id) {
			metrics.ObserveDecision("index")
			return true
		}
		return e.verifyNegative(ctx, id)
	}
	return e.warmStart(ctx, id)
}

// verifyNegative is the safety net behind an index miss: an occasional
// direct check catches identifiers the last full refresh missed, and an
// unexpected positive is appended to the index as a self-healing
// correction.
func (e *Engine) verifyNegative(ctx context.Context, id string) bool {
	if !e.throttle.Allow(id) {
		metrics.ObserveDecision("default")
		return false
	}
	if !e.verify.Consume() {
		metrics.ObserveBudgetDenied("verify")
		metrics.ObserveDecision("default")
		return false
	}
	e.throttle.Stamp(id)

	subscribed, err := e.directCheck(ctx, id)
	if err != nil {
		metrics.ObserveDecision("default")
		return false
	}
	if subscribed {
		e.deps.Logger.Info("index miss corrected by verification", zap.String("channel_id", id))
		e.index.Add(id)
	}
	e.save(ctx)
	metrics.ObserveDecision("verify")
	return subscribed
}

// warmStart handles decisions while no index exists yet.
func (e *Engine) warmStart(ctx context.Context, id string) bool {
	if e.index.Stale() {
		if e.warm.Consume() {
			subscribed, err := e.directCheck(ctx, id)
			if err == nil {
				e.save(ctx)
				metrics.ObserveDecision("warm")
				return subscribed
			}
		} else {
			metrics.ObserveBudgetDenied("warm")
		}
	}
	if status, ok := e.legacy.Get(id); ok {
		metrics.ObserveDecision("legacy")
		return status
	}
	metrics.ObserveDecision("default")
	return false
}

// directCheck performs one remote per-identifier check and records the
// result in the legacy cache. Authorization expiry invalidates the
// credential; the caller sees a soft failure either way.
func (e *Engine) directCheck(ctx context.Context, id string) (bool, error) {
	subscribed, err := e.deps.Directory.IsSubscribed(ctx, id)
	if err != nil {
		if errors.Is(err, channel.ErrAuthExpired) {
			e.deps.Logger.Warn("direct check aborted, authorization expired")
			e.deps.Creds.Invalidate()
		} else {
			e.deps.Logger.Debug("direct check failed", zap.String("channel_id", id), zap.Error(err))
		}
		return false, err
	}
	e.legacy.Put(id, subscribed)
	return subscribed, nil
}

// resolveRef resolves a non-identifier reference through the cache, then
// document scraping, then the search fallback. Both outcomes are memoized;
// a fresh negative entry suppresses re-resolution until its TTL lapses.
func (e *Engine) resolveRef(ctx context.Context, nref channel.NormalizedRef) (string, bool) {
	key := nref.CacheKey()
	if key == "" {
		metrics.ObserveResolution("none")
		return "", false
	}

	if id, result := e.refCache.Get(key); result == cache.Hit {
		metrics.ObserveResolution("cache")
		return id, true
	} else if result == cache.Negative {
		metrics.ObserveResolution("none")
		return "", false
	}

	if id, ok := e.deps.Scraper.Resolve(ctx, nref.CandidateURLs); ok {
		e.refCache.PutPositive(key, id)
		e.save(ctx)
		metrics.ObserveResolution("scrape")
		return id, true
	}

	if e.cfg.SearchEnabled && e.deps.Searcher != nil {
		if id, ok := e.deps.Searcher.Resolve(ctx, nref); ok {
			e.refCache.PutPositive(key, id)
			e.save(ctx)
			metrics.ObserveResolution("search")
			return id, true
		}
	}

	e.refCache.PutNegative(key)
	e.save(ctx)
	metrics.ObserveResolution("none")
	return "", false
}

// BulkCheck applies IsMember to each reference concurrently. Input beyond
// the batch cap is truncated, not rejected, and individual failures degrade
// to false for that entry only.
func (e *Engine) BulkCheck(ctx context.Context, refs []string) BatchResult {
	if len(refs) > e.cfg.BatchMax {
		e.deps.Logger.Debug("batch truncated", zap.Int("requested", len(refs)), zap.Int("cap", e.cfg.BatchMax))
		refs = refs[:e.cfg.BatchMax]
	}

	var mu sync.Mutex
	results := make(map[string]bool, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.BatchConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			subscribed := e.IsMember(gctx, ref)
			mu.Lock()
			results[ref] = subscribed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // IsMember never errors

	return BatchResult{
		Results:    results,
		IndexStale: e.index.Stale(),
		Syncing:    e.index.Syncing(),
	}
}

// CachedStatus answers from local state only: the index, then a fresh
// legacy entry. The second return is false when nothing local can answer.
func (e *Engine) CachedStatus(id string) (bool, bool) {
	if e.index.Len() > 0 && e.index.Contains(id) {
		return true, true
	}
	if status, ok := e.legacy.Get(id); ok {
		return status, true
	}
	return false, false
}

// Invalidate removes a reference's memoized resolution.
func (e *Engine) Invalidate(ctx context.Context, ref string) bool {
	key := e.deps.Normalizer.Normalize(ref).CacheKey()
	if key == "" {
		return false
	}
	e.refCache.Invalidate(key)
	e.save(ctx)
	return true
}

// Refresh runs a guarded full index resync and persists on success.
func (e *Engine) Refresh(ctx context.Context, force bool) RefreshResult {
	ran := e.index.Refresh(ctx, force)
	if ran {
		e.save(ctx)
	}
	return RefreshResult{
		Ran:       ran,
		Total:     e.index.Len(),
		UpdatedAt: e.index.UpdatedAt(),
	}
}

// IndexStale reports whether the subscription index needs a refresh.
func (e *Engine) IndexStale() bool {
	return e.index.Stale()
}

// Syncing reports whether a refresh is currently running.
func (e *Engine) Syncing() bool {
	return e.index.Syncing()
}

// DebugResolve runs the full pipeline for one reference and reports the
// intermediate state, for diagnostics.
func (e *Engine) DebugResolve(ctx context.Context, ref string) DebugReport {
	report := DebugReport{Ref: ref, Normalized: e.deps.Normalizer.Normalize(ref)}
	if report.Normalized.Kind == channel.KindID {
		report.ResolvedID = report.Normalized.CanonicalValue
	} else if id, ok := e.resolveRef(ctx, report.Normalized); ok {
		report.ResolvedID = id
	}
	if report.ResolvedID != "" {
		report.InIndex = e.index.Contains(report.ResolvedID)
	}
	report.Decision = e.IsMember(ctx, ref)
	return report
}
