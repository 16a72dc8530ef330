// Package refresher runs the periodic subscription-index maintenance loop.
package refresher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/engine"
)

// Engine is what the loop needs from the membership engine.
type Engine interface {
	IndexStale() bool
	Refresh(ctx context.Context, force bool) engine.RefreshResult
}

// Refresher periodically refreshes the index when it has gone stale.
type Refresher struct {
	engine   Engine
	interval time.Duration
	logger   *zap.Logger
}

// New builds a Refresher ticking at interval.
func New(eng Engine, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{engine: eng, interval: interval, logger: logger}
}

// Run blocks until ctx is canceled, attempting a refresh immediately and then
// on every tick where the index is stale. A failed attempt simply retries on
// the next tick; the loop never forces a refresh over a fresh index.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if !r.engine.IndexStale() {
		return
	}
	if res := r.engine.Refresh(ctx, false); res.Ran {
		r.logger.Info("background index refresh completed",
			zap.Int("total", res.Total),
			zap.Time("updated_at", res.UpdatedAt))
	}
}
