package refresher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/engine"
)

type fakeEngine struct {
	mu       sync.Mutex
	stale    bool
	ran      int
	refresh  chan struct{}
	forceSet bool
}

func (f *fakeEngine) IndexStale() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale
}

func (f *fakeEngine) Refresh(_ context.Context, force bool) engine.RefreshResult {
	f.mu.Lock()
	f.ran++
	f.forceSet = f.forceSet || force
	f.mu.Unlock()
	select {
	case f.refresh <- struct{}{}:
	default:
	}
	return engine.RefreshResult{Ran: true, Total: 1}
}

func TestRun_RefreshesStaleIndexAndStops(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{stale: true, refresh: make(chan struct{}, 1)}
	r := New(eng, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	select {
	case <-eng.refresh:
	case <-time.After(time.Second):
		t.Fatal("no refresh attempt observed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation")
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.False(t, eng.forceSet, "background loop never forces")
}

func TestRun_SkipsFreshIndex(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{stale: false, refresh: make(chan struct{}, 1)}
	r := New(eng, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	eng.mu.Lock()
	defer eng.mu.Unlock()
	assert.Zero(t, eng.ran)
}
