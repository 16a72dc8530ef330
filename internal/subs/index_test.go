package subs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/auth"
	"github.com/chanwatch/chanwatch/internal/channel"
)

const (
	idA = "UCaaaaaaaaaaaaaaaaaaaa12"
	idB = "UCbbbbbbbbbbbbbbbbbbbb12"
	idC = "UCcccccccccccccccccccc12"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCreds struct {
	mu          sync.Mutex
	valid       bool
	invalidated bool
}

func (f *fakeCreds) Token() (auth.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.valid {
		return auth.Credential{}, false
	}
	return auth.Credential{AccessToken: "tok"}, true
}

func (f *fakeCreds) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = false
	f.invalidated = true
}

type fakeDirectory struct {
	pages   []channel.SubscriptionPage
	pageErr map[int]error
	calls   atomic.Int64
	release chan struct{} // when set, ListSubscriptions blocks until closed
}

func (d *fakeDirectory) ListSubscriptions(ctx context.Context, pageToken string) (channel.SubscriptionPage, error) {
	n := int(d.calls.Add(1)) - 1
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return channel.SubscriptionPage{}, ctx.Err()
		}
	}
	if err, ok := d.pageErr[n]; ok {
		return channel.SubscriptionPage{}, err
	}
	if n >= len(d.pages) {
		return channel.SubscriptionPage{}, nil
	}
	return d.pages[n], nil
}

func (d *fakeDirectory) IsSubscribed(context.Context, string) (bool, error) {
	return false, nil
}

func (d *fakeDirectory) Search(context.Context, string) ([]channel.SearchResult, error) {
	return nil, nil
}

func TestRefresh_PagesAndDeduplicates(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	dir := &fakeDirectory{
		pages: []channel.SubscriptionPage{
			{ChannelIDs: []string{idA, idB, "garbage"}, NextPageToken: "p2"},
			{ChannelIDs: []string{idB, idC}},
		},
	}
	idx := New(12*time.Hour, clock, dir, &fakeCreds{valid: true}, zap.NewNop())

	require.True(t, idx.Stale(), "never-synced index is stale")
	require.True(t, idx.Refresh(context.Background(), false))

	assert.Equal(t, 3, idx.Len(), "duplicates and malformed ids are dropped")
	assert.True(t, idx.Contains(idA))
	assert.True(t, idx.Contains(idC))
	assert.False(t, idx.Contains("garbage"))
	assert.False(t, idx.Stale())
	assert.Equal(t, clock.Now(), idx.UpdatedAt())
}

func TestRefresh_SkipsWhenFresh_ForcesWhenAsked(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	dir := &fakeDirectory{pages: []channel.SubscriptionPage{{ChannelIDs: []string{idA}}}}
	idx := New(12*time.Hour, clock, dir, &fakeCreds{valid: true}, zap.NewNop())

	require.True(t, idx.Refresh(context.Background(), false))
	require.False(t, idx.Refresh(context.Background(), false), "fresh index must not re-sync")
	require.True(t, idx.Refresh(context.Background(), true), "force bypasses the TTL check")

	clock.advance(13 * time.Hour)
	require.True(t, idx.Refresh(context.Background(), false), "stale index re-syncs")
}

func TestRefresh_NoCredentialSoftFails(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	dir := &fakeDirectory{pages: []channel.SubscriptionPage{{ChannelIDs: []string{idA}}}}
	idx := New(time.Hour, clock, dir, &fakeCreds{valid: false}, zap.NewNop())

	require.False(t, idx.Refresh(context.Background(), true))
	assert.Equal(t, int64(0), dir.calls.Load(), "no credential means no remote calls")
	assert.Equal(t, 0, idx.Len())
}

func TestRefresh_PagingErrorDiscardsPartial(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	creds := &fakeCreds{valid: true}
	dir := &fakeDirectory{
		pages: []channel.SubscriptionPage{
			{ChannelIDs: []string{idA}, NextPageToken: "p2"},
		},
		pageErr: map[int]error{1: channel.ErrAuthExpired},
	}
	idx := New(time.Hour, clock, dir, creds, zap.NewNop())
	idx.Restore(Snapshot{UpdatedAt: clock.Now().Add(-30 * time.Minute), IDs: []string{idB}})

	require.False(t, idx.Refresh(context.Background(), true))
	assert.True(t, idx.Contains(idB), "previous index must survive a failed refresh")
	assert.False(t, idx.Contains(idA), "partial accumulation must be discarded")
	assert.True(t, creds.invalidated, "auth expiry invalidates the credential")
}

func TestRefresh_ConcurrentCallersNoOp(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	release := make(chan struct{})
	dir := &fakeDirectory{
		pages:   []channel.SubscriptionPage{{ChannelIDs: []string{idA}}},
		release: release,
	}
	idx := New(time.Hour, clock, dir, &fakeCreds{valid: true}, zap.NewNop())

	first := make(chan bool, 1)
	go func() { first <- idx.Refresh(context.Background(), false) }()

	require.Eventually(t, func() bool { return idx.Syncing() }, time.Second, time.Millisecond)
	require.False(t, idx.Refresh(context.Background(), false), "second caller observes false immediately")

	close(release)
	require.True(t, <-first)
	assert.Equal(t, int64(1), dir.calls.Load(), "exactly one paging sequence ran")
	assert.False(t, idx.Syncing())
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(9000, 0)}
	idx := New(time.Hour, clock, &fakeDirectory{}, &fakeCreds{valid: true}, zap.NewNop())
	idx.Add(idB)
	idx.Add(idA)

	snap := idx.Snapshot()
	assert.Equal(t, []string{idA, idB}, snap.IDs, "snapshot ids are sorted")

	other := New(time.Hour, clock, &fakeDirectory{}, &fakeCreds{valid: true}, zap.NewNop())
	other.Restore(snap)
	assert.Equal(t, snap, other.Snapshot())
}
