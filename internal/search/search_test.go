package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chanwatch/chanwatch/internal/channel"
)

const (
	idA = "UCaaaaaaaaaaaaaaaaaaaa12"
	idB = "UCbbbbbbbbbbbbbbbbbbbb12"
	idC = "UCcccccccccccccccccccc12"
)

type fakeSearcher struct {
	results map[string][]channel.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, q string) ([]channel.SearchResult, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[q], nil
}

func (f *fakeSearcher) ListSubscriptions(context.Context, string) (channel.SubscriptionPage, error) {
	return channel.SubscriptionPage{}, nil
}

func (f *fakeSearcher) IsSubscribed(context.Context, string) (bool, error) {
	return false, nil
}

func handleRef(name string) channel.NormalizedRef {
	return channel.NormalizedRef{Kind: channel.KindHandle, CanonicalValue: name}
}

func TestResolve_ExactCustomURLBeatsTitle(t *testing.T) {
	t.Parallel()

	dir := &fakeSearcher{results: map[string][]channel.SearchResult{
		"@name": {
			{ChannelID: idA, Title: "name", CustomURL: "@somethingelse"},
			{ChannelID: idB, Title: "Unrelated", CustomURL: "@name"},
		},
	}}
	r := New(dir, zap.NewNop())

	id, ok := r.Resolve(context.Background(), handleRef("name"))
	require.True(t, ok)
	assert.Equal(t, idB, id)
}

func TestResolve_ExactTitleMatch(t *testing.T) {
	t.Parallel()

	dir := &fakeSearcher{results: map[string][]channel.SearchResult{
		"@name": {
			{ChannelID: idA, Title: "Name"},
			{ChannelID: idB, Title: "name extended"},
		},
	}}
	r := New(dir, zap.NewNop())

	id, ok := r.Resolve(context.Background(), handleRef("name"))
	require.True(t, ok)
	assert.Equal(t, idA, id, "case-insensitive exact title beats substring")
}

func TestResolve_TiesKeepFirstSeen(t *testing.T) {
	t.Parallel()

	dir := &fakeSearcher{results: map[string][]channel.SearchResult{
		"@name": {
			{ChannelID: idA, Title: "the name show"},
			{ChannelID: idB, Title: "name again today"},
		},
	}}
	r := New(dir, zap.NewNop())

	id, ok := r.Resolve(context.Background(), handleRef("name"))
	require.True(t, ok)
	assert.Equal(t, idA, id)
}

func TestResolve_TriesBothQueryVariants(t *testing.T) {
	t.Parallel()

	dir := &fakeSearcher{results: map[string][]channel.SearchResult{
		"name": {{ChannelID: idC, Title: "name"}},
	}}
	r := New(dir, zap.NewNop())

	id, ok := r.Resolve(context.Background(), handleRef("name"))
	require.True(t, ok)
	assert.Equal(t, idC, id)
	assert.Equal(t, []string{"@name", "name"}, dir.queries)
}

func TestResolve_NoMatchOrErrorFails(t *testing.T) {
	t.Parallel()

	dir := &fakeSearcher{results: map[string][]channel.SearchResult{
		"@name": {{ChannelID: idA, Title: "totally different"}},
	}}
	r := New(dir, zap.NewNop())
	_, ok := r.Resolve(context.Background(), handleRef("name"))
	assert.False(t, ok, "no non-negative score means no result")

	failing := &fakeSearcher{err: errors.New("quota exceeded")}
	r = New(failing, zap.NewNop())
	_, ok = r.Resolve(context.Background(), handleRef("name"))
	assert.False(t, ok)

	invalid := &fakeSearcher{results: map[string][]channel.SearchResult{
		"@name": {{ChannelID: "not-an-id", Title: "name"}},
	}}
	r = New(invalid, zap.NewNop())
	_, ok = r.Resolve(context.Background(), handleRef("name"))
	assert.False(t, ok, "malformed identifiers are rejected before scoring")
}
