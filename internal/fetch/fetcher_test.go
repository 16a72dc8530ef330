package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanwatch/chanwatch/internal/metrics"
)

func TestFetcher_Success(t *testing.T) {
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "chanwatch-test/1.0", r.UserAgent())
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "chanwatch-test/1.0", Timeout: 5 * time.Second})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doc.StatusCode)
	assert.Contains(t, string(doc.Body), "hello")
}

func TestFetcher_NonSuccessStatusIsError(t *testing.T) {
	metrics.Init()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err, "non-2xx must surface as a soft failure")
}

func TestFetcher_ContextCancel(t *testing.T) {
	metrics.Init()

	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	f := New(Config{Timeout: 30 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait out the full request")
}

func TestHostLimiter_IndependentHosts(t *testing.T) {
	metrics.Init()

	l := newHostLimiter(1, 1) // 1 rps: second hit on a host would block ~1s
	ctx := context.Background()

	require.NoError(t, l.wait(ctx, "https://a.example/x"))
	start := time.Now()
	require.NoError(t, l.wait(ctx, "https://b.example/y"))
	assert.Less(t, time.Since(start), 100*time.Millisecond, "different hosts must not share a bucket")
}
