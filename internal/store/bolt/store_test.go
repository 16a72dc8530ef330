package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)

	blobs := map[string][]byte{
		"ref_cache":    []byte(`{"k":"v"}`),
		"legacy_cache": []byte(`{}`),
	}
	require.NoError(t, s.Save(context.Background(), blobs))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(context.Background(), []string{"ref_cache", "legacy_cache", "subs_index"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(got["ref_cache"]))
	assert.Equal(t, `{}`, string(got["legacy_cache"]))
	_, ok := got["subs_index"]
	assert.False(t, ok)
}
