package memory

import (
	"context"
	"testing"
)

func TestStoreRoundTripCopiesData(t *testing.T) {
	t.Parallel()

	s := New()
	payload := []byte(`{"a":1}`)
	if err := s.Save(context.Background(), map[string][]byte{"ref_cache": payload}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	payload[0] = 'X'

	got, err := s.Load(context.Background(), []string{"ref_cache", "missing"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got["ref_cache"]) != `{"a":1}` {
		t.Fatalf("stored blob mutated: %q", got["ref_cache"])
	}
	if _, ok := got["missing"]; ok {
		t.Fatal("missing keys must be absent, not empty")
	}
}
