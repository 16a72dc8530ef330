// Package memory stores blobs in-memory for development and tests.
package memory

import (
	"context"
	"sync"
)

// Store keeps blobs in a mutex-guarded map.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load returns copies of the requested blobs.
func (s *Store) Load(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Save stores copies of the given blobs.
func (s *Store) Save(_ context.Context, blobs map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range blobs {
		s.data[k] = append([]byte(nil), v...)
	}
	return nil
}
