// Package local implements the blob store as a single JSON file on the
// local filesystem, written atomically via rename.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists blobs to one JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store writing to path, ensuring the parent directory exists.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the requested blobs from the state file. A missing file is an
// empty store, not an error.
func (s *Store) Load(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Save merges blobs into the state file and writes it atomically.
func (s *Store) Save(_ context.Context, blobs map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	for k, v := range blobs {
		all[k] = json.RawMessage(append([]byte(nil), v...))
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *Store) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]json.RawMessage), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	all := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return all, nil
}
