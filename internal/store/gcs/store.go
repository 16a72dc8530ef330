// Package gcs implements the blob store on Google Cloud Storage, one object
// per blob under a configurable prefix.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store persists blobs as objects in a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed Store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "chanwatch"
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

func (s *Store) objectName(key string) string {
	return s.prefix + "/" + key + ".json"
}

// Load reads the requested blobs; missing objects are simply absent.
func (s *Store) Load(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		r, err := s.client.Bucket(s.bucket).Object(s.objectName(k)).NewReader(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				continue
			}
			return nil, fmt.Errorf("open blob %s: %w", k, err)
		}
		data, err := io.ReadAll(r)
		closeErr := r.Close()
		if err != nil {
			return nil, fmt.Errorf("read blob %s: %w", k, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("close blob %s: %w", k, closeErr)
		}
		out[k] = data
	}
	return out, nil
}

// Save writes each blob object. GCS writes are atomic per object; the blobs
// travel together in one call so callers keep them consistent.
func (s *Store) Save(ctx context.Context, blobs map[string][]byte) error {
	for k, data := range blobs {
		w := s.client.Bucket(s.bucket).Object(s.objectName(k)).NewWriter(ctx)
		w.ContentType = "application/json"
		if _, err := w.Write(data); err != nil {
			_ = w.Close()
			return fmt.Errorf("write blob %s: %w", k, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("close blob %s: %w", k, err)
		}
	}
	return nil
}
