// Package gcs provides a cache store backed by Google Cloud Storage, so
// several hosts can share one result cache.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// Config captures the bucket and object prefix for cache entries.
type Config struct {
	Bucket string
	Prefix string
}

// Store keeps one object per cache entry; the object's update time is the
// entry's creation time.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed cache store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Read fetches the object attributes for the timestamp, then its contents.
func (s *Store) Read(ctx context.Context, key string) ([]byte, time.Time, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(key))
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, time.Time{}, jobs.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat object: %w", err)
	}
	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, time.Time{}, jobs.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open object: %w", err)
	}
	defer r.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read object: %w", err)
	}
	created := attrs.Updated
	if created.IsZero() {
		created = attrs.Created
	}
	return data, created, nil
}

// Write uploads data as a single object; GCS makes it visible atomically.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}
	writer := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (s *Store) objectName(key string) string {
	if s.prefix == "" {
		return key + ".json"
	}
	return path.Join(s.prefix, key+".json")
}
