// Package local implements a filesystem cache store: one <key>.json file per
// entry, with the file's modification time as the entry's creation time.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// Config captures the parameters for the filesystem cache store.
type Config struct {
	// Dir is the directory holding cache entries.
	Dir string `mapstructure:"dir"`
}

// Store reads and writes cache entries under Dir.
type Store struct {
	dir string
}

// New creates the cache directory if needed and verifies it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create cache directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat cache directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("cache path %s is not a directory", cfg.Dir)
	}

	probe := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("cache directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &Store{dir: filepath.Clean(cfg.Dir)}, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Read returns the entry bytes and the file's modification time.
func (s *Store) Read(_ context.Context, key string) ([]byte, time.Time, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, time.Time{}, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, jobs.ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat cache entry: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read cache entry: %w", err)
	}
	return data, info.ModTime(), nil
}

// Write stores data as <key>.json through a temp file and rename, so readers
// never observe a partial entry.
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // already renamed on success
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod temp entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish cache entry: %w", err)
	}
	return nil
}

// Prune deletes entries last written before cutoff and returns how many it removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("list cache entries: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				return removed, fmt.Errorf("remove cache entry: %w", err)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *Store) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("cache key is required")
	}
	full := filepath.Clean(filepath.Join(s.dir, key+".json"))
	if !strings.HasPrefix(full, s.dir+string(filepath.Separator)) || strings.ContainsRune(key, filepath.Separator) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}
