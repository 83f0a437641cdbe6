// Package memory provides an in-process cache store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

type entry struct {
	data    []byte
	created time.Time
}

// Store keeps cache entries in a map.
type Store struct {
	mu      sync.RWMutex
	clock   jobs.Clock
	entries map[string]entry
}

// New returns an empty Store stamping entries with clock.
func New(clock jobs.Clock) *Store {
	return &Store{clock: clock, entries: map[string]entry{}}
}

// Read returns the stored bytes and their creation time.
func (s *Store) Read(_ context.Context, key string) ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, time.Time{}, jobs.ErrNotFound
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, e.created, nil
}

// Write replaces the entry for key.
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{data: cp, created: s.clock.Now()}
	return nil
}

// Prune drops entries created before cutoff.
func (s *Store) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if e.created.Before(cutoff) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
