// Package memory keeps job records in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/storage"
)

type record struct {
	id  string
	job jobs.NormalizedJob
}

// JobStore provides an in-memory implementation for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	ids   jobs.IDGenerator
	order []string
	rows  map[string]*record
}

// NewJobStore constructs a JobStore issuing record IDs from ids.
func NewJobStore(ids jobs.IDGenerator) *JobStore {
	return &JobStore{
		ids:  ids,
		rows: make(map[string]*record),
	}
}

// AddJob upserts job and returns its record ID.
func (s *JobStore) AddJob(_ context.Context, job jobs.NormalizedJob) (string, error) {
	source, id, err := storage.Key(job)
	if err != nil {
		return "", err
	}
	key := source + "\x00" + id

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.rows[key]; ok {
		existing.job = job
		return existing.id, nil
	}
	recordID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	s.rows[key] = &record{id: recordID, job: job}
	s.order = append(s.order, key)
	return recordID, nil
}

// ListJobs returns up to limit jobs, newest first, optionally for one source.
func (s *JobStore) ListJobs(_ context.Context, source string, limit int) ([]jobs.NormalizedJob, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	limit = storage.Limit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]jobs.NormalizedJob, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.rows[s.order[i]]
		if source != "" && !strings.EqualFold(rec.job.Source, source) {
			continue
		}
		out = append(out, rec.job)
	}
	return out, nil
}

// Len reports the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
