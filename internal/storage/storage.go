// Package storage holds the job stores that persist normalized results.
//
// Every store upserts on (source, id): re-adding a job a source already
// reported refreshes its fields and keeps the record ID issued the first
// time.
package storage

import (
	"errors"
	"strings"

	"github.com/JakeFAU/jobsweep/internal/jobs"
)

// DefaultListLimit caps ListJobs when the caller passes a non-positive limit.
const DefaultListLimit = 100

// ErrMissingKey is returned for jobs without a source or source ID.
var ErrMissingKey = errors.New("job requires source and id")

// Key returns the upsert key of job.
func Key(job jobs.NormalizedJob) (source, id string, err error) {
	source = strings.ToLower(strings.TrimSpace(job.Source))
	id = strings.TrimSpace(job.ID)
	if source == "" || id == "" {
		return "", "", ErrMissingKey
	}
	return source, id, nil
}

// Limit normalizes a ListJobs limit.
func Limit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
