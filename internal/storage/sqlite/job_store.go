// Package sqlite persists job records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT PRIMARY KEY,
    source      TEXT NOT NULL,
    source_id   TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    company     TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    salary      TEXT NOT NULL DEFAULT '',
    posted      TEXT NOT NULL DEFAULT '',
    tags        TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    date_found  TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    UNIQUE (source, source_id)
);
CREATE INDEX IF NOT EXISTS idx_jobs_source_updated ON jobs(source, updated_at);
`

const upsert = `
INSERT INTO jobs (
    id, source, source_id, title, company, location, salary, posted,
    tags, url, date_found, description, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source, source_id) DO UPDATE SET
    title = excluded.title,
    company = excluded.company,
    location = excluded.location,
    salary = excluded.salary,
    posted = excluded.posted,
    tags = excluded.tags,
    url = excluded.url,
    date_found = excluded.date_found,
    description = excluded.description,
    updated_at = excluded.updated_at
RETURNING id`

// JobStore is a SQLite-backed jobs.JobStore.
type JobStore struct {
	db    *sql.DB
	ids   jobs.IDGenerator
	clock jobs.Clock
}

// Open opens (or creates) the job database at path and runs migrations.
func Open(path string, ids jobs.IDGenerator, clock jobs.Clock) (*JobStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open job db: %w", err)
	}
	// SQLite permits one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &JobStore{db: db, ids: ids, clock: clock}, nil
}

// Close releases the database handle.
func (s *JobStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddJob upserts job and returns its record ID.
func (s *JobStore) AddJob(ctx context.Context, job jobs.NormalizedJob) (string, error) {
	source, sourceID, err := storage.Key(job)
	if err != nil {
		return "", err
	}
	recordID, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	now := s.clock.Now().UTC().Format(time.RFC3339Nano)

	var id string
	err = s.db.QueryRowContext(ctx, upsert,
		recordID, source, sourceID, job.Title, job.Company, job.Location, job.Salary, job.Posted,
		job.Tags, job.URL, job.DateFound, job.Description, now, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert job: %w", err)
	}
	return id, nil
}

// ListJobs returns up to limit jobs, most recently updated first.
func (s *JobStore) ListJobs(ctx context.Context, source string, limit int) ([]jobs.NormalizedJob, error) {
	query := `
		SELECT source_id, source, title, company, location, salary, posted,
		       tags, url, date_found, description
		FROM jobs`
	args := []any{}
	if source = strings.ToLower(strings.TrimSpace(source)); source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY updated_at DESC, rowid DESC LIMIT ?"
	args = append(args, storage.Limit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	out := make([]jobs.NormalizedJob, 0)
	for rows.Next() {
		var j jobs.NormalizedJob
		if err := rows.Scan(
			&j.ID, &j.Source, &j.Title, &j.Company, &j.Location, &j.Salary, &j.Posted,
			&j.Tags, &j.URL, &j.DateFound, &j.Description,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}
