// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobsweep/internal/jobs"
	"github.com/JakeFAU/jobsweep/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable holds job rows when Config.Table is empty.
const DefaultTable = "jobs"

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type queryCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// JobStore writes job rows into Postgres.
type JobStore struct {
	pool  queryCloser
	table string
	ids   jobs.IDGenerator
	clock jobs.Clock
}

// NewJobStore connects a pool from cfg and ensures the job table exists.
func NewJobStore(ctx context.Context, cfg Config, ids jobs.IDGenerator, clock jobs.Clock) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewJobStoreWithPool(p, cfg.Table, ids, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(p queryCloser, table string, ids jobs.IDGenerator, clock jobs.Clock) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &JobStore{pool: p, table: table, ids: ids, clock: clock}, nil
}

// Migrate creates the job table and its upsert key.
func (s *JobStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          UUID PRIMARY KEY,
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
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (source, source_id)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
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
	now := s.clock.Now().UTC()
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, source, source_id, title, company, location, salary, posted,
	tags, url, date_found, description, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13
)
ON CONFLICT (source, source_id) DO UPDATE SET
	title = EXCLUDED.title,
	company = EXCLUDED.company,
	location = EXCLUDED.location,
	salary = EXCLUDED.salary,
	posted = EXCLUDED.posted,
	tags = EXCLUDED.tags,
	url = EXCLUDED.url,
	date_found = EXCLUDED.date_found,
	description = EXCLUDED.description,
	updated_at = EXCLUDED.updated_at
RETURNING id::text`, s.table)

	var id string
	err = s.pool.QueryRow(ctx, query,
		recordID, source, sourceID, job.Title, job.Company, job.Location, job.Salary, job.Posted,
		job.Tags, job.URL, job.DateFound, job.Description, now,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert job: %w", err)
	}
	return id, nil
}

// ListJobs returns up to limit jobs, most recently updated first.
func (s *JobStore) ListJobs(ctx context.Context, source string, limit int) ([]jobs.NormalizedJob, error) {
	query := fmt.Sprintf(`
SELECT source_id, source, title, company, location, salary, posted,
	tags, url, date_found, description
FROM %s
WHERE ($1 = '' OR source = $1)
ORDER BY updated_at DESC
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, strings.ToLower(strings.TrimSpace(source)), storage.Limit(limit))
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
