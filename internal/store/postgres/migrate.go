package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL,
		source_ref TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		error JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS job_stages (
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		ordinal INT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempt INT NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		PRIMARY KEY (job_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS job_artifacts (
		job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		content JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (job_id, kind)
	)`,
}

// Migrate creates the job tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
