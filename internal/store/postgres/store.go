// Package postgres implements the job store on PostgreSQL. Stage transitions
// are conditional UPDATEs checked via RowsAffected, which gives the
// compare-and-set semantics concurrent orchestrator invocations rely on.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// Store wraps a PostgreSQL connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateJob persists the job row plus one row per stage.
func (s *Store) CreateJob(ctx context.Context, job *types.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, status, source_ref, agent_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, string(job.Status), job.SourceRef, job.AgentID, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for i, stage := range job.Stages {
		_, err = tx.Exec(ctx,
			`INSERT INTO job_stages (job_id, name, ordinal, status, attempt)
			 VALUES ($1, $2, $3, $4, $5)`,
			job.ID, string(stage.Name), i, string(stage.Status), stage.Attempt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", stage.Name, err)
		}
	}

	return tx.Commit(ctx)
}

// GetJob returns the job record with its stage sequence.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	var (
		job       types.Job
		status    string
		errorJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, source_ref, agent_id, error, created_at, updated_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &status, &job.SourceRef, &job.AgentID, &errorJSON, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	job.Status = types.JobStatus(status)
	if errorJSON != nil {
		var jobErr types.JobError
		if err := json.Unmarshal(errorJSON, &jobErr); err == nil {
			job.Error = &jobErr
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT name, status, attempt, started_at, completed_at
		 FROM job_stages WHERE job_id = $1 ORDER BY ordinal`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			stage       types.Stage
			name        string
			stageStatus string
		)
		if err := rows.Scan(&name, &stageStatus, &stage.Attempt, &stage.StartedAt, &stage.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stage.Name = types.StageName(name)
		stage.Status = types.StageStatus(stageStatus)
		job.Stages = append(job.Stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stages: %w", err)
	}

	return &job, nil
}

// BeginStage conditionally moves the stage from pending to in_progress. The
// WHERE clause on the current status is the compare-and-set: zero rows
// affected means another invocation won the transition. An in_progress claim
// older than store.StaleClaimAfter is treated as abandoned and reclaimed.
func (s *Store) BeginStage(ctx context.Context, id uuid.UUID, stage types.StageName) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE job_stages
		 SET status = 'in_progress', started_at = NOW()
		 WHERE job_id = $1 AND name = $2
		   AND (status = 'pending'
		        OR (status = 'in_progress' AND started_at < NOW() - make_interval(secs => $3)))`,
		id, string(stage), store.StaleClaimAfter.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to begin stage %s: %w", stage, err)
	}
	if tag.RowsAffected() == 0 {
		if exists, err := s.jobExists(ctx, id); err != nil {
			return err
		} else if !exists {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}

	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(stage), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordAttempt increments the stage attempt counter.
func (s *Store) RecordAttempt(ctx context.Context, id uuid.UUID, stage types.StageName) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_stages SET attempt = attempt + 1 WHERE job_id = $1 AND name = $2`,
		id, string(stage),
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt for %s: %w", stage, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompleteStage moves an in_progress stage to completed and advances the job
// status to the next pending stage, or to completed.
func (s *Store) CompleteStage(ctx context.Context, id uuid.UUID, stage types.StageName) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE job_stages
		 SET status = 'completed', completed_at = NOW()
		 WHERE job_id = $1 AND name = $2 AND status = 'in_progress'`,
		id, string(stage),
	)
	if err != nil {
		return fmt.Errorf("failed to complete stage %s: %w", stage, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}

	var next *string
	err = tx.QueryRow(ctx,
		`SELECT name FROM job_stages
		 WHERE job_id = $1 AND status <> 'completed'
		 ORDER BY ordinal LIMIT 1`,
		id,
	).Scan(&next)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to find next stage: %w", err)
	}

	status := string(types.JobStatusCompleted)
	if next != nil {
		status = *next
	}
	_, err = tx.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return tx.Commit(ctx)
}

// FailJob marks the stage failed and the job terminally failed.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, stage types.StageName, jobErr types.JobError) error {
	errorJSON, err := json.Marshal(jobErr)
	if err != nil {
		return fmt.Errorf("failed to marshal job error: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`UPDATE job_stages SET status = 'failed', completed_at = NOW()
		 WHERE job_id = $1 AND name = $2`,
		id, string(stage),
	)
	if err != nil {
		return fmt.Errorf("failed to fail stage %s: %w", stage, err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error = $1, updated_at = NOW() WHERE id = $2`,
		errorJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	return tx.Commit(ctx)
}

// SaveArtifact upserts a JSON artifact for the job.
func (s *Store) SaveArtifact(ctx context.Context, id uuid.UUID, kind store.ArtifactKind, content any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", kind, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO job_artifacts (job_id, kind, content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (job_id, kind) DO UPDATE SET content = $3, created_at = NOW()`,
		id, string(kind), data,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", kind, err)
	}
	return nil
}

// LoadArtifact decodes a stored artifact into out.
func (s *Store) LoadArtifact(ctx context.Context, id uuid.UUID, kind store.ArtifactKind, out any) (bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM job_artifacts WHERE job_id = $1 AND kind = $2`,
		id, string(kind),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get artifact %s: %w", kind, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode artifact %s: %w", kind, err)
	}
	return true, nil
}

func (s *Store) jobExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check job existence: %w", err)
	}
	return exists, nil
}
