// Package store provides durable persistence for lecture jobs. All
// cross-invocation coordination happens through conditional stage transitions,
// so concurrent orchestrator invocations never need shared process memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// StaleClaimAfter is how long an in_progress stage claim may sit unfinished
// before BeginStage lets another invocation reclaim it. Covers workers that
// crashed between claiming a stage and completing it.
const StaleClaimAfter = 10 * time.Minute

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrConflict indicates a conditional stage transition lost to another
// invocation. Callers must exit without side effects.
var ErrConflict = errors.New("stage transition conflict")

// ArtifactKind names a per-job stage output.
type ArtifactKind string

// Artifact kinds persisted per job.
const (
	ArtifactAgentConfig      ArtifactKind = "agent_config"
	ArtifactExtractedContent ArtifactKind = "extracted_content"
	ArtifactSegments         ArtifactKind = "segments"
	ArtifactScript           ArtifactKind = "script_blocks"
	ArtifactSynthesis        ArtifactKind = "synthesis"
)

// Store is the durable job repository consumed by the orchestrator.
type Store interface {
	// CreateJob persists a freshly created job with all stages pending.
	CreateJob(ctx context.Context, job *types.Job) error
	// GetJob returns the current job record, or ErrNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	// BeginStage conditionally transitions the stage from pending to
	// in_progress and advances the job status to the stage name. Returns
	// ErrConflict if another invocation already moved the stage, unless
	// that claim is older than StaleClaimAfter, in which case it is
	// reclaimed.
	BeginStage(ctx context.Context, id uuid.UUID, stage types.StageName) error
	// RecordAttempt increments the stage's attempt counter.
	RecordAttempt(ctx context.Context, id uuid.UUID, stage types.StageName) error
	// CompleteStage transitions an in_progress stage to completed and
	// advances the job status to the next stage (or completed).
	CompleteStage(ctx context.Context, id uuid.UUID, stage types.StageName) error
	// FailJob marks the stage failed and the job terminally failed,
	// attaching the collected error.
	FailJob(ctx context.Context, id uuid.UUID, stage types.StageName, jobErr types.JobError) error
	// SaveArtifact stores a stage output for the job, replacing any
	// previous artifact of the same kind.
	SaveArtifact(ctx context.Context, id uuid.UUID, kind ArtifactKind, content any) error
	// LoadArtifact decodes a stored artifact into out. The boolean reports
	// whether the artifact exists.
	LoadArtifact(ctx context.Context, id uuid.UUID, kind ArtifactKind, out any) (bool, error)
}
