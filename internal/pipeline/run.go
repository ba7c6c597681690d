package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// Variant selects the stage-sequence behavior of the pipeline.
type Variant string

// Pipeline variants. Both share the same Job/Stage state machine contract.
const (
	// VariantLegacy analyzes and segments in two separate collaborator calls.
	VariantLegacy Variant = "legacy"
	// VariantVisionFirst resolves analysis and segmentation in one combined call.
	VariantVisionFirst Variant = "vision_first"
)

// ProgressEvent represents a progress update during job processing
type ProgressEvent struct {
	JobID   string `json:"job_id"`
	Stage   string `json:"stage"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProgressCallback is called when job progress occurs
type ProgressCallback func(event ProgressEvent)

// Orchestrator drives a job through its stage sequence, invoking
// retry-wrapped collaborators and persisting every transition before it is
// reported, so a crash between stages leaves the job resumable.
type Orchestrator struct {
	store      store.Store
	collab     Collaborators
	retry      RetryPolicy
	variant    Variant
	onProgress ProgressCallback
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithVariant selects the pipeline variant.
func WithVariant(v Variant) Option {
	return func(o *Orchestrator) { o.variant = v }
}

// WithProgress registers a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) { o.onProgress = cb }
}

// New creates an orchestrator over the given store and collaborators.
func New(st store.Store, collab Collaborators, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:   st,
		collab:  collab,
		retry:   DefaultRetryPolicy(),
		variant: VariantLegacy,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateJob accepts an uploaded document reference and persists a queued job
// with all stages pending, along with the agent configuration it will use.
func (o *Orchestrator) CreateJob(ctx context.Context, sourceRef string, agent types.AgentConfig) (*types.Job, error) {
	if sourceRef == "" {
		return nil, NewValidationError("source_ref is required")
	}

	job := types.NewJob(sourceRef, agent.ID)
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}
	if err := o.store.SaveArtifact(ctx, job.ID, store.ArtifactAgentConfig, agent); err != nil {
		return nil, fmt.Errorf("failed to persist agent config: %w", err)
	}
	return job, nil
}

// ProcessJob drives the job through all remaining stages. It is safe under
// at-least-once re-invocation: completed stages are skipped, and a stage
// claimed by a concurrent invocation makes this one exit without side
// effects.
func (o *Orchestrator) ProcessJob(ctx context.Context, id uuid.UUID) error {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFoundError(fmt.Sprintf("job not found: %s", id))
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job.Terminal() {
		return nil
	}

	for _, name := range types.StageOrder {
		job, err = o.runStage(ctx, job, name)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Another invocation owns this stage.
				return nil
			}
			return err
		}
	}
	return nil
}

// runStage executes one stage and returns the refreshed job record.
func (o *Orchestrator) runStage(ctx context.Context, job *types.Job, name types.StageName) (*types.Job, error) {
	st := job.StageByName(name)
	if st == nil {
		return nil, fmt.Errorf("job %s has no stage %s", job.ID, name)
	}
	if st.Status == types.StageStatusCompleted {
		// Idempotency guard: re-invoking a completed stage is a no-op.
		return job, nil
	}
	if st.Status == types.StageStatusFailed {
		return nil, fmt.Errorf("job %s already failed at stage %s", job.ID, name)
	}

	// Mutual exclusion guard: the pending -> in_progress transition is a
	// conditional write; losing it means another execution holds the stage.
	if err := o.store.BeginStage(ctx, job.ID, name); err != nil {
		return nil, err
	}
	o.emit(job.ID, name, types.StageStatusInProgress, "stage started")

	plan, err := o.planStage(name)
	if err != nil {
		return nil, err
	}

	var outputs []stageOutput
	runErr := o.retry.Do(ctx,
		func(int) { _ = o.store.RecordAttempt(ctx, job.ID, name) },
		func(ctx context.Context) error {
			out, err := plan.execute(ctx, job)
			if err != nil {
				return err
			}
			outputs = out
			return nil
		},
	)

	if runErr != nil {
		ce := Classify(runErr)
		// Fallback applies only after genuine retry exhaustion; fail-fast
		// errors and stages without a fallback end the job.
		if ce.Retryable && plan.fallback != nil {
			o.emit(job.ID, name, types.StageStatusInProgress,
				fmt.Sprintf("retries exhausted after %d attempts, applying fallback", ce.Attempts))
			outputs, err = plan.fallback(ctx, job)
			if err != nil {
				return nil, o.failJob(ctx, job, name, Classify(err))
			}
		} else {
			return nil, o.failJob(ctx, job, name, ce)
		}
	}

	// Persist outputs before reporting the transition so a crash here leaves
	// the stage re-runnable with nothing observable lost.
	for _, out := range outputs {
		if err := o.store.SaveArtifact(ctx, job.ID, out.Kind, out.Content); err != nil {
			return nil, fmt.Errorf("failed to persist %s artifact: %w", out.Kind, err)
		}
	}
	if err := o.store.CompleteStage(ctx, job.ID, name); err != nil {
		return nil, err
	}
	o.emit(job.ID, name, types.StageStatusCompleted, "stage completed")

	refreshed, err := o.store.GetJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload job: %w", err)
	}
	return refreshed, nil
}

// failJob persists the terminal failure and returns the classified error.
func (o *Orchestrator) failJob(ctx context.Context, job *types.Job, name types.StageName, ce *ClassifiedError) error {
	jobErr := types.JobError{
		Code:      ce.Code,
		Message:   ce.Message,
		Retryable: ce.Retryable,
		Attempts:  ce.Attempts,
	}
	if err := o.store.FailJob(ctx, job.ID, name, jobErr); err != nil {
		return fmt.Errorf("failed to persist job failure: %w", err)
	}
	o.emit(job.ID, name, types.StageStatusFailed, ce.Message)
	return ce
}

func (o *Orchestrator) emit(id uuid.UUID, stage types.StageName, status types.StageStatus, message string) {
	if o.onProgress != nil {
		o.onProgress(ProgressEvent{
			JobID:   id.String(),
			Stage:   string(stage),
			Status:  string(status),
			Message: message,
		})
	}
}
