package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/pipeline"
)

// PipelineProcessor adapts the pipeline orchestrator to the queue's
// string-keyed job IDs.
type PipelineProcessor struct {
	orch *pipeline.Orchestrator
}

// NewPipelineProcessor wraps an orchestrator for use by the pool.
func NewPipelineProcessor(orch *pipeline.Orchestrator) *PipelineProcessor {
	return &PipelineProcessor{orch: orch}
}

// ProcessJob parses the claimed ID and runs the job through the pipeline.
func (p *PipelineProcessor) ProcessJob(ctx context.Context, jobID string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", jobID, err)
	}
	return p.orch.ProcessJob(ctx, id)
}
