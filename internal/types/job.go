// Package types provides type definitions for structured data used throughout the lecture-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the overall state of a lecture job.
type JobStatus string

// Job statuses, in pipeline order. A job's status is always the name of its
// first non-completed stage, or a terminal status.
const (
	JobStatusQueued            JobStatus = "queued"
	JobStatusAnalyzing         JobStatus = "analyzing"
	JobStatusSegmenting        JobStatus = "segmenting"
	JobStatusGeneratingScript  JobStatus = "generating_script"
	JobStatusSynthesizingAudio JobStatus = "synthesizing_audio"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusFailed            JobStatus = "failed"
)

// StageStatus represents the state of a single pipeline stage.
type StageStatus string

// Stage statuses.
const (
	StageStatusPending    StageStatus = "pending"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusFailed     StageStatus = "failed"
)

// StageName identifies one of the pipeline stages.
type StageName string

// Pipeline stage names, in execution order.
const (
	StageAnalysis     StageName = "analyzing"
	StageSegmentation StageName = "segmenting"
	StageScript       StageName = "generating_script"
	StageAudio        StageName = "synthesizing_audio"
)

// StageOrder is the fixed execution order of the pipeline stages.
var StageOrder = []StageName{StageAnalysis, StageSegmentation, StageScript, StageAudio}

// Stage records the execution state of one pipeline stage for a job.
type Stage struct {
	Name        StageName   `json:"name"`
	Status      StageStatus `json:"status"`
	Attempt     int         `json:"attempt"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// JobError is the stable error surface attached to a failed job.
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Attempts  int    `json:"attempts,omitempty"`
}

// Job is one upload's end-to-end processing record and state machine instance.
// Status is derivable from Stages: the first non-completed stage's name, or a
// terminal status. Mutated only by the orchestrator.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Status    JobStatus `json:"status"`
	Stages    []Stage   `json:"stages"`
	SourceRef string    `json:"source_ref"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     *JobError `json:"error,omitempty"`
}

// NewJob creates a queued job with all stages pending.
func NewJob(sourceRef, agentID string) *Job {
	now := time.Now().UTC()
	stages := make([]Stage, 0, len(StageOrder))
	for _, name := range StageOrder {
		stages = append(stages, Stage{Name: name, Status: StageStatusPending})
	}
	return &Job{
		ID:        uuid.New(),
		Status:    JobStatusQueued,
		Stages:    stages,
		SourceRef: sourceRef,
		AgentID:   agentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StageByName returns a pointer to the named stage, or nil if absent.
func (j *Job) StageByName(name StageName) *Stage {
	for i := range j.Stages {
		if j.Stages[i].Name == name {
			return &j.Stages[i]
		}
	}
	return nil
}

// DeriveStatus computes the job status implied by the stage sequence: failed
// if any stage failed, queued if no stage has started, otherwise the first
// non-completed stage's name, otherwise completed.
func (j *Job) DeriveStatus() JobStatus {
	started := false
	for _, s := range j.Stages {
		if s.Status == StageStatusFailed {
			return JobStatusFailed
		}
		if s.Status != StageStatusPending {
			started = true
		}
	}
	if !started {
		return JobStatusQueued
	}
	for _, s := range j.Stages {
		if s.Status != StageStatusCompleted {
			return JobStatus(s.Name)
		}
	}
	return JobStatusCompleted
}

// Terminal reports whether the job has reached an absorbing state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
