package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// MemoryStore is an in-process Store used by the CLI runner and by tests. It
// applies the same conditional-transition rules as the Postgres store and
// keeps a transition log so tests can replay and check ordering invariants.
type MemoryStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*types.Job
	artifacts map[uuid.UUID]map[ArtifactKind][]byte
	log       []Transition
}

// Transition records one persisted stage status change, in order.
type Transition struct {
	JobID  uuid.UUID
	Stage  types.StageName
	Status types.StageStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[uuid.UUID]*types.Job),
		artifacts: make(map[uuid.UUID]map[ArtifactKind][]byte),
	}
}

// CreateJob persists a copy of the job.
func (m *MemoryStore) CreateJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	m.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob returns a copy of the job record.
func (m *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

// BeginStage conditionally moves the stage from pending to in_progress. An
// in_progress claim older than StaleClaimAfter is treated as abandoned and
// reclaimed.
func (m *MemoryStore) BeginStage(_ context.Context, id uuid.UUID, stage types.StageName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	st := job.StageByName(stage)
	if st == nil {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	now := time.Now().UTC()
	if !claimable(st, now) {
		return ErrConflict
	}
	st.Status = types.StageStatusInProgress
	st.StartedAt = &now
	job.Status = types.JobStatus(stage)
	job.UpdatedAt = now
	m.log = append(m.log, Transition{JobID: id, Stage: stage, Status: types.StageStatusInProgress})
	return nil
}

// claimable reports whether a stage may be claimed: pending, or abandoned by
// an invocation that claimed it more than StaleClaimAfter ago.
func claimable(st *types.Stage, now time.Time) bool {
	switch st.Status {
	case types.StageStatusPending:
		return true
	case types.StageStatusInProgress:
		return st.StartedAt != nil && now.Sub(*st.StartedAt) > StaleClaimAfter
	default:
		return false
	}
}

// RecordAttempt increments the stage attempt counter.
func (m *MemoryStore) RecordAttempt(_ context.Context, id uuid.UUID, stage types.StageName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	st := job.StageByName(stage)
	if st == nil {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	st.Attempt++
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// CompleteStage moves an in_progress stage to completed and advances status.
func (m *MemoryStore) CompleteStage(_ context.Context, id uuid.UUID, stage types.StageName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	st := job.StageByName(stage)
	if st == nil {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	if st.Status != types.StageStatusInProgress {
		return ErrConflict
	}
	now := time.Now().UTC()
	st.Status = types.StageStatusCompleted
	st.CompletedAt = &now
	job.Status = job.DeriveStatus()
	job.UpdatedAt = now
	m.log = append(m.log, Transition{JobID: id, Stage: stage, Status: types.StageStatusCompleted})
	return nil
}

// FailJob marks the stage and the job as failed with the final error.
func (m *MemoryStore) FailJob(_ context.Context, id uuid.UUID, stage types.StageName, jobErr types.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	st := job.StageByName(stage)
	if st == nil {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	now := time.Now().UTC()
	st.Status = types.StageStatusFailed
	st.CompletedAt = &now
	job.Status = types.JobStatusFailed
	job.Error = &jobErr
	job.UpdatedAt = now
	m.log = append(m.log, Transition{JobID: id, Stage: stage, Status: types.StageStatusFailed})
	return nil
}

// SaveArtifact stores a JSON-encoded stage output.
func (m *MemoryStore) SaveArtifact(_ context.Context, id uuid.UUID, kind ArtifactKind, content any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", kind, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrNotFound
	}
	byKind, ok := m.artifacts[id]
	if !ok {
		byKind = make(map[ArtifactKind][]byte)
		m.artifacts[id] = byKind
	}
	byKind[kind] = data
	return nil
}

// LoadArtifact decodes a stored stage output into out.
func (m *MemoryStore) LoadArtifact(_ context.Context, id uuid.UUID, kind ArtifactKind, out any) (bool, error) {
	m.mu.Lock()
	data, ok := m.artifacts[id][kind]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode artifact %s: %w", kind, err)
	}
	return true, nil
}

// TransitionLog returns the ordered stage transitions persisted so far.
func (m *MemoryStore) TransitionLog() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.log))
	copy(out, m.log)
	return out
}

func cloneJob(job *types.Job) *types.Job {
	data, _ := json.Marshal(job)
	var out types.Job
	_ = json.Unmarshal(data, &out)
	return &out
}
