//go:build integration
// +build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	s, err := Connect(context.Background(), databaseURL)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestCreateAndGetJob_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := types.NewJob("files/integration", "")
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, types.JobStatusQueued, got.Status)
	assert.Len(t, got.Stages, len(types.StageOrder))
	for i, stage := range got.Stages {
		assert.Equal(t, types.StageOrder[i], stage.Name)
		assert.Equal(t, types.StageStatusPending, stage.Status)
	}
}

func TestBeginStage_ConditionalTransition_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := types.NewJob("files/integration", "")
	require.NoError(t, s.CreateJob(ctx, job))

	require.NoError(t, s.BeginStage(ctx, job.ID, types.StageAnalysis))

	// A second claim of the same stage must lose.
	err := s.BeginStage(ctx, job.ID, types.StageAnalysis)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusAnalyzing, got.Status)
	assert.Equal(t, types.StageStatusInProgress, got.StageByName(types.StageAnalysis).Status)
}

func TestStageLifecycle_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := types.NewJob("files/integration", "")
	require.NoError(t, s.CreateJob(ctx, job))

	for _, stage := range types.StageOrder {
		require.NoError(t, s.BeginStage(ctx, job.ID, stage))
		require.NoError(t, s.RecordAttempt(ctx, job.ID, stage))
		require.NoError(t, s.CompleteStage(ctx, job.ID, stage))
	}

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, got.Status)
	for _, stage := range got.Stages {
		assert.Equal(t, types.StageStatusCompleted, stage.Status)
		assert.Equal(t, 1, stage.Attempt)
	}
}

func TestFailJob_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := types.NewJob("files/integration", "")
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.BeginStage(ctx, job.ID, types.StageAnalysis))

	jobErr := types.JobError{
		Code:      "external_service_error",
		Message:   "model unavailable",
		Retryable: true,
		Attempts:  3,
	}
	require.NoError(t, s.FailJob(ctx, job.ID, types.StageAnalysis, jobErr))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, types.StageStatusFailed, got.StageByName(types.StageAnalysis).Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "model unavailable", got.Error.Message)
	assert.Equal(t, 3, got.Error.Attempts)
}

func TestArtifacts_RoundTrip_Integration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	job := types.NewJob("files/integration", "")
	require.NoError(t, s.CreateJob(ctx, job))

	segments := []types.Segment{{ID: "seg-001", Title: "Intro", Order: 0, Pages: []int{1}}}
	require.NoError(t, s.SaveArtifact(ctx, job.ID, store.ArtifactSegments, segments))

	var got []types.Segment
	found, err := s.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, segments, got)

	// Saving again replaces the previous artifact.
	replacement := []types.Segment{{ID: "seg-002", Title: "All", Order: 0, Pages: []int{1, 2}}}
	require.NoError(t, s.SaveArtifact(ctx, job.ID, store.ArtifactSegments, replacement))
	found, err = s.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, replacement, got)

	found, err = s.LoadArtifact(ctx, job.ID, store.ArtifactSynthesis, &types.SynthesisResult{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetJob_NotFound_Integration(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetJob(context.Background(), types.NewJob("x", "").ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
