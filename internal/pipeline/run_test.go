package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// Collaborator fakes with call counting and scriptable failures.

type fakeAnalyzer struct {
	calls int
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) (*types.ExtractedContent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.ExtractedContent{
		Title: "Test Document",
		Pages: []types.PageContent{{PageNumber: 1, Text: "introduction"}, {PageNumber: 2, Text: "details"}},
	}, nil
}

type fakeVision struct {
	calls int
	err   error
}

func (f *fakeVision) AnalyzeAndSegment(_ context.Context, _ string) (*types.ExtractedContent, []types.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	content := &types.ExtractedContent{Pages: []types.PageContent{{PageNumber: 1, Text: "combined"}}}
	segments := []types.Segment{{ID: "seg-001", Title: "Combined Topic", Order: 0, Pages: []int{1}, SourceText: "combined"}}
	return content, segments, nil
}

type fakeSegmenter struct {
	calls int
	err   error
}

func (f *fakeSegmenter) Segment(_ context.Context, content *types.ExtractedContent) ([]types.Segment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	segments := make([]types.Segment, 0, len(content.Pages))
	for i, page := range content.Pages {
		segments = append(segments, types.Segment{
			ID:         "seg-" + string(rune('a'+i)),
			Title:      "Topic " + string(rune('A'+i)),
			Order:      i,
			Pages:      []int{page.PageNumber},
			SourceText: page.Text,
		})
	}
	return segments, nil
}

type fakeScripter struct {
	calls int
	err   error
}

func (f *fakeScripter) GenerateScript(_ context.Context, segments []types.Segment, _ types.AgentConfig) ([]types.ScriptBlock, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	blocks := make([]types.ScriptBlock, 0, len(segments))
	for i, seg := range segments {
		blocks = append(blocks, types.ScriptBlock{
			ID:            "blk-" + string(rune('a'+i)),
			SegmentID:     seg.ID,
			Text:          "Spoken text about " + seg.Title,
			PageReference: 1,
		})
	}
	return blocks, nil
}

type fakeSynthesizer struct {
	calls int
	err   error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, blocks []types.ScriptBlock, _ types.AgentConfig) (*types.SynthesisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.SynthesisResult{
		AudioRef:        "audio/test.mp3",
		DurationSeconds: 42,
		WordTimings: []types.WordTiming{
			{Word: "Spoken", StartTime: 0, EndTime: 0.4, ScriptBlockID: blocks[0].ID},
		},
	}, nil
}

type fixture struct {
	store    *store.MemoryStore
	analyzer *fakeAnalyzer
	vision   *fakeVision
	segment  *fakeSegmenter
	script   *fakeScripter
	synth    *fakeSynthesizer
}

func newFixture() *fixture {
	return &fixture{
		store:    store.NewMemoryStore(),
		analyzer: &fakeAnalyzer{},
		vision:   &fakeVision{},
		segment:  &fakeSegmenter{},
		script:   &fakeScripter{},
		synth:    &fakeSynthesizer{},
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	collab := Collaborators{
		Analyzer:    f.analyzer,
		Vision:      f.vision,
		Segmenter:   f.segment,
		Scripter:    f.script,
		Synthesizer: f.synth,
	}
	policy := RetryPolicy{
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Millisecond,
		MaxAttempts:  3,
		sleep:        func(context.Context, time.Duration) error { return nil },
	}
	opts = append([]Option{WithRetryPolicy(policy)}, opts...)
	return New(f.store, collab, opts...)
}

func TestCreateJob_RequiresSourceRef(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()

	_, err := orch.CreateJob(context.Background(), "", types.AgentConfig{})
	require.Error(t, err)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeValidation, ce.Code)
}

func TestCreateJob_PersistsQueuedJobAndAgentConfig(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()
	ctx := context.Background()

	agent := types.AgentConfig{ID: "agent-1", Voice: "nova", SpeakingRate: 1.25}
	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", agent)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusQueued, job.Status)
	require.Len(t, job.Stages, 4)
	for _, st := range job.Stages {
		assert.Equal(t, types.StageStatusPending, st.Status)
	}

	var stored types.AgentConfig
	found, err := f.store.LoadArtifact(ctx, job.ID, store.ArtifactAgentConfig, &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, agent, stored)
}

func TestProcessJob_HappyPath(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	final, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, final.Status)
	for _, st := range final.Stages {
		assert.Equal(t, types.StageStatusCompleted, st.Status, "stage %s", st.Name)
		assert.Equal(t, 1, st.Attempt, "stage %s", st.Name)
	}

	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, 1, f.segment.calls)
	assert.Equal(t, 1, f.script.calls)
	assert.Equal(t, 1, f.synth.calls)

	var synthesis types.SynthesisResult
	found, err := f.store.LoadArtifact(ctx, job.ID, store.ArtifactSynthesis, &synthesis)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "audio/test.mp3", synthesis.AudioRef)
}

func TestProcessJob_TransitionOrdering(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	transitions := f.store.TransitionLog()
	require.Len(t, transitions, 8)
	for i, name := range types.StageOrder {
		assert.Equal(t, name, transitions[2*i].Stage)
		assert.Equal(t, types.StageStatusInProgress, transitions[2*i].Status)
		assert.Equal(t, name, transitions[2*i+1].Stage)
		assert.Equal(t, types.StageStatusCompleted, transitions[2*i+1].Status)
	}
}

func TestProcessJob_SegmentationFallbackAfterRetryExhaustion(t *testing.T) {
	f := newFixture()
	f.segment.err = NewExternalServiceError("model overloaded", errors.New("503"))
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	// All three attempts spent before degrading to the single-segment plan.
	assert.Equal(t, 3, f.segment.calls)

	final, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, final.Status)

	var segments []types.Segment
	found, err := f.store.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &segments)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, segments, 1)
	assert.Equal(t, "Test Document", segments[0].Title)
	assert.Equal(t, []int{1, 2}, segments[0].Pages)
}

func TestProcessJob_ScriptFallbackProducesMinimalScript(t *testing.T) {
	f := newFixture()
	f.script.err = NewInvalidResponseError("malformed script payload", nil)
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	assert.Equal(t, 3, f.script.calls)

	var blocks []types.ScriptBlock
	found, err := f.store.LoadArtifact(ctx, job.ID, store.ArtifactScript, &blocks)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, blocks, 2) // one minimal block per segment
	for _, b := range blocks {
		assert.NotEmpty(t, b.Text)
		assert.NotEmpty(t, b.SegmentID)
	}
}

func TestProcessJob_AudioNonRetryableFailsImmediately(t *testing.T) {
	f := newFixture()
	f.synth.err = &ClassifiedError{Code: CodeExternalService, Message: "invalid API key"}
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	err = orch.ProcessJob(ctx, job.ID)
	require.Error(t, err)

	// Fail-fast: no retries for a non-retryable rejection.
	assert.Equal(t, 1, f.synth.calls)

	final, getErr := f.store.GetJob(ctx, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, types.JobStatusFailed, final.Status)
	require.NotNil(t, final.Error)
	assert.Equal(t, CodeExternalService, final.Error.Code)
	assert.False(t, final.Error.Retryable)
	assert.Equal(t, 1, final.Error.Attempts)

	// Earlier stages keep their completed state.
	assert.Equal(t, types.StageStatusCompleted, final.StageByName(types.StageScript).Status)
	assert.Equal(t, types.StageStatusFailed, final.StageByName(types.StageAudio).Status)
}

func TestProcessJob_AnalysisExhaustionFailsWithoutFallback(t *testing.T) {
	f := newFixture()
	f.analyzer.err = NewExternalServiceError("timeout", errors.New("deadline"))
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	err = orch.ProcessJob(ctx, job.ID)
	require.Error(t, err)

	assert.Equal(t, 3, f.analyzer.calls)

	final, getErr := f.store.GetJob(ctx, job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, types.JobStatusFailed, final.Status)
	require.NotNil(t, final.Error)
	assert.True(t, final.Error.Retryable)
	assert.Equal(t, 3, final.Error.Attempts)
	assert.Equal(t, 3, final.StageByName(types.StageAnalysis).Attempt)
}

func TestProcessJob_CompletedJobIsNoOp(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	// Re-invocation after completion must not re-run any collaborator.
	assert.Equal(t, 1, f.analyzer.calls)
	assert.Equal(t, 1, f.segment.calls)
	assert.Equal(t, 1, f.script.calls)
	assert.Equal(t, 1, f.synth.calls)
}

func TestProcessJob_FailedJobIsNoOp(t *testing.T) {
	f := newFixture()
	f.analyzer.err = &ClassifiedError{Code: CodeExternalService, Message: "rejected"}
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.Error(t, orch.ProcessJob(ctx, job.ID))

	require.NoError(t, orch.ProcessJob(ctx, job.ID))
	assert.Equal(t, 1, f.analyzer.calls)
}

func TestProcessJob_ConcurrentClaimExitsWithoutSideEffects(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)

	// Another invocation holds the first stage.
	require.NoError(t, f.store.BeginStage(ctx, job.ID, types.StageAnalysis))

	require.NoError(t, orch.ProcessJob(ctx, job.ID))
	assert.Equal(t, 0, f.analyzer.calls)
	assert.Equal(t, 0, f.segment.calls)
}

func TestProcessJob_UnknownJob(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator()

	err := orch.ProcessJob(context.Background(), types.NewJob("x", "").ID)
	require.Error(t, err)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CodeNotFound, ce.Code)
}

func TestProcessJob_VisionFirstSkipsSegmenterCall(t *testing.T) {
	f := newFixture()
	orch := f.orchestrator(WithVariant(VariantVisionFirst))
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	assert.Equal(t, 1, f.vision.calls)
	assert.Equal(t, 0, f.analyzer.calls)
	assert.Equal(t, 0, f.segment.calls)

	// The segmentation stage still completes, from the stored artifact.
	final, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, final.Status)
	assert.Equal(t, types.StageStatusCompleted, final.StageByName(types.StageSegmentation).Status)
}

func TestProcessJob_EmitsProgressEvents(t *testing.T) {
	f := newFixture()
	var events []ProgressEvent
	orch := f.orchestrator(WithProgress(func(ev ProgressEvent) { events = append(events, ev) }))
	ctx := context.Background()

	job, err := orch.CreateJob(ctx, "docs/lecture.pdf", types.AgentConfig{})
	require.NoError(t, err)
	require.NoError(t, orch.ProcessJob(ctx, job.ID))

	require.Len(t, events, 8)
	assert.Equal(t, string(types.StageAnalysis), events[0].Stage)
	assert.Equal(t, string(types.StageStatusInProgress), events[0].Status)
	assert.Equal(t, string(types.StageAudio), events[7].Stage)
	assert.Equal(t, string(types.StageStatusCompleted), events[7].Status)
}
