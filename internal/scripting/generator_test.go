package scripting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

type fakeClient struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeClient) GenerateJSONFromFile(ctx context.Context, prompt, _, _ string, tier llm.ModelTier) (string, error) {
	return f.GenerateJSON(ctx, prompt, tier)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func testSegments() []types.Segment {
	return []types.Segment{
		{ID: "seg-1", Title: "Sampling Theory", Order: 0, Pages: []int{1}, SourceText: "sampling"},
		{ID: "seg-2", Title: "Fourier Transforms", Order: 1, Pages: []int{2}, SourceText: "fourier"},
	}
}

const validBlocksJSON = `[
	{"text": "Let us start with the core idea.", "page_reference": 1},
	{"text": "Building on that, consider the transform.", "page_reference": 2}
]`

func TestGenerateScript_OneCallPerSegment(t *testing.T) {
	client := &fakeClient{response: validBlocksJSON}
	g := New(client)

	blocks, err := g.GenerateScript(context.Background(), testSegments(), types.AgentConfig{})
	require.NoError(t, err)
	assert.Equal(t, 2, client.promptCount())
	require.Len(t, blocks, 4)

	// Blocks keep segment order and carry linkage and estimates.
	assert.Equal(t, "seg-1", blocks[0].SegmentID)
	assert.Equal(t, "seg-1", blocks[1].SegmentID)
	assert.Equal(t, "seg-2", blocks[2].SegmentID)
	for _, b := range blocks {
		assert.NotEmpty(t, b.ID)
		assert.Greater(t, b.EstimatedDuration, 0.0)
	}
}

func TestGenerateScript_PromptCarriesStyleAndLanguage(t *testing.T) {
	client := &fakeClient{response: validBlocksJSON}
	g := New(client)

	agent := types.AgentConfig{Style: "enthusiastic and fast-paced", Language: "French"}
	_, err := g.GenerateScript(context.Background(), testSegments()[:1], agent)
	require.NoError(t, err)
	require.Equal(t, 1, client.promptCount())
	assert.True(t, strings.Contains(client.prompts[0], "enthusiastic and fast-paced"))
	assert.True(t, strings.Contains(client.prompts[0], "French"))
}

func TestGenerateScript_NoSegmentsIsValidationError(t *testing.T) {
	g := New(&fakeClient{})

	_, err := g.GenerateScript(context.Background(), nil, types.AgentConfig{})
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeValidation, ce.Code)
}

func TestGenerateScript_ModelErrorPropagatesWithSegmentContext(t *testing.T) {
	client := &fakeClient{err: errors.New("overloaded")}
	g := New(client)

	_, err := g.GenerateScript(context.Background(), testSegments(), types.AgentConfig{})
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeExternalService, ce.Code)
}

func TestGenerateScript_EmptyBlockTextIsInvalidResponse(t *testing.T) {
	client := &fakeClient{response: `[{"text": "", "page_reference": 1}]`}
	g := New(client)

	_, err := g.GenerateScript(context.Background(), testSegments()[:1], types.AgentConfig{})
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeInvalidResponse, ce.Code)
}

func TestEstimateDuration(t *testing.T) {
	// 150 words per minute means one word costs 0.4 seconds.
	assert.InDelta(t, 0.4, EstimateDuration("word"), 1e-9)
	assert.InDelta(t, 2.0, EstimateDuration("one two three four five"), 1e-9)
	assert.Zero(t, EstimateDuration(""))
}
