package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
)

type fakeClient struct {
	response string
	err      error
	prompts  []string
	fileURIs []string
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func (f *fakeClient) GenerateJSONFromFile(_ context.Context, prompt, fileURI, _ string, _ llm.ModelTier) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.fileURIs = append(f.fileURIs, fileURI)
	return f.response, f.err
}

func (f *fakeClient) Close() error { return nil }

const validContentJSON = `{
	"title": "Linear Algebra Notes",
	"pages": [
		{"page_number": 2, "text": "matrices", "figures": ["fig 2.1"]},
		{"page_number": 1, "text": "vectors"}
	]
}`

func TestAnalyze_DecodesAndSortsPages(t *testing.T) {
	client := &fakeClient{response: validContentJSON}
	a := New(client)

	content, err := a.Analyze(context.Background(), "files/abc123")
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra Notes", content.Title)
	require.Len(t, content.Pages, 2)
	assert.Equal(t, 1, content.Pages[0].PageNumber)
	assert.Equal(t, 2, content.Pages[1].PageNumber)
	assert.Equal(t, []string{"files/abc123"}, client.fileURIs)
}

func TestAnalyze_MalformedJSONIsInvalidResponse(t *testing.T) {
	client := &fakeClient{response: `{"pages": [`}
	a := New(client)

	_, err := a.Analyze(context.Background(), "files/abc123")
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeInvalidResponse, ce.Code)
	assert.True(t, ce.Retryable)
}

func TestAnalyze_SchemaViolationIsInvalidResponse(t *testing.T) {
	// Valid JSON, but pages is required.
	client := &fakeClient{response: `{"title": "No Pages"}`}
	a := New(client)

	_, err := a.Analyze(context.Background(), "files/abc123")
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeInvalidResponse, ce.Code)
}

func TestAnalyze_APIErrorIsExternal(t *testing.T) {
	client := &fakeClient{err: errors.New("connection reset")}
	a := New(client)

	_, err := a.Analyze(context.Background(), "files/abc123")
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeExternalService, ce.Code)
	assert.True(t, ce.Retryable)
}

func TestAnalyzeAndSegment_DecodesBothPayloads(t *testing.T) {
	client := &fakeClient{response: `{
		"content": ` + validContentJSON + `,
		"segments": [
			{"title": "Matrices", "order": 1, "pages": [2], "source_text": "matrices"},
			{"title": "Vectors", "order": 0, "pages": [1], "source_text": "vectors"}
		]
	}`}
	a := New(client)

	content, segments, err := a.AnalyzeAndSegment(context.Background(), "files/abc123")
	require.NoError(t, err)
	require.NotNil(t, content)
	require.Len(t, segments, 2)

	// Segments come back ordered with IDs assigned.
	assert.Equal(t, "Vectors", segments[0].Title)
	assert.Equal(t, 0, segments[0].Order)
	assert.Equal(t, "Matrices", segments[1].Title)
	assert.Equal(t, 1, segments[1].Order)
	assert.NotEmpty(t, segments[0].ID)
	assert.NotEqual(t, segments[0].ID, segments[1].ID)
}

func TestDecodeSegments_EmptyIsInvalidResponse(t *testing.T) {
	_, err := DecodeSegments(`[]`)
	require.Error(t, err)

	var ce *pipeline.ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, pipeline.CodeInvalidResponse, ce.Code)
}
