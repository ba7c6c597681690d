// Package segmentation groups extracted document content into topic-ordered
// lecture segments.
package segmentation

import (
	"context"
	"encoding/json"

	"github.com/jonathan/lecture-pipeline/internal/analysis"
	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/prompts"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// Segmenter implements pipeline.ContentSegmenter on top of an LLM client.
type Segmenter struct {
	client llm.Client
}

// New creates a segmenter over the given LLM client.
func New(client llm.Client) *Segmenter {
	return &Segmenter{client: client}
}

// Segment groups the extracted content into ordered lecture segments.
func (s *Segmenter) Segment(ctx context.Context, content *types.ExtractedContent) ([]types.Segment, error) {
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, pipeline.NewInternalError("failed to encode extracted content", err)
	}

	template := prompts.MustGet("segmentation.json", "segment-content")
	prompt := prompts.Format(template, map[string]string{
		"Content": string(encoded),
	})

	raw, err := s.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, pipeline.ClassifyExternal("content segmentation", err)
	}

	segments, err := analysis.DecodeSegments(raw)
	if err != nil {
		return nil, err
	}
	return segments, nil
}
