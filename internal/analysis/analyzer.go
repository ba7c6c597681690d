// Package analysis provides LLM-based content understanding of uploaded
// documents: per-page text, figures, tables, formulas and citations.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/prompts"
	intschemas "github.com/jonathan/lecture-pipeline/internal/schemas"
	"github.com/jonathan/lecture-pipeline/internal/types"
	"github.com/jonathan/lecture-pipeline/schemas"
)

const sourceMIMEType = "application/pdf"

// Analyzer implements pipeline.ContentAnalyzer and pipeline.VisionAnalyzer
// on top of a multimodal LLM client.
type Analyzer struct {
	client llm.Client
}

// New creates an analyzer over the given LLM client.
func New(client llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze extracts the structured content of the referenced document.
func (a *Analyzer) Analyze(ctx context.Context, sourceRef string) (*types.ExtractedContent, error) {
	prompt := prompts.MustGet("analysis.json", "extract-content")

	raw, err := a.client.GenerateJSONFromFile(ctx, prompt, sourceRef, sourceMIMEType, llm.TierVision)
	if err != nil {
		return nil, pipeline.ClassifyExternal("content analysis", err)
	}

	content, err := decodeContent(raw)
	if err != nil {
		return nil, err
	}
	return content, nil
}

// AnalyzeAndSegment performs analysis and segmentation in a single combined
// call, for the vision_first pipeline variant.
func (a *Analyzer) AnalyzeAndSegment(ctx context.Context, sourceRef string) (*types.ExtractedContent, []types.Segment, error) {
	prompt := prompts.MustGet("analysis.json", "extract-and-segment")

	raw, err := a.client.GenerateJSONFromFile(ctx, prompt, sourceRef, sourceMIMEType, llm.TierVision)
	if err != nil {
		return nil, nil, pipeline.ClassifyExternal("combined analysis", err)
	}

	var combined struct {
		Content  json.RawMessage `json:"content"`
		Segments json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal([]byte(raw), &combined); err != nil {
		return nil, nil, pipeline.NewInvalidResponseError("combined analysis returned malformed JSON", err)
	}

	content, err := decodeContent(string(combined.Content))
	if err != nil {
		return nil, nil, err
	}
	segments, err := DecodeSegments(string(combined.Segments))
	if err != nil {
		return nil, nil, err
	}
	return content, segments, nil
}

// decodeContent validates and decodes an extracted-content payload.
func decodeContent(raw string) (*types.ExtractedContent, error) {
	schema, err := schemas.Load(schemas.ExtractedContent)
	if err != nil {
		return nil, pipeline.NewInternalError("extracted content schema unavailable", err)
	}
	if err := intschemas.ValidateJSONString(schema, raw); err != nil {
		return nil, pipeline.NewInvalidResponseError("extracted content failed schema validation", err)
	}

	var content types.ExtractedContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, pipeline.NewInvalidResponseError("extracted content is malformed JSON", err)
	}

	sort.SliceStable(content.Pages, func(i, j int) bool {
		return content.Pages[i].PageNumber < content.Pages[j].PageNumber
	})
	return &content, nil
}

// DecodeSegments validates a segments payload and fills in the fields the
// model does not set (IDs, normalized order).
func DecodeSegments(raw string) ([]types.Segment, error) {
	schema, err := schemas.Load(schemas.Segments)
	if err != nil {
		return nil, pipeline.NewInternalError("segments schema unavailable", err)
	}

	// The model omits IDs, so decode first and validate the normalized form.
	var segments []types.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, pipeline.NewInvalidResponseError("segments payload is malformed JSON", err)
	}
	if len(segments) == 0 {
		return nil, pipeline.NewInvalidResponseError("segments payload is empty", nil)
	}

	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Order < segments[j].Order })
	for i := range segments {
		segments[i].Order = i
		if segments[i].ID == "" {
			segments[i].ID = newSegmentID(i)
		}
	}

	normalized, err := json.Marshal(segments)
	if err != nil {
		return nil, pipeline.NewInternalError("failed to re-encode segments", err)
	}
	if err := intschemas.ValidateJSONString(schema, string(normalized)); err != nil {
		return nil, pipeline.NewInvalidResponseError("segments payload failed schema validation", err)
	}
	return segments, nil
}

func newSegmentID(i int) string {
	return fmt.Sprintf("seg-%03d", i+1)
}
