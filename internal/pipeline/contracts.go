// Package pipeline provides the high-level orchestration for turning an
// uploaded document into a spoken lecture: content analysis, topic
// segmentation, script generation, and audio synthesis, each driven through a
// retry policy with state persisted between stages.
package pipeline

import (
	"context"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// ContentAnalyzer produces a structured understanding of the source document
// (text, figures, tables, formulas, citations per page).
type ContentAnalyzer interface {
	Analyze(ctx context.Context, sourceRef string) (*types.ExtractedContent, error)
}

// ContentSegmenter splits extracted content into topic-ordered,
// prerequisite-aware segments.
type ContentSegmenter interface {
	Segment(ctx context.Context, content *types.ExtractedContent) ([]types.Segment, error)
}

// VisionAnalyzer performs analysis and segmentation in a single pass over the
// source document. Used by the vision_first pipeline variant.
type VisionAnalyzer interface {
	AnalyzeAndSegment(ctx context.Context, sourceRef string) (*types.ExtractedContent, []types.Segment, error)
}

// ScriptGenerator writes lecture script blocks for each segment, styled by
// the agent configuration.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, segments []types.Segment, agent types.AgentConfig) ([]types.ScriptBlock, error)
}

// AudioSynthesizer converts a script into audio plus word-level timings.
type AudioSynthesizer interface {
	Synthesize(ctx context.Context, blocks []types.ScriptBlock, agent types.AgentConfig) (*types.SynthesisResult, error)
}

// Collaborators bundles the external capabilities the orchestrator sequences.
// Vision is optional and only consulted by the vision_first variant.
type Collaborators struct {
	Analyzer    ContentAnalyzer
	Segmenter   ContentSegmenter
	Vision      VisionAnalyzer
	Scripter    ScriptGenerator
	Synthesizer AudioSynthesizer
}
