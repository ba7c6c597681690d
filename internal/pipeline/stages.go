package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/lecture-pipeline/internal/store"
	"github.com/jonathan/lecture-pipeline/internal/types"
)

// stageOutput is one artifact produced by a stage execution.
type stageOutput struct {
	Kind    store.ArtifactKind
	Content any
}

// stageExec runs a stage's collaborator and returns the artifacts to persist.
type stageExec func(ctx context.Context, job *types.Job) ([]stageOutput, error)

// stagePlan resolves how a stage executes for the current job, including the
// degraded fallback applied after retry exhaustion (nil when the stage has
// none and the job must fail).
type stagePlan struct {
	execute  stageExec
	fallback stageExec
}

// planStage maps a stage name to its execution and fallback behavior.
// Analysis and audio synthesis have no fallback.
func (o *Orchestrator) planStage(name types.StageName) (stagePlan, error) {
	switch name {
	case types.StageAnalysis:
		return stagePlan{execute: o.runAnalysis}, nil
	case types.StageSegmentation:
		return stagePlan{execute: o.runSegmentation, fallback: o.fallbackSingleSegment}, nil
	case types.StageScript:
		return stagePlan{execute: o.runScript, fallback: o.fallbackMinimalScript}, nil
	case types.StageAudio:
		return stagePlan{execute: o.runAudio}, nil
	default:
		return stagePlan{}, fmt.Errorf("unknown stage: %s", name)
	}
}

// runAnalysis executes content analysis. Under the vision_first variant a
// single combined call produces both the extracted content and the segments;
// the segmentation stage then completes from the stored artifact.
func (o *Orchestrator) runAnalysis(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	if o.variant == VariantVisionFirst && o.collab.Vision != nil {
		content, segments, err := o.collab.Vision.AnalyzeAndSegment(ctx, job.SourceRef)
		if err != nil {
			return nil, err
		}
		return []stageOutput{
			{Kind: store.ArtifactExtractedContent, Content: content},
			{Kind: store.ArtifactSegments, Content: segments},
		}, nil
	}

	content, err := o.collab.Analyzer.Analyze(ctx, job.SourceRef)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactExtractedContent, Content: content}}, nil
}

// runSegmentation executes topic segmentation. If a prior vision_first
// analysis already produced segments, they are reused without a collaborator
// call.
func (o *Orchestrator) runSegmentation(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	var existing []types.Segment
	found, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &existing)
	if err != nil {
		return nil, NewInternalError("failed to load segments artifact", err)
	}
	if found && len(existing) > 0 {
		return []stageOutput{{Kind: store.ArtifactSegments, Content: existing}}, nil
	}

	content, err := o.loadContent(ctx, job)
	if err != nil {
		return nil, err
	}
	segments, err := o.collab.Segmenter.Segment(ctx, content)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactSegments, Content: segments}}, nil
}

// fallbackSingleSegment degrades segmentation to one segment holding all
// available content.
func (o *Orchestrator) fallbackSingleSegment(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	content, err := o.loadContent(ctx, job)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactSegments, Content: SingleSegmentFallback(content)}}, nil
}

// runScript generates lecture script blocks for the stored segments.
func (o *Orchestrator) runScript(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	segments, err := o.loadSegments(ctx, job)
	if err != nil {
		return nil, err
	}
	agent, err := o.loadAgent(ctx, job)
	if err != nil {
		return nil, err
	}
	blocks, err := o.collab.Scripter.GenerateScript(ctx, segments, agent)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactScript, Content: blocks}}, nil
}

// fallbackMinimalScript degrades script generation to a short descriptive
// script per segment.
func (o *Orchestrator) fallbackMinimalScript(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	segments, err := o.loadSegments(ctx, job)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactScript, Content: MinimalScriptFallback(segments)}}, nil
}

// runAudio synthesizes the script into audio plus word-level timings.
func (o *Orchestrator) runAudio(ctx context.Context, job *types.Job) ([]stageOutput, error) {
	var blocks []types.ScriptBlock
	found, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactScript, &blocks)
	if err != nil {
		return nil, NewInternalError("failed to load script artifact", err)
	}
	if !found {
		return nil, NewInternalError("script artifact missing before audio synthesis", nil)
	}
	agent, err := o.loadAgent(ctx, job)
	if err != nil {
		return nil, err
	}
	result, err := o.collab.Synthesizer.Synthesize(ctx, blocks, agent)
	if err != nil {
		return nil, err
	}
	return []stageOutput{{Kind: store.ArtifactSynthesis, Content: result}}, nil
}

func (o *Orchestrator) loadContent(ctx context.Context, job *types.Job) (*types.ExtractedContent, error) {
	var content types.ExtractedContent
	found, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactExtractedContent, &content)
	if err != nil {
		return nil, NewInternalError("failed to load extracted content artifact", err)
	}
	if !found {
		return nil, NewInternalError("extracted content artifact missing", nil)
	}
	return &content, nil
}

func (o *Orchestrator) loadSegments(ctx context.Context, job *types.Job) ([]types.Segment, error) {
	var segments []types.Segment
	found, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactSegments, &segments)
	if err != nil {
		return nil, NewInternalError("failed to load segments artifact", err)
	}
	if !found {
		return nil, NewInternalError("segments artifact missing", nil)
	}
	return segments, nil
}

func (o *Orchestrator) loadAgent(ctx context.Context, job *types.Job) (types.AgentConfig, error) {
	var agent types.AgentConfig
	if _, err := o.store.LoadArtifact(ctx, job.ID, store.ArtifactAgentConfig, &agent); err != nil {
		return types.AgentConfig{}, NewInternalError("failed to load agent config artifact", err)
	}
	return agent, nil
}
