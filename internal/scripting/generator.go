// Package scripting turns lecture segments into spoken script blocks.
package scripting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/prompts"
	intschemas "github.com/jonathan/lecture-pipeline/internal/schemas"
	"github.com/jonathan/lecture-pipeline/internal/types"
	"github.com/jonathan/lecture-pipeline/schemas"
)

const (
	defaultStyle    = "clear and conversational"
	defaultLanguage = "English"

	// Segments are independent, so generate them concurrently with a cap
	// that stays under typical API rate limits.
	maxConcurrentSegments = 4

	wordsPerMinute = 150.0
)

// Generator implements pipeline.ScriptGenerator on top of an LLM client.
// Each segment's script is generated by its own model call.
type Generator struct {
	client llm.Client
}

// New creates a script generator over the given LLM client.
func New(client llm.Client) *Generator {
	return &Generator{client: client}
}

// GenerateScript produces spoken script blocks for every segment, preserving
// segment order in the returned slice.
func (g *Generator) GenerateScript(ctx context.Context, segments []types.Segment, agent types.AgentConfig) ([]types.ScriptBlock, error) {
	if len(segments) == 0 {
		return nil, pipeline.NewValidationError("no segments to script")
	}

	perSegment := make([][]types.ScriptBlock, len(segments))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(maxConcurrentSegments)
	for i, seg := range segments {
		grp.Go(func() error {
			blocks, err := g.scriptSegment(grpCtx, seg, agent)
			if err != nil {
				return fmt.Errorf("segment %q: %w", seg.Title, err)
			}
			perSegment[i] = blocks
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var all []types.ScriptBlock
	for _, blocks := range perSegment {
		all = append(all, blocks...)
	}
	return all, nil
}

func (g *Generator) scriptSegment(ctx context.Context, seg types.Segment, agent types.AgentConfig) ([]types.ScriptBlock, error) {
	style := agent.Style
	if style == "" {
		style = defaultStyle
	}
	language := agent.Language
	if language == "" {
		language = defaultLanguage
	}

	template := prompts.MustGet("scripting.json", "write-script")
	prompt := prompts.Format(template, map[string]string{
		"Title":      seg.Title,
		"SourceText": seg.SourceText,
		"Style":      style,
		"Language":   language,
	})

	raw, err := g.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, pipeline.ClassifyExternal("script generation", err)
	}
	return decodeBlocks(raw, seg)
}

// decodeBlocks validates the model output and stamps IDs, segment linkage and
// duration estimates onto each block.
func decodeBlocks(raw string, seg types.Segment) ([]types.ScriptBlock, error) {
	var blocks []types.ScriptBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, pipeline.NewInvalidResponseError("script payload is malformed JSON", err)
	}
	if len(blocks) == 0 {
		return nil, pipeline.NewInvalidResponseError("script payload is empty", nil)
	}

	for i := range blocks {
		blocks[i].ID = uuid.NewString()
		blocks[i].SegmentID = seg.ID
		if blocks[i].Text == "" {
			return nil, pipeline.NewInvalidResponseError("script block has empty text", nil)
		}
		blocks[i].EstimatedDuration = EstimateDuration(blocks[i].Text)
	}

	schema, err := schemas.Load(schemas.ScriptBlocks)
	if err != nil {
		return nil, pipeline.NewInternalError("script blocks schema unavailable", err)
	}
	normalized, err := json.Marshal(blocks)
	if err != nil {
		return nil, pipeline.NewInternalError("failed to re-encode script blocks", err)
	}
	if err := intschemas.ValidateJSONString(schema, string(normalized)); err != nil {
		return nil, pipeline.NewInvalidResponseError("script payload failed schema validation", err)
	}
	return blocks, nil
}

// EstimateDuration approximates spoken length in seconds at an average
// lecture pace.
func EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / wordsPerMinute * 60.0
}
