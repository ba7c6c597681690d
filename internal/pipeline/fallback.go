package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// SingleSegmentFallback builds the degraded segmentation result: one segment
// holding all available content, in page order.
func SingleSegmentFallback(content *types.ExtractedContent) []types.Segment {
	title := content.Title
	if title == "" {
		title = "Full Document"
	}
	pages := make([]int, 0, len(content.Pages))
	var text strings.Builder
	for _, page := range content.Pages {
		pages = append(pages, page.PageNumber)
		if page.Text != "" {
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(page.Text)
		}
	}
	return []types.Segment{{
		ID:         uuid.NewString(),
		Title:      title,
		Order:      0,
		Pages:      pages,
		SourceText: text.String(),
	}}
}

// MinimalScriptFallback builds the degraded script result: one short
// descriptive block per segment, so playback still has something to speak.
func MinimalScriptFallback(segments []types.Segment) []types.ScriptBlock {
	blocks := make([]types.ScriptBlock, 0, len(segments))
	for _, seg := range segments {
		page := 1
		if len(seg.Pages) > 0 {
			page = seg.Pages[0]
		}
		text := fmt.Sprintf("This section covers %s.", seg.Title)
		blocks = append(blocks, types.ScriptBlock{
			ID:                uuid.NewString(),
			SegmentID:         seg.ID,
			Text:              text,
			PageReference:     page,
			EstimatedDuration: estimateDuration(text),
		})
	}
	return blocks
}

// estimateDuration approximates spoken length at 150 words per minute.
func estimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return float64(words) / 150 * 60
}
