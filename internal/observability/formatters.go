// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtractedContent outputs a human-readable summary of the analyzed document.
func (p *Printer) PrintExtractedContent(content *types.ExtractedContent) {
	if content == nil {
		return
	}

	var sb strings.Builder
	if content.Title != "" {
		sb.WriteString(fmt.Sprintf("Title:  %s\n", content.Title))
	}
	sb.WriteString(fmt.Sprintf("Pages:  %d\n\n", len(content.Pages)))

	count := min(len(content.Pages), maxItemsToShow)
	for i := 0; i < count; i++ {
		page := content.Pages[i]
		text := page.Text
		if len(text) > 45 {
			text = text[:42] + "..."
		}
		sb.WriteString(fmt.Sprintf("p.%d  %s\n", page.PageNumber, text))
		extras := []string{}
		if n := len(page.Figures); n > 0 {
			extras = append(extras, fmt.Sprintf("%d figures", n))
		}
		if n := len(page.Tables); n > 0 {
			extras = append(extras, fmt.Sprintf("%d tables", n))
		}
		if n := len(page.Formulas); n > 0 {
			extras = append(extras, fmt.Sprintf("%d formulas", n))
		}
		if len(extras) > 0 {
			sb.WriteString(fmt.Sprintf("     [%s]\n", strings.Join(extras, ", ")))
		}
	}
	if len(content.Pages) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more pages", len(content.Pages)-maxItemsToShow))
	}

	p.printBox("EXTRACTED CONTENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSegments outputs the lecture segment plan.
func (p *Printer) PrintSegments(segments []types.Segment) {
	if len(segments) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total segments: %d\n\n", len(segments)))

	count := min(len(segments), maxItemsToShow)
	for i := 0; i < count; i++ {
		seg := segments[i]
		title := seg.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", seg.Order+1, title))
		if len(seg.Pages) > 0 {
			sb.WriteString(fmt.Sprintf("    Pages: %s\n", joinInts(seg.Pages)))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(segments) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more segments", len(segments)-maxItemsToShow))
	}

	p.printBox("LECTURE SEGMENTS", sb.String())
}

// PrintScript outputs the generated script with per-block duration estimates.
func (p *Printer) PrintScript(blocks []types.ScriptBlock) {
	if len(blocks) == 0 {
		return
	}

	var total float64
	for _, b := range blocks {
		total += b.EstimatedDuration
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Blocks: %d  Estimated: %s\n\n", len(blocks), formatDuration(total)))

	count := min(len(blocks), maxItemsToShow)
	for i := 0; i < count; i++ {
		block := blocks[i]
		text := block.Text
		if len(text) > 50 {
			text = text[:47] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s\n", text))
		sb.WriteString(fmt.Sprintf("  [p.%d, ~%.0fs]\n", block.PageReference, block.EstimatedDuration))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(blocks) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more blocks", len(blocks)-maxItemsToShow))
	}

	p.printBox("GENERATED SCRIPT", sb.String())
}

// PrintSynthesis outputs the synthesis result summary.
func (p *Printer) PrintSynthesis(result *types.SynthesisResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Audio:     %s\n", result.AudioRef))
	sb.WriteString(fmt.Sprintf("Duration:  %s\n", formatDuration(result.DurationSeconds)))
	sb.WriteString(fmt.Sprintf("Words:     %d", len(result.WordTimings)))

	p.printBox("SYNTHESIZED AUDIO", sb.String())
}

// PrintJobError outputs the terminal failure attached to a job.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintJobError(jobErr *types.JobError) {
	if jobErr == nil {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ JOB COMPLETED")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚠ %s\n", jobErr.Code))
	message := jobErr.Message
	if len(message) > 50 {
		message = message[:47] + "..."
	}
	sb.WriteString(fmt.Sprintf("  %s\n", message))
	if jobErr.Attempts > 0 {
		sb.WriteString(fmt.Sprintf("  Attempts: %d\n", jobErr.Attempts))
	}
	sb.WriteString(fmt.Sprintf("  Retryable: %t", jobErr.Retryable))

	p.printBox("JOB FAILED", sb.String())
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}

func formatDuration(seconds float64) string {
	m := int(seconds) / 60
	s := int(seconds) % 60
	return fmt.Sprintf("%dm%02ds", m, s)
}
