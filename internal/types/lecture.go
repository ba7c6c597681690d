// Package types provides type definitions for structured data used throughout the lecture-pipeline system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// PageContent represents the understood content of one source page
type PageContent struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Figures    []string `json:"figures,omitempty"`
	Tables     []string `json:"tables,omitempty"`
	Formulas   []string `json:"formulas,omitempty"`
	Citations  []string `json:"citations,omitempty"`
}

// ExtractedContent represents the full content analysis of a source document
type ExtractedContent struct {
	Title string        `json:"title,omitempty"`
	Pages []PageContent `json:"pages"`
}

// ScriptBlock is one unit of generated lecture text tied to a segment and a source page
type ScriptBlock struct {
	ID                string  `json:"id"`
	SegmentID         string  `json:"segment_id"`
	Text              string  `json:"text"`
	PageReference     int     `json:"page_reference"`
	EstimatedDuration float64 `json:"estimated_duration"`
}

// Segment is a logically coherent topic unit of the source content. Pages and
// SourceText carry the material the script generator draws from; Blocks are
// filled once the script stage has run.
type Segment struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Order      int           `json:"order"`
	Pages      []int         `json:"pages,omitempty"`
	SourceText string        `json:"source_text,omitempty"`
	Blocks     []ScriptBlock `json:"blocks,omitempty"`
}

// WordTiming maps one spoken word to its interval on the audio clock.
// Sequences are sorted ascending by StartTime and never overlap.
type WordTiming struct {
	Word          string  `json:"word"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	ScriptBlockID string  `json:"script_block_id"`
}

// SynthesisResult is the output of audio synthesis for a full script
type SynthesisResult struct {
	AudioRef        string       `json:"audio_ref"`
	DurationSeconds float64      `json:"duration_seconds"`
	WordTimings     []WordTiming `json:"word_timings"`
}

// AgentConfig carries the voice and style options applied during script
// generation and audio synthesis.
type AgentConfig struct {
	ID           string  `json:"id,omitempty"`
	Name         string  `json:"name,omitempty"`
	Voice        string  `json:"voice,omitempty" validate:"omitempty,oneof=alloy echo fable onyx nova shimmer"`
	Style        string  `json:"style,omitempty" validate:"omitempty,max=500"`
	Language     string  `json:"language,omitempty" validate:"omitempty,bcp47_language_tag"`
	SpeakingRate float64 `json:"speaking_rate,omitempty" validate:"omitempty,gte=0.5,lte=2"`
}

// PlaybackData is the single payload fetched by a playback client before it
// starts driving lookups.
type PlaybackData struct {
	PDFURL      string       `json:"pdf_url"`
	AudioURL    string       `json:"audio_url"`
	Script      Script       `json:"script"`
	WordTimings []WordTiming `json:"word_timings"`
}

// Script groups the generated segments for the playback surface
type Script struct {
	Segments []Segment `json:"segments"`
}
