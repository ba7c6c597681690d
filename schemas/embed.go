// Package schemas holds the JSON Schemas that collaborator outputs must
// satisfy before a stage is allowed to complete.
package schemas

import (
	"embed"
	"fmt"
)

//go:embed *.schema.json
var files embed.FS

// Schema file names.
const (
	ExtractedContent = "extracted_content.schema.json"
	Segments         = "segments.schema.json"
	ScriptBlocks     = "script_blocks.schema.json"
	WordTimings      = "word_timings.schema.json"
)

// Load returns the named schema's content.
func Load(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to load schema %s: %w", name, err)
	}
	return string(data), nil
}
