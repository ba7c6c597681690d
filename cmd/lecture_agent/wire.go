package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jonathan/lecture-pipeline/internal/analysis"
	"github.com/jonathan/lecture-pipeline/internal/llm"
	"github.com/jonathan/lecture-pipeline/internal/pipeline"
	"github.com/jonathan/lecture-pipeline/internal/scripting"
	"github.com/jonathan/lecture-pipeline/internal/segmentation"
	"github.com/jonathan/lecture-pipeline/internal/speech"
)

// buildCollaborators wires the four stage collaborators over a shared LLM
// client and the speech service.
func buildCollaborators(client llm.Client, speechURL, speechAPIKey string) pipeline.Collaborators {
	analyzer := analysis.New(client)
	return pipeline.Collaborators{
		Analyzer:    analyzer,
		Vision:      analyzer,
		Segmenter:   segmentation.New(client),
		Scripter:    scripting.New(client),
		Synthesizer: speech.New(speechURL, speechAPIKey),
	}
}

// newLLMClient creates the LLM client from the environment-selected models.
func newLLMClient(ctx context.Context, apiKey string) (llm.Client, error) {
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// requireEnv returns the named environment variable or an error naming it.
func requireEnv(name string) (string, error) {
	value := os.Getenv(name)
	if value == "" {
		return "", fmt.Errorf("%s environment variable is required", name)
	}
	return value, nil
}

// parseVariant maps the config string onto a pipeline variant.
func parseVariant(s string) (pipeline.Variant, error) {
	switch s {
	case "", string(pipeline.VariantLegacy):
		return pipeline.VariantLegacy, nil
	case string(pipeline.VariantVisionFirst):
		return pipeline.VariantVisionFirst, nil
	default:
		return "", fmt.Errorf("unknown pipeline variant %q", s)
	}
}
