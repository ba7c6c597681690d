// Package llm provides centralized LLM configuration and client abstractions.
// Providers are selected by configuration at construction time, so call sites
// depend only on the Client capability interface.
package llm

import "os"

// ModelTier represents the capability level a pipeline stage needs
type ModelTier string

const (
	// TierVision is for multimodal document analysis (page images, figures, formulas)
	TierVision ModelTier = "vision"
	// TierStandard is for structured output: topic segmentation, metadata extraction
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long-form writing: lecture script generation
	TierAdvanced ModelTier = "advanced"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is the OpenAI provider (future)
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic is the Anthropic/Claude provider (future)
	ProviderAnthropic Provider = "anthropic"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default configuration (currently Gemini), with
// per-tier model overrides read from LECTURE_MODEL_VISION,
// LECTURE_MODEL_STANDARD and LECTURE_MODEL_ADVANCED.
func DefaultConfig() *Config {
	cfg := &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierVision:   "gemini-2.5-flash",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
	for tier, env := range map[ModelTier]string{
		TierVision:   "LECTURE_MODEL_VISION",
		TierStandard: "LECTURE_MODEL_STANDARD",
		TierAdvanced: "LECTURE_MODEL_ADVANCED",
	} {
		if v := os.Getenv(env); v != "" {
			cfg.Models[tier] = v
		}
	}
	return cfg
}

// GetModel returns the model name for a given tier, falling back to the
// standard tier when the requested one is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	return ""
}
