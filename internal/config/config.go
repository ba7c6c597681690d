// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Inputs
	Source string `json:"source,omitempty"` // Document reference to process (file path or uploaded-file URI)
	Agent  string `json:"agent,omitempty"`  // Path to agent config JSON (voice, style, language)

	// Services
	APIKey       string `json:"api_key,omitempty"`        // Gemini API key
	DatabaseURL  string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	RedisURL     string `json:"redis_url,omitempty"`      // Redis connection URL for the job queue
	SpeechURL    string `json:"speech_url,omitempty"`     // Speech synthesis service base URL
	SpeechAPIKey string `json:"speech_api_key,omitempty"` // Speech synthesis service API key

	// Behavior
	Variant string `json:"variant,omitempty"` // Pipeline variant: "legacy" or "vision_first"
	Workers int    `json:"workers,omitempty"` // Worker pool size for the serve command
	Port    int    `json:"port,omitempty"`    // HTTP listen port
	Verbose bool   `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Variant != "" && c.Variant != "legacy" && c.Variant != "vision_first" {
		return fmt.Errorf("config error: 'variant' must be \"legacy\" or \"vision_first\"")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be a valid port number")
	}

	// Validate file paths exist (if specified)
	if c.Agent != "" {
		if _, err := os.Stat(c.Agent); os.IsNotExist(err) {
			return fmt.Errorf("config error: agent config file not found: %s", c.Agent)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty string fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Source == "" {
		result.Source = defaults.Source
	}
	if result.Agent == "" {
		result.Agent = defaults.Agent
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.SpeechURL == "" {
		result.SpeechURL = defaults.SpeechURL
	}
	if result.SpeechAPIKey == "" {
		result.SpeechAPIKey = defaults.SpeechAPIKey
	}
	if result.Variant == "" {
		result.Variant = defaults.Variant
	}

	// Int fields: use default if zero
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
