package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"source": "lecture.pdf",
		"variant": "vision_first",
		"workers": 8,
		"verbose": true
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "lecture.pdf", cfg.Source)
	assert.Equal(t, "vision_first", cfg.Variant)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"source":`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestValidate(t *testing.T) {
	agentPath := writeConfig(t, `{"voice": "nova"}`)

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty config is valid", cfg: Config{}},
		{name: "known variant", cfg: Config{Variant: "legacy"}},
		{name: "unknown variant", cfg: Config{Variant: "turbo"}, wantErr: "'variant'"},
		{name: "negative workers", cfg: Config{Workers: -1}, wantErr: "'workers'"},
		{name: "port out of range", cfg: Config{Port: 70000}, wantErr: "'port'"},
		{name: "agent file exists", cfg: Config{Agent: agentPath}},
		{name: "agent file missing", cfg: Config{Agent: "/nonexistent/agent.json"}, wantErr: "agent config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Source: "from-flags.pdf", Workers: 2}
	defaults := Config{
		Source:    "from-file.pdf",
		SpeechURL: "http://localhost:8089",
		Variant:   "legacy",
		Workers:   8,
		Port:      9090,
	}

	merged := cfg.MergeWithDefaults(defaults)

	// Set fields win, empty ones fall back to the defaults.
	assert.Equal(t, "from-flags.pdf", merged.Source)
	assert.Equal(t, 2, merged.Workers)
	assert.Equal(t, "http://localhost:8089", merged.SpeechURL)
	assert.Equal(t, "legacy", merged.Variant)
	assert.Equal(t, 9090, merged.Port)
}
