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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
knowledge_base_path: /etc/inquest/kb.yaml
api_port: 9090
reasoning:
  backend: stub
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "stub", cfg.Reasoning.Backend)
	// Unset fields keep their defaults.
	assert.Equal(t, 0.62, cfg.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.MaxIterations)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Reasoning.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing kb path", func(c *Config) { c.KnowledgeBasePath = "" }, "knowledge_base_path"},
		{"bad port", func(c *Config) { c.APIPort = 0 }, "api_port"},
		{"bad threshold", func(c *Config) { c.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"negative iterations", func(c *Config) { c.MaxIterations = -1 }, "max_iterations"},
		{"bad backend", func(c *Config) { c.Reasoning.Backend = "gpt" }, "reasoning.backend"},
		{"tracing without endpoint", func(c *Config) { c.TracingEnabled = true }, "tracing_endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.KnowledgeBasePath = "/etc/inquest/kb.yaml"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
