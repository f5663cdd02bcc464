// Package config holds the application configuration and its YAML loader.
package config

import (
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	// APIPort is the port the API server listens on.
	APIPort int `koanf:"api_port"`

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`

	// KnowledgeBasePath is the path to the knowledge base YAML file.
	KnowledgeBasePath string `koanf:"knowledge_base_path"`

	// ConfidenceThreshold is the top-hypothesis confidence below which the
	// engine keeps iterating.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// MaxIterations bounds how many times a run may loop back to planning.
	MaxIterations int `koanf:"max_iterations"`

	// ProviderTimeoutSeconds is the per-invocation timeout for provider calls.
	ProviderTimeoutSeconds int `koanf:"provider_timeout_seconds"`

	// CollectParallelism bounds concurrent actions within one collect stage.
	CollectParallelism int `koanf:"collect_parallelism"`

	// Reasoning selects and tunes the reasoning backend.
	Reasoning ReasoningConfig `koanf:"reasoning"`

	// ReportCacheSize is the number of finished reports kept in memory.
	ReportCacheSize int `koanf:"report_cache_size"`

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled.
	TracingEnabled bool `koanf:"tracing_enabled"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export.
	TracingEndpoint string `koanf:"tracing_endpoint"`

	// TracingTLSCAPath is an optional CA certificate for the OTLP endpoint.
	TracingTLSCAPath string `koanf:"tracing_tls_ca"`

	// TracingTLSInsecure skips TLS certificate verification for the OTLP
	// endpoint.
	TracingTLSInsecure bool `koanf:"tracing_tls_insecure"`
}

// ReasoningConfig configures the reasoning backend.
type ReasoningConfig struct {
	// Backend is "anthropic" or "stub".
	Backend string `koanf:"backend"`

	// Model is the model identifier for the anthropic backend.
	Model string `koanf:"model"`

	// MaxTokens is the per-call generation budget.
	MaxTokens int `koanf:"max_tokens"`
}

// Default returns the configuration defaults. File values overlay these.
func Default() *Config {
	return &Config{
		APIPort:                8080,
		LogLevel:               "info",
		ConfidenceThreshold:    0.62,
		MaxIterations:          2,
		ProviderTimeoutSeconds: 30,
		CollectParallelism:     4,
		Reasoning: ReasoningConfig{
			Backend:   "anthropic",
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
		},
		ReportCacheSize: 128,
	}
}

// Load reads the YAML configuration file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed for %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return NewConfigError("api_port must be between 1 and 65535")
	}
	if c.KnowledgeBasePath == "" {
		return NewConfigError("knowledge_base_path must not be empty")
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return NewConfigError("confidence_threshold must be in (0, 1]")
	}
	if c.MaxIterations < 0 {
		return NewConfigError("max_iterations must not be negative")
	}
	if c.ProviderTimeoutSeconds < 1 {
		return NewConfigError("provider_timeout_seconds must be at least 1")
	}
	if c.CollectParallelism < 1 {
		return NewConfigError("collect_parallelism must be at least 1")
	}
	if c.Reasoning.Backend != "anthropic" && c.Reasoning.Backend != "stub" {
		return NewConfigError("reasoning.backend must be \"anthropic\" or \"stub\"")
	}
	if c.ReportCacheSize < 1 {
		return NewConfigError("report_cache_size must be at least 1")
	}
	if c.TracingEnabled && c.TracingEndpoint == "" {
		return NewConfigError("tracing_endpoint must be set when tracing is enabled")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
