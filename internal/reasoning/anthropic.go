package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/moolen/inquest/internal/logging"
)

// Config configures the Anthropic-backed reasoner.
type Config struct {
	// Model is the model identifier (e.g., "claude-sonnet-4-5-20250929")
	Model string

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int
}

// DefaultConfig returns sensible defaults for investigation runs.
func DefaultConfig() Config {
	return Config{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	}
}

// AnthropicReasoner implements Reasoner using the Anthropic Claude API.
// Temperature is pinned to zero so identical inputs produce identical plans
// and hypotheses.
type AnthropicReasoner struct {
	client anthropic.Client
	config Config
	logger *logging.Logger
}

// NewAnthropicReasoner creates a reasoner using the ANTHROPIC_API_KEY
// environment variable for authentication.
func NewAnthropicReasoner(cfg Config) (*AnthropicReasoner, error) {
	return newAnthropicReasoner(anthropic.NewClient(), cfg)
}

// NewAnthropicReasonerWithKey creates a reasoner with an explicit API key.
func NewAnthropicReasonerWithKey(apiKey string, cfg Config) (*AnthropicReasoner, error) {
	return newAnthropicReasoner(anthropic.NewClient(option.WithAPIKey(apiKey)), cfg)
}

func newAnthropicReasoner(client anthropic.Client, cfg Config) (*AnthropicReasoner, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}

	return &AnthropicReasoner{
		client: client,
		config: cfg,
		logger: logging.GetLogger("reasoning.anthropic"),
	}, nil
}

// Model returns the model identifier being used.
func (r *AnthropicReasoner) Model() string {
	return r.config.Model
}

// Plan implements Planner.
func (r *AnthropicReasoner) Plan(ctx context.Context, req PlanRequest) ([]PlannedAction, error) {
	prompt, err := buildPlannerPrompt(req)
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	actions, err := parsePlan(raw, req.Available)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("planner proposed %d actions for iteration %d", len(actions), req.Iteration)
	return actions, nil
}

// Hypothesize implements HypothesisGenerator.
func (r *AnthropicReasoner) Hypothesize(ctx context.Context, req HypothesisRequest) ([]Candidate, error) {
	prompt, err := buildHypothesisPrompt(req)
	if err != nil {
		return nil, err
	}

	raw, err := r.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("hypothesis call failed: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("generator proposed %d candidates for iteration %d", len(candidates), req.Iteration)
	return candidates, nil
}

// complete sends one single-turn request and returns the concatenated text
// blocks of the response.
func (r *AnthropicReasoner) complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(r.config.Model),
		MaxTokens:   int64(r.config.MaxTokens),
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var textParts []string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}
	return strings.Join(textParts, ""), nil
}

var _ Reasoner = (*AnthropicReasoner)(nil)
