// Package anthropic adapts the official Anthropic Messages API to the
// engine's generate contract.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/providers"
)

// Provider implements providers.GenerateProvider over the Anthropic SDK.
type Provider struct {
	client    *sdk.Client
	model     sdk.Model
	maxTokens int64
	logger    *zap.Logger
}

// New creates the provider from config. The API key is read from the
// environment variable the config names; a missing key is a hard error
// so misconfiguration surfaces at startup, not on the first analysis.
func New(cfg config.AnthropicConfig, logger *zap.Logger) (*Provider, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "ANTHROPIC_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %s not set", keyEnv)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	model := sdk.Model(cfg.Model)
	if model == "" {
		model = sdk.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Provider{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// NewFromClient wires an existing SDK client, used by tests.
func NewFromClient(client *sdk.Client, model sdk.Model, maxTokens int64, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{client: client, model: model, maxTokens: maxTokens, logger: logger}
}

// Generate runs one Messages call and returns the concatenated text
// blocks. SDK failures come back as retryable provider errors so the
// gateway's backoff loop applies.
func (p *Provider) Generate(ctx context.Context, req providers.GenerateRequest) (providers.Value, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return providers.Value{}, &providers.ValidationError{Field: "prompt", Reason: "cannot be empty"}
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := sdk.MessageNewParams{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(FormatPrompt(prompt, req.Format))),
		},
		Temperature: sdk.Float(req.Temperature),
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return providers.Value{}, providers.NewProviderError("anthropic", "generate", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	out := sb.String()
	if out == "" {
		return providers.Value{}, providers.NewProviderError("anthropic", "generate",
			fmt.Errorf("empty completion (stop_reason=%s)", resp.StopReason))
	}
	p.logger.Debug("Generation completed",
		zap.String("model", string(resp.Model)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return providers.Text(out), nil
}

// FormatPrompt appends the output-discipline instruction matching the
// requested response format. Plain text passes through untouched.
func FormatPrompt(prompt string, format providers.ResponseFormat) string {
	switch format {
	case providers.FormatJSON:
		return prompt + "\n\nPlease provide your response in valid JSON format."
	case providers.FormatStructured:
		return prompt + "\n\nPlease provide a well-structured response with clear sections, headings, and bullet points where appropriate."
	default:
		return prompt
	}
}
