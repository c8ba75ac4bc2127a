package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicVisionClient reads fields with the Claude messages API.
type AnthropicVisionClient struct {
	client      anthropic.Client
	temperature float64
}

// NewAnthropicVisionClient relies on the SDK's own retry loop. A non-empty
// cfg.Endpoint replaces the API base URL.
func NewAnthropicVisionClient(cfg *VisionClientConfig) *AnthropicVisionClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &AnthropicVisionClient{
		client:      anthropic.NewClient(opts...),
		temperature: cfg.Temperature,
	}
}

func (a *AnthropicVisionClient) Complete(ctx context.Context, model, prompt, imagePNG string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxReplyTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64("image/png", imagePNG),
				anthropic.NewTextBlock(prompt),
			),
		},
		Temperature: anthropic.Float(a.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text block in reply")
	}
	return sb.String(), nil
}

// HealthCheck spends a single output token to prove the key and model work.
func (a *AnthropicVisionClient) HealthCheck(ctx context.Context, model string) error {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

func (a *AnthropicVisionClient) Name() string { return string(ProviderAnthropic) }

func (a *AnthropicVisionClient) Close() error { return nil }
