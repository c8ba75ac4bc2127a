package ocr

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIVisionClient reads fields with OpenAI chat completions.
type OpenAIVisionClient struct {
	client      openai.Client
	temperature float64
}

// NewOpenAIVisionClient relies on the SDK's own retry loop. A non-empty
// cfg.Endpoint replaces the API base URL.
func NewOpenAIVisionClient(cfg *VisionClientConfig) *OpenAIVisionClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	return &OpenAIVisionClient{
		client:      openai.NewClient(opts...),
		temperature: cfg.Temperature,
	}
}

func (o *OpenAIVisionClient) Complete(ctx context.Context, model, prompt, imagePNG string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/png;base64," + imagePNG,
				}),
			}),
		},
		Temperature:         openai.Float(o.temperature),
		MaxCompletionTokens: openai.Int(maxReplyTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck fetches the model record, which also proves the key works.
func (o *OpenAIVisionClient) HealthCheck(ctx context.Context, model string) error {
	if _, err := o.client.Models.Get(ctx, model); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

func (o *OpenAIVisionClient) Name() string { return string(ProviderOpenAI) }

func (o *OpenAIVisionClient) Close() error { return nil }
