package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleVisionClient reads fields with Gemini. The genai client has no retry
// loop of its own, so Complete wraps each call in one.
type GoogleVisionClient struct {
	client      *genai.Client
	temperature float32
	attempts    uint
}

func NewGoogleVisionClient(ctx context.Context, cfg *VisionClientConfig) (*GoogleVisionClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	attempts := uint(1)
	if cfg.MaxRetries > 0 {
		attempts += uint(cfg.MaxRetries)
	}
	return &GoogleVisionClient{
		client:      client,
		temperature: float32(cfg.Temperature),
		attempts:    attempts,
	}, nil
}

func (g *GoogleVisionClient) Complete(ctx context.Context, model, prompt, imagePNG string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(imagePNG)
	if err != nil {
		return "", fmt.Errorf("bad image payload: %w", err)
	}

	gm := g.client.GenerativeModel(model)
	gm.SetTemperature(g.temperature)
	gm.SetMaxOutputTokens(maxReplyTokens)
	gm.ResponseMIMEType = "application/json"

	var resp *genai.GenerateContentResponse
	err = retry.Do(func() error {
		var callErr error
		resp, callErr = gm.GenerateContent(ctx, genai.ImageData("png", data), genai.Text(prompt))
		return callErr
	},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		break
	}
	if sb.Len() == 0 {
		return "", errors.New("no text part in reply")
	}
	return sb.String(), nil
}

// HealthCheck asks the API for the model record.
func (g *GoogleVisionClient) HealthCheck(ctx context.Context, model string) error {
	if _, err := g.client.GenerativeModel(model).Info(ctx); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

func (g *GoogleVisionClient) Name() string { return string(ProviderGoogle) }

func (g *GoogleVisionClient) Close() error { return g.client.Close() }
