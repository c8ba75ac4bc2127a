package ocr

import (
	"context"
	"fmt"

	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ollama"
)

// OllamaVisionClient reads fields through a local Ollama server.
type OllamaVisionClient struct {
	client *ollama.Client
	pull   bool
}

// NewOllamaVisionClient builds a client for cfg.Endpoint, or the Ollama
// default when it is empty.
func NewOllamaVisionClient(cfg *VisionClientConfig, log *logger.Logger) *OllamaVisionClient {
	opts := []ollama.ClientOption{
		ollama.WithLogger(log),
		ollama.WithTemperature(cfg.Temperature),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, ollama.WithEndpoint(cfg.Endpoint))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, ollama.WithRetries(cfg.MaxRetries, 0))
	}
	return &OllamaVisionClient{client: ollama.NewClient(opts...), pull: cfg.PullMissing}
}

func (o *OllamaVisionClient) Complete(ctx context.Context, model, prompt, imagePNG string) (string, error) {
	resp, err := o.client.Generate(ctx, &ollama.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Images: []string{imagePNG},
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

// HealthCheck verifies the server is up and has model. A missing model is
// pulled when the client was built with PullMissing, and an error otherwise.
func (o *OllamaVisionClient) HealthCheck(ctx context.Context, model string) error {
	if o.pull {
		return o.client.EnsureModel(ctx, model)
	}
	if err := o.client.HealthCheck(ctx); err != nil {
		return err
	}
	ok, err := o.client.HasModel(ctx, model)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("model %s is not installed", model)
	}
	return nil
}

func (o *OllamaVisionClient) Name() string { return string(ProviderOllama) }

func (o *OllamaVisionClient) Close() error { return nil }
