package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

// NewPrintedRecognizer builds the printed-text backend named by cfg.Provider.
func NewPrintedRecognizer(ctx context.Context, cfg config.PrintedConfig, log *logger.Logger) (PrintedRecognizer, error) {
	if log == nil {
		log = logger.Get()
	}

	provider := ProviderType(strings.ToLower(cfg.Provider))
	if provider == "" || provider == ProviderTesseract {
		return NewTesseractRecognizer(&TesseractConfig{
			Logger:    log,
			Languages: splitLanguages(cfg.Languages),
		})
	}

	client, err := NewVisionClient(ctx, &VisionClientConfig{
		Provider:    provider,
		Model:       cfg.Model,
		Endpoint:    cfg.Endpoint,
		APIKey:      cfg.APIKey,
		MaxRetries:  cfg.MaxRetries,
		Temperature: cfg.Temperature,
	}, log)
	if err != nil {
		return nil, err
	}
	return NewVisionRecognizer(client, cfg.Model, log), nil
}

// NewVisionClient builds the client for cfg.Provider. Cloud providers need
// an API key.
func NewVisionClient(ctx context.Context, cfg *VisionClientConfig, log *logger.Logger) (VisionClient, error) {
	if log == nil {
		log = logger.Get()
	}

	if cfg.Provider != ProviderOllama && cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
			return nil, fmt.Errorf("%s API key is required (set %s_API_KEY)", cfg.Provider, strings.ToUpper(string(cfg.Provider)))
		}
	}

	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaVisionClient(cfg, log), nil
	case ProviderOpenAI:
		return NewOpenAIVisionClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicVisionClient(cfg), nil
	case ProviderGoogle:
		client, err := NewGoogleVisionClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: tesseract, ollama, openai, anthropic, google)", cfg.Provider)
	}
}

// GetDefaultModelForProvider returns a recommended default model for the given provider
func GetDefaultModelForProvider(provider ProviderType) string {
	switch provider {
	case ProviderOllama:
		return "llava"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-20241022"
	case ProviderGoogle:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

// splitLanguages turns "eng+fra" or "eng,fra" into tesseract language codes.
func splitLanguages(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return []string{"eng"}
	}
	return fields
}
