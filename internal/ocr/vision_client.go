package ocr

import (
	"context"
)

// VisionClient sends one prompt and one image to a vision-capable LLM and
// returns its raw text reply. Prompting and parsing live in VisionRecognizer.
type VisionClient interface {
	// Complete runs prompt against a base64-encoded PNG.
	Complete(ctx context.Context, model, prompt, imagePNG string) (string, error)

	// HealthCheck verifies that the provider is reachable and model usable.
	HealthCheck(ctx context.Context, model string) error

	// Name returns the provider name, e.g. "ollama" or "openai".
	Name() string

	Close() error
}

// ProviderType names a printed-text backend.
type ProviderType string

const (
	ProviderTesseract ProviderType = "tesseract"
	ProviderOllama    ProviderType = "ollama"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGoogle    ProviderType = "google"
)

// VisionClientConfig is shared by every vision client constructor.
type VisionClientConfig struct {
	Provider    ProviderType
	Model       string
	Endpoint    string // ollama server, or a cloud API base URL override
	APIKey      string // cloud providers
	MaxRetries  int
	Temperature float64
	PullMissing bool // ollama: pull a missing model during HealthCheck
}

// maxReplyTokens bounds cloud replies. A field crop never holds more than a
// few lines.
const maxReplyTokens = 1024
