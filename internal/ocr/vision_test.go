package ocr

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ollama"
)

type fakeVisionClient struct {
	reply  string
	err    error
	model  string
	prompt string
	closed bool
}

func (f *fakeVisionClient) Complete(_ context.Context, model, prompt, imagePNG string) (string, error) {
	f.model = model
	f.prompt = prompt
	if imagePNG == "" {
		return "", errors.New("empty image")
	}
	return f.reply, f.err
}

func (f *fakeVisionClient) HealthCheck(context.Context, string) error { return nil }
func (f *fakeVisionClient) Name() string { return "ollama" }
func (f *fakeVisionClient) Close() error { f.closed = true; return nil }

func TestVisionRecognizer_Recognize(t *testing.T) {
	client := &fakeVisionClient{reply: "```json\n" + `[{"text":"TKT-77","bbox":[1,2,30,12],"confidence":0.9},{"text":"extra"}]` + "\n```"}
	r := NewVisionRecognizer(client, "", logger.Nop())

	results, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 40, 16)))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if client.model != "llava" {
		t.Errorf("model = %q, want provider default llava", client.model)
	}
	if client.prompt != ollama.OCRPrompt {
		t.Error("recognizer did not send the field prompt")
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Box != NewRectangle(1, 2, 30, 12) {
		t.Errorf("box = %+v", results[0].Box)
	}
	if FirstText(results) != "TKT-77" {
		t.Errorf("FirstText() = %q", FirstText(results))
	}
	if r.Name() != "ollama:llava" {
		t.Errorf("Name() = %q", r.Name())
	}

	if err := r.Close(); err != nil || !client.closed {
		t.Errorf("Close() err = %v, closed = %v", err, client.closed)
	}
}

func TestVisionRecognizer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeVisionClient
		want   string
	}{
		{"provider error", &fakeVisionClient{err: errors.New("boom")}, "boom"},
		{"unparseable reply", &fakeVisionClient{reply: "I see the number 42"}, "ollama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewVisionRecognizer(tt.client, "moondream", logger.Nop())
			_, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Recognize() error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestNewPrintedRecognizer_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","response":"[{\"text\":\"0042\"}]","done":true}`))
	}))
	defer server.Close()

	rec, err := NewPrintedRecognizer(context.Background(), config.PrintedConfig{
		Provider: "ollama",
		Model:    "llava",
		Endpoint: server.URL,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("NewPrintedRecognizer() error = %v", err)
	}
	defer rec.Close()

	results, err := rec.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if got := FirstText(results); got != "0042" {
		t.Errorf("FirstText() = %q, want 0042", got)
	}
}

func TestNewVisionClient_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  VisionClientConfig
	}{
		{"unsupported", VisionClientConfig{Provider: "carrier-pigeon"}},
		{"openai without key", VisionClientConfig{Provider: ProviderOpenAI}},
		{"anthropic without key", VisionClientConfig{Provider: ProviderAnthropic}},
		{"google without key", VisionClientConfig{Provider: ProviderGoogle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVisionClient(context.Background(), &tt.cfg, logger.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewVisionClient_CloudProviders(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic} {
		c, err := NewVisionClient(context.Background(), &VisionClientConfig{Provider: p, APIKey: "test-key"}, logger.Nop())
		if err != nil {
			t.Fatalf("%s: error = %v", p, err)
		}
		if c.Name() != string(p) {
			t.Errorf("Name() = %q, want %q", c.Name(), p)
		}
		_ = c.Close()
	}
}

func TestSplitLanguages(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "eng"},
		{"eng", "eng"},
		{"eng+fra", "eng,fra"},
		{"deu, spa", "deu,spa"},
	}
	for _, tt := range tests {
		if got := strings.Join(splitLanguages(tt.in), ","); got != tt.want {
			t.Errorf("splitLanguages(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetDefaultModelForProvider(t *testing.T) {
	if GetDefaultModelForProvider(ProviderTesseract) != "" {
		t.Error("tesseract has no model")
	}
	for _, p := range []ProviderType{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGoogle} {
		if GetDefaultModelForProvider(p) == "" {
			t.Errorf("no default model for %s", p)
		}
	}
}
