package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(WithEndpoint(url), WithLogger(logger.Nop()), WithRetries(retries, time.Millisecond))
}

func TestNewClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Second}
	tests := []struct {
		name        string
		opts        []ClientOption
		wantURL     string
		wantRetries int
	}{
		{"defaults", nil, DefaultEndpoint, DefaultMaxRetries},
		{"trailing slash trimmed", []ClientOption{WithEndpoint("http://gpu-box:11434/")}, "http://gpu-box:11434", DefaultMaxRetries},
		{"retries", []ClientOption{WithRetries(5, 0)}, DefaultEndpoint, 5},
		{"http client", []ClientOption{WithHTTPClient(hc)}, DefaultEndpoint, DefaultMaxRetries},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.opts...)
			if c.endpoint != tt.wantURL {
				t.Errorf("endpoint = %v, want %v", c.endpoint, tt.wantURL)
			}
			if c.maxRetries != tt.wantRetries {
				t.Errorf("maxRetries = %d, want %d", c.maxRetries, tt.wantRetries)
			}
			if c.retryDelay != DefaultRetryDelay {
				t.Errorf("retryDelay = %v, want %v", c.retryDelay, DefaultRetryDelay)
			}
		})
	}
	if c := NewClient(WithHTTPClient(hc)); c.httpClient != hc {
		t.Error("WithHTTPClient not applied")
	}
}

func TestGenerate_SendsTemperature(t *testing.T) {
	var got GenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(GenerateResponse{Model: "llava", Response: "[]", Done: true})
	}))
	defer server.Close()

	c := NewClient(WithEndpoint(server.URL), WithLogger(logger.Nop()), WithTemperature(0.2))
	resp, err := c.Generate(context.Background(), &GenerateRequest{Model: "llava", Prompt: OCRPrompt, Images: []string{"aGk="}, Format: "json"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if resp.Response != "[]" {
		t.Errorf("Response = %q", resp.Response)
	}
	if got.Options["temperature"] != 0.2 {
		t.Errorf("temperature = %v, want 0.2", got.Options["temperature"])
	}
	if got.Stream {
		t.Error("stream must be false")
	}
	if got.Format != "json" || len(got.Images) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestCall_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		{"server error then success", []int{500, 200}, 3, 2, false, 0},
		{"rate limited then success", []int{429, 429, 200}, 3, 3, false, 0},
		{"bad request is not retried", []int{400}, 3, 1, true, 400},
		{"retries exhausted", []int{503, 503, 503}, 2, 3, true, 503},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.statuses[len(tt.statuses)-1]
				if int(n) <= len(tt.statuses) {
					status = tt.statuses[n-1]
				}
				if status != http.StatusOK {
					w.WriteHeader(status)
					_, _ = w.Write([]byte(`{"error":"busy"}`))
					return
				}
				_, _ = w.Write([]byte(`{"models":[]}`))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, tt.retries).ListModels(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListModels() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantCode != 0 {
				var apiErr *APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error %v is not an APIError", err)
				}
				if apiErr.StatusCode != tt.wantCode || apiErr.Message != "busy" {
					t.Errorf("APIError = %+v", apiErr)
				}
			}
		})
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(WithEndpoint(server.URL), WithLogger(logger.Nop()), WithRetries(5, time.Second)).ListModels(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestModels(t *testing.T) {
	var pulled int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llava:latest","size":42},{"name":"moondream:1.8b"}]}`))
		case "/api/pull":
			var req PullRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Name != "minicpm-v" {
				t.Errorf("pulled %q", req.Name)
			}
			atomic.AddInt32(&pulled, 1)
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	c := newTestClient(server.URL, 0)
	ctx := context.Background()

	models, err := c.ListModels(ctx)
	if err != nil || len(models) != 2 || models[0].Size != 42 {
		t.Fatalf("ListModels() = %+v, %v", models, err)
	}

	for name, want := range map[string]bool{"llava": true, "llava:latest": true, "moondream": false, "moondream:1.8b": true, "minicpm-v": false} {
		got, err := c.HasModel(ctx, name)
		if err != nil || got != want {
			t.Errorf("HasModel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}

	if err := c.EnsureModel(ctx, "llava"); err != nil {
		t.Errorf("EnsureModel(llava) error = %v", err)
	}
	if atomic.LoadInt32(&pulled) != 0 {
		t.Error("installed model was pulled")
	}
	if err := c.EnsureModel(ctx, "minicpm-v"); err != nil {
		t.Errorf("EnsureModel(minicpm-v) error = %v", err)
	}
	if atomic.LoadInt32(&pulled) != 1 {
		t.Error("missing model was not pulled")
	}
}

func TestHealthCheck_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	if err := newTestClient(server.URL, 0).HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 502")
	}
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantLines int
		wantFirst string
		wantErr   bool
	}{
		{"array", `[{"text":"TKT-0042","bbox":[1,2,80,20],"confidence":0.9}]`, 1, "TKT-0042", false},
		{"code fence", "```json\n[{\"text\":\"0042\"}]\n```", 1, "0042", false},
		{"wrapped lines", `{"lines":[{"text":"ACME"},{"text":"Depot 4"}]}`, 2, "ACME", false},
		{"wrapped words", `{"words":[{"text":"12.50"}]}`, 1, "12.50", false},
		{"blank field", `[]`, 0, "", false},
		{"not json", `the field says hello`, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := ParseLines(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLines() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(lines) != tt.wantLines {
				t.Fatalf("got %d lines, want %d", len(lines), tt.wantLines)
			}
			if tt.wantLines > 0 && lines[0].Text != tt.wantFirst {
				t.Errorf("first = %q, want %q", lines[0].Text, tt.wantFirst)
			}
		})
	}
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	out, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		t.Fatalf("not base64: %v", err)
	}
	decoded, err := png.Decode(strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 3 || decoded.Bounds().Dy() != 2 {
		t.Errorf("bounds = %v", decoded.Bounds())
	}
}
