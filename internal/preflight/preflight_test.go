package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func deployment(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.ConfigsDir = filepath.Join(root, "configs")
	cfg.ModelsDir = filepath.Join(root, "models")
	cfg.TemplatesDir = filepath.Join(root, "templates")
	cfg.OutputDir = filepath.Join(root, "output")

	writeFile(t, filepath.Join(cfg.ConfigsDir, "acme.yaml"))
	writeFile(t, filepath.Join(cfg.ConfigsDir, "ocr_config.yaml"))
	writeFile(t, filepath.Join(cfg.TemplatesDir, "Ticket_Template.JPG"))
	writeFile(t, cfg.ModelPath(cfg.Handwriting.Model))
	writeFile(t, cfg.ModelPath(cfg.Handwriting.ClassifierModel))
	return cfg
}

func TestRun_Healthy(t *testing.T) {
	r := Run(context.Background(), deployment(t), Options{Logger: logger.Nop()})
	if !r.Passed() {
		t.Fatalf("Run() failures = %+v", r.Failures())
	}
	for _, c := range r.Checks {
		if c.Name == "vendor layouts" && c.Detail != "acme" {
			t.Errorf("vendor detail = %q, want acme", c.Detail)
		}
	}
}

func TestRun_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
		check  string
	}{
		{"no vendors", func(cfg *config.Config) { os.Remove(filepath.Join(cfg.ConfigsDir, "acme.yaml")) }, "vendor layouts"},
		{"no template", func(cfg *config.Config) { cfg.Template.File = "other.jpg" }, "ticket template"},
		{"missing classifier", func(cfg *config.Config) { os.Remove(cfg.ModelPath(cfg.Handwriting.ClassifierModel)) }, "model handwriting_classifier.onnx"},
		{"no models", func(cfg *config.Config) { os.RemoveAll(cfg.ModelsDir) }, "models directory"},
		{"missing configs dir", func(cfg *config.Config) { cfg.ConfigsDir = filepath.Join(cfg.ConfigsDir, "nope") }, "configs directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := deployment(t)
			tt.mutate(cfg)
			r := Run(context.Background(), cfg, Options{Logger: logger.Nop()})
			if r.Passed() {
				t.Fatal("Run() passed, want failure")
			}
			found := false
			for _, c := range r.Failures() {
				if c.Name == tt.check {
					found = true
				}
			}
			if !found {
				t.Errorf("failures %+v do not include %q", r.Failures(), tt.check)
			}
		})
	}
}

func TestRun_HandwritingDisabledSkipsModels(t *testing.T) {
	cfg := deployment(t)
	cfg.Handwriting.Enabled = false
	os.RemoveAll(cfg.ModelsDir)

	r := Run(context.Background(), cfg, Options{Logger: logger.Nop()})
	if !r.Passed() {
		t.Fatalf("Run() failures = %+v", r.Failures())
	}
	for _, c := range r.Checks {
		if strings.Contains(c.Name, "model") {
			t.Errorf("unexpected model check %q with handwriting disabled", c.Name)
		}
	}
}

func TestRun_HeuristicRoutingSkipsClassifier(t *testing.T) {
	cfg := deployment(t)
	cfg.Handwriting.Routing = config.RoutingHeuristic
	os.Remove(cfg.ModelPath(cfg.Handwriting.ClassifierModel))

	if r := Run(context.Background(), cfg, Options{Logger: logger.Nop()}); !r.Passed() {
		t.Fatalf("Run() failures = %+v", r.Failures())
	}
}

// ollamaServer serves one installed model, llava:latest, and counts pulls.
func ollamaServer(t *testing.T, pulls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"llava:latest"}]}`))
		case "/api/pull":
			atomic.AddInt32(pulls, 1)
			_, _ = w.Write([]byte(`{"status":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRun_PrintedProvider(t *testing.T) {
	var pulls int32
	server := ollamaServer(t, &pulls)
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	tests := []struct {
		name      string
		endpoint  string
		model     string
		pull      bool
		wantOK    bool
		wantPulls int32
	}{
		{"installed model", server.URL, "llava", false, true, 0},
		{"missing model", server.URL, "minicpm-v", false, false, 0},
		{"missing model pulled", server.URL, "minicpm-v", true, true, 1},
		{"unreachable server", closed.URL, "llava", false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atomic.StoreInt32(&pulls, 0)
			cfg := deployment(t)
			cfg.Printed.Provider = "ollama"
			cfg.Printed.Endpoint = tt.endpoint
			cfg.Printed.Model = tt.model

			r := Run(context.Background(), cfg, Options{PullModels: tt.pull, Logger: logger.Nop()})
			var check *Check
			for i := range r.Checks {
				if r.Checks[i].Name == "printed provider" {
					check = &r.Checks[i]
				}
			}
			if check == nil {
				t.Fatalf("no printed provider check in %+v", r.Checks)
			}
			if check.OK != tt.wantOK {
				t.Errorf("printed provider OK = %v, want %v (%s)", check.OK, tt.wantOK, check.Detail)
			}
			if r.Passed() != tt.wantOK {
				t.Errorf("Passed() = %v, want %v", r.Passed(), tt.wantOK)
			}
			if got := atomic.LoadInt32(&pulls); got != tt.wantPulls {
				t.Errorf("pulls = %d, want %d", got, tt.wantPulls)
			}
		})
	}
}

func TestRun_CloudProviderWithoutKey(t *testing.T) {
	cfg := deployment(t)
	cfg.Printed.Provider = "openai"
	cfg.Printed.APIKey = ""

	r := Run(context.Background(), cfg, Options{Logger: logger.Nop()})
	for _, c := range r.Failures() {
		if c.Name == "printed provider" && strings.Contains(c.Detail, "API key") {
			return
		}
	}
	t.Errorf("failures %+v do not report the missing API key", r.Failures())
}

func TestRun_TesseractSkipsProviderCheck(t *testing.T) {
	r := Run(context.Background(), deployment(t), Options{Logger: logger.Nop()})
	for _, c := range r.Checks {
		if c.Name == "printed provider" {
			t.Errorf("unexpected provider check %+v for tesseract", c)
		}
	}
}
