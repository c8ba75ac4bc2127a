package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("FIELDSCAN_OUTPUT_DIR", filepath.Join(tmpDir, "out"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DPI != 72 {
		t.Errorf("expected DPI = 72, got %v", cfg.DPI)
	}
	if cfg.Workers != 0 {
		t.Errorf("expected Workers = 0, got %d", cfg.Workers)
	}
	if !cfg.Handwriting.Enabled {
		t.Error("expected handwriting enabled by default")
	}
	if cfg.Handwriting.Routing != RoutingBoth {
		t.Errorf("expected routing = both, got %s", cfg.Handwriting.Routing)
	}
	if cfg.Handwriting.EdgeDensityThreshold != 0.02 {
		t.Errorf("expected edge density threshold 0.02, got %v", cfg.Handwriting.EdgeDensityThreshold)
	}
	if cfg.Handwriting.StdDevThreshold != 50 {
		t.Errorf("expected stddev threshold 50, got %v", cfg.Handwriting.StdDevThreshold)
	}
	if cfg.Handwriting.ClassifierThreshold != 0.5 {
		t.Errorf("expected classifier threshold 0.5, got %v", cfg.Handwriting.ClassifierThreshold)
	}
	if cfg.Template.Threshold != 0.7 {
		t.Errorf("expected template threshold 0.7, got %v", cfg.Template.Threshold)
	}
	if cfg.Template.File != "ticket_template.jpg" {
		t.Errorf("expected template file ticket_template.jpg, got %s", cfg.Template.File)
	}
	if cfg.Printed.Provider != "tesseract" {
		t.Errorf("expected printed provider tesseract, got %s", cfg.Printed.Provider)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("FIELDSCAN_DPI", "200")
	t.Setenv("FIELDSCAN_WORKERS", "3")
	t.Setenv("FIELDSCAN_USE_HANDWRITING", "false")
	t.Setenv("FIELDSCAN_HANDWRITING_ROUTING", "EITHER")
	t.Setenv("FIELDSCAN_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DPI != 200 {
		t.Errorf("expected DPI = 200, got %v", cfg.DPI)
	}
	if cfg.Workers != 3 {
		t.Errorf("expected Workers = 3, got %d", cfg.Workers)
	}
	if cfg.Handwriting.Enabled {
		t.Error("expected handwriting disabled")
	}
	if cfg.Handwriting.Routing != RoutingEither {
		t.Errorf("expected routing normalized to either, got %s", cfg.Handwriting.Routing)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel = debug, got %s", cfg.LogLevel)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configFile := filepath.Join(tmpDir, "fieldscan.yaml")
	content := `
configs-dir: /srv/layouts
dpi: 150
printed-provider: ollama
printed-model: llava:13b
audit-all-fields: true
`
	if err := os.WriteFile(configFile, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigsDir != "/srv/layouts" {
		t.Errorf("expected ConfigsDir /srv/layouts, got %s", cfg.ConfigsDir)
	}
	if cfg.DPI != 150 {
		t.Errorf("expected DPI 150, got %v", cfg.DPI)
	}
	if cfg.Printed.Provider != "ollama" || cfg.Printed.Model != "llava:13b" {
		t.Errorf("unexpected printed config %+v", cfg.Printed)
	}
	if !cfg.AuditAllFields {
		t.Error("expected AuditAllFields = true")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero dpi", func(c *Config) { c.DPI = 0 }, "dpi must be positive"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers must be non-negative"},
		{"empty configs dir", func(c *Config) { c.ConfigsDir = "" }, "configs-dir cannot be empty"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "invalid log-level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "invalid log-format"},
		{"bad routing", func(c *Config) { c.Handwriting.Routing = "vote" }, "invalid handwriting-routing"},
		{"classifier threshold", func(c *Config) { c.Handwriting.ClassifierThreshold = 1 }, "classifier-threshold"},
		{"handwriting disabled skips model checks", func(c *Config) {
			c.Handwriting.Enabled = false
			c.Handwriting.Model = ""
		}, ""},
		{"bad provider", func(c *Config) { c.Printed.Provider = "abbyy" }, "invalid printed-provider"},
		{"cloud provider without key", func(c *Config) {
			c.Printed.Provider = "openai"
			c.Printed.APIKey = ""
		}, "API key not found"},
		{"cloud provider with key", func(c *Config) {
			c.Printed.Provider = "anthropic"
			c.Printed.APIKey = "sk-test"
		}, ""},
		{"bad temperature", func(c *Config) {
			c.Printed.Provider = "ollama"
			c.Printed.Temperature = 3
		}, "llm-temperature"},
		{"ollama uses its default endpoint", func(c *Config) {
			c.Printed.Provider = "ollama"
			c.Printed.Endpoint = ""
		}, ""},
		{"template threshold", func(c *Config) { c.Template.Threshold = 1.5 }, "template-threshold"},
		{"bad processing date", func(c *Config) { c.ProcessingDate = "2024-01-02" }, "processing-date"},
		{"good processing date", func(c *Config) { c.ProcessingDate = "20240102" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyForProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("ANTHROPIC_API_KEY", "anthropic-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	tests := map[string]string{
		"openai":    "openai-key",
		"ANTHROPIC": "anthropic-key",
		"google":    "google-key",
		"tesseract": "",
		"ollama":    "",
	}
	for provider, want := range tests {
		if got := apiKeyForProvider(provider); got != want {
			t.Errorf("apiKeyForProvider(%q) = %q, want %q", provider, got, want)
		}
	}
}

func TestString_RedactsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Printed.APIKey = "sk-1234567890abcd"
	s := cfg.String()
	if strings.Contains(s, "sk-1234567890abcd") {
		t.Error("String() leaked the API key")
	}
	if !strings.Contains(s, "***abcd") {
		t.Errorf("String() missing redacted key: %s", s)
	}
}

func TestLoadViper_OverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldscan.yaml")
	if err := os.WriteFile(path, []byte("workers: 2\ndpi: 150\n"), 0644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.Set("workers", 6)

	cfg, err := LoadViper(v, path)
	if err != nil {
		t.Fatalf("LoadViper() error = %v", err)
	}
	if cfg.Workers != 6 {
		t.Errorf("Workers = %d, want 6", cfg.Workers)
	}
	if cfg.DPI != 150 {
		t.Errorf("DPI = %v, want 150", cfg.DPI)
	}
}
