// Package config provides configuration management for the fieldscan application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Routing modes for combining the handwriting heuristic and the learned classifier.
const (
	RoutingBoth      = "both"
	RoutingEither    = "either"
	RoutingHeuristic = "heuristic"
	RoutingLearned   = "learned"
)

// Config holds all configuration settings for the fieldscan application.
// Configuration precedence: CLI flags > Environment variables > Config file > Defaults
type Config struct {
	// ConfigsDir holds one YAML layout per vendor
	ConfigsDir string

	// ModelsDir holds the ONNX handwriting models
	ModelsDir string

	// TemplatesDir holds the reference ticket template image
	TemplatesDir string

	// OutputDir is where per-document results are written
	OutputDir string

	// DPI converts layout inches to pixels, and is the rasterization resolution
	DPI float64

	// Workers is the page worker pool size (0 = runtime.NumCPU)
	Workers int

	// AuditAllFields persists a crop and thumbnail for every field, not just flagged ones
	AuditAllFields bool

	// ProcessingDate is stamped on every page task (YYYYMMDD, empty = today)
	ProcessingDate string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is console or json
	LogFormat string

	// LogFile is an optional file that receives a copy of all log output
	LogFile string

	Handwriting HandwritingConfig
	Printed     PrintedConfig
	Template    TemplateConfig
	Watch       WatchConfig
}

// HandwritingConfig controls routing to and reading with the handwriting models.
type HandwritingConfig struct {
	// Enabled turns the handwriting tier on; when false every general field is read as printed text
	Enabled bool

	// Routing is one of both, either, heuristic, learned
	Routing string

	// Model is the ICR sequence model file name inside ModelsDir
	Model string

	// ClassifierModel is the handwritten/printed classifier file name inside ModelsDir
	ClassifierModel string

	// RuntimeLibrary is the path to the onnxruntime shared library (empty = platform default)
	RuntimeLibrary string

	EdgeDensityThreshold float64
	StdDevThreshold      float64
	ClassifierThreshold  float64
}

// PrintedConfig selects the printed-text recognition engine.
type PrintedConfig struct {
	// Provider is tesseract, ollama, openai, anthropic or google
	Provider string

	// Languages is the tesseract language list (e.g. "eng", "eng+fra")
	Languages string

	// Model is the vision model used by LLM providers
	Model string

	// Endpoint is the Ollama server URL. For cloud providers a non-empty
	// value overrides the API base URL. Empty means the provider default.
	Endpoint string

	// APIKey is read from OPENAI_API_KEY, ANTHROPIC_API_KEY or GOOGLE_API_KEY
	APIKey string

	MaxRetries  int
	Temperature float64
}

// TemplateConfig locates and thresholds the reference ticket template.
type TemplateConfig struct {
	// File is matched case-insensitively inside TemplatesDir
	File      string
	Threshold float64
}

// WatchConfig controls the long-running inbox mode.
type WatchConfig struct {
	InboxDir     string
	StateFile    string
	ScanInterval time.Duration
	HealthAddr   string
	PIDFile      string
}

var validProviders = map[string]bool{
	"tesseract": true,
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
	"google":    true,
}

var validRouting = map[string]bool{
	RoutingBoth:      true,
	RoutingEither:    true,
	RoutingHeuristic: true,
	RoutingLearned:   true,
}

// Load reads configuration from multiple sources and returns a Config instance.
func Load(configFile string) (*Config, error) {
	return LoadViper(viper.New(), configFile)
}

// LoadViper is Load over a caller-owned viper instance, so values bound from
// command-line flags take precedence over the file and environment.
func LoadViper(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigName(".fieldscan")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FIELDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		ConfigsDir:     v.GetString("configs-dir"),
		ModelsDir:      v.GetString("models-dir"),
		TemplatesDir:   v.GetString("templates-dir"),
		OutputDir:      v.GetString("output-dir"),
		DPI:            v.GetFloat64("dpi"),
		Workers:        v.GetInt("workers"),
		AuditAllFields: v.GetBool("audit-all-fields"),
		ProcessingDate: v.GetString("processing-date"),
		LogLevel:       v.GetString("log-level"),
		LogFormat:      v.GetString("log-format"),
		LogFile:        v.GetString("log-file"),
		Handwriting: HandwritingConfig{
			Enabled:              v.GetBool("use-handwriting"),
			Routing:              v.GetString("handwriting-routing"),
			Model:                v.GetString("handwriting-model"),
			ClassifierModel:      v.GetString("classifier-model"),
			RuntimeLibrary:       v.GetString("onnxruntime-lib"),
			EdgeDensityThreshold: v.GetFloat64("edge-density-threshold"),
			StdDevThreshold:      v.GetFloat64("stddev-threshold"),
			ClassifierThreshold:  v.GetFloat64("classifier-threshold"),
		},
		Printed: PrintedConfig{
			Provider:    v.GetString("printed-provider"),
			Languages:   v.GetString("ocr-languages"),
			Model:       v.GetString("printed-model"),
			Endpoint:    v.GetString("printed-endpoint"),
			MaxRetries:  v.GetInt("llm-max-retries"),
			Temperature: v.GetFloat64("llm-temperature"),
		},
		Template: TemplateConfig{
			File:      v.GetString("ticket-template"),
			Threshold: v.GetFloat64("template-threshold"),
		},
		Watch: WatchConfig{
			InboxDir:     v.GetString("inbox-dir"),
			StateFile:    v.GetString("state-file"),
			ScanInterval: v.GetDuration("scan-interval"),
			HealthAddr:   v.GetString("health-addr"),
			PIDFile:      v.GetString("pid-file"),
		},
	}
	cfg.Printed.APIKey = apiKeyForProvider(cfg.Printed.Provider)
	return cfg
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("configs-dir", "configs")
	v.SetDefault("models-dir", "models")
	v.SetDefault("templates-dir", "templates")
	v.SetDefault("output-dir", "output")
	v.SetDefault("dpi", 72.0)
	v.SetDefault("workers", 0)
	v.SetDefault("audit-all-fields", false)
	v.SetDefault("processing-date", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("log-file", "")

	v.SetDefault("use-handwriting", true)
	v.SetDefault("handwriting-routing", RoutingBoth)
	v.SetDefault("handwriting-model", "handwriting_ocr.onnx")
	v.SetDefault("classifier-model", "handwriting_classifier.onnx")
	v.SetDefault("onnxruntime-lib", "")
	v.SetDefault("edge-density-threshold", 0.02)
	v.SetDefault("stddev-threshold", 50.0)
	v.SetDefault("classifier-threshold", 0.5)

	v.SetDefault("printed-provider", "tesseract")
	v.SetDefault("ocr-languages", "eng")
	v.SetDefault("printed-model", "llava")
	v.SetDefault("printed-endpoint", "")
	v.SetDefault("llm-max-retries", 3)
	v.SetDefault("llm-temperature", 0.0)

	v.SetDefault("ticket-template", "ticket_template.jpg")
	v.SetDefault("template-threshold", 0.7)

	v.SetDefault("inbox-dir", "inbox")
	v.SetDefault("state-file", filepath.Join("output", ".fieldscan-state.json"))
	v.SetDefault("scan-interval", 5*time.Minute)
	v.SetDefault("health-addr", "")
	v.SetDefault("pid-file", "")
}

// Validate checks that the configuration is valid and internally consistent
func (c *Config) Validate() error {
	for name, dir := range map[string]*string{
		"configs-dir":   &c.ConfigsDir,
		"models-dir":    &c.ModelsDir,
		"templates-dir": &c.TemplatesDir,
		"output-dir":    &c.OutputDir,
	} {
		if *dir == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		expanded, err := expandHome(*dir)
		if err != nil {
			return fmt.Errorf("failed to expand home directory in %s: %w", name, err)
		}
		*dir = expanded
	}

	if c.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %v", c.DPI)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}

	if c.ProcessingDate != "" {
		if _, err := time.Parse("20060102", c.ProcessingDate); err != nil {
			return fmt.Errorf("processing-date must be YYYYMMDD, got %q", c.ProcessingDate)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return fmt.Errorf("invalid log-level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log-format %q, must be console or json", c.LogFormat)
	}

	if err := c.validateHandwriting(); err != nil {
		return fmt.Errorf("invalid handwriting configuration: %w", err)
	}
	if err := c.validatePrinted(); err != nil {
		return fmt.Errorf("invalid printed-text configuration: %w", err)
	}

	if c.Template.File == "" {
		return fmt.Errorf("ticket-template cannot be empty")
	}
	if c.Template.Threshold <= 0 || c.Template.Threshold > 1 {
		return fmt.Errorf("template-threshold must be in (0, 1], got %v", c.Template.Threshold)
	}

	return nil
}

func (c *Config) validateHandwriting() error {
	h := &c.Handwriting
	h.Routing = strings.ToLower(h.Routing)
	if !validRouting[h.Routing] {
		return fmt.Errorf("invalid handwriting-routing %q, must be one of: both, either, heuristic, learned", h.Routing)
	}
	if !h.Enabled {
		return nil
	}
	if h.Model == "" {
		return fmt.Errorf("handwriting-model cannot be empty when handwriting is enabled")
	}
	if h.Routing != RoutingHeuristic && h.ClassifierModel == "" {
		return fmt.Errorf("classifier-model cannot be empty with %s routing", h.Routing)
	}
	if h.EdgeDensityThreshold < 0 || h.EdgeDensityThreshold > 1 {
		return fmt.Errorf("edge-density-threshold must be in [0, 1], got %v", h.EdgeDensityThreshold)
	}
	if h.StdDevThreshold < 0 {
		return fmt.Errorf("stddev-threshold must be non-negative, got %v", h.StdDevThreshold)
	}
	if h.ClassifierThreshold <= 0 || h.ClassifierThreshold >= 1 {
		return fmt.Errorf("classifier-threshold must be in (0, 1), got %v", h.ClassifierThreshold)
	}
	return nil
}

func (c *Config) validatePrinted() error {
	p := &c.Printed
	p.Provider = strings.ToLower(p.Provider)
	if !validProviders[p.Provider] {
		return fmt.Errorf("invalid printed-provider %q, must be one of: tesseract, ollama, openai, anthropic, google", p.Provider)
	}

	if p.Provider == "tesseract" {
		if p.Languages == "" {
			return fmt.Errorf("ocr-languages cannot be empty for tesseract")
		}
		return nil
	}
	if p.Provider != "ollama" && p.APIKey == "" {
		return fmt.Errorf("API key not found for provider %s, check environment variables", p.Provider)
	}

	if p.Model == "" {
		return fmt.Errorf("printed-model cannot be empty for provider %s", p.Provider)
	}
	if p.Temperature < 0.0 || p.Temperature > 2.0 {
		return fmt.Errorf("llm-temperature must be between 0.0 and 2.0, got %f", p.Temperature)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("llm-max-retries must be non-negative, got %d", p.MaxRetries)
	}
	return nil
}

// ModelPath returns the absolute location of a model file inside ModelsDir.
func (c *Config) ModelPath(name string) string {
	return filepath.Join(c.ModelsDir, name)
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}

func apiKeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	default:
		return ""
	}
}

// String returns a string representation of the configuration (with sensitive data redacted)
func (c *Config) String() string {
	apiKey := "not set"
	if c.Printed.APIKey != "" {
		if len(c.Printed.APIKey) > 8 {
			apiKey = "***" + c.Printed.APIKey[len(c.Printed.APIKey)-4:]
		} else {
			apiKey = "***"
		}
	}

	return fmt.Sprintf(`Configuration:
  ConfigsDir: %s
  ModelsDir: %s
  TemplatesDir: %s
  OutputDir: %s
  DPI: %.0f
  Workers: %d
  AuditAllFields: %t
  LogLevel: %s
  Handwriting:
    Enabled: %t
    Routing: %s
    Model: %s
    ClassifierModel: %s
  Printed:
    Provider: %s
    Model: %s
    Endpoint: %s
    APIKey: %s
  Template:
    File: %s
    Threshold: %.2f`,
		c.ConfigsDir, c.ModelsDir, c.TemplatesDir, c.OutputDir,
		c.DPI, c.Workers, c.AuditAllFields, c.LogLevel,
		c.Handwriting.Enabled, c.Handwriting.Routing, c.Handwriting.Model, c.Handwriting.ClassifierModel,
		c.Printed.Provider, c.Printed.Model, c.Printed.Endpoint, apiKey,
		c.Template.File, c.Template.Threshold,
	)
}
