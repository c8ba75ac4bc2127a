// Package preflight checks that a deployment has everything a run needs
// before any document is touched.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ocr"
)

// ProviderTimeout bounds the printed-provider health check.
const ProviderTimeout = 30 * time.Second

// Options tunes Run.
type Options struct {
	// PullModels lets the Ollama check download a missing model instead of
	// failing.
	PullModels bool
	Logger     *logger.Logger
}

// Check is the outcome of one preflight check.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Report lists every check in the order it ran.
type Report struct {
	Checks []Check
}

// Passed reports whether every check succeeded.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Failures returns the checks that did not pass.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) add(name string, ok bool, format string, args ...interface{}) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Run checks cfg. It never returns early so one report shows every problem.
func Run(ctx context.Context, cfg *config.Config, opts Options) *Report {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	r := &Report{}

	dirs := []struct{ name, path string }{
		{"configs directory", cfg.ConfigsDir},
		{"templates directory", cfg.TemplatesDir},
	}
	if cfg.Handwriting.Enabled {
		dirs = append(dirs, struct{ name, path string }{"models directory", cfg.ModelsDir})
	}
	for _, d := range dirs {
		info, err := os.Stat(d.path)
		switch {
		case err != nil:
			r.add(d.name, false, "%s: %v", d.path, err)
		case !info.IsDir():
			r.add(d.name, false, "%s is not a directory", d.path)
		default:
			r.add(d.name, true, "%s", d.path)
		}
	}

	vendors, err := layout.ListVendors(cfg.ConfigsDir)
	switch {
	case err != nil:
		r.add("vendor layouts", false, "%v", err)
	case len(vendors) == 0:
		r.add("vendor layouts", false, "no *.yaml layouts in %s", cfg.ConfigsDir)
	default:
		r.add("vendor layouts", true, "%s", strings.Join(vendors, ", "))
	}

	if cfg.Handwriting.Enabled {
		checkModels(r, cfg)
	}

	if tmpl := layout.FindFileCaseInsensitive(cfg.Template.File, cfg.TemplatesDir); tmpl != "" {
		r.add("ticket template", true, "%s", tmpl)
	} else {
		r.add("ticket template", false, "%s not found in %s", cfg.Template.File, cfg.TemplatesDir)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		r.add("output directory", false, "%v", err)
	} else if !layout.IsDirWritable(cfg.OutputDir) {
		r.add("output directory", false, "%s is not writable", cfg.OutputDir)
	} else {
		r.add("output directory", true, "%s", cfg.OutputDir)
	}

	checkPrinted(ctx, r, cfg, opts)
	return r
}

// checkPrinted asks a vision-LLM printed provider whether it is reachable and
// serves the configured model. Tesseract has nothing remote to check.
func checkPrinted(ctx context.Context, r *Report, cfg *config.Config, opts Options) {
	provider := ocr.ProviderType(strings.ToLower(cfg.Printed.Provider))
	if provider == "" || provider == ocr.ProviderTesseract {
		return
	}
	model := cfg.Printed.Model
	if model == "" {
		model = ocr.GetDefaultModelForProvider(provider)
	}
	name := "printed provider"

	client, err := ocr.NewVisionClient(ctx, &ocr.VisionClientConfig{
		Provider:    provider,
		Model:       model,
		Endpoint:    cfg.Printed.Endpoint,
		APIKey:      cfg.Printed.APIKey,
		MaxRetries:  cfg.Printed.MaxRetries,
		Temperature: cfg.Printed.Temperature,
		PullMissing: opts.PullModels,
	}, opts.Logger)
	if err != nil {
		r.add(name, false, "%v", err)
		return
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()
	if err := client.HealthCheck(ctx, model); err != nil {
		r.add(name, false, "%s %s: %v", provider, model, err)
		return
	}
	r.add(name, true, "%s %s", provider, model)
}

func checkModels(r *Report, cfg *config.Config) {
	models, _ := filepath.Glob(filepath.Join(cfg.ModelsDir, "*.onnx"))
	if len(models) == 0 {
		r.add("onnx models", false, "no .onnx files in %s", cfg.ModelsDir)
		return
	}
	r.add("onnx models", true, "%d found", len(models))

	required := []string{cfg.Handwriting.Model}
	if cfg.Handwriting.Routing != config.RoutingHeuristic {
		required = append(required, cfg.Handwriting.ClassifierModel)
	}
	for _, name := range required {
		path := cfg.ModelPath(name)
		if _, err := os.Stat(path); err != nil {
			r.add("model "+name, false, "%s not found", path)
		} else {
			r.add("model "+name, true, "%s", path)
		}
	}
}
