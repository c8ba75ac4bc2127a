// Package analyzer runs one document end to end: vendor resolution, layout
// loading, rasterization, page scheduling, aggregation and export.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/fieldscan/internal/artifacts"
	"github.com/platinummonkey/fieldscan/internal/backend"
	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/handwriting"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/pipeline"
	"github.com/platinummonkey/fieldscan/internal/report"
	"github.com/platinummonkey/fieldscan/internal/scheduler"
)

var (
	// ErrMissingFiles is returned when a vendor layout or reference template is absent.
	ErrMissingFiles = errors.New("required files missing")

	// ErrOutputNotWritable is returned when the output root cannot be written.
	ErrOutputNotWritable = errors.New("output directory is not writable")
)

// PageSource turns a document into page images.
type PageSource interface {
	Pages(path string) ([]image.Image, error)
	DPI() float64
}

// Analyzer coordinates a document run.
type Analyzer struct {
	config  *config.Config
	logger  *logger.Logger
	source  PageSource
	factory backend.Factory
	sink    pipeline.ArtifactSink
	writer  *report.Writer
	now     func() time.Time
}

// Config holds the analyzer's collaborators.
type Config struct {
	Config *config.Config
	Logger *logger.Logger
	Source PageSource

	// Factory builds each worker's backends. Nil means backend.NewFactory(Config).
	Factory *backend.Factory

	// Sink persists crops. Nil means an artifacts.FileSink.
	Sink pipeline.ArtifactSink
}

// New creates an Analyzer.
func New(cfg *Config) (*Analyzer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Config == nil {
		return nil, fmt.Errorf("config.Config is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("page source is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	factory := backend.NewFactory(cfg.Config, log)
	if cfg.Factory != nil {
		factory = *cfg.Factory
	}

	var sink pipeline.ArtifactSink = artifacts.NewFileSink()
	if cfg.Sink != nil {
		sink = cfg.Sink
	}

	return &Analyzer{
		config:  cfg.Config,
		logger:  log,
		source:  cfg.Source,
		factory: factory,
		sink:    sink,
		writer:  report.NewWriter(log),
		now:     time.Now,
	}, nil
}

// ResolveVendor returns override when set, otherwise the vendor whose name
// appears in the document file name.
func (a *Analyzer) ResolveVendor(docPath, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	vendors, err := layout.ListVendors(a.config.ConfigsDir)
	if err != nil {
		return "", err
	}
	return layout.MatchVendor(vendors, stem(docPath))
}

// Analyze processes docPath. vendor may be empty to auto-detect.
func (a *Analyzer) Analyze(ctx context.Context, docPath, vendor string) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Document:  docPath,
		StartTime: a.now(),
	}
	log := a.logger.WithDocument(docPath).WithFields("run_id", result.RunID)
	log.Info("Starting analysis")

	vendor, err := a.ResolveVendor(docPath, vendor)
	if err != nil {
		return nil, err
	}
	result.Vendor = vendor
	log = log.WithVendor(vendor)

	if missing := layout.ValidateRequiredFiles(vendor, a.config.ConfigsDir, []string{a.config.Template.File}, a.config.TemplatesDir); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFiles, strings.Join(missing, "; "))
	}

	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if !layout.IsDirWritable(a.config.OutputDir) {
		return nil, fmt.Errorf("%w: %s", ErrOutputNotWritable, a.config.OutputDir)
	}

	outDir := filepath.Join(a.config.OutputDir, vendor, stem(docPath))
	if err := artifacts.PrepareDirs(outDir); err != nil {
		return nil, err
	}
	result.OutputDir = outDir

	logsDir := filepath.Join(outDir, artifacts.LogsDir)
	logPath := filepath.Join(logsDir, report.RunLogFile)
	if err := os.Remove(logPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to reset run log: %w", err)
	}
	teed, closeLog, err := a.logger.Tee(&logger.Config{Level: a.config.LogLevel, Format: "json", OutputPath: logPath})
	if err != nil {
		return nil, err
	}
	runLog := teed.WithDocument(docPath).WithFields("run_id", result.RunID).WithVendor(vendor)

	runErr := a.run(ctx, runLog, docPath, result)
	if runErr != nil {
		runLog.WithError(runErr).Error("Analysis failed")
	}
	if err := closeLog(); err != nil {
		log.WithError(err).Warn("Failed to close run log")
	}
	logFiles, err := a.writer.ExportLogs(logPath, logsDir)
	if err != nil {
		log.WithError(err).Warn("Failed to export run log")
	}
	result.Files = append(result.Files, logPath)
	result.Files = append(result.Files, logFiles...)

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// run does the work between output set-up and log export. Everything it logs
// lands in the document's run log.
func (a *Analyzer) run(ctx context.Context, log *logger.Logger, docPath string, result *RunResult) error {
	vendor, outDir := result.Vendor, result.OutputDir

	lay, err := layout.Load(layout.VendorPath(vendor, a.config.ConfigsDir))
	if err != nil {
		return err
	}
	fields := lay.Resolve(a.source.DPI())
	layout.LogFields(log, fields)

	pages, err := a.source.Pages(docPath)
	if err != nil {
		return fmt.Errorf("failed to rasterize %s: %w", docPath, err)
	}
	log.WithFields("pages", len(pages)).Info("Document rasterized")

	date := a.config.ProcessingDate
	if date == "" {
		date = a.now().Format("20060102")
	}
	tasks := make([]pipeline.PageTask, len(pages))
	for i, img := range pages {
		tasks[i] = pipeline.PageTask{
			PageIndex: i,
			Image:     img,
			Fields:    fields,
			OutputDir: outDir,
			Vendor:    vendor,
			Date:      date,
		}
	}

	hw := a.config.Handwriting
	processor := pipeline.NewProcessor(pipeline.Options{
		Handwriting: hw.Enabled,
		Routing:     hw.Routing,
		Heuristic:   handwriting.Heuristic{EdgeDensity: hw.EdgeDensityThreshold, StdDev: hw.StdDevThreshold},
		AuditAll:    a.config.AuditAllFields,
	}, a.sink, log)

	sched := scheduler.New(processor.ProcessPage, a.factory,
		scheduler.WithWorkers(a.config.Workers),
		scheduler.WithLogger(log),
	)
	batch := sched.Run(ctx, tasks)

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	doc := report.Builder{Fields: names}.Aggregate(batch.Results, batch.Failures)

	files, err := report.NewWriter(log).WriteAll(outDir, stem(docPath), doc)
	result.Files = files
	if err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}

	result.Pages = len(pages)
	result.Failures = batch.Failures
	result.Summary = doc.Summary
	result.Duration = a.now().Sub(result.StartTime)

	log.WithFields(
		"pages", result.Pages,
		"valid", doc.Summary.Valid,
		"missing", doc.Summary.Missing,
		"failed", doc.Summary.Failed,
		"duration", result.Duration,
	).Info("Analysis completed")
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
