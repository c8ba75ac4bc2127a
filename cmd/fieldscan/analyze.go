package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/fieldscan/internal/analyzer"
	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/converter"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

var analyzeVendor string

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <document>...",
	Short: "Extract fields from one or more documents",
	Long: `Rasterize each document, read every field of its vendor layout, and
write the entries table, issue logs, thumbnail index, timings and summary to
<output-dir>/<vendor>/<document>/.

The vendor is the layout whose name appears in the document file name unless
--vendor is given.

Examples:
  # Auto-detect the vendor from the file name
  fieldscan analyze scans/acme_2025-01-01.pdf

  # Force a vendor and keep a crop of every field
  fieldscan analyze --vendor acme --audit-all-fields batch.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeVendor, "vendor", "", "vendor layout to use (default: match file name)")
	analyzeCmd.Flags().Bool("audit-all-fields", false, "save a crop and thumbnail for every field")
	analyzeCmd.Flags().String("processing-date", "", "date stamped on page tasks (YYYYMMDD, default today)")
	bindFlag(analyzeCmd, "audit-all-fields")
	bindFlag(analyzeCmd, "processing-date")
}

func newAnalyzer(cfg *config.Config, log *logger.Logger) (*analyzer.Analyzer, *converter.Rasterizer, error) {
	raster := converter.New(&converter.Config{Logger: log, DPI: cfg.DPI})
	a, err := analyzer.New(&analyzer.Config{
		Config: cfg,
		Logger: log,
		Source: raster,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	return a, raster, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, raster, err := newAnalyzer(cfg, log.WithOperation("analyze"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var failed int
	for _, doc := range args {
		if converter.IsPDF(doc) {
			if err := raster.Validate(doc); err != nil {
				log.WithDocument(doc).WithError(err).Error("Skipping invalid PDF")
				failed++
				continue
			}
		}

		res, err := a.Analyze(ctx, doc, analyzeVendor)
		if err != nil {
			log.WithDocument(doc).WithError(err).Error("Analysis failed")
			failed++
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Report())
		if res.HasFailures() {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents did not complete cleanly", failed, len(args))
	}
	return nil
}
