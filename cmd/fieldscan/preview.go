package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/fieldscan/internal/converter"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/preview"
)

var (
	previewVendor string
	previewPage   int
	previewOut    string
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview <document>",
	Short: "Draw a vendor layout's field boxes over a page",
	Long: `Render one page of a document and outline every configured field box in
its layout color, writing a single-page PDF for visual inspection.

Examples:
  fieldscan preview acme_0001.pdf
  fieldscan preview --page 3 --out /tmp/check.pdf acme_0001.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
	previewCmd.Flags().StringVar(&previewVendor, "vendor", "", "vendor layout to use (default: match file name)")
	previewCmd.Flags().IntVar(&previewPage, "page", 1, "1-based page to render")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "output PDF (default: <output-dir>/<vendor>/<document>/<document>_layout_p<N>.pdf)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	doc := args[0]
	stem := strings.TrimSuffix(filepath.Base(doc), filepath.Ext(doc))

	vendor := previewVendor
	if vendor == "" {
		vendors, err := layout.ListVendors(cfg.ConfigsDir)
		if err != nil {
			return err
		}
		if vendor, err = layout.MatchVendor(vendors, stem); err != nil {
			return err
		}
	}

	lay, err := layout.Load(layout.VendorPath(vendor, cfg.ConfigsDir))
	if err != nil {
		return err
	}

	raster := converter.New(&converter.Config{Logger: log, DPI: cfg.DPI})
	page, err := raster.Page(doc, previewPage)
	if err != nil {
		return err
	}

	res, err := preview.NewRenderer(raster.DPI(), log.WithVendor(vendor)).Render(page, lay.Resolve(raster.DPI()))
	if err != nil {
		return err
	}

	out := previewOut
	if out == "" {
		out = filepath.Join(cfg.OutputDir, vendor, stem, fmt.Sprintf("%s_layout_p%d.pdf", stem, previewPage))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(out, res.PDF, 0644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d boxes drawn, %d skipped\n", out, len(res.Drawn), len(res.Skipped))
	return nil
}
