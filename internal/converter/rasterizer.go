// Package converter turns source documents into page images at the layout DPI.
package converter

import (
	"fmt"
	"image"
	_ "image/jpeg" // decoders for scanned page images
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/unidoc/unipdf/v3/common"
	unipdf "github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"

	"github.com/platinummonkey/fieldscan/internal/geometry"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

func init() {
	common.SetLogger(common.NewConsoleLogger(common.LogLevelError))
}

// Rasterizer renders document pages to images.
type Rasterizer struct {
	logger *logger.Logger
	dpi    float64
}

// Config holds configuration for the rasterizer
type Config struct {
	Logger *logger.Logger
	// DPI is the render resolution; layout inches are converted with the same value.
	DPI float64
}

// New creates a new rasterizer
func New(cfg *Config) *Rasterizer {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = geometry.DefaultDPI
	}
	return &Rasterizer{logger: log, dpi: dpi}
}

// DPI returns the render resolution.
func (r *Rasterizer) DPI() float64 {
	return r.dpi
}

// IsPDF reports whether path names a PDF file.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// IsImage reports whether path names a supported single-page image.
func IsImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Validate checks that a PDF is readable.
func (r *Rasterizer) Validate(pdfPath string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(pdfPath, conf); err != nil {
		return fmt.Errorf("PDF validation failed: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in a PDF.
func (r *Rasterizer) PageCount(pdfPath string) (int, error) {
	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return ctx.PageCount, nil
}

// Pages renders every page of path. PDFs are rendered page by page; PNG and
// JPEG files are returned as a single page.
func (r *Rasterizer) Pages(path string) ([]image.Image, error) {
	switch {
	case IsPDF(path):
		return r.renderAll(path)
	case IsImage(path):
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		return []image.Image{img}, nil
	default:
		return nil, fmt.Errorf("unsupported document type: %s", filepath.Ext(path))
	}
}

// Page renders one 1-based page of path.
func (r *Rasterizer) Page(path string, pageNum int) (image.Image, error) {
	if IsImage(path) {
		if pageNum != 1 {
			return nil, fmt.Errorf("invalid page number %d (image has 1 page)", pageNum)
		}
		return decodeImage(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	reader, err := unipdf.NewPdfReaderLazy(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	return r.renderPage(reader, pageNum)
}

func (r *Rasterizer) renderAll(pdfPath string) ([]image.Image, error) {
	r.logger.WithFields("pdf", pdfPath, "dpi", r.dpi).Debug("Rendering all PDF pages to images")

	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	reader, err := unipdf.NewPdfReaderLazy(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	count, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	images := make([]image.Image, count)
	for i := 1; i <= count; i++ {
		img, err := r.renderPage(reader, i)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i, err)
		}
		images[i-1] = img
	}

	r.logger.WithFields("page_count", count).Info("Converted pages from PDF")
	return images, nil
}

func (r *Rasterizer) renderPage(reader *unipdf.PdfReader, pageNum int) (image.Image, error) {
	count, err := reader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if pageNum < 1 || pageNum > count {
		return nil, fmt.Errorf("invalid page number %d (PDF has %d pages)", pageNum, count)
	}

	page, err := reader.GetPage(pageNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get page %d: %w", pageNum, err)
	}
	mediaBox, err := page.GetMediaBox()
	if err != nil {
		return nil, fmt.Errorf("failed to get media box: %w", err)
	}

	// PDF points are 1/72 inch; the height follows from the aspect ratio.
	device := render.NewImageDevice()
	device.OutputWidth = PixelWidth(mediaBox.Urx-mediaBox.Llx, r.dpi)

	img, err := device.Render(page)
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	b := img.Bounds()
	r.logger.WithFields("page", pageNum, "width", b.Dx(), "height", b.Dy()).Debug("Rendered page")
	return img, nil
}

// PixelWidth converts a width in PDF points to pixels at dpi.
func PixelWidth(points, dpi float64) int {
	return int(points * dpi / 72.0)
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}
