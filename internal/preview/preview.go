// Package preview draws a layout's field boxes over a rendered page so a
// vendor configuration can be checked by eye.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/signintech/gopdf"

	"github.com/platinummonkey/fieldscan/internal/geometry"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

// Defaults for fields that set no color or line width.
const (
	DefaultColor     = "red"
	DefaultLineWidth = 3.0
)

// RGB is an 8-bit color.
type RGB struct{ R, G, B uint8 }

var namedColors = map[string]RGB{
	"red":     {255, 0, 0},
	"green":   {0, 128, 0},
	"lime":    {0, 255, 0},
	"blue":    {0, 0, 255},
	"yellow":  {255, 255, 0},
	"orange":  {255, 165, 0},
	"purple":  {128, 0, 128},
	"magenta": {255, 0, 255},
	"cyan":    {0, 255, 255},
	"black":   {0, 0, 0},
	"white":   {255, 255, 255},
	"gray":    {128, 128, 128},
}

// ParseColor accepts a CSS color name or #rrggbb.
func ParseColor(s string) (RGB, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = DefaultColor
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("unknown color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("unknown color %q", s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Result reports which fields were drawn.
type Result struct {
	PDF     []byte
	Drawn   []string
	Skipped []string
}

// Renderer produces preview PDFs.
type Renderer struct {
	dpi    float64
	logger *logger.Logger
}

// NewRenderer creates a renderer for pages rasterized at dpi.
func NewRenderer(dpi float64, log *logger.Logger) *Renderer {
	if dpi <= 0 {
		dpi = geometry.DefaultDPI
	}
	if log == nil {
		log = logger.Get()
	}
	return &Renderer{dpi: dpi, logger: log}
}

func (r *Renderer) points(px float64) float64 {
	return px * 72.0 / r.dpi
}

// Render places page on a single PDF page and outlines every field box that
// survives sanitization. Fields without a box or with an invalid one are skipped.
func (r *Renderer) Render(page image.Image, fields []layout.ResolvedField) (*Result, error) {
	if page == nil {
		return nil, fmt.Errorf("page image cannot be nil")
	}
	b := page.Bounds()
	widthPt, heightPt := r.points(float64(b.Dx())), r.points(float64(b.Dy()))

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: widthPt, H: heightPt}})
	pdf.AddPage()
	if err := pdf.ImageFrom(page, 0, 0, &gopdf.Rect{W: widthPt, H: heightPt}); err != nil {
		return nil, fmt.Errorf("failed to place page image: %w", err)
	}

	res := &Result{}
	for _, f := range fields {
		log := r.logger.WithField(f.Name)
		if f.Box == nil {
			log.Warn("No box or dimensions found, skipping")
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}
		box, ok := geometry.SanitizeBox(*f.Box, b.Dx(), b.Dy())
		if !ok {
			log.WithFields("box", f.Box.String()).Error("Invalid sanitized box")
			res.Skipped = append(res.Skipped, f.Name)
			continue
		}

		c, err := ParseColor(f.Color)
		if err != nil {
			log.WithError(err).Warn("Unknown color, using default")
			c = namedColors[DefaultColor]
		}
		width := f.LineWidth
		if width <= 0 {
			width = DefaultLineWidth
		}

		pdf.SetStrokeColor(c.R, c.G, c.B)
		pdf.SetLineWidth(r.points(width))
		pdf.RectFromUpperLeftWithStyle(r.points(box.X1), r.points(box.Y1), r.points(box.Width()), r.points(box.Height()), "D")
		res.Drawn = append(res.Drawn, f.Name)
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	res.PDF = buf.Bytes()
	return res, nil
}
