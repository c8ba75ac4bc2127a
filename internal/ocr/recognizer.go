// Package ocr provides the printed-text and template-match recognition
// backends used to read field regions.
package ocr

import (
	"context"
	"image"
	"strings"
)

// Rectangle is a bounding box inside a field region, in pixels.
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// NewRectangle creates a new Rectangle
func NewRectangle(x, y, width, height int) Rectangle {
	return Rectangle{X: x, Y: y, Width: width, Height: height}
}

// Right returns the right edge coordinate
func (r Rectangle) Right() int {
	return r.X + r.Width
}

// Bottom returns the bottom edge coordinate
func (r Rectangle) Bottom() int {
	return r.Y + r.Height
}

// TextResult is one recognized line of text.
type TextResult struct {
	Box        Rectangle
	Text       string
	Confidence float64
}

// PrintedRecognizer reads printed text from an RGB or grayscale region.
// Results are ordered top to bottom as the engine reports them.
type PrintedRecognizer interface {
	Recognize(ctx context.Context, img image.Image) ([]TextResult, error)
	Name() string
	Close() error
}

// FirstText returns the first non-blank line, trimmed, or "" when there is none.
func FirstText(results []TextResult) string {
	for _, r := range results {
		if t := strings.TrimSpace(r.Text); t != "" {
			return t
		}
	}
	return ""
}
