// Package geometry converts layout measurements to pixel rectangles and keeps
// rectangles inside page bounds.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// DefaultDPI is used when a layout does not specify a resolution.
const DefaultDPI = 72

// Inches is a physical pair, either a position (X, Y) or a size (W, H).
type Inches struct {
	X float64
	Y float64
}

// Box is an axis-aligned pixel rectangle. X2 and Y2 are exclusive.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Width of the box in pixels.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height of the box in pixels.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Rect converts the box to integer image coordinates, truncating the origin
// and rounding the far corner up so no covered pixel is lost.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X1)),
		int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)),
		int(math.Ceil(b.Y2)),
	)
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g,%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
}

// ToPixelBox converts a position and size in inches to a pixel box.
// Both corners are truncated to whole pixels independently. A non-positive dpi means DefaultDPI.
func ToPixelBox(position, size Inches, dpi float64) Box {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return Box{
		X1: math.Trunc(position.X * dpi),
		Y1: math.Trunc(position.Y * dpi),
		X2: math.Trunc((position.X + size.X) * dpi),
		Y2: math.Trunc((position.Y + size.Y) * dpi),
	}
}

// SanitizeBox clamps box into [0,width]x[0,height]. It reports false when the
// clamped box is narrower or shorter than one pixel, or when any coordinate
// is NaN or infinite.
func SanitizeBox(box Box, width, height int) (Box, bool) {
	if !box.finite() {
		return Box{}, false
	}
	w, h := float64(width), float64(height)
	out := Box{
		X1: clamp(box.X1, 0, w),
		Y1: clamp(box.Y1, 0, h),
		X2: clamp(box.X2, 0, w),
		Y2: clamp(box.Y2, 0, h),
	}
	if out.Width() < 1 || out.Height() < 1 {
		return Box{}, false
	}
	return out, true
}

func (b Box) finite() bool {
	for _, v := range [...]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
