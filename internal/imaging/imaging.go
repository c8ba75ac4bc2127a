// Package imaging holds the raster operations used while reading fields:
// cropping, grayscale conversion, resizing, thumbnails and JPEG output.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

// ThumbnailSize bounds both sides of a persisted thumbnail.
const ThumbnailSize = 150

var (
	// ErrNoPixels means a region could not be turned into a pixel buffer.
	ErrNoPixels = errors.New("region has no pixel data")
	// ErrEmptyImage means the region buffer has zero width or height.
	ErrEmptyImage = errors.New("region is empty")
	// ErrUnsupportedImage means the region has no usable color model.
	ErrUnsupportedImage = errors.New("region has unsupported pixel format")
)

// Crop returns the part of img inside r, or nil when r does not intersect it.
// The result shares no memory with img.
func Crop(img image.Image, r image.Rectangle) image.Image {
	if img == nil {
		return nil
	}
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// Pixels materializes img as a zero-origin RGBA buffer.
func Pixels(img image.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrNoPixels
	}
	if img.ColorModel() == nil {
		return nil, ErrUnsupportedImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba, nil
	}
	return ToRGBA(img), nil
}

// ToRGBA copies img into a zero-origin RGBA image.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToGray converts img to a zero-origin 8-bit grayscale image using ITU-R 601 luma.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ResizeGray scales src to exactly w x h with bilinear interpolation.
func ResizeGray(src *image.Gray, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Normalize returns the gray pixels scaled to [0,1], row-major.
func Normalize(g *image.Gray) []float32 {
	b := g.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			out = append(out, float32(row[x])/255.0)
		}
	}
	return out
}

// Thumbnail shrinks img to fit within max x max, keeping its aspect ratio.
// Images already inside the bound are copied unchanged.
func Thumbnail(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return ToRGBA(img)
	}
	if w >= h {
		h = maxInt(1, h*max/w)
		w = max
	} else {
		w = maxInt(1, w*max/h)
		h = max
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodeJPEG writes img as a JPEG.
func EncodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}

// SaveJPEG writes img to path, creating parent directories.
func SaveJPEG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := EncodeJPEG(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
