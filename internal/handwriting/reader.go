// Package handwriting decides whether a field region is handwritten and reads
// handwritten regions with a fixed-input sequence model.
package handwriting

import (
	"errors"
	"fmt"
	"image"

	"github.com/platinummonkey/fieldscan/internal/imaging"
	"github.com/platinummonkey/fieldscan/internal/onnx"
)

// Input geometry of the bundled models.
const (
	ReaderWidth      = 128
	ReaderHeight     = 32
	ClassifierWidth  = 96
	ClassifierHeight = 32
)

// ErrPrepare wraps failures converting a region into model input.
var ErrPrepare = errors.New("failed to prepare region")

// Prepare converts img to grayscale, resizes it to w x h and normalizes it to
// [0,1]. The returned shape is (1, 1, h, w).
func Prepare(img image.Image, w, h int) ([]float32, []int64, error) {
	if img == nil {
		return nil, nil, imaging.ErrNoPixels
	}
	if img.Bounds().Empty() {
		return nil, nil, imaging.ErrEmptyImage
	}
	g := imaging.ResizeGray(imaging.ToGray(img), w, h)
	return imaging.Normalize(g), []int64{1, 1, int64(h), int64(w)}, nil
}

// Reader turns a region into a per-timestep score matrix.
type Reader struct {
	session  onnx.Session
	alphabet string
}

// NewReader wraps an opened ICR model.
func NewReader(session onnx.Session) *Reader {
	return &Reader{session: session, alphabet: Alphabet}
}

// Recognize runs the model on img and returns timesteps x symbols scores.
func (r *Reader) Recognize(img image.Image) ([][]float32, error) {
	data, shape, err := Prepare(img, ReaderWidth, ReaderHeight)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPrepare, err)
	}
	out, outShape, err := r.session.Run(data, shape)
	if err != nil {
		return nil, err
	}
	if len(outShape) < 2 {
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	symbols := int(outShape[len(outShape)-1])
	if symbols <= len(r.alphabet) {
		return nil, fmt.Errorf("model emits %d symbols, alphabet needs %d plus blank", symbols, len(r.alphabet))
	}
	return SplitTimesteps(out, symbols), nil
}

// Read recognizes and decodes img in one step.
func (r *Reader) Read(img image.Image) (string, error) {
	scores, err := r.Recognize(img)
	if err != nil {
		return "", err
	}
	return Decode(scores, r.alphabet), nil
}

// Alphabet returns the symbols the reader decodes into.
func (r *Reader) Alphabet() string {
	return r.alphabet
}

// Close releases the model session.
func (r *Reader) Close() error {
	if r.session == nil {
		return nil
	}
	return r.session.Close()
}
