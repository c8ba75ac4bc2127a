package imaging

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"
)

// EdgeStats describes how busy a grayscale region is.
type EdgeStats struct {
	// EdgeDensity is the fraction of pixels marked by Canny after a 5x5 blur
	EdgeDensity float64
	// StdDev is the population standard deviation of pixel intensity
	StdDev float64
}

// Match is the best normalized cross-correlation hit of a template.
type Match struct {
	Score    float64
	Location image.Point
}

func grayMat(g *image.Gray) (gocv.Mat, error) {
	b := g.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}
	if g.Stride != b.Dx() || b.Min != (image.Point{}) {
		g = ToGray(g)
	}
	view, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC1, g.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap region: %w", err)
	}
	// the view borrows g.Pix; clone so the Mat owns its pixels
	owned := view.Clone()
	view.Close()
	runtime.KeepAlive(g)
	return owned, nil
}

// MeasureEdges blurs g with a 5x5 Gaussian, runs Canny(30, 150) and reports
// edge density alongside the intensity standard deviation of the unblurred region.
func MeasureEdges(g *image.Gray) (EdgeStats, error) {
	src, err := grayMat(g)
	if err != nil {
		return EdgeStats{}, err
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 30, 150)

	total := edges.Rows() * edges.Cols()
	if total == 0 {
		return EdgeStats{}, ErrEmptyImage
	}

	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()
	gocv.MeanStdDev(src, &mean, &std)

	return EdgeStats{
		EdgeDensity: float64(gocv.CountNonZero(edges)) / float64(total),
		StdDev:      std.GetDoubleAt(0, 0),
	}, nil
}

// MatchTemplate slides tmpl over region with TM_CCOEFF_NORMED and returns the
// best score. A template larger than the region is scaled down to fit first.
func MatchTemplate(region, tmpl *image.Gray) (Match, error) {
	rb, tb := region.Bounds(), tmpl.Bounds()
	if rb.Empty() || tb.Empty() {
		return Match{}, ErrEmptyImage
	}
	if tb.Dx() > rb.Dx() || tb.Dy() > rb.Dy() {
		tmpl = fitInside(tmpl, rb.Dx(), rb.Dy())
	}

	img, err := grayMat(region)
	if err != nil {
		return Match{}, err
	}
	defer img.Close()
	tm, err := grayMat(tmpl)
	if err != nil {
		return Match{}, err
	}
	defer tm.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(img, tm, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return Match{}, errors.New("template match produced no result")
	}

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	return Match{Score: float64(maxVal), Location: maxLoc}, nil
}

// LoadGray reads an image file as 8-bit grayscale.
func LoadGray(path string) (*image.Gray, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to read image %s", path)
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert image %s: %w", path, err)
	}
	return ToGray(img), nil
}

func fitInside(g *image.Gray, w, h int) *image.Gray {
	b := g.Bounds()
	scale := float64(w) / float64(b.Dx())
	if s := float64(h) / float64(b.Dy()); s < scale {
		scale = s
	}
	nw := maxInt(1, int(float64(b.Dx())*scale))
	nh := maxInt(1, int(float64(b.Dy())*scale))
	return ResizeGray(g, nw, nh)
}
