package imaging

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
)

func grayFill(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestMeasureEdges_Flat(t *testing.T) {
	stats, err := MeasureEdges(grayFill(64, 32, 200))
	if err != nil {
		t.Fatalf("MeasureEdges() error = %v", err)
	}
	if stats.EdgeDensity != 0 {
		t.Errorf("flat region edge density = %v, want 0", stats.EdgeDensity)
	}
	if stats.StdDev != 0 {
		t.Errorf("flat region stddev = %v, want 0", stats.StdDev)
	}
}

func TestMeasureEdges_Checkerboard(t *testing.T) {
	g := grayFill(64, 64, 0)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	stats, err := MeasureEdges(g)
	if err != nil {
		t.Fatalf("MeasureEdges() error = %v", err)
	}
	if stats.EdgeDensity <= 0.02 {
		t.Errorf("checkerboard edge density = %v, want > 0.02", stats.EdgeDensity)
	}
	if stats.StdDev < 120 {
		t.Errorf("checkerboard stddev = %v, want about 127", stats.StdDev)
	}
}

func TestMeasureEdges_Empty(t *testing.T) {
	if _, err := MeasureEdges(image.NewGray(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected error for empty region")
	}
}

func TestMatchTemplate(t *testing.T) {
	region := grayFill(80, 40, 255)
	tmpl := grayFill(20, 10, 255)
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(0)
			if x%4 < 2 {
				v = 255
			}
			tmpl.SetGray(x, y, color.Gray{Y: v})
			region.SetGray(30+x, 15+y, color.Gray{Y: v})
		}
	}

	m, err := MatchTemplate(region, tmpl)
	if err != nil {
		t.Fatalf("MatchTemplate() error = %v", err)
	}
	if m.Score < 0.99 {
		t.Errorf("score = %v, want ~1", m.Score)
	}
	if m.Location != image.Pt(30, 15) {
		t.Errorf("location = %v, want (30,15)", m.Location)
	}
}

func TestMatchTemplate_LargerTemplateIsScaled(t *testing.T) {
	if _, err := MatchTemplate(grayFill(10, 10, 128), grayFill(40, 20, 128)); err != nil {
		t.Fatalf("MatchTemplate() error = %v", err)
	}
}

func TestLoadGray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmpl.jpg")
	if err := SaveJPEG(path, solid(30, 12, color.White)); err != nil {
		t.Fatal(err)
	}
	g, err := LoadGray(path)
	if err != nil {
		t.Fatalf("LoadGray() error = %v", err)
	}
	if g.Bounds().Dx() != 30 || g.Bounds().Dy() != 12 {
		t.Errorf("LoadGray() bounds = %v", g.Bounds())
	}

	if _, err := LoadGray(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}
