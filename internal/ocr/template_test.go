package ocr

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestNewTemplateMatcher_NotFound(t *testing.T) {
	_, err := NewTemplateMatcher(t.TempDir(), "ticket_template.jpg", 0.7)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestTemplateMatcher_Matches(t *testing.T) {
	tmpl := image.NewGray(image.Rect(0, 0, 24, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 24; x++ {
			if (x/4+y/4)%2 == 0 {
				tmpl.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	region := image.NewGray(image.Rect(0, 0, 80, 40))
	for y := 0; y < 12; y++ {
		for x := 0; x < 24; x++ {
			region.SetGray(30+x, 10+y, tmpl.GrayAt(x, y))
		}
	}

	m := NewTemplateMatcherFromImage("mem", tmpl, 0)
	ok, score, err := m.Matches(region)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if !ok || score < 0.99 {
		t.Errorf("Matches() = %v, %v; want a near-perfect match", ok, score)
	}
	if m.Path() != "mem" {
		t.Errorf("Path() = %q", m.Path())
	}
}
