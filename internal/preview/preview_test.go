package preview

import (
	"bytes"
	"image"
	"testing"

	"github.com/platinummonkey/fieldscan/internal/geometry"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{"", RGB{255, 0, 0}, false},
		{"Blue", RGB{0, 0, 255}, false},
		{"#00ff7f", RGB{0, 255, 127}, false},
		{"00FF7F", RGB{0, 255, 127}, false},
		{"chartreuse-ish", RGB{}, true},
		{"#12345", RGB{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRenderer_Render(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 200, 100))
	fields := []layout.ResolvedField{
		{Name: "h.ticket_number", Box: &geometry.Box{X1: 10, Y1: 10, X2: 80, Y2: 30}, Color: "blue", LineWidth: 2},
		{Name: "raw_text.notes"},
		{Name: "b.off", Box: &geometry.Box{X1: 300, Y1: 300, X2: 400, Y2: 400}},
		{Name: "b.driver", Box: &geometry.Box{X1: 0, Y1: 50, X2: 250, Y2: 90}, Color: "mauve"},
	}

	res, err := NewRenderer(72, logger.Nop()).Render(page, fields)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !bytes.HasPrefix(res.PDF, []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
	if len(res.Drawn) != 2 || res.Drawn[0] != "h.ticket_number" || res.Drawn[1] != "b.driver" {
		t.Errorf("Drawn = %v", res.Drawn)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("Skipped = %v", res.Skipped)
	}
}

func TestRenderer_NilPage(t *testing.T) {
	if _, err := NewRenderer(0, logger.Nop()).Render(nil, nil); err == nil {
		t.Error("expected error for nil page")
	}
}
