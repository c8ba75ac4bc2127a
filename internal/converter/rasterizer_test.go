package converter

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/signintech/gopdf"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

func writePDF(t *testing.T, pages int) string {
	t.Helper()
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: 612, H: 792}})
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetLineWidth(2)
		pdf.RectFromUpperLeftWithStyle(72, 72, 144, 36, "D")
	}
	path := filepath.Join(t.TempDir(), "acme_scan.pdf")
	if err := pdf.WritePdf(path); err != nil {
		t.Fatalf("WritePdf() error = %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	if r := New(nil); r.DPI() != 72 {
		t.Errorf("default DPI = %v, want 72", r.DPI())
	}
	if r := New(&Config{DPI: 200, Logger: logger.Nop()}); r.DPI() != 200 {
		t.Errorf("DPI = %v, want 200", r.DPI())
	}
}

func TestRasterizer_PageCountAndValidate(t *testing.T) {
	path := writePDF(t, 3)
	r := New(&Config{Logger: logger.Nop()})

	if err := r.Validate(path); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	n, err := r.PageCount(path)
	if err != nil {
		t.Fatalf("PageCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PageCount() = %d, want 3", n)
	}
}

func TestRasterizer_PagesPDF(t *testing.T) {
	path := writePDF(t, 2)
	r := New(&Config{Logger: logger.Nop(), DPI: 100})

	pages, err := r.Pages(path)
	if err != nil {
		t.Skipf("PDF rendering unavailable in this environment: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("Pages() = %d images, want 2", len(pages))
	}
	if w := pages[0].Bounds().Dx(); w != PixelWidth(612, 100) {
		t.Errorf("page width = %d, want %d", w, PixelWidth(612, 100))
	}
	if _, err := r.Page(path, 3); err == nil {
		t.Error("expected error for out-of-range page")
	}
}

func TestRasterizer_PagesImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewGray(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r := New(&Config{Logger: logger.Nop()})
	pages, err := r.Pages(path)
	if err != nil {
		t.Fatalf("Pages() error = %v", err)
	}
	if len(pages) != 1 || pages[0].Bounds().Dx() != 40 {
		t.Errorf("Pages() = %v", pages)
	}
	if _, err := r.Page(path, 2); err == nil {
		t.Error("expected error for page 2 of an image")
	}
}

func TestRasterizer_Unsupported(t *testing.T) {
	if _, err := New(nil).Pages("notes.docx"); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func TestPixelWidth(t *testing.T) {
	tests := []struct {
		points, dpi float64
		want        int
	}{
		{612, 72, 612},
		{612, 150, 1275},
		{595.28, 300, 2480},
	}
	for _, tt := range tests {
		if got := PixelWidth(tt.points, tt.dpi); got != tt.want {
			t.Errorf("PixelWidth(%v, %v) = %d, want %d", tt.points, tt.dpi, got, tt.want)
		}
	}
}

func TestIsPDFAndImage(t *testing.T) {
	if !IsPDF("A.PDF") || IsPDF("a.png") {
		t.Error("IsPDF mismatch")
	}
	if !IsImage("a.JPG") || IsImage("a.pdf") {
		t.Error("IsImage mismatch")
	}
}
