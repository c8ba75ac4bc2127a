package backend

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ocr"
	"github.com/platinummonkey/fieldscan/internal/onnx"
)

type stubReader struct{ closed int }

func (r *stubReader) Read(image.Image) (string, error) { return "AB12", nil }
func (r *stubReader) Close() error                    { r.closed++; return nil }

type stubPrinted struct{ closed int }

func (p *stubPrinted) Recognize(context.Context, image.Image) ([]ocr.TextResult, error) {
	return []ocr.TextResult{{Text: "printed"}}, nil
}
func (p *stubPrinted) Name() string { return "stub" }
func (p *stubPrinted) Close() error { p.closed++; return nil }

func TestSet_LazyAndCached(t *testing.T) {
	calls := 0
	reader := &stubReader{}
	set := NewSet(Factory{
		Handwriting: func() (HandwritingReader, error) {
			calls++
			return reader, nil
		},
	}, logger.Nop())

	if set.Initialized(Handwriting) {
		t.Fatal("backend initialized before first use")
	}
	for i := 0; i < 3; i++ {
		r, err := set.Handwriting()
		if err != nil {
			t.Fatalf("Handwriting() error = %v", err)
		}
		if r != reader {
			t.Fatal("Handwriting() returned a different instance")
		}
	}
	if calls != 1 {
		t.Errorf("constructor called %d times, want 1", calls)
	}
	if !set.Initialized(Handwriting) {
		t.Error("Initialized() = false after use")
	}

	if err := set.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if reader.closed != 1 {
		t.Errorf("reader closed %d times, want 1", reader.closed)
	}
	if _, err := set.Handwriting(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("after Close error = %v, want ErrUnavailable", err)
	}
	if err := set.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestSet_ErrorCached(t *testing.T) {
	calls := 0
	cause := errors.New("no model")
	set := NewSet(Factory{
		Classifier: func() (HandwritingClassifier, error) {
			calls++
			return nil, cause
		},
	}, logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := set.Classifier()
		if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
			t.Fatalf("Classifier() error = %v, want ErrUnavailable wrapping cause", err)
		}
	}
	if calls != 1 {
		t.Errorf("constructor called %d times, want 1", calls)
	}
	if _, err := set.LearnedClassifier(); err == nil {
		t.Error("LearnedClassifier() should share the cached error")
	}
	if err := set.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSet_MissingConstructor(t *testing.T) {
	set := NewSet(Factory{}, logger.Nop())
	if _, err := set.Template(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Template() error = %v, want ErrUnavailable", err)
	}
	if _, err := set.Printed(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Printed() error = %v, want ErrUnavailable", err)
	}
}

func TestSet_IndependentPerWorker(t *testing.T) {
	built := 0
	factory := Factory{
		Printed: func(context.Context) (ocr.PrintedRecognizer, error) {
			built++
			return &stubPrinted{}, nil
		},
	}
	a, b := NewSet(factory, logger.Nop()), NewSet(factory, logger.Nop())
	pa, _ := a.Printed(context.Background())
	pb, _ := b.Printed(context.Background())
	if pa == pb {
		t.Error("two sets share one recognizer")
	}
	if built != 2 {
		t.Errorf("built %d recognizers, want 2", built)
	}
	a.Close()
	b.Close()
}

func TestNewFactory_MissingModels(t *testing.T) {
	cfg := config.Default()
	cfg.ModelsDir = t.TempDir()
	cfg.TemplatesDir = filepath.Join(t.TempDir(), "templates")
	set := NewSet(NewFactory(cfg, logger.Nop()), logger.Nop())
	defer set.Close()

	if _, err := set.Handwriting(); !errors.Is(err, onnx.ErrModelNotFound) {
		t.Errorf("Handwriting() error = %v, want ErrModelNotFound", err)
	}
	if _, err := set.Classifier(); !errors.Is(err, onnx.ErrModelNotFound) {
		t.Errorf("Classifier() error = %v, want ErrModelNotFound", err)
	}
	if _, err := set.Template(); !errors.Is(err, ocr.ErrTemplateNotFound) {
		t.Errorf("Template() error = %v, want ErrTemplateNotFound", err)
	}
}
