package onnx

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestOpen_MissingModel(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "handwriting_ocr.onnx"), "")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("Open() error = %v, want ErrModelNotFound", err)
	}
}

func TestModel_CloseNil(t *testing.T) {
	m := &Model{path: "x.onnx"}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if m.Path() != "x.onnx" {
		t.Errorf("Path() = %q", m.Path())
	}
}
