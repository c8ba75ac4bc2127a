// Package onnx runs single-input, single-output float32 models through onnxruntime.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

// ErrModelNotFound is returned when a model file is missing from disk.
var ErrModelNotFound = errors.New("onnx model not found")

// Session runs one inference.
type Session interface {
	// Run feeds data, shaped as shape, to the model's first input and returns
	// its first output flattened row-major together with that output's shape.
	Run(data []float32, shape []int64) ([]float32, []int64, error)
	Close() error
}

var (
	envOnce sync.Once
	envErr  error
)

// InitRuntime loads the onnxruntime shared library once per process. Later
// calls return the first call's result.
func InitRuntime(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if ort.IsInitialized() {
			return
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	})
	return envErr
}

// Model is an open onnxruntime session bound to one model file.
type Model struct {
	path       string
	inputName  string
	outputName string
	session    *ort.DynamicAdvancedSession
	mu         sync.Mutex
}

// Open loads the model at path. The runtime must already be initialized or
// loadable from libraryPath.
func Open(path, libraryPath string) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat model %s: %w", path, err)
	}
	if err := InitRuntime(libraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", path)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}

	logger.Get().Debugw("opened onnx model",
		"path", path,
		"input", inputs[0].Name,
		"input_shape", inputs[0].Dimensions.String(),
		"output", outputs[0].Name,
	)

	return &Model{
		path:       path,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		session:    session,
	}, nil
}

// Path returns the model file this session was opened from.
func (m *Model) Path() string {
	return m.path
}

// Run implements Session. Calls are serialized per model.
func (m *Model) Run(data []float32, shape []int64) ([]float32, []int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	input, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed for %s: %w", m.path, err)
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("model %s output is not float32", m.path)
	}

	out := make([]float32, len(tensor.GetData()))
	copy(out, tensor.GetData())
	return out, []int64(tensor.GetShape()), nil
}

// Close releases the session.
func (m *Model) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
