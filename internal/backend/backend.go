// Package backend owns the recognition engines a worker uses. Engines are
// built on first use and cached for the life of the worker, so a page that
// never needs handwriting never loads the handwriting models.
package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/platinummonkey/fieldscan/internal/config"
	"github.com/platinummonkey/fieldscan/internal/handwriting"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ocr"
	"github.com/platinummonkey/fieldscan/internal/onnx"
)

// ErrUnavailable wraps any failure to bring a backend up.
var ErrUnavailable = errors.New("recognition backend unavailable")

// Kind names a recognition backend.
type Kind string

const (
	Printed     Kind = "printed"
	Handwriting Kind = "handwriting"
	Classifier  Kind = "handwriting-classifier"
	Template    Kind = "template-match"
)

// HandwritingReader reads a handwritten region into text.
type HandwritingReader interface {
	Read(img image.Image) (string, error)
	io.Closer
}

// HandwritingClassifier is the learned second tier of the handwriting check.
type HandwritingClassifier interface {
	handwriting.LearnedClassifier
	io.Closer
}

// TemplateMatcher compares a region against the reference ticket template.
type TemplateMatcher interface {
	Matches(region image.Image) (bool, float64, error)
	io.Closer
}

// Factory holds one constructor per backend. A nil constructor makes that
// backend permanently unavailable.
type Factory struct {
	Printed     func(ctx context.Context) (ocr.PrintedRecognizer, error)
	Handwriting func() (HandwritingReader, error)
	Classifier  func() (HandwritingClassifier, error)
	Template    func() (TemplateMatcher, error)
}

// NewFactory wires the production constructors from cfg.
func NewFactory(cfg *config.Config, log *logger.Logger) Factory {
	if log == nil {
		log = logger.Get()
	}
	hw := cfg.Handwriting

	return Factory{
		Printed: func(ctx context.Context) (ocr.PrintedRecognizer, error) {
			return ocr.NewPrintedRecognizer(ctx, cfg.Printed, log)
		},
		Handwriting: func() (HandwritingReader, error) {
			m, err := onnx.Open(cfg.ModelPath(hw.Model), hw.RuntimeLibrary)
			if err != nil {
				return nil, err
			}
			return handwriting.NewReader(m), nil
		},
		Classifier: func() (HandwritingClassifier, error) {
			m, err := onnx.Open(cfg.ModelPath(hw.ClassifierModel), hw.RuntimeLibrary)
			if err != nil {
				return nil, err
			}
			return handwriting.NewLearned(m, hw.ClassifierThreshold, log), nil
		},
		Template: func() (TemplateMatcher, error) {
			return ocr.NewTemplateMatcher(cfg.TemplatesDir, cfg.Template.File, cfg.Template.Threshold)
		},
	}
}

type entry struct {
	value io.Closer
	err   error
}

// Set is one worker's backend cache. Each backend is constructed at most once;
// a construction error is cached too and returned on every later request.
// A Set is owned by a single worker; the mutex only guards Close racing a
// late request during shutdown.
type Set struct {
	factory Factory
	log     *logger.Logger

	mu      sync.Mutex
	entries map[Kind]entry
	closed  bool
}

// NewSet creates an empty cache over factory.
func NewSet(factory Factory, log *logger.Logger) *Set {
	if log == nil {
		log = logger.Get()
	}
	return &Set{factory: factory, log: log, entries: make(map[Kind]entry)}
}

func (s *Set) get(kind Kind, build func() (io.Closer, error)) (io.Closer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: %s: backend set closed", ErrUnavailable, kind)
	}
	if e, ok := s.entries[kind]; ok {
		return e.value, e.err
	}

	v, err := build()
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrUnavailable, kind, err)
		s.log.WithFields("backend", string(kind)).WithError(err).Warn("Backend initialization failed")
		v = nil
	} else {
		s.log.WithFields("backend", string(kind)).Debug("Backend initialized")
	}
	s.entries[kind] = entry{value: v, err: err}
	return v, err
}

func missing(kind Kind) error {
	return fmt.Errorf("no constructor for %s", kind)
}

// Printed returns the printed-text recognizer.
func (s *Set) Printed(ctx context.Context) (ocr.PrintedRecognizer, error) {
	v, err := s.get(Printed, func() (io.Closer, error) {
		if s.factory.Printed == nil {
			return nil, missing(Printed)
		}
		return s.factory.Printed(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(ocr.PrintedRecognizer), nil
}

// Handwriting returns the handwriting reader.
func (s *Set) Handwriting() (HandwritingReader, error) {
	v, err := s.get(Handwriting, func() (io.Closer, error) {
		if s.factory.Handwriting == nil {
			return nil, missing(Handwriting)
		}
		return s.factory.Handwriting()
	})
	if err != nil {
		return nil, err
	}
	return v.(HandwritingReader), nil
}

// Classifier returns the learned handwriting classifier.
func (s *Set) Classifier() (HandwritingClassifier, error) {
	v, err := s.get(Classifier, func() (io.Closer, error) {
		if s.factory.Classifier == nil {
			return nil, missing(Classifier)
		}
		return s.factory.Classifier()
	})
	if err != nil {
		return nil, err
	}
	return v.(HandwritingClassifier), nil
}

// LearnedClassifier adapts Classifier to handwriting.Router.
func (s *Set) LearnedClassifier() (handwriting.LearnedClassifier, error) {
	return s.Classifier()
}

// Template returns the ticket template matcher.
func (s *Set) Template() (TemplateMatcher, error) {
	v, err := s.get(Template, func() (io.Closer, error) {
		if s.factory.Template == nil {
			return nil, missing(Template)
		}
		return s.factory.Template()
	})
	if err != nil {
		return nil, err
	}
	return v.(TemplateMatcher), nil
}

// Initialized reports whether kind has been constructed successfully.
func (s *Set) Initialized(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[kind]
	return ok && e.err == nil
}

// Close releases every initialized backend. Later requests fail.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for kind, e := range s.entries {
		if e.value == nil {
			continue
		}
		if err := e.value.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}
