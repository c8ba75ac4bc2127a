package handwriting

import (
	"errors"
	"fmt"
	"image"

	"github.com/platinummonkey/fieldscan/internal/imaging"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/onnx"
)

// Routing modes.
const (
	RouteBoth      = "both"
	RouteEither    = "either"
	RouteHeuristic = "heuristic"
	RouteLearned   = "learned"
)

var errNoOutput = errors.New("classifier returned no output")

// Heuristic flags busy regions by edge density or intensity spread.
type Heuristic struct {
	EdgeDensity float64
	StdDev      float64
}

// DefaultHeuristic uses the thresholds the bundled models were tuned with.
var DefaultHeuristic = Heuristic{EdgeDensity: 0.02, StdDev: 50}

// Check reports whether the region trips either threshold.
func (h Heuristic) Check(img image.Image) (bool, imaging.EdgeStats, error) {
	stats, err := imaging.MeasureEdges(imaging.ToGray(img))
	if err != nil {
		return false, stats, err
	}
	return stats.EdgeDensity > h.EdgeDensity || stats.StdDev > h.StdDev, stats, nil
}

// Learned wraps the binary handwritten/printed model.
type Learned struct {
	session   onnx.Session
	threshold float64
	log       *logger.Logger
}

// NewLearned wraps an opened classifier model. A non-positive threshold means 0.5.
func NewLearned(session onnx.Session, threshold float64, log *logger.Logger) *Learned {
	if threshold <= 0 {
		threshold = 0.5
	}
	if log == nil {
		log = logger.Get()
	}
	return &Learned{session: session, threshold: threshold, log: log}
}

// Probability returns the model's handwritten probability for img.
func (l *Learned) Probability(img image.Image) (float64, error) {
	data, shape, err := Prepare(img, ClassifierWidth, ClassifierHeight)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPrepare, err)
	}
	out, _, err := l.session.Run(data, shape)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, errNoOutput
	}
	return float64(out[0]), nil
}

// IsHandwritten never fails: any inference problem is logged and reported as printed.
func (l *Learned) IsHandwritten(img image.Image) bool {
	p, err := l.Probability(img)
	if err != nil {
		l.log.WithError(err).Error("handwriting classifier failed, treating region as printed")
		return false
	}
	return p > l.threshold
}

// Close releases the model session.
func (l *Learned) Close() error {
	if l.session == nil {
		return nil
	}
	return l.session.Close()
}

// LearnedClassifier is the part of Learned the router needs.
type LearnedClassifier interface {
	IsHandwritten(img image.Image) bool
}

// Router combines the heuristic with the learned classifier. Learned is only
// called when the mode needs it, so the model is never loaded otherwise.
type Router struct {
	Mode      string
	Heuristic Heuristic
	Learned   func() (LearnedClassifier, error)
	Log       *logger.Logger
}

// IsHandwritten routes img. The error is non-nil only when the learned
// classifier was needed and could not be constructed.
func (r Router) IsHandwritten(img image.Image) (bool, error) {
	log := r.Log
	if log == nil {
		log = logger.Get()
	}

	learned := func() (bool, error) {
		if r.Learned == nil {
			return false, fmt.Errorf("routing mode %s needs a learned classifier", r.Mode)
		}
		c, err := r.Learned()
		if err != nil {
			return false, err
		}
		return c.IsHandwritten(img), nil
	}

	if r.Mode == RouteLearned {
		return learned()
	}

	hit, stats, err := r.Heuristic.Check(img)
	if err != nil {
		log.WithError(err).Warn("handwriting heuristic failed, treating region as printed")
		hit = false
	} else {
		log.Debugw("handwriting heuristic", "edge_density", stats.EdgeDensity, "stddev", stats.StdDev, "hit", hit)
	}

	switch r.Mode {
	case RouteHeuristic:
		return hit, nil
	case RouteEither:
		if hit {
			return true, nil
		}
		return learned()
	default:
		if !hit {
			return false, nil
		}
		return learned()
	}
}
