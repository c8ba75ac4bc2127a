package ocr

import (
	"errors"
	"fmt"
	"image"

	"github.com/platinummonkey/fieldscan/internal/imaging"
	"github.com/platinummonkey/fieldscan/internal/layout"
)

// DefaultTemplateThreshold is the minimum normalized correlation that counts as a match.
const DefaultTemplateThreshold = 0.7

// ErrTemplateNotFound is returned when the reference template is absent from the templates directory.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateMatcher compares regions against a reference ticket image.
type TemplateMatcher struct {
	path      string
	template  *image.Gray
	threshold float64
}

// NewTemplateMatcher locates name inside dir (case-insensitively) and loads it.
func NewTemplateMatcher(dir, name string, threshold float64) (*TemplateMatcher, error) {
	path := layout.FindFileCaseInsensitive(name, dir)
	if path == "" {
		return nil, fmt.Errorf("%w: %s in %s", ErrTemplateNotFound, name, dir)
	}
	tmpl, err := imaging.LoadGray(path)
	if err != nil {
		return nil, err
	}
	return NewTemplateMatcherFromImage(path, tmpl, threshold), nil
}

// NewTemplateMatcherFromImage uses an already-loaded template.
func NewTemplateMatcherFromImage(path string, tmpl *image.Gray, threshold float64) *TemplateMatcher {
	if threshold <= 0 {
		threshold = DefaultTemplateThreshold
	}
	return &TemplateMatcher{path: path, template: tmpl, threshold: threshold}
}

// Score returns the best correlation of the template anywhere inside region.
func (m *TemplateMatcher) Score(region image.Image) (float64, error) {
	match, err := imaging.MatchTemplate(imaging.ToGray(region), m.template)
	if err != nil {
		return 0, err
	}
	return match.Score, nil
}

// Matches reports whether region scores at or above the threshold.
func (m *TemplateMatcher) Matches(region image.Image) (bool, float64, error) {
	score, err := m.Score(region)
	if err != nil {
		return false, 0, err
	}
	return score >= m.threshold, score, nil
}

// Path returns the template file in use.
func (m *TemplateMatcher) Path() string {
	return m.path
}

// Close implements io.Closer so the matcher can live in a backend set.
func (m *TemplateMatcher) Close() error {
	return nil
}
