// Package pipeline reads every configured field on one page image and
// records an outcome or an issue for each of them.
package pipeline

import (
	"image"
	"time"

	"github.com/platinummonkey/fieldscan/internal/layout"
)

// Kind names a sentinel outcome or an issue. The two share one vocabulary.
type Kind string

const (
	MissingBox            Kind = "MISSING_BOX"
	BoxInvalid            Kind = "BOX_INVALID"
	RegionNone            Kind = "REGION_NONE"
	RegionArrayInvalid    Kind = "REGION_ARRAY_INVALID"
	InvalidArrayType      Kind = "INVALID_ARRAY_TYPE"
	EmptyArray            Kind = "EMPTY_ARRAY"
	ConversionFailed      Kind = "CVTCOLOR_FAIL"
	Missing               Kind = "MISSING"
	TemplateMatch         Kind = "TemplateMatch"
	TicketMissing         Kind = "TICKET_MISSING"
	TemplateNotFound      Kind = "TEMPLATE_NOT_FOUND"
	HandwritingUnreadable Kind = "HANDWRITING_UNREADABLE"
	HandwritingError      Kind = "HANDWRITING_ERROR"
	TextNotFound          Kind = "TEXT_NOT_FOUND"
	OCRError              Kind = "OCR_ERROR"
	GeneralError          Kind = "GENERAL_ERROR"
	PageFailed            Kind = "PAGE_FAILED"
)

// TicketMarker is the page-level ticket issue value.
const TicketMarker = "MISSING"

// PageTask is one page of work. It is not modified once scheduled; Fields is
// shared read-only between concurrent tasks.
type PageTask struct {
	PageIndex int
	Image     image.Image
	Fields    []layout.ResolvedField
	OutputDir string
	Vendor    string
	Date      string
}

// PageNumber is the 1-based page number.
func (t PageTask) PageNumber() int {
	return t.PageIndex + 1
}

// Outcome is the recorded value for one field: recognized text, or a
// sentinel Kind when Text is empty.
type Outcome struct {
	Text string
	Kind Kind
}

// Text returns an outcome carrying recognized text.
func Text(s string) Outcome {
	return Outcome{Text: s}
}

// Sentinel returns an outcome carrying a sentinel.
func Sentinel(k Kind) Outcome {
	return Outcome{Kind: k}
}

// Recognized reports whether the outcome is real text.
func (o Outcome) Recognized() bool {
	return o.Kind == ""
}

func (o Outcome) String() string {
	if o.Kind != "" {
		return string(o.Kind)
	}
	return o.Text
}

// Issue records a deviation from the happy path for one field.
type Issue struct {
	Page  int
	Kind  Kind
	Field string
}

// Thumbnail points at a persisted field crop.
type Thumbnail struct {
	Page  int
	Field string
	Path  string
}

// Timing is the wall-clock duration of one page, rounded to 0.01s.
type Timing struct {
	Page            int
	DurationSeconds float64
}

// PageResult is everything one pipeline invocation produced.
type PageResult struct {
	Page        int
	Outcomes    map[string]Outcome
	Order       []string // field names with an outcome, in config order
	TicketIssue string
	Issues      []Issue
	Thumbnails  []Thumbnail
	Timing      Timing
}

func newPageResult(page int) *PageResult {
	return &PageResult{Page: page, Outcomes: make(map[string]Outcome)}
}

// Value returns the outcome string for field, or "" when it has none.
func (r *PageResult) Value(field string) string {
	if o, ok := r.Outcomes[field]; ok {
		return o.String()
	}
	return ""
}

func (r *PageResult) set(field string, o Outcome) {
	if _, ok := r.Outcomes[field]; !ok {
		r.Order = append(r.Order, field)
	}
	r.Outcomes[field] = o
}

func (r *PageResult) issue(k Kind, field string) {
	r.Issues = append(r.Issues, Issue{Page: r.Page, Kind: k, Field: field})
}

func roundDuration(d time.Duration) float64 {
	return float64(int64(d.Seconds()*100+0.5)) / 100
}
