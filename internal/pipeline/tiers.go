package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/platinummonkey/fieldscan/internal/backend"
	"github.com/platinummonkey/fieldscan/internal/handwriting"
	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ocr"
)

// Backends is the per-worker view of the recognition engines.
// *backend.Set implements it.
type Backends interface {
	Printed(ctx context.Context) (ocr.PrintedRecognizer, error)
	Handwriting() (backend.HandwritingReader, error)
	LearnedClassifier() (handwriting.LearnedClassifier, error)
	Template() (backend.TemplateMatcher, error)
}

// fieldResult is what one recognition tier decided for a field.
type fieldResult struct {
	outcome Outcome
	issues  []Kind
	ticket  bool // ticket number ended MISSING
	audit   bool // persist the crop
}

func sentinelResult(k Kind) fieldResult {
	return fieldResult{outcome: Sentinel(k), issues: []Kind{k}, audit: true}
}

// IsTicketField reports whether name designates a ticket-number field.
func IsTicketField(name string) bool {
	return strings.Contains(name, "ticket_number")
}

// readTicket reads a ticket number as printed text and falls back to the
// reference template when nothing was read. The returned error is non-nil
// only when a required backend could not be brought up.
func readTicket(ctx context.Context, b Backends, region image.Image, log *logger.Logger) (fieldResult, error) {
	rec, err := b.Printed(ctx)
	if err != nil {
		return fieldResult{}, err
	}

	res := fieldResult{audit: true}
	lines, err := rec.Recognize(ctx, region)
	if err != nil {
		log.WithError(err).Error("Printed OCR failed on ticket number, trying template match")
		res.issues = append(res.issues, OCRError)
	}
	if text := ocr.FirstText(lines); err == nil && text != "" {
		log.WithFields("value", text).Info("Found ticket number")
		res.outcome = Text(text)
		return res, nil
	}

	log.Warn("Ticket number missing, trying template match")
	matcher, err := b.Template()
	if errors.Is(err, ocr.ErrTemplateNotFound) {
		log.WithError(err).Error("Reference ticket template not found")
		res.outcome = Sentinel(Missing)
		res.issues = append(res.issues, TemplateNotFound)
		res.ticket = true
		return res, nil
	}
	if err != nil {
		return fieldResult{}, err
	}

	matched, score, err := matcher.Matches(region)
	switch {
	case err != nil:
		log.WithError(err).Error("Template match failed")
	case matched:
		log.WithFields("score", score).Info("Template match succeeded")
		res.outcome = Sentinel(TemplateMatch)
		return res, nil
	}

	log.WithFields("score", score).Error("Ticket number not found by OCR or template match")
	res.outcome = Sentinel(Missing)
	res.issues = append(res.issues, TicketMissing)
	res.ticket = true
	return res, nil
}

// readHandwriting runs the handwriting reader. Its outcome is final; an
// unreadable region does not fall back to printed OCR.
func readHandwriting(b Backends, region image.Image, log *logger.Logger) (fieldResult, error) {
	reader, err := b.Handwriting()
	if err != nil {
		return fieldResult{}, err
	}

	text, err := reader.Read(region)
	switch {
	case errors.Is(err, handwriting.ErrPrepare):
		log.WithError(err).Error("Region conversion failed for handwriting OCR")
		return sentinelResult(ConversionFailed), nil
	case err != nil:
		log.WithError(err).Error("Handwriting OCR failed")
		return sentinelResult(HandwritingError), nil
	case text == "":
		log.Warn("Handwriting OCR unreadable")
		return sentinelResult(HandwritingUnreadable), nil
	}

	log.WithFields("value", text).Info("Read handwritten field")
	return fieldResult{outcome: Text(text), audit: true}, nil
}

// readPrinted runs printed-text OCR and keeps the first line.
func readPrinted(ctx context.Context, b Backends, region image.Image, log *logger.Logger) (fieldResult, error) {
	rec, err := b.Printed(ctx)
	if err != nil {
		return fieldResult{}, err
	}

	lines, err := rec.Recognize(ctx, region)
	if err != nil {
		log.WithError(err).Error("Printed OCR failed")
		return sentinelResult(OCRError), nil
	}
	text := ocr.FirstText(lines)
	if text == "" {
		log.Warn("Printed OCR found no text")
		return sentinelResult(TextNotFound), nil
	}

	log.WithFields("value", text).Info("Read printed field")
	return fieldResult{outcome: Text(text)}, nil
}
