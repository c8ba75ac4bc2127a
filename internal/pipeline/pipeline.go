package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/platinummonkey/fieldscan/internal/geometry"
	"github.com/platinummonkey/fieldscan/internal/handwriting"
	"github.com/platinummonkey/fieldscan/internal/imaging"
	"github.com/platinummonkey/fieldscan/internal/layout"
	"github.com/platinummonkey/fieldscan/internal/logger"
)

// ArtifactSink persists a field crop and its thumbnail and returns the
// thumbnail path. name is "{short}_{page}".
type ArtifactSink interface {
	Save(outputDir, name string, region image.Image) (string, error)
}

// Options controls how general fields are routed.
type Options struct {
	// Handwriting enables the handwriting tiers. When false every general
	// field goes straight to printed OCR.
	Handwriting bool
	Routing     string
	Heuristic   handwriting.Heuristic
	// AuditAll persists every field crop, not only flagged ones.
	AuditAll bool
}

// Processor runs the field state machine over pages.
type Processor struct {
	opts   Options
	sink   ArtifactSink
	logger *logger.Logger
	now    func() time.Time
}

// NewProcessor creates a Processor. A nil sink disables crop persistence.
func NewProcessor(opts Options, sink ArtifactSink, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.Get()
	}
	if opts.Routing == "" {
		opts.Routing = handwriting.RouteBoth
	}
	if opts.Heuristic == (handwriting.Heuristic{}) {
		opts.Heuristic = handwriting.DefaultHeuristic
	}
	return &Processor{opts: opts, sink: sink, logger: log, now: time.Now}
}

// ProcessPage reads every field of task. Field failures become sentinel
// outcomes and issues; the returned error is non-nil only when a required
// backend could not be constructed, the page has no image, or ctx ended.
func (p *Processor) ProcessPage(ctx context.Context, b Backends, task PageTask) (*PageResult, error) {
	page := task.PageNumber()
	log := p.logger.WithPage(page)
	if task.Vendor != "" {
		log = log.WithVendor(task.Vendor)
	}
	if task.Image == nil {
		return nil, fmt.Errorf("page %d has no image", page)
	}

	log.Info("Processing page")
	start := p.now()
	result := newPageResult(page)

	for _, field := range task.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.processField(ctx, b, task, field, result, log.WithField(field.Name)); err != nil {
			return nil, fmt.Errorf("page %d field %s: %w", page, field.Name, err)
		}
	}

	elapsed := p.now().Sub(start)
	result.Timing = Timing{Page: page, DurationSeconds: roundDuration(elapsed)}
	log.WithFields("duration_seconds", result.Timing.DurationSeconds).Info("Finished page")
	return result, nil
}

func (p *Processor) processField(ctx context.Context, b Backends, task PageTask, field layout.ResolvedField, result *PageResult, log *logger.Logger) (fatal error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic while processing field", "panic", r)
			result.set(field.Name, Sentinel(GeneralError))
			result.issue(GeneralError, field.Name)
			fatal = nil
		}
	}()

	if field.Box == nil {
		log.Warn("Field missing box, skipping")
		result.issue(MissingBox, field.Name)
		return nil
	}

	bounds := task.Image.Bounds()
	box, ok := geometry.SanitizeBox(*field.Box, bounds.Dx(), bounds.Dy())
	if !ok {
		log.WithFields("box", field.Box.String()).Error("Invalid sanitized box")
		p.record(result, field.Name, sentinelResult(BoxInvalid))
		return nil
	}

	region := imaging.Crop(task.Image, box.Rect().Add(bounds.Min))
	if region == nil {
		log.Error("Cropped region is empty")
		p.record(result, field.Name, sentinelResult(RegionNone))
		return nil
	}

	pixels, err := imaging.Pixels(region)
	if err != nil {
		k := RegionArrayInvalid
		switch {
		case errors.Is(err, imaging.ErrUnsupportedImage):
			k = InvalidArrayType
		case errors.Is(err, imaging.ErrEmptyImage):
			k = EmptyArray
		}
		log.WithError(err).Error("Region could not be materialized")
		p.record(result, field.Name, sentinelResult(k))
		return nil
	}

	res, err := p.route(ctx, b, field.Name, pixels, log)
	if err != nil {
		return err
	}
	p.record(result, field.Name, res)

	if res.audit || p.opts.AuditAll || !res.outcome.Recognized() {
		p.persist(task, field, result, pixels, log)
	}
	return nil
}

func (p *Processor) route(ctx context.Context, b Backends, name string, region image.Image, log *logger.Logger) (fieldResult, error) {
	if IsTicketField(name) {
		return readTicket(ctx, b, region, log)
	}
	if !p.opts.Handwriting {
		return readPrinted(ctx, b, region, log)
	}

	router := handwriting.Router{
		Mode:      p.opts.Routing,
		Heuristic: p.opts.Heuristic,
		Learned:   b.LearnedClassifier,
		Log:       log,
	}
	handwritten, err := router.IsHandwritten(region)
	if err != nil {
		return fieldResult{}, err
	}
	if handwritten {
		return readHandwriting(b, region, log)
	}
	return readPrinted(ctx, b, region, log)
}

func (p *Processor) record(result *PageResult, field string, res fieldResult) {
	result.set(field, res.outcome)
	for _, k := range res.issues {
		result.issue(k, field)
	}
	if res.ticket {
		result.TicketIssue = TicketMarker
	}
}

func (p *Processor) persist(task PageTask, field layout.ResolvedField, result *PageResult, region image.Image, log *logger.Logger) {
	if p.sink == nil {
		return
	}
	short := field.ShortName()
	path, err := p.sink.Save(task.OutputDir, fmt.Sprintf("%s_%d", short, result.Page), region)
	if err != nil {
		log.WithError(err).Warn("Failed to save field crop")
		return
	}
	result.Thumbnails = append(result.Thumbnails, Thumbnail{Page: result.Page, Field: short, Path: path})
}
