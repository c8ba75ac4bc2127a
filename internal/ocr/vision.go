package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/platinummonkey/fieldscan/internal/logger"
	"github.com/platinummonkey/fieldscan/internal/ollama"
)

// VisionRecognizer reads printed text by sending the region to a vision LLM.
type VisionRecognizer struct {
	client VisionClient
	model  string
	logger *logger.Logger
}

// NewVisionRecognizer wraps client. An empty model falls back to the
// provider default.
func NewVisionRecognizer(client VisionClient, model string, log *logger.Logger) *VisionRecognizer {
	if log == nil {
		log = logger.Get()
	}
	if model == "" {
		model = GetDefaultModelForProvider(ProviderType(client.Name()))
	}
	return &VisionRecognizer{client: client, model: model, logger: log}
}

// Recognize implements PrintedRecognizer.
func (v *VisionRecognizer) Recognize(ctx context.Context, img image.Image) ([]TextResult, error) {
	data, err := ollama.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	reply, err := v.client.Complete(ctx, v.model, ollama.OCRPrompt, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.client.Name(), err)
	}

	lines, err := ollama.ParseLines(reply)
	if err != nil {
		v.logger.Debugw("Unparseable vision reply", "provider", v.client.Name(), "model", v.model, "reply", reply)
		return nil, fmt.Errorf("%s: %w", v.client.Name(), err)
	}

	results := make([]TextResult, 0, len(lines))
	for _, l := range lines {
		r := TextResult{Text: l.Text, Confidence: l.Confidence}
		if len(l.BBox) == 4 {
			r.Box = NewRectangle(int(l.BBox[0]), int(l.BBox[1]), int(l.BBox[2]), int(l.BBox[3]))
		}
		results = append(results, r)
	}
	return results, nil
}

// Name implements PrintedRecognizer.
func (v *VisionRecognizer) Name() string {
	return v.client.Name() + ":" + v.model
}

// Close implements PrintedRecognizer.
func (v *VisionRecognizer) Close() error {
	return v.client.Close()
}
