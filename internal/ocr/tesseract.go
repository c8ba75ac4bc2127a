package ocr

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

var (
	bboxPattern = regexp.MustCompile(`bbox\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)
	confPattern = regexp.MustCompile(`x_wconf\s+(\d+)`)
)

// TesseractRecognizer reads printed text with a Tesseract client it owns.
// Not safe for concurrent use; each worker builds its own.
type TesseractRecognizer struct {
	client    *gosseract.Client
	languages []string
	logger    *logger.Logger
}

// TesseractConfig holds configuration for the Tesseract backend
type TesseractConfig struct {
	Logger    *logger.Logger
	Languages []string // Tesseract language codes (default: ["eng"])
}

// NewTesseractRecognizer creates a Tesseract client configured for single-block field crops.
func NewTesseractRecognizer(cfg *TesseractConfig) (*TesseractRecognizer, error) {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	languages := cfg.Languages
	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &TesseractRecognizer{client: client, languages: languages, logger: log}, nil
}

// Recognize implements PrintedRecognizer.
func (t *TesseractRecognizer) Recognize(ctx context.Context, img image.Image) ([]TextResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image data: %w", err)
	}

	hocr, err := t.client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("failed to get HOCR text: %w", err)
	}

	lines, err := ParseHOCR(hocr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HOCR: %w", err)
	}
	t.logger.Debugw("tesseract read region", "lines", len(lines))
	return lines, nil
}

// Name implements PrintedRecognizer.
func (t *TesseractRecognizer) Name() string {
	return "tesseract"
}

// Close implements PrintedRecognizer.
func (t *TesseractRecognizer) Close() error {
	return t.client.Close()
}

// ParseHOCR extracts line-level results from Tesseract HOCR output. Line
// confidence is the mean of its word confidences, scaled to [0,1].
func ParseHOCR(hocrText string) ([]TextResult, error) {
	var page hocrPage
	if err := xml.Unmarshal([]byte(hocrText), &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal HOCR XML: %w", err)
	}

	var results []TextResult
	for _, pageDiv := range page.Body.Pages {
		for _, area := range pageDiv.Areas {
			for _, par := range area.Pars {
				for _, line := range par.Lines {
					if r, ok := lineResult(line); ok {
						results = append(results, r)
					}
				}
			}
		}
	}
	return results, nil
}

func lineResult(line hocrLine) (TextResult, bool) {
	var words []string
	total := 0.0
	for _, w := range line.Words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		words = append(words, text)
		total += extractConfidence(w.Title)
	}
	if len(words) == 0 {
		return TextResult{}, false
	}

	r := TextResult{
		Text:       strings.Join(words, " "),
		Confidence: total / float64(len(words)) / 100,
	}
	if bbox := extractBBox(line.Title); len(bbox) == 4 {
		r.Box = NewRectangle(bbox[0], bbox[1], bbox[2]-bbox[0], bbox[3]-bbox[1])
	}
	return r, true
}

// extractBBox reads "bbox x0 y0 x1 y1" from an HOCR title attribute.
func extractBBox(title string) []int {
	matches := bboxPattern.FindStringSubmatch(title)
	if len(matches) != 5 {
		return nil
	}
	bbox := make([]int, 4)
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return nil
		}
		bbox[i] = val
	}
	return bbox
}

// extractConfidence reads "x_wconf N" from an HOCR title attribute.
func extractConfidence(title string) float64 {
	matches := confPattern.FindStringSubmatch(title)
	if len(matches) != 2 {
		return 0.0
	}
	conf, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0.0
	}
	return conf
}

type hocrPage struct {
	XMLName xml.Name `xml:"html"`
	Body    hocrBody `xml:"body"`
}

type hocrBody struct {
	Pages []hocrPageDiv `xml:"div"`
}

type hocrPageDiv struct {
	Title string     `xml:"title,attr"`
	Areas []hocrArea `xml:"div"`
}

type hocrArea struct {
	Pars []hocrPar `xml:"p"`
}

type hocrPar struct {
	Lines []hocrLine `xml:"span"`
}

type hocrLine struct {
	Title string     `xml:"title,attr"`
	Words []hocrWord `xml:"span"`
}

type hocrWord struct {
	Title string `xml:"title,attr"`
	Text  string `xml:",chardata"`
}
