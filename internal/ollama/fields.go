package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
)

// OCRPrompt asks a vision model to read a single cropped form field.
const OCRPrompt = `This image is one field cropped from a scanned form or ticket.
Read the printed text in it exactly as written.
Return ONLY a JSON array with no additional text or explanation, one object per line of text:
- "text": the text of the line
- "bbox": bounding box as [x, y, width, height] in pixels from top-left origin
- "confidence": 0.0-1.0

Example format:
[
  {"text": "TKT-004213", "bbox": [4, 3, 120, 22], "confidence": 0.93}
]

If the field is blank, return an empty array: []`

// Generate runs one non-streaming completion.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req.Options == nil {
		req.Options = map[string]interface{}{}
	}
	if _, ok := req.Options["temperature"]; !ok {
		req.Options["temperature"] = c.temperature
	}
	var resp GenerateResponse
	if err := c.call(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ParseLines accepts a bare JSON array of lines, optionally inside a code
// fence, or an object wrapping it under "lines" or "words".
func ParseLines(content string) ([]OCRLine, error) {
	content = stripCodeFence(content)

	var lines []OCRLine
	if err := json.Unmarshal([]byte(content), &lines); err == nil {
		return lines, nil
	}

	var wrapped struct {
		Lines []OCRLine `json:"lines"`
		Words []OCRLine `json:"words"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse OCR response as array or object: %w", err)
	}
	if len(wrapped.Lines) > 0 {
		return wrapped.Lines, nil
	}
	return wrapped.Words, nil
}

func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

// EncodePNG returns img as base64 PNG, the form every vision API accepts.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
