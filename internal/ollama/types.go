package ollama

import "time"

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Images  []string               `json:"images,omitempty"` // base64
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// GenerateResponse is a non-streaming generate answer.
type GenerateResponse struct {
	Model     string    `json:"model"`
	Response  string    `json:"response"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// OCRLine is one line of text a vision model read from a field crop.
type OCRLine struct {
	Text       string    `json:"text"`
	BBox       []float64 `json:"bbox"` // [x, y, width, height]
	Confidence float64   `json:"confidence,omitempty"`
}

// Model is an installed model.
type Model struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}

// ListModelsResponse is the body of GET /api/tags.
type ListModelsResponse struct {
	Models []Model `json:"models"`
}

// PullRequest is the body of POST /api/pull.
type PullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

// PullResponse is a non-streaming pull answer.
type PullResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
