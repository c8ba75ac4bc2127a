// Package ollama talks to a local Ollama server to read field crops with a
// vision model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

const (
	DefaultEndpoint   = "http://localhost:11434"
	DefaultTimeout    = 2 * time.Minute
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama API error (status %d): %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may help.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the Ollama HTTP API.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	logger      *logger.Logger
	maxRetries  int
	retryDelay  time.Duration
	temperature float64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint sets the server base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) { c.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) { c.logger = log }
}

// WithRetries sets how often a failed request is retried and the first backoff delay.
func WithRetries(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithTemperature sets the sampling temperature sent with every generate call.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// NewClient creates a Client against DefaultEndpoint unless overridden.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.Get(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call sends one JSON request and decodes the answer into out. Transport
// failures and temporary API errors are retried with exponential backoff.
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	once := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode/100 != 2 {
			return decodeAPIError(resp.StatusCode, body)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
		return nil
	}

	err := retry.Do(once,
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debugw("Retrying Ollama request", "path", path, "attempt", n+1, "error", err)
		}),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("ollama %s: %w", path, err)
	}
	return nil
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var syntaxErr *json.SyntaxError
	return !errors.As(err, &syntaxErr)
}

func decodeAPIError(status int, body []byte) error {
	var e ErrorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: status, Message: msg}
}

// HealthCheck verifies the server answers on its root URL.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not accessible: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status: %d", resp.StatusCode)
	}
	return nil
}
