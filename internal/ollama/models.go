package ollama

import (
	"context"
	"net/http"
	"strings"
)

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var resp ListModelsResponse
	if err := c.call(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// HasModel reports whether name is installed. A bare name matches its
// ":latest" tag.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.Name == name || (!strings.Contains(name, ":") && m.Name == name+":latest") {
			return true, nil
		}
	}
	return false, nil
}

// PullModel downloads name and waits for the pull to finish.
func (c *Client) PullModel(ctx context.Context, name string) error {
	var resp PullResponse
	if err := c.call(ctx, http.MethodPost, "/api/pull", &PullRequest{Name: name}, &resp); err != nil {
		return err
	}
	c.logger.Infow("Model pulled", "model", name, "status", resp.Status)
	return nil
}

// EnsureModel checks the server is up and pulls name when it is missing.
func (c *Client) EnsureModel(ctx context.Context, name string) error {
	if err := c.HealthCheck(ctx); err != nil {
		return err
	}
	ok, err := c.HasModel(ctx, name)
	if err != nil || ok {
		return err
	}
	c.logger.Infow("Model not installed, pulling", "model", name)
	return c.PullModel(ctx, name)
}
