package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrServiceUnavailable indicates the enrichment service returned a
// non-success status.
var ErrServiceUnavailable = errors.New("enrichment service unavailable")

// ScreenshotClient talks to the screenshot rendering service. The service
// derives a stable artifact key from the page URL, so capturing the same
// page twice overwrites one image.
type ScreenshotClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewScreenshotClient creates a ScreenshotClient for the given service URL.
func NewScreenshotClient(baseURL string, client *http.Client, logger *slog.Logger) *ScreenshotClient {
	return &ScreenshotClient{
		baseURL: baseURL,
		client:  client,
		logger:  logger.With("component", "screenshot_client"),
	}
}

type captureRequest struct {
	URL string `json:"url"`
}

type captureResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Capture asks the service to render the page and returns the image URL.
func (c *ScreenshotClient) Capture(ctx context.Context, pageURL string) (string, error) {
	body, err := json.Marshal(captureRequest{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal capture request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("capture request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	var decoded captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode capture response: %w", err)
	}

	if decoded.ImageURL == "" {
		return "", fmt.Errorf("%w: empty image URL in response", ErrServiceUnavailable)
	}

	c.logger.DebugContext(ctx, "page captured", "url", pageURL, "image", decoded.ImageURL)
	return decoded.ImageURL, nil
}
