package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/linkhive/linkhive-api/internal/handler"
)

// MetadataClient talks to the link metadata resolver service.
type MetadataClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewMetadataClient creates a MetadataClient for the given service URL.
func NewMetadataClient(baseURL string, client *http.Client, logger *slog.Logger) *MetadataClient {
	return &MetadataClient{
		baseURL: baseURL,
		client:  client,
		logger:  logger.With("component", "metadata_client"),
	}
}

type metadataResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Resolve fetches page metadata for the URL. The raw response body is
// preserved alongside the parsed fields so unrecognized attributes are
// not lost.
func (c *MetadataClient) Resolve(ctx context.Context, pageURL string) (*handler.LinkMetadata, error) {
	endpoint := fmt.Sprintf("%s?url=%s", c.baseURL, url.QueryEscape(pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build metadata request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata response: %w", err)
	}

	var decoded metadataResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode metadata response: %w", err)
	}

	c.logger.DebugContext(ctx, "metadata resolved",
		"url", pageURL,
		"has_title", decoded.Title != "")

	return &handler.LinkMetadata{
		Title:       decoded.Title,
		Description: decoded.Description,
		Image:       decoded.Image,
		Raw:         json.RawMessage(raw),
	}, nil
}
