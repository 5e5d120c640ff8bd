package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// FeedSaver is the slice of the reconciler the feed handler needs.
type FeedSaver interface {
	SaveFeed(ctx context.Context, feed *domain.Feed) (*domain.Feed, error)
	SaveFeedEntries(ctx context.Context, feedID uuid.UUID, entries []*domain.FeedEntry, fetchedAt time.Time) error
}

// FeedHandler handles ADD_FEED jobs: fetch the feed document, parse it,
// and upsert the feed with its entries. Concurrent jobs for the same feed
// URL are serialized by SerializationKey so two fetches never interleave
// their entry writes.
type FeedHandler struct {
	client *http.Client
	parser *gofeed.Parser
	saver  FeedSaver
	logger *slog.Logger
	now    func() time.Time
}

// NewFeedHandler creates a FeedHandler using the given HTTP client for
// fetches.
func NewFeedHandler(client *http.Client, saver FeedSaver, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		client: client,
		parser: gofeed.NewParser(),
		saver:  saver,
		logger: logger.With("handler", "feed"),
		now:    time.Now,
	}
}

// SerializationKey serializes feed jobs per feed URL.
func (h *FeedHandler) SerializationKey(data json.RawMessage) string {
	var payload queue.FeedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return "feed:" + payload.FeedURL
}

// Handle fetches and parses the feed, then upserts the feed record and
// its entries. Refetching an unchanged feed is a no-op at the row level.
func (h *FeedHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload queue.FeedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode feed payload: %w", err)
	}

	parsed, err := h.fetch(ctx, payload.FeedURL)
	if err != nil {
		return err
	}

	feed := &domain.Feed{
		ID:        uuid.New(),
		UserID:    payload.UserID,
		FeedURL:   payload.FeedURL,
		SiteURL:   parsed.Link,
		Title:     parsed.Title,
		CreatedAt: h.now().UTC(),
		UpdatedAt: h.now().UTC(),
	}

	saved, err := h.saver.SaveFeed(ctx, feed)
	if err != nil {
		return fmt.Errorf("failed to save feed: %w", err)
	}

	entries := make([]*domain.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		entry := &domain.FeedEntry{
			ID:          uuid.New(),
			FeedID:      saved.ID,
			GUID:        guid,
			Link:        item.Link,
			Title:       item.Title,
			PublishedAt: item.PublishedParsed,
			CreatedAt:   h.now().UTC(),
		}
		entries = append(entries, entry)
	}

	if err := h.saver.SaveFeedEntries(ctx, saved.ID, entries, h.now().UTC()); err != nil {
		return fmt.Errorf("failed to save feed entries: %w", err)
	}

	h.logger.InfoContext(ctx, "feed reconciled",
		"feed_id", saved.ID,
		"feed_url", payload.FeedURL,
		"entry_count", len(entries))
	return nil
}

// fetch retrieves and parses the feed document, separating transport
// failures (ErrFetch) from malformed documents (ErrParse).
func (h *FeedHandler) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", "linkhive/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrFetch, resp.StatusCode, feedURL)
	}

	parsed, err := h.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	return parsed, nil
}
