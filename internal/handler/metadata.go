package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/events"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// LinkMetadata is what the metadata resolver knows about a page.
type LinkMetadata struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// MetadataResolver resolves page metadata for a URL.
type MetadataResolver interface {
	Resolve(ctx context.Context, pageURL string) (*LinkMetadata, error)
}

// MetadataHandler handles ADD_METADATA jobs: resolve page metadata and
// merge it with the user-supplied fields into the bookmark. Resolver
// failure degrades gracefully: the bookmark is still saved with whatever
// the user supplied, and the job succeeds.
type MetadataHandler struct {
	resolver MetadataResolver
	saver    BookmarkSaver
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// NewMetadataHandler creates a MetadataHandler. The emitter is used to
// chain an ADD_DESCRIPTION job once the bookmark exists; a nil emitter
// disables chaining entirely, for deployments without a description
// generator.
func NewMetadataHandler(
	resolver MetadataResolver,
	saver BookmarkSaver,
	emitter events.EventEmitter,
	logger *slog.Logger,
) *MetadataHandler {
	return &MetadataHandler{
		resolver: resolver,
		saver:    saver,
		emitter:  emitter,
		logger:   logger.With("handler", "metadata"),
	}
}

// Handle resolves metadata and saves the bookmark. User-supplied fields
// win over resolved ones; resolved values only fill the gaps.
func (h *MetadataHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload queue.MetadataPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode metadata payload: %w", err)
	}

	fields := domain.BookmarkFields{}
	if payload.Title != "" {
		fields.Title = &payload.Title
	}
	if payload.Description != "" {
		fields.Description = &payload.Description
	}

	meta, resolveErr := h.resolver.Resolve(ctx, payload.URL)
	if resolveErr != nil {
		// Degrade to a bare bookmark rather than failing the job. The
		// user's submission must survive a flaky resolver.
		h.logger.WarnContext(ctx, "metadata resolution failed, saving bare bookmark",
			"url", payload.URL,
			"error", resolveErr)
	} else {
		if fields.Title == nil && meta.Title != "" {
			fields.Title = &meta.Title
		}
		if fields.Description == nil && meta.Description != "" {
			fields.Description = &meta.Description
		}
		if meta.Image != "" {
			fields.Image = &meta.Image
		}
		if len(meta.Raw) > 0 {
			fields.Metadata = meta.Raw
		}
	}

	bookmark, err := h.saver.SaveBookmark(ctx, payload.UserID, payload.URL, fields, payload.Tags)
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}

	h.logger.InfoContext(ctx, "metadata reconciled",
		"bookmark_id", bookmark.ID,
		"user_id", payload.UserID,
		"resolved", resolveErr == nil)

	if h.emitter != nil && bookmark.Description == "" {
		h.emitDescriptionRequest(ctx, bookmark)
	}

	return nil
}

// emitDescriptionRequest chains an ADD_DESCRIPTION job for the saved
// bookmark. Emission failure is logged, not returned: the bookmark is
// already persisted and the description is best effort.
func (h *MetadataHandler) emitDescriptionRequest(ctx context.Context, bookmark *domain.Bookmark) {
	event, err := events.NewJobRequestEvent(string(queue.ActionAddDescription), queue.DescriptionPayload{
		BookmarkID: bookmark.ID,
		UserID:     bookmark.UserID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build description request event",
			"bookmark_id", bookmark.ID,
			"error", err)
		return
	}

	if err := h.emitter.EmitEvent(ctx, event); err != nil {
		h.logger.WarnContext(ctx, "failed to emit description request",
			"bookmark_id", bookmark.ID,
			"error", err)
	}
}
