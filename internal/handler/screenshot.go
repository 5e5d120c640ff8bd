package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// CaptureClient produces a screenshot image for a page URL. The returned
// image URL must be deterministic for a given page so that retried or
// duplicated capture jobs overwrite one artifact instead of accumulating.
type CaptureClient interface {
	Capture(ctx context.Context, pageURL string) (string, error)
}

// BookmarkSaver is the slice of the reconciler the worker handlers need
// to persist bookmark state.
type BookmarkSaver interface {
	SaveBookmark(
		ctx context.Context,
		userID uuid.UUID,
		url string,
		fields domain.BookmarkFields,
		tagNames []string,
	) (*domain.Bookmark, error)
}

// ScreenshotHandler handles ADD_SCREENSHOT jobs: capture an image of the
// page and merge it onto the bookmark for (user, url).
type ScreenshotHandler struct {
	capture CaptureClient
	saver   BookmarkSaver
	logger  *slog.Logger
}

// NewScreenshotHandler creates a ScreenshotHandler.
func NewScreenshotHandler(capture CaptureClient, saver BookmarkSaver, logger *slog.Logger) *ScreenshotHandler {
	return &ScreenshotHandler{
		capture: capture,
		saver:   saver,
		logger:  logger.With("handler", "screenshot"),
	}
}

// Handle captures a screenshot and records it on the bookmark.
func (h *ScreenshotHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload queue.ScreenshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode screenshot payload: %w", err)
	}

	imageURL, err := h.capture.Capture(ctx, payload.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCapture, err)
	}

	bookmark, err := h.saver.SaveBookmark(ctx, payload.UserID, payload.URL, domain.BookmarkFields{
		Image: &imageURL,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to save screenshot on bookmark: %w", err)
	}

	h.logger.InfoContext(ctx, "screenshot captured",
		"bookmark_id", bookmark.ID,
		"user_id", payload.UserID,
		"image", imageURL)
	return nil
}
