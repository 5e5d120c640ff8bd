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

// DescriptionGenerator produces a short description for a bookmark. This
// interface is the boundary between the worker and the LLM backend.
type DescriptionGenerator interface {
	Describe(ctx context.Context, bookmark *domain.Bookmark) (string, error)
}

// BookmarkReader is the slice of the reconciler needed to load a bookmark.
type BookmarkReader interface {
	GetBookmark(ctx context.Context, userID, id uuid.UUID) (*domain.Bookmark, error)
}

// DescribeHandler handles ADD_DESCRIPTION jobs: generate a description
// for an existing bookmark and merge it in.
type DescribeHandler struct {
	generator DescriptionGenerator
	reader    BookmarkReader
	saver     BookmarkSaver
	logger    *slog.Logger
}

// NewDescribeHandler creates a DescribeHandler.
func NewDescribeHandler(
	generator DescriptionGenerator,
	reader BookmarkReader,
	saver BookmarkSaver,
	logger *slog.Logger,
) *DescribeHandler {
	return &DescribeHandler{
		generator: generator,
		reader:    reader,
		saver:     saver,
		logger:    logger.With("handler", "describe"),
	}
}

// Handle generates and saves a description for the bookmark. A bookmark
// deleted between enqueue and execution surfaces as a not-found store
// error, which the dispatcher treats as terminal rather than retrying.
func (h *DescribeHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload queue.DescriptionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to decode description payload: %w", err)
	}

	bookmark, err := h.reader.GetBookmark(ctx, payload.UserID, payload.BookmarkID)
	if err != nil {
		return fmt.Errorf("failed to load bookmark for description: %w", err)
	}

	if bookmark.Description != "" {
		h.logger.DebugContext(ctx, "bookmark already described, skipping",
			"bookmark_id", bookmark.ID)
		return nil
	}

	description, err := h.generator.Describe(ctx, bookmark)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDescribe, err)
	}

	if _, err := h.saver.SaveBookmark(ctx, bookmark.UserID, bookmark.URL, domain.BookmarkFields{
		Description: &description,
	}, nil); err != nil {
		return fmt.Errorf("failed to save description: %w", err)
	}

	h.logger.InfoContext(ctx, "description generated",
		"bookmark_id", bookmark.ID,
		"length", len(description))
	return nil
}
