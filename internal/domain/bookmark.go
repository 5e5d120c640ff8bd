package domain

import (
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Bookmark
var (
	ErrEmptyBookmarkID     = errors.New("bookmark ID cannot be empty")
	ErrEmptyBookmarkUserID = errors.New("bookmark user ID cannot be empty")
	ErrEmptyBookmarkURL    = errors.New("bookmark URL cannot be empty")
	ErrInvalidBookmarkURL  = errors.New("bookmark URL is not a valid absolute URL")
)

// Bookmark represents a saved link owned by a user. The pair (UserID, URL)
// is the natural key: repeated submissions of the same URL by the same user
// merge into one record.
type Bookmark struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	URL         string          `json:"url"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	Archived    bool            `json:"archived"`
	Tags        []*Tag          `json:"tags,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BookmarkFields carries the mergeable attributes of a bookmark upsert.
// A nil pointer means "leave the stored value unchanged"; a non-nil pointer
// wins over the stored value (last write wins per field).
type BookmarkFields struct {
	Title       *string
	Description *string
	Image       *string
	Metadata    json.RawMessage
	CategoryID  *uuid.UUID
}

// NewBookmark creates a new Bookmark with the given owner and URL.
// It generates a new UUID for the bookmark ID and sets the
// creation/update timestamps. Returns an error if validation fails.
func NewBookmark(userID uuid.UUID, rawURL string) (*Bookmark, error) {
	now := time.Now().UTC()
	bookmark := &Bookmark{
		ID:        uuid.New(),
		UserID:    userID,
		URL:       rawURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := bookmark.Validate(); err != nil {
		return nil, err
	}

	return bookmark, nil
}

// Validate checks if the Bookmark has valid data.
// Returns an error if any field fails validation.
func (b *Bookmark) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBookmarkID
	}

	if b.UserID == uuid.Nil {
		return ErrEmptyBookmarkUserID
	}

	if b.URL == "" {
		return ErrEmptyBookmarkURL
	}

	u, err := url.Parse(b.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidBookmarkURL
	}

	return nil
}

// Apply merges the given fields into the bookmark, last write wins per
// field, and bumps the UpdatedAt timestamp.
func (b *Bookmark) Apply(fields BookmarkFields) {
	if fields.Title != nil {
		b.Title = *fields.Title
	}
	if fields.Description != nil {
		b.Description = *fields.Description
	}
	if fields.Image != nil {
		b.Image = *fields.Image
	}
	if fields.Metadata != nil {
		b.Metadata = fields.Metadata
	}
	if fields.CategoryID != nil {
		b.CategoryID = fields.CategoryID
	}
	b.UpdatedAt = time.Now().UTC()
}
