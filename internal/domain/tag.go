package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Tag
var (
	ErrEmptyTagID     = errors.New("tag ID cannot be empty")
	ErrEmptyTagUserID = errors.New("tag user ID cannot be empty")
	ErrEmptyTagName   = errors.New("tag name cannot be empty")
)

// Tag is a user-scoped label attached to bookmarks. The pair
// (UserID, Name) is the natural key.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTag creates a new Tag with the given owner and name. Names are
// trimmed; an all-whitespace name fails validation.
func NewTag(userID uuid.UUID, name string) (*Tag, error) {
	tag := &Tag{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}

	if err := tag.Validate(); err != nil {
		return nil, err
	}

	return tag, nil
}

// Validate checks if the Tag has valid data.
func (t *Tag) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTagID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTagUserID
	}

	if t.Name == "" {
		return ErrEmptyTagName
	}

	return nil
}

// NormalizeTagNames trims and deduplicates tag names, preserving first
// occurrence order. Case is preserved; deduplication is case-insensitive
// so "News" and "news" collapse to one tag.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	normalized := make([]string, 0, len(names))

	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, trimmed)
	}

	return normalized
}
