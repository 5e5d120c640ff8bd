package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
)

// BookmarkStore defines the interface for bookmark data persistence.
type BookmarkStore interface {
	// Upsert creates or merges a bookmark keyed by (UserID, URL) in a
	// single atomic statement. Absent (nil) fields leave stored values
	// unchanged; present fields win. Returns the resulting record.
	// This must never be implemented as a read-then-write pair.
	Upsert(
		ctx context.Context,
		userID uuid.UUID,
		url string,
		fields domain.BookmarkFields,
	) (*domain.Bookmark, error)

	// GetByID retrieves a bookmark by its unique ID, scoped to the owner.
	// Returns ErrBookmarkNotFound if the bookmark does not exist or is
	// owned by a different user.
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Bookmark, error)

	// List returns the user's non-archived bookmarks with their tags,
	// newest first.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bookmark, error)

	// Delete removes a bookmark by ID only if it is owned by userID.
	// Returns ErrBookmarkNotFound otherwise, whether the record is missing
	// or owned by someone else.
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// WithTx returns a new BookmarkStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	WithTx(tx *sql.Tx) BookmarkStore
}

// TagStore defines the interface for tag data persistence.
type TagStore interface {
	// Upsert creates or returns the tag keyed by (UserID, Name) in a
	// single atomic statement.
	Upsert(ctx context.Context, userID uuid.UUID, name string) (*domain.Tag, error)

	// Link upserts the bookmark-tag join row. Linking an already-linked
	// pair is a no-op, not an error.
	Link(ctx context.Context, bookmarkID, tagID uuid.UUID) error

	// ListByBookmark returns the tags attached to a bookmark.
	ListByBookmark(ctx context.Context, bookmarkID uuid.UUID) ([]*domain.Tag, error)

	// WithTx returns a new TagStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TagStore
}
