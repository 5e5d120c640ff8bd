package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
)

// FeedStore defines the interface for feed and feed entry persistence.
type FeedStore interface {
	// Upsert creates or merges a feed keyed by (UserID, FeedURL) in a
	// single atomic statement and returns the resulting record.
	Upsert(ctx context.Context, feed *domain.Feed) (*domain.Feed, error)

	// UpsertEntries upserts the given entries keyed by (FeedID, GUID).
	// Re-parsed entries update in place rather than duplicating.
	UpsertEntries(ctx context.Context, entries []*domain.FeedEntry) error

	// TouchFetched records a successful fetch time on the feed.
	TouchFetched(ctx context.Context, feedID uuid.UUID, fetchedAt time.Time) error

	// ListByUser returns the user's feeds, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Feed, error)

	// ListEntriesByUser returns entries across all of the user's feeds,
	// most recently published first.
	ListEntriesByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.FeedEntry, error)

	// WithTx returns a new FeedStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) FeedStore
}
