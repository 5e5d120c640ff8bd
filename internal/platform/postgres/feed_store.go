package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/platform/logger"
	"github.com/linkhive/linkhive-api/internal/store"
)

// PostgresFeedStore implements the store.FeedStore interface using a
// PostgreSQL database as the storage backend.
type PostgresFeedStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFeedStore creates a new PostgreSQL implementation of the
// FeedStore interface.
func NewPostgresFeedStore(db store.DBTX, logger *slog.Logger) *PostgresFeedStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFeedStore{
		db:     db,
		logger: logger.With(slog.String("component", "feed_store")),
	}
}

// Ensure PostgresFeedStore implements store.FeedStore interface
var _ store.FeedStore = (*PostgresFeedStore)(nil)

// WithTx implements store.FeedStore.WithTx
func (s *PostgresFeedStore) WithTx(tx *sql.Tx) store.FeedStore {
	return &PostgresFeedStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.FeedStore.Upsert.
// Keyed by (user_id, feed_url); an empty incoming title or site URL never
// clobbers a stored value.
func (s *PostgresFeedStore) Upsert(ctx context.Context, feed *domain.Feed) (*domain.Feed, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO feeds (id, user_id, feed_url, site_url, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, feed_url) DO UPDATE SET
			site_url   = COALESCE(NULLIF(EXCLUDED.site_url, ''), feeds.site_url),
			title      = COALESCE(NULLIF(EXCLUDED.title, ''), feeds.title),
			updated_at = EXCLUDED.updated_at
		RETURNING id, user_id, feed_url, site_url, title, last_fetched_at, created_at, updated_at
	`

	result := &domain.Feed{}
	var lastFetchedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query,
		feed.ID,
		feed.UserID,
		feed.FeedURL,
		feed.SiteURL,
		feed.Title,
		time.Now().UTC(),
	).Scan(
		&result.ID,
		&result.UserID,
		&result.FeedURL,
		&result.SiteURL,
		&result.Title,
		&lastFetchedAt,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to upsert feed",
			"user_id", feed.UserID,
			"feed_url", feed.FeedURL,
			"error", err)
		return nil, store.NewStoreError("feed", "upsert", "database error", MapError(err))
	}

	if lastFetchedAt.Valid {
		result.LastFetchedAt = &lastFetchedAt.Time
	}

	return result, nil
}

// UpsertEntries implements store.FeedStore.UpsertEntries.
// Keyed by (feed_id, guid); a re-parsed entry updates in place.
func (s *PostgresFeedStore) UpsertEntries(ctx context.Context, entries []*domain.FeedEntry) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO feed_entries (id, feed_id, guid, link, title, published_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (feed_id, guid) DO UPDATE SET
			link         = EXCLUDED.link,
			title        = EXCLUDED.title,
			published_at = EXCLUDED.published_at
	`

	for _, entry := range entries {
		_, err := s.db.ExecContext(ctx, query,
			entry.ID,
			entry.FeedID,
			entry.GUID,
			entry.Link,
			entry.Title,
			entry.PublishedAt,
			entry.CreatedAt,
		)
		if err != nil {
			log.Error("failed to upsert feed entry",
				"feed_id", entry.FeedID,
				"guid", entry.GUID,
				"error", err)
			return store.NewStoreError("feed_entry", "upsert", "database error", MapError(err))
		}
	}

	return nil
}

// TouchFetched implements store.FeedStore.TouchFetched.
func (s *PostgresFeedStore) TouchFetched(ctx context.Context, feedID uuid.UUID, fetchedAt time.Time) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx,
		`UPDATE feeds SET last_fetched_at = $1, updated_at = $1 WHERE id = $2`,
		fetchedAt, feedID)
	if err != nil {
		log.Error("failed to record feed fetch",
			"feed_id", feedID,
			"error", err)
		return store.NewStoreError("feed", "touch_fetched", "database error", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrFeedNotFound)
}

// ListByUser implements store.FeedStore.ListByUser.
func (s *PostgresFeedStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Feed, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, feed_url, site_url, title, last_fetched_at, created_at, updated_at
		FROM feeds
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		log.Error("failed to list feeds",
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("feed", "list", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var feeds []*domain.Feed
	for rows.Next() {
		feed := &domain.Feed{}
		var lastFetchedAt sql.NullTime

		err := rows.Scan(
			&feed.ID,
			&feed.UserID,
			&feed.FeedURL,
			&feed.SiteURL,
			&feed.Title,
			&lastFetchedAt,
			&feed.CreatedAt,
			&feed.UpdatedAt,
		)
		if err != nil {
			return nil, store.NewStoreError("feed", "list", "failed to scan row", MapError(err))
		}

		if lastFetchedAt.Valid {
			feed.LastFetchedAt = &lastFetchedAt.Time
		}
		feeds = append(feeds, feed)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("feed", "list", "row iteration error", MapError(err))
	}

	return feeds, nil
}

// ListEntriesByUser implements store.FeedStore.ListEntriesByUser.
// Entries without a publish date sort after dated ones.
func (s *PostgresFeedStore) ListEntriesByUser(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.FeedEntry, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT e.id, e.feed_id, e.guid, e.link, e.title, e.published_at, e.created_at
		FROM feed_entries e
		JOIN feeds f ON f.id = e.feed_id
		WHERE f.user_id = $1
		ORDER BY e.published_at DESC NULLS LAST, e.created_at DESC, e.id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list feed entries",
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("feed_entry", "list", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.FeedEntry
	for rows.Next() {
		entry := &domain.FeedEntry{}
		var publishedAt sql.NullTime

		err := rows.Scan(
			&entry.ID,
			&entry.FeedID,
			&entry.GUID,
			&entry.Link,
			&entry.Title,
			&publishedAt,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, store.NewStoreError("feed_entry", "list", "failed to scan row", MapError(err))
		}

		if publishedAt.Valid {
			entry.PublishedAt = &publishedAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("feed_entry", "list", "row iteration error", MapError(err))
	}

	return entries, nil
}
