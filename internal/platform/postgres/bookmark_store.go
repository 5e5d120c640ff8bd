package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/platform/logger"
	"github.com/linkhive/linkhive-api/internal/store"
)

// PostgresBookmarkStore implements the store.BookmarkStore interface
// using a PostgreSQL database as the storage backend.
type PostgresBookmarkStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBookmarkStore creates a new PostgreSQL implementation of the
// BookmarkStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
func NewPostgresBookmarkStore(db store.DBTX, logger *slog.Logger) *PostgresBookmarkStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBookmarkStore{
		db:     db,
		logger: logger.With(slog.String("component", "bookmark_store")),
	}
}

// Ensure PostgresBookmarkStore implements store.BookmarkStore interface
var _ store.BookmarkStore = (*PostgresBookmarkStore)(nil)

// WithTx implements store.BookmarkStore.WithTx
func (s *PostgresBookmarkStore) WithTx(tx *sql.Tx) store.BookmarkStore {
	return &PostgresBookmarkStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.BookmarkStore.Upsert.
// One INSERT ... ON CONFLICT DO UPDATE keyed by (user_id, url): a nil
// field leaves the stored column as is via COALESCE, a non-nil field wins.
func (s *PostgresBookmarkStore) Upsert(
	ctx context.Context,
	userID uuid.UUID,
	url string,
	fields domain.BookmarkFields,
) (*domain.Bookmark, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO bookmarks (id, user_id, url, title, description, image, metadata, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''), $7, $8, $9, $9)
		ON CONFLICT (user_id, url) DO UPDATE SET
			title       = COALESCE($4, bookmarks.title),
			description = COALESCE($5, bookmarks.description),
			image       = COALESCE($6, bookmarks.image),
			metadata    = COALESCE($7, bookmarks.metadata),
			category_id = COALESCE($8, bookmarks.category_id),
			updated_at  = $9
		RETURNING id, user_id, url, title, description, image, metadata, category_id, archived, created_at, updated_at
	`

	var metadata []byte
	if len(fields.Metadata) > 0 {
		metadata = fields.Metadata
	}

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, query,
		uuid.New(),
		userID,
		url,
		fields.Title,
		fields.Description,
		fields.Image,
		metadata,
		fields.CategoryID,
		now,
	)

	bookmark, err := scanBookmark(row)
	if err != nil {
		log.Error("failed to upsert bookmark",
			"user_id", userID,
			"url", url,
			"error", err)
		return nil, store.NewStoreError("bookmark", "upsert", "database error", MapError(err))
	}

	return bookmark, nil
}

// GetByID implements store.BookmarkStore.GetByID.
// Returns store.ErrBookmarkNotFound whether the record is missing or owned
// by a different user.
func (s *PostgresBookmarkStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, url, title, description, image, metadata, category_id, archived, created_at, updated_at
		FROM bookmarks
		WHERE id = $1 AND user_id = $2
	`

	bookmark, err := scanBookmark(s.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrBookmarkNotFound
		}
		log.Error("failed to get bookmark",
			"bookmark_id", id,
			"error", err)
		return nil, store.NewStoreError("bookmark", "get", "database error", MapError(err))
	}

	tags, err := s.loadTags(ctx, bookmark.ID)
	if err != nil {
		return nil, err
	}
	bookmark.Tags = tags

	return bookmark, nil
}

// List implements store.BookmarkStore.List.
func (s *PostgresBookmarkStore) List(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.Bookmark, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, user_id, url, title, description, image, metadata, category_id, archived, created_at, updated_at
		FROM bookmarks
		WHERE user_id = $1 AND archived = FALSE
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		log.Error("failed to list bookmarks",
			"user_id", userID,
			"error", err)
		return nil, store.NewStoreError("bookmark", "list", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var bookmarks []*domain.Bookmark
	for rows.Next() {
		bookmark, err := scanBookmark(rows)
		if err != nil {
			return nil, store.NewStoreError("bookmark", "list", "failed to scan row", MapError(err))
		}
		bookmarks = append(bookmarks, bookmark)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("bookmark", "list", "row iteration error", MapError(err))
	}

	for _, bookmark := range bookmarks {
		tags, err := s.loadTags(ctx, bookmark.ID)
		if err != nil {
			return nil, err
		}
		bookmark.Tags = tags
	}

	return bookmarks, nil
}

// Delete implements store.BookmarkStore.Delete.
func (s *PostgresBookmarkStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		log.Error("failed to delete bookmark",
			"bookmark_id", id,
			"error", err)
		return store.NewStoreError("bookmark", "delete", "database error", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrBookmarkNotFound)
}

// loadTags fetches the tags linked to one bookmark.
func (s *PostgresBookmarkStore) loadTags(ctx context.Context, bookmarkID uuid.UUID) ([]*domain.Tag, error) {
	query := `
		SELECT t.id, t.user_id, t.name, t.created_at
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_id = t.id
		WHERE bt.bookmark_id = $1
		ORDER BY t.name
	`

	rows, err := s.db.QueryContext(ctx, query, bookmarkID)
	if err != nil {
		return nil, store.NewStoreError("bookmark", "load_tags", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tags []*domain.Tag
	for rows.Next() {
		tag := &domain.Tag{}
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, store.NewStoreError("bookmark", "load_tags", "failed to scan row", MapError(err))
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("bookmark", "load_tags", "row iteration error", MapError(err))
	}

	return tags, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBookmark reads one bookmark row.
func scanBookmark(row rowScanner) (*domain.Bookmark, error) {
	bookmark := &domain.Bookmark{}
	var metadata []byte
	var categoryID uuid.NullUUID

	err := row.Scan(
		&bookmark.ID,
		&bookmark.UserID,
		&bookmark.URL,
		&bookmark.Title,
		&bookmark.Description,
		&bookmark.Image,
		&metadata,
		&categoryID,
		&bookmark.Archived,
		&bookmark.CreatedAt,
		&bookmark.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
	}

	if len(metadata) > 0 {
		bookmark.Metadata = metadata
	}
	if categoryID.Valid {
		bookmark.CategoryID = &categoryID.UUID
	}

	return bookmark, nil
}
