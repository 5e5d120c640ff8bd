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

// PostgresTagStore implements the store.TagStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTagStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTagStore creates a new PostgreSQL implementation of the
// TagStore interface.
func NewPostgresTagStore(db store.DBTX, logger *slog.Logger) *PostgresTagStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTagStore{
		db:     db,
		logger: logger.With(slog.String("component", "tag_store")),
	}
}

// Ensure PostgresTagStore implements store.TagStore interface
var _ store.TagStore = (*PostgresTagStore)(nil)

// WithTx implements store.TagStore.WithTx
func (s *PostgresTagStore) WithTx(tx *sql.Tx) store.TagStore {
	return &PostgresTagStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.TagStore.Upsert.
// The no-op DO UPDATE on conflict makes RETURNING yield the existing row,
// so concurrent upserts of the same (user_id, name) all get the same tag.
func (s *PostgresTagStore) Upsert(ctx context.Context, userID uuid.UUID, name string) (*domain.Tag, error) {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tags (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, user_id, name, created_at
	`

	tag := &domain.Tag{}
	err := s.db.QueryRowContext(ctx, query, uuid.New(), userID, name, time.Now().UTC()).
		Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt)
	if err != nil {
		log.Error("failed to upsert tag",
			"user_id", userID,
			"name", name,
			"error", err)
		return nil, store.NewStoreError("tag", "upsert", "database error", MapError(err))
	}

	return tag, nil
}

// Link implements store.TagStore.Link.
func (s *PostgresTagStore) Link(ctx context.Context, bookmarkID, tagID uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO bookmark_tags (bookmark_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (bookmark_id, tag_id) DO NOTHING
	`

	if _, err := s.db.ExecContext(ctx, query, bookmarkID, tagID); err != nil {
		log.Error("failed to link tag",
			"bookmark_id", bookmarkID,
			"tag_id", tagID,
			"error", err)
		return store.NewStoreError("tag", "link", "database error", MapError(err))
	}

	return nil
}

// ListByBookmark implements store.TagStore.ListByBookmark.
func (s *PostgresTagStore) ListByBookmark(ctx context.Context, bookmarkID uuid.UUID) ([]*domain.Tag, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT t.id, t.user_id, t.name, t.created_at
		FROM tags t
		JOIN bookmark_tags bt ON bt.tag_id = t.id
		WHERE bt.bookmark_id = $1
		ORDER BY t.name
	`

	rows, err := s.db.QueryContext(ctx, query, bookmarkID)
	if err != nil {
		log.Error("failed to list tags",
			"bookmark_id", bookmarkID,
			"error", err)
		return nil, store.NewStoreError("tag", "list", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var tags []*domain.Tag
	for rows.Next() {
		tag := &domain.Tag{}
		if err := rows.Scan(&tag.ID, &tag.UserID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, store.NewStoreError("tag", "list", "failed to scan row", MapError(err))
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("tag", "list", "row iteration error", MapError(err))
	}

	return tags, nil
}
