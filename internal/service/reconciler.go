package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/store"
)

// Reconciler persists the results of user submissions and worker actions.
// Every write is keyed by a natural key: (url, user) for bookmarks,
// (name, user) for tags, (feedUrl, user) for feeds. Repeated or
// concurrent submissions merge into one record instead of duplicating.
// Multi-row operations that belong to one user action run in a single
// transaction; partial application is never observable.
type Reconciler struct {
	db        *sql.DB
	bookmarks store.BookmarkStore
	tags      store.TagStore
	feeds     store.FeedStore
	logger    *slog.Logger

	// runTx is swappable for tests that run against fake stores.
	runTx func(ctx context.Context, fn store.TxFn) error
}

// NewReconciler creates a Reconciler over the given stores.
func NewReconciler(
	db *sql.DB,
	bookmarks store.BookmarkStore,
	tags store.TagStore,
	feeds store.FeedStore,
	logger *slog.Logger,
) *Reconciler {
	r := &Reconciler{
		db:        db,
		bookmarks: bookmarks,
		tags:      tags,
		feeds:     feeds,
		logger:    logger.With("component", "reconciler"),
	}
	r.runTx = func(ctx context.Context, fn store.TxFn) error {
		return store.RunInTransaction(ctx, r.db, fn)
	}
	return r
}

// SaveBookmark creates or merges the bookmark keyed by (url, userID),
// upserts the given tags and links them, all in one atomic unit. Duplicate
// tag names in the input collapse to one tag. Returns the resulting
// bookmark with its tags attached.
func (r *Reconciler) SaveBookmark(
	ctx context.Context,
	userID uuid.UUID,
	url string,
	fields domain.BookmarkFields,
	tagNames []string,
) (*domain.Bookmark, error) {
	names := domain.NormalizeTagNames(tagNames)

	var bookmark *domain.Bookmark
	err := r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		bookmarkStore := r.bookmarks.WithTx(tx)
		tagStore := r.tags.WithTx(tx)

		var err error
		bookmark, err = bookmarkStore.Upsert(ctx, userID, url, fields)
		if err != nil {
			return fmt.Errorf("failed to upsert bookmark: %w", err)
		}

		for _, name := range names {
			tag, err := tagStore.Upsert(ctx, userID, name)
			if err != nil {
				return fmt.Errorf("failed to upsert tag %q: %w", name, err)
			}
			if err := tagStore.Link(ctx, bookmark.ID, tag.ID); err != nil {
				return fmt.Errorf("failed to link tag %q: %w", name, err)
			}
			bookmark.Tags = append(bookmark.Tags, tag)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("bookmark saved",
		"bookmark_id", bookmark.ID,
		"user_id", userID,
		"tag_count", len(names))

	return bookmark, nil
}

// UpsertTags upserts each name by (name, userID). Duplicate names in the
// input collapse to one tag. The whole set is one atomic unit.
func (r *Reconciler) UpsertTags(
	ctx context.Context,
	userID uuid.UUID,
	tagNames []string,
) ([]*domain.Tag, error) {
	names := domain.NormalizeTagNames(tagNames)
	tags := make([]*domain.Tag, 0, len(names))

	err := r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tagStore := r.tags.WithTx(tx)
		for _, name := range names {
			tag, err := tagStore.Upsert(ctx, userID, name)
			if err != nil {
				return fmt.Errorf("failed to upsert tag %q: %w", name, err)
			}
			tags = append(tags, tag)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tags, nil
}

// LinkTags upserts each (bookmarkID, tagID) join row. Relinking an
// already-linked pair is a no-op, not an error.
func (r *Reconciler) LinkTags(ctx context.Context, bookmarkID uuid.UUID, tagIDs []uuid.UUID) error {
	return r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tagStore := r.tags.WithTx(tx)
		for _, tagID := range tagIDs {
			if err := tagStore.Link(ctx, bookmarkID, tagID); err != nil {
				return fmt.Errorf("failed to link tag %s: %w", tagID, err)
			}
		}
		return nil
	})
}

// GetBookmark retrieves a bookmark by ID, scoped to its owner.
func (r *Reconciler) GetBookmark(ctx context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	return r.bookmarks.GetByID(ctx, userID, id)
}

// ListBookmarks returns the user's non-archived bookmarks with tags,
// newest first.
func (r *Reconciler) ListBookmarks(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.Bookmark, error) {
	return r.bookmarks.List(ctx, userID, limit, offset)
}

// DeleteBookmark deletes the bookmark only if it is owned by userID.
// A missing record and a record owned by someone else both return
// store.ErrBookmarkNotFound, so ownership is never leaked through a
// different error.
func (r *Reconciler) DeleteBookmark(ctx context.Context, userID, bookmarkID uuid.UUID) error {
	if err := r.bookmarks.Delete(ctx, userID, bookmarkID); err != nil {
		return err
	}

	r.logger.Debug("bookmark deleted",
		"bookmark_id", bookmarkID,
		"user_id", userID)
	return nil
}

// SaveFeed creates or merges the feed keyed by (feedUrl, userID).
func (r *Reconciler) SaveFeed(ctx context.Context, feed *domain.Feed) (*domain.Feed, error) {
	if err := feed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	return r.feeds.Upsert(ctx, feed)
}

// SaveFeedEntries upserts the parsed entries of one fetch and records the
// fetch time on the feed, as one atomic unit.
func (r *Reconciler) SaveFeedEntries(
	ctx context.Context,
	feedID uuid.UUID,
	entries []*domain.FeedEntry,
	fetchedAt time.Time,
) error {
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
	}

	return r.runTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		feedStore := r.feeds.WithTx(tx)
		if err := feedStore.UpsertEntries(ctx, entries); err != nil {
			return fmt.Errorf("failed to upsert feed entries: %w", err)
		}
		if err := feedStore.TouchFetched(ctx, feedID, fetchedAt); err != nil {
			return fmt.Errorf("failed to record feed fetch: %w", err)
		}
		return nil
	})
}

// ListFeeds returns the user's feeds.
func (r *Reconciler) ListFeeds(ctx context.Context, userID uuid.UUID) ([]*domain.Feed, error) {
	return r.feeds.ListByUser(ctx, userID)
}

// ListFeedEntries returns entries across all of the user's feeds, most
// recently published first.
func (r *Reconciler) ListFeedEntries(
	ctx context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.FeedEntry, error) {
	return r.feeds.ListEntriesByUser(ctx, userID, limit, offset)
}
