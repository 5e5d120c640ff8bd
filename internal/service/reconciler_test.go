package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/store"
)

// fakeBookmarkStore is an in-memory BookmarkStore keyed by (userID, url),
// mirroring the natural-key semantics of the real store.
type fakeBookmarkStore struct {
	mu        sync.Mutex
	bookmarks map[string]*domain.Bookmark
	upsertErr error
}

func newFakeBookmarkStore() *fakeBookmarkStore {
	return &fakeBookmarkStore{bookmarks: make(map[string]*domain.Bookmark)}
}

func bookmarkKey(userID uuid.UUID, url string) string {
	return userID.String() + "|" + url
}

func (s *fakeBookmarkStore) Upsert(
	_ context.Context,
	userID uuid.UUID,
	url string,
	fields domain.BookmarkFields,
) (*domain.Bookmark, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := bookmarkKey(userID, url)
	bookmark, ok := s.bookmarks[key]
	if !ok {
		var err error
		bookmark, err = domain.NewBookmark(userID, url)
		if err != nil {
			return nil, err
		}
		s.bookmarks[key] = bookmark
	}
	bookmark.Apply(fields)

	copied := *bookmark
	copied.Tags = nil
	return &copied, nil
}

func (s *fakeBookmarkStore) GetByID(_ context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bookmark := range s.bookmarks {
		if bookmark.ID == id && bookmark.UserID == userID {
			copied := *bookmark
			return &copied, nil
		}
	}
	return nil, store.ErrBookmarkNotFound
}

func (s *fakeBookmarkStore) List(_ context.Context, userID uuid.UUID, _, _ int) ([]*domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Bookmark
	for _, bookmark := range s.bookmarks {
		if bookmark.UserID == userID && !bookmark.Archived {
			copied := *bookmark
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeBookmarkStore) Delete(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, bookmark := range s.bookmarks {
		if bookmark.ID == id {
			if bookmark.UserID != userID {
				return store.ErrBookmarkNotFound
			}
			delete(s.bookmarks, key)
			return nil
		}
	}
	return store.ErrBookmarkNotFound
}

func (s *fakeBookmarkStore) WithTx(_ *sql.Tx) store.BookmarkStore { return s }

// fakeTagStore is an in-memory TagStore keyed by (userID, name).
type fakeTagStore struct {
	mu      sync.Mutex
	tags    map[string]*domain.Tag
	links   map[string]bool
	linkErr error
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		tags:  make(map[string]*domain.Tag),
		links: make(map[string]bool),
	}
}

func (s *fakeTagStore) Upsert(_ context.Context, userID uuid.UUID, name string) (*domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID.String() + "|" + name
	tag, ok := s.tags[key]
	if !ok {
		var err error
		tag, err = domain.NewTag(userID, name)
		if err != nil {
			return nil, err
		}
		s.tags[key] = tag
	}

	copied := *tag
	return &copied, nil
}

func (s *fakeTagStore) Link(_ context.Context, bookmarkID, tagID uuid.UUID) error {
	if s.linkErr != nil {
		return s.linkErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[bookmarkID.String()+"|"+tagID.String()] = true
	return nil
}

func (s *fakeTagStore) ListByBookmark(_ context.Context, bookmarkID uuid.UUID) ([]*domain.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Tag
	for _, tag := range s.tags {
		if s.links[bookmarkID.String()+"|"+tag.ID.String()] {
			copied := *tag
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeTagStore) WithTx(_ *sql.Tx) store.TagStore { return s }

// fakeFeedStore is an in-memory FeedStore keyed by (userID, feedURL) for
// feeds and (feedID, guid) for entries.
type fakeFeedStore struct {
	mu       sync.Mutex
	feeds    map[string]*domain.Feed
	entries  map[string]*domain.FeedEntry
	touchErr error
}

func newFakeFeedStore() *fakeFeedStore {
	return &fakeFeedStore{
		feeds:   make(map[string]*domain.Feed),
		entries: make(map[string]*domain.FeedEntry),
	}
}

func (s *fakeFeedStore) Upsert(_ context.Context, feed *domain.Feed) (*domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := feed.UserID.String() + "|" + feed.FeedURL
	existing, ok := s.feeds[key]
	if !ok {
		copied := *feed
		s.feeds[key] = &copied
		existing = &copied
	} else {
		if feed.Title != "" {
			existing.Title = feed.Title
		}
		if feed.SiteURL != "" {
			existing.SiteURL = feed.SiteURL
		}
	}

	copied := *existing
	return &copied, nil
}

func (s *fakeFeedStore) UpsertEntries(_ context.Context, entries []*domain.FeedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		key := entry.FeedID.String() + "|" + entry.GUID
		copied := *entry
		s.entries[key] = &copied
	}
	return nil
}

func (s *fakeFeedStore) TouchFetched(_ context.Context, feedID uuid.UUID, fetchedAt time.Time) error {
	if s.touchErr != nil {
		return s.touchErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, feed := range s.feeds {
		if feed.ID == feedID {
			at := fetchedAt
			feed.LastFetchedAt = &at
			return nil
		}
	}
	return store.ErrFeedNotFound
}

func (s *fakeFeedStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.Feed
	for _, feed := range s.feeds {
		if feed.UserID == userID {
			copied := *feed
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *fakeFeedStore) ListEntriesByUser(
	_ context.Context,
	userID uuid.UUID,
	limit, offset int,
) ([]*domain.FeedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	feedIDs := make(map[uuid.UUID]struct{})
	for _, feed := range s.feeds {
		if feed.UserID == userID {
			feedIDs[feed.ID] = struct{}{}
		}
	}

	var result []*domain.FeedEntry
	for _, entry := range s.entries {
		if _, ok := feedIDs[entry.FeedID]; ok {
			copied := *entry
			result = append(result, &copied)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		pi, pj := result[i].PublishedAt, result[j].PublishedAt
		switch {
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.After(*pj)
		}
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (s *fakeFeedStore) WithTx(_ *sql.Tx) store.FeedStore { return s }

func newTestReconciler() (*Reconciler, *fakeBookmarkStore, *fakeTagStore, *fakeFeedStore) {
	bookmarks := newFakeBookmarkStore()
	tags := newFakeTagStore()
	feeds := newFakeFeedStore()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	r := NewReconciler(nil, bookmarks, tags, feeds, logger)
	r.runTx = func(ctx context.Context, fn store.TxFn) error {
		return fn(ctx, nil)
	}
	return r, bookmarks, tags, feeds
}

func strPtr(s string) *string { return &s }

func TestSaveBookmarkCreatesWithTags(t *testing.T) {
	r, _, tags, _ := newTestReconciler()
	userID := uuid.New()

	bookmark, err := r.SaveBookmark(
		context.Background(),
		userID,
		"https://example.com/article",
		domain.BookmarkFields{Title: strPtr("Article")},
		[]string{"reading", "Go"},
	)
	require.NoError(t, err)

	assert.Equal(t, userID, bookmark.UserID)
	assert.Equal(t, "Article", bookmark.Title)
	require.Len(t, bookmark.Tags, 2)

	linked, err := tags.ListByBookmark(context.Background(), bookmark.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 2)
}

func TestSaveBookmarkIsIdempotent(t *testing.T) {
	r, bookmarks, _, _ := newTestReconciler()
	userID := uuid.New()
	url := "https://example.com/article"

	first, err := r.SaveBookmark(context.Background(), userID, url, domain.BookmarkFields{
		Title: strPtr("First title"),
	}, nil)
	require.NoError(t, err)

	second, err := r.SaveBookmark(context.Background(), userID, url, domain.BookmarkFields{
		Description: strPtr("added later"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same natural key merges into one record")
	assert.Equal(t, "First title", second.Title, "absent field leaves stored value")
	assert.Equal(t, "added later", second.Description, "present field wins")
	assert.Len(t, bookmarks.bookmarks, 1)
}

func TestSaveBookmarkCollapsesDuplicateTagNames(t *testing.T) {
	r, _, tags, _ := newTestReconciler()

	bookmark, err := r.SaveBookmark(
		context.Background(),
		uuid.New(),
		"https://example.com",
		domain.BookmarkFields{},
		[]string{"go", "Go", "  go  ", "news"},
	)
	require.NoError(t, err)

	assert.Len(t, bookmark.Tags, 2)
	assert.Len(t, tags.tags, 2)
}

func TestSaveBookmarkRollsUpStoreFailure(t *testing.T) {
	r, bookmarks, tags, _ := newTestReconciler()
	tags.linkErr = errors.New("link failed")

	_, err := r.SaveBookmark(
		context.Background(),
		uuid.New(),
		"https://example.com",
		domain.BookmarkFields{},
		[]string{"go"},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link failed")
	_ = bookmarks
}

func TestUpsertTagsIsIdempotent(t *testing.T) {
	r, _, tags, _ := newTestReconciler()
	userID := uuid.New()

	first, err := r.UpsertTags(context.Background(), userID, []string{"go", "news"})
	require.NoError(t, err)
	second, err := r.UpsertTags(context.Background(), userID, []string{"news", "go"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Len(t, tags.tags, 2, "same names merge into the same tags")
}

func TestDeleteBookmarkEnforcesOwnership(t *testing.T) {
	r, _, _, _ := newTestReconciler()
	owner := uuid.New()

	bookmark, err := r.SaveBookmark(context.Background(), owner, "https://example.com", domain.BookmarkFields{}, nil)
	require.NoError(t, err)

	err = r.DeleteBookmark(context.Background(), uuid.New(), bookmark.ID)
	require.Error(t, err)
	assert.True(t, store.IsNotFoundError(err), "foreign owner looks like not found")

	require.NoError(t, r.DeleteBookmark(context.Background(), owner, bookmark.ID))

	_, err = r.GetBookmark(context.Background(), owner, bookmark.ID)
	assert.True(t, store.IsNotFoundError(err))
}

func TestSaveFeedValidates(t *testing.T) {
	r, _, _, _ := newTestReconciler()

	_, err := r.SaveFeed(context.Background(), &domain.Feed{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		FeedURL: "not a url",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSaveFeedEntriesRecordsFetchTime(t *testing.T) {
	r, _, _, feeds := newTestReconciler()
	userID := uuid.New()

	feed, err := domain.NewFeed(userID, "https://blog.example/rss.xml")
	require.NoError(t, err)
	saved, err := r.SaveFeed(context.Background(), feed)
	require.NoError(t, err)

	entry, err := domain.NewFeedEntry(saved.ID, "guid-1")
	require.NoError(t, err)
	entry.Title = "Post"

	fetchedAt := time.Now().UTC()
	require.NoError(t, r.SaveFeedEntries(context.Background(), saved.ID, []*domain.FeedEntry{entry}, fetchedAt))

	// Refetching the same entry does not duplicate it.
	require.NoError(t, r.SaveFeedEntries(context.Background(), saved.ID, []*domain.FeedEntry{entry}, fetchedAt))
	assert.Len(t, feeds.entries, 1)

	listed, err := r.ListFeeds(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].LastFetchedAt)
	assert.WithinDuration(t, fetchedAt, *listed[0].LastFetchedAt, time.Second)
}

func TestListFeedEntriesNewestFirstScopedToOwner(t *testing.T) {
	r, _, _, _ := newTestReconciler()
	userID := uuid.New()

	feed, err := domain.NewFeed(userID, "https://blog.example/rss.xml")
	require.NoError(t, err)
	saved, err := r.SaveFeed(context.Background(), feed)
	require.NoError(t, err)

	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	first, err := domain.NewFeedEntry(saved.ID, "guid-old")
	require.NoError(t, err)
	first.PublishedAt = &older
	second, err := domain.NewFeedEntry(saved.ID, "guid-new")
	require.NoError(t, err)
	second.PublishedAt = &newer

	require.NoError(t, r.SaveFeedEntries(context.Background(), saved.ID,
		[]*domain.FeedEntry{first, second}, time.Now().UTC()))

	// Another user's feed must not leak into the listing.
	otherFeed, err := domain.NewFeed(uuid.New(), "https://other.example/rss.xml")
	require.NoError(t, err)
	otherSaved, err := r.SaveFeed(context.Background(), otherFeed)
	require.NoError(t, err)
	otherEntry, err := domain.NewFeedEntry(otherSaved.ID, "guid-other")
	require.NoError(t, err)
	require.NoError(t, r.SaveFeedEntries(context.Background(), otherSaved.ID,
		[]*domain.FeedEntry{otherEntry}, time.Now().UTC()))

	entries, err := r.ListFeedEntries(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "guid-new", entries[0].GUID, "most recently published first")
	assert.Equal(t, "guid-old", entries[1].GUID)

	limited, err := r.ListFeedEntries(context.Background(), userID, 1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "guid-old", limited[0].GUID)
}
