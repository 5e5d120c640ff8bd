package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
)

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <link>https://blog.example</link>
    <item>
      <title>First Post</title>
      <link>https://blog.example/first</link>
      <guid>post-1</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>No GUID Post</title>
      <link>https://blog.example/second</link>
    </item>
  </channel>
</rss>`

// fakeFeedSaver records SaveFeed/SaveFeedEntries calls.
type fakeFeedSaver struct {
	mu      sync.Mutex
	feeds   map[string]*domain.Feed
	entries map[uuid.UUID][]*domain.FeedEntry
	saveErr error
}

func newFakeFeedSaver() *fakeFeedSaver {
	return &fakeFeedSaver{
		feeds:   make(map[string]*domain.Feed),
		entries: make(map[uuid.UUID][]*domain.FeedEntry),
	}
}

func (s *fakeFeedSaver) SaveFeed(_ context.Context, feed *domain.Feed) (*domain.Feed, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := feed.UserID.String() + "|" + feed.FeedURL
	existing, ok := s.feeds[key]
	if !ok {
		copied := *feed
		s.feeds[key] = &copied
		existing = &copied
	}

	copied := *existing
	return &copied, nil
}

func (s *fakeFeedSaver) SaveFeedEntries(
	_ context.Context,
	feedID uuid.UUID,
	entries []*domain.FeedEntry,
	_ time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[feedID] = entries
	return nil
}

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFeedHandlerReconcilesFeedAndEntries(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, testRSS)
	saver := newFakeFeedSaver()
	h := NewFeedHandler(server.Client(), saver, testLogger())

	userID := uuid.New()
	payload := mustMarshal(t, queue.FeedPayload{FeedURL: server.URL, UserID: userID})

	require.NoError(t, h.Handle(context.Background(), payload))

	require.Len(t, saver.feeds, 1)
	var feed *domain.Feed
	for _, f := range saver.feeds {
		feed = f
	}
	assert.Equal(t, "Example Blog", feed.Title)
	assert.Equal(t, "https://blog.example", feed.SiteURL)
	assert.Equal(t, userID, feed.UserID)

	entries := saver.entries[feed.ID]
	require.Len(t, entries, 2)
	assert.Equal(t, "post-1", entries[0].GUID)
	require.NotNil(t, entries[0].PublishedAt)
	assert.Equal(t, "https://blog.example/second", entries[1].GUID, "GUID falls back to link")
}

func TestFeedHandlerWrapsFetchFailure(t *testing.T) {
	server := newFeedServer(t, http.StatusBadGateway, "nope")
	h := NewFeedHandler(server.Client(), newFakeFeedSaver(), testLogger())

	payload := mustMarshal(t, queue.FeedPayload{FeedURL: server.URL, UserID: uuid.New()})

	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFeedHandlerWrapsParseFailure(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, "this is not a feed")
	h := NewFeedHandler(server.Client(), newFakeFeedSaver(), testLogger())

	payload := mustMarshal(t, queue.FeedPayload{FeedURL: server.URL, UserID: uuid.New()})

	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestFeedHandlerSerializationKey(t *testing.T) {
	h := NewFeedHandler(http.DefaultClient, newFakeFeedSaver(), testLogger())

	payload := mustMarshal(t, queue.FeedPayload{
		FeedURL: "https://blog.example/rss.xml",
		UserID:  uuid.New(),
	})
	assert.Equal(t, "feed:https://blog.example/rss.xml", h.SerializationKey(payload))

	assert.Empty(t, h.SerializationKey([]byte("garbage")), "unparseable payload disables serialization")
}
