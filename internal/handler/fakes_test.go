package handler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/events"
	"github.com/linkhive/linkhive-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// savedCall records one SaveBookmark invocation.
type savedCall struct {
	userID uuid.UUID
	url    string
	fields domain.BookmarkFields
	tags   []string
}

// fakeSaver implements BookmarkSaver and BookmarkReader over a map keyed
// by (userID, url), mimicking natural-key merge semantics.
type fakeSaver struct {
	mu        sync.Mutex
	calls     []savedCall
	bookmarks map[string]*domain.Bookmark
	saveErr   error
	getErr    error
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{bookmarks: make(map[string]*domain.Bookmark)}
}

func (s *fakeSaver) SaveBookmark(
	_ context.Context,
	userID uuid.UUID,
	url string,
	fields domain.BookmarkFields,
	tagNames []string,
) (*domain.Bookmark, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, savedCall{userID: userID, url: url, fields: fields, tags: tagNames})

	key := userID.String() + "|" + url
	bookmark, ok := s.bookmarks[key]
	if !ok {
		bookmark = &domain.Bookmark{
			ID:        uuid.New(),
			UserID:    userID,
			URL:       url,
			CreatedAt: time.Now().UTC(),
		}
		s.bookmarks[key] = bookmark
	}
	bookmark.Apply(fields)

	copied := *bookmark
	return &copied, nil
}

func (s *fakeSaver) GetBookmark(_ context.Context, userID, id uuid.UUID) (*domain.Bookmark, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}

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

func (s *fakeSaver) lastCall() savedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

// fakeCapture implements CaptureClient.
type fakeCapture struct {
	imageURL string
	err      error
	calls    []string
}

func (c *fakeCapture) Capture(_ context.Context, pageURL string) (string, error) {
	c.calls = append(c.calls, pageURL)
	if c.err != nil {
		return "", c.err
	}
	return c.imageURL, nil
}

// fakeResolver implements MetadataResolver.
type fakeResolver struct {
	meta *LinkMetadata
	err  error
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) (*LinkMetadata, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.meta, nil
}

// fakeGenerator implements DescriptionGenerator.
type fakeGenerator struct {
	description string
	err         error
	calls       int
}

func (g *fakeGenerator) Describe(_ context.Context, _ *domain.Bookmark) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.description, nil
}

// recordingEmitter implements events.EventEmitter.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.JobRequestEvent
	err    error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.JobRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return e.err
}

func (e *recordingEmitter) emitted() []*events.JobRequestEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.JobRequestEvent(nil), e.events...)
}
