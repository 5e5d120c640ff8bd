package domain

import (
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Feed and FeedEntry
var (
	ErrEmptyFeedID      = errors.New("feed ID cannot be empty")
	ErrEmptyFeedUserID  = errors.New("feed user ID cannot be empty")
	ErrEmptyFeedURL     = errors.New("feed URL cannot be empty")
	ErrInvalidFeedURL   = errors.New("feed URL is not a valid absolute URL")
	ErrEmptyEntryFeedID = errors.New("feed entry feed ID cannot be empty")
	ErrEmptyEntryGUID   = errors.New("feed entry GUID cannot be empty")
)

// Feed represents a syndication feed subscribed to by a user. The pair
// (UserID, FeedURL) is the natural key.
type Feed struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	FeedURL       string     `json:"feed_url"`
	SiteURL       string     `json:"site_url,omitempty"`
	Title         string     `json:"title,omitempty"`
	LastFetchedAt *time.Time `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// FeedEntry is a single item parsed out of a feed. The pair
// (FeedID, GUID) is the natural key; refetching a feed upserts entries
// rather than duplicating them.
type FeedEntry struct {
	ID          uuid.UUID  `json:"id"`
	FeedID      uuid.UUID  `json:"feed_id"`
	GUID        string     `json:"guid"`
	Link        string     `json:"link,omitempty"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewFeed creates a new Feed with the given owner and feed URL.
// Returns an error if validation fails.
func NewFeed(userID uuid.UUID, feedURL string) (*Feed, error) {
	now := time.Now().UTC()
	feed := &Feed{
		ID:        uuid.New(),
		UserID:    userID,
		FeedURL:   feedURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := feed.Validate(); err != nil {
		return nil, err
	}

	return feed, nil
}

// Validate checks if the Feed has valid data.
func (f *Feed) Validate() error {
	if f.ID == uuid.Nil {
		return ErrEmptyFeedID
	}

	if f.UserID == uuid.Nil {
		return ErrEmptyFeedUserID
	}

	if f.FeedURL == "" {
		return ErrEmptyFeedURL
	}

	u, err := url.Parse(f.FeedURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ErrInvalidFeedURL
	}

	return nil
}

// NewFeedEntry creates a new FeedEntry belonging to the given feed.
// The GUID falls back to the link when the feed item carries no GUID.
func NewFeedEntry(feedID uuid.UUID, guid string) (*FeedEntry, error) {
	entry := &FeedEntry{
		ID:        uuid.New(),
		FeedID:    feedID,
		GUID:      guid,
		CreatedAt: time.Now().UTC(),
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the FeedEntry has valid data.
func (e *FeedEntry) Validate() error {
	if e.FeedID == uuid.Nil {
		return ErrEmptyEntryFeedID
	}

	if e.GUID == "" {
		return ErrEmptyEntryGUID
	}

	return nil
}
