package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/linkhive/linkhive-api/internal/queue"
)

// BookmarkSubmission is one bookmark in a submission batch. Only the URL
// is required; title, description and tags are optional user-supplied
// fields that survive enrichment failures.
type BookmarkSubmission struct {
	URL         string   `json:"url" validate:"required,url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,dive,min=1"`
}

// CreateBookmarksRequest is the submission body for new bookmarks.
// Submissions are batched; duplicates within or across batches merge by
// (user, url).
type CreateBookmarksRequest struct {
	Data []BookmarkSubmission `json:"data" validate:"required,min=1,max=50,dive"`
}

// CreateFeedRequest is the submission body for a new feed subscription.
type CreateFeedRequest struct {
	FeedURL string `json:"feed_url" validate:"required,url"`
}

// EnqueueResponse acknowledges an accepted submission with the IDs of the
// jobs it spawned, so clients can poll the queue for progress.
type EnqueueResponse struct {
	JobIDs []uuid.UUID `json:"job_ids"`
}

// JobSummary is the client-facing view of a queued job. The payload is
// deliberately omitted; clients track progress, not job internals.
type JobSummary struct {
	ID         uuid.UUID    `json:"id"`
	Action     queue.Action `json:"action"`
	Status     queue.Status `json:"status"`
	Attempts   int          `json:"attempts"`
	LastError  string       `json:"last_error,omitempty"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// newJobSummary converts a queue job snapshot to its client-facing view.
func newJobSummary(job *queue.Job) JobSummary {
	return JobSummary{
		ID:         job.ID,
		Action:     job.Envelope.Action,
		Status:     job.Status,
		Attempts:   job.Attempts,
		LastError:  job.LastError,
		EnqueuedAt: job.EnqueuedAt,
		UpdatedAt:  job.UpdatedAt,
	}
}
