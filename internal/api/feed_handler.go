package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/linkhive/linkhive-api/internal/api/middleware"
	"github.com/linkhive/linkhive-api/internal/api/shared"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// FeedService is the reconciler surface used for synchronous feed reads.
type FeedService interface {
	ListFeeds(ctx context.Context, userID uuid.UUID) ([]*domain.Feed, error)
	ListFeedEntries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.FeedEntry, error)
}

// FeedHandler handles feed subscription and listing. Subscribing enqueues
// a fetch job; the worker creates the feed record and its entries.
type FeedHandler struct {
	service   FeedService
	queue     JobQueue
	validator *validator.Validate
}

// NewFeedHandler creates a new FeedHandler with the given dependencies.
func NewFeedHandler(service FeedService, jobQueue JobQueue) *FeedHandler {
	return &FeedHandler{
		service:   service,
		queue:     jobQueue,
		validator: validator.New(),
	}
}

// Create handles POST /api/feeds. It enqueues a feed fetch job and
// responds 202 with the job ID. Resubscribing to the same feed URL merges
// into the existing subscription.
func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateFeedRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request data", err)
		return
	}

	env, err := queue.NewEnvelope(queue.ActionAddFeed, queue.FeedPayload{
		FeedURL: req.FeedURL,
		UserID:  userID,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to accept feed", err)
		return
	}

	job, err := h.queue.Push(r.Context(), env)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{
		JobIDs: []uuid.UUID{job.ID},
	})
}

// List handles GET /api/feeds. It returns the caller's feed subscriptions.
func (h *FeedHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, feeds)
}

// ListEntries handles GET /api/feed-entries. It returns entries across
// all of the caller's feeds, most recently published first.
func (h *FeedHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset, err := parsePagination(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid pagination parameters")
		return
	}

	entries, err := h.service.ListFeedEntries(r.Context(), userID, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, entries)
}
