package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/linkhive/linkhive-api/internal/api/middleware"
	"github.com/linkhive/linkhive-api/internal/api/shared"
	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// Default and maximum page sizes for bookmark listing.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// JobQueue is the queue surface the HTTP handlers need. Submissions push
// jobs directly (rather than through the event emitter) so the response
// can carry the job IDs.
type JobQueue interface {
	Push(ctx context.Context, env queue.Envelope) (*queue.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	Get(id uuid.UUID) (*queue.Job, error)
	List(statuses ...queue.Status) []*queue.Job
	DeadLetters() []*queue.Job
}

// BookmarkService is the reconciler surface used for synchronous bookmark
// reads and deletes.
type BookmarkService interface {
	ListBookmarks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, bookmarkID uuid.UUID) error
}

// BookmarkHandler handles bookmark submission, listing and deletion.
// Submissions are asynchronous: the handler validates and enqueues, the
// workers enrich and persist.
type BookmarkHandler struct {
	service   BookmarkService
	queue     JobQueue
	validator *validator.Validate
}

// NewBookmarkHandler creates a new BookmarkHandler with the given dependencies.
func NewBookmarkHandler(service BookmarkService, jobQueue JobQueue) *BookmarkHandler {
	return &BookmarkHandler{
		service:   service,
		queue:     jobQueue,
		validator: validator.New(),
	}
}

// Create handles POST /api/bookmarks. For each submitted bookmark it
// enqueues a metadata job and a screenshot job, responding 202 with all
// job IDs. Resubmitting a URL is safe: the workers merge by (user, url).
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateBookmarksRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request data", err)
		return
	}

	envelopes := make([]queue.Envelope, 0, 2*len(req.Data))
	for _, sub := range req.Data {
		metadataEnv, err := queue.NewEnvelope(queue.ActionAddMetadata, queue.MetadataPayload{
			URL:         sub.URL,
			UserID:      userID,
			Title:       sub.Title,
			Description: sub.Description,
			Tags:        sub.Tags,
		})
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to accept bookmark", err)
			return
		}

		screenshotEnv, err := queue.NewEnvelope(queue.ActionAddScreenshot, queue.ScreenshotPayload{
			URL:    sub.URL,
			UserID: userID,
		})
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to accept bookmark", err)
			return
		}

		envelopes = append(envelopes, metadataEnv, screenshotEnv)
	}

	jobIDs := make([]uuid.UUID, 0, len(envelopes))
	for _, env := range envelopes {
		job, err := h.queue.Push(r.Context(), env)
		if err != nil {
			// Retrying the whole submission is safe even after partial
			// enqueue: all workers merge by natural key.
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
				GetSafeErrorMessage(err), err)
			return
		}
		jobIDs = append(jobIDs, job.ID)
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, EnqueueResponse{JobIDs: jobIDs})
}

// List handles GET /api/bookmarks. It returns the caller's non-archived
// bookmarks with tags, newest first.
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
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

	bookmarks, err := h.service.ListBookmarks(r.Context(), userID, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bookmarks)
}

// Delete handles DELETE /api/bookmarks/{id}. Deleting a bookmark owned by
// someone else responds 404, same as a missing one.
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookmarkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid bookmark ID")
		return
	}

	if err := h.service.DeleteBookmark(r.Context(), userID, bookmarkID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parsePagination reads limit and offset query parameters, applying the
// default page size and clamping to the maximum.
func parsePagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultListLimit

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}

	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", raw)
		}
	}

	return limit, offset, nil
}
