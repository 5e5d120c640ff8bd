package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/linkhive/linkhive-api/internal/api/shared"
	"github.com/linkhive/linkhive-api/internal/queue"
)

// QueueHandler exposes job tracking and cancellation, plus the operator
// dead-letter view.
type QueueHandler struct {
	queue JobQueue
}

// NewQueueHandler creates a new QueueHandler over the given queue.
func NewQueueHandler(jobQueue JobQueue) *QueueHandler {
	return &QueueHandler{queue: jobQueue}
}

// List handles GET /api/queue. An optional status query parameter narrows
// the result to one job state.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := queue.Status(raw)
		switch status {
		case queue.StatusPending, queue.StatusRunning, queue.StatusSucceeded,
			queue.StatusFailed, queue.StatusCancelled:
			statuses = append(statuses, status)
		default:
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid status filter")
			return
		}
	}

	jobs := h.queue.List(statuses...)
	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, newJobSummary(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}

// Get handles GET /api/queue/{id}.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.queue.Get(jobID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newJobSummary(job))
}

// Cancel handles DELETE /api/queue/{id}. Pending jobs cancel immediately;
// a running job finishes its current attempt but is never requeued.
// Finished jobs respond 409.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if err := h.queue.Cancel(r.Context(), jobID); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeadLetters handles GET /api/admin/dead-letters. It lists terminally
// failed jobs with their retained last errors for operator diagnosis.
func (h *QueueHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	jobs := h.queue.DeadLetters()
	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, newJobSummary(job))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summaries)
}
