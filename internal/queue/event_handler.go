package queue

import (
	"context"
	"log/slog"

	"github.com/linkhive/linkhive-api/internal/events"
)

// EnqueueEventHandler bridges job request events onto the queue. The
// emitter dispatches synchronously, so a validation failure here surfaces
// to the original caller as required for malformed envelopes.
type EnqueueEventHandler struct {
	queue  *Queue
	logger *slog.Logger
}

// NewEnqueueEventHandler creates an event handler that pushes job request
// events onto the given queue.
func NewEnqueueEventHandler(q *Queue, logger *slog.Logger) *EnqueueEventHandler {
	return &EnqueueEventHandler{
		queue:  q,
		logger: logger.With("component", "enqueue_event_handler"),
	}
}

// HandleEvent converts the event into an envelope and pushes it.
func (h *EnqueueEventHandler) HandleEvent(ctx context.Context, event *events.JobRequestEvent) error {
	env := Envelope{
		Action: Action(event.Action),
		Data:   event.Payload,
	}

	job, err := h.queue.Push(ctx, env)
	if err != nil {
		h.logger.Error("failed to enqueue job request",
			"event_id", event.ID,
			"action", event.Action,
			"error", err)
		return err
	}

	h.logger.Debug("job request enqueued",
		"event_id", event.ID,
		"job_id", job.ID,
		"action", event.Action)
	return nil
}

// Ensure EnqueueEventHandler implements events.EventHandler
var _ events.EventHandler = (*EnqueueEventHandler)(nil)
