package queue

import "errors"

// Common errors returned by the Queue.
var (
	// ErrValidation is returned synchronously by Push when an envelope does
	// not satisfy the schema for its action. Malformed envelopes are never
	// enqueued.
	ErrValidation = errors.New("envelope validation failed")

	// ErrUnknownAction is returned when an envelope names an action outside
	// the known set. It wraps ErrValidation so callers can treat both as
	// synchronous validation failures.
	ErrUnknownAction = errors.New("unknown action")

	// ErrQueueClosed is returned by Push after the queue has been closed.
	ErrQueueClosed = errors.New("job queue is closed")

	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotCancelable is returned by Cancel when the job has already
	// reached a terminal state.
	ErrJobNotCancelable = errors.New("job is not cancelable")
)
