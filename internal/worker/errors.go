package worker

import "errors"

// Dispatch-level errors recorded on failed jobs.
var (
	// ErrUnsupportedAction is recorded when a job names an action no
	// handler is registered for. The job fails immediately, without retry.
	ErrUnsupportedAction = errors.New("no handler registered for action")

	// ErrTimeout is recorded when a handler invocation exceeds the
	// configured bound. Timeouts follow the queue's retry policy.
	ErrTimeout = errors.New("handler invocation timed out")
)
