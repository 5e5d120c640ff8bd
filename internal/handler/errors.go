package handler

import "errors"

// Handler errors. All of these are retryable from the queue's point of
// view; permanence is decided by the dispatcher's terminal-error check.
var (
	// ErrCapture indicates the screenshot service failed to produce an image.
	ErrCapture = errors.New("screenshot capture failed")

	// ErrFetch indicates the feed URL could not be fetched.
	ErrFetch = errors.New("feed fetch failed")

	// ErrParse indicates the fetched document is not a parseable feed.
	ErrParse = errors.New("feed parse failed")

	// ErrDescribe indicates the description generator failed.
	ErrDescribe = errors.New("description generation failed")
)
