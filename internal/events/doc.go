// Package events provides a minimal in-process event system that decouples
// the HTTP layer from job creation: submission handlers emit job request
// events without knowing about the queue, and the queue side registers a
// handler that validates and enqueues them.
package events
