// Package queue implements the asynchronous job queue that decouples
// user-facing writes from slow external side effects. Producers push
// validated action envelopes and return immediately; workers claim jobs
// one at a time, and failed jobs are retried with exponential backoff
// until they succeed or are dead-lettered.
//
// The in-memory job list is the single source of ordering truth. When a
// JobStore is configured, every transition is mirrored to it so pending
// work survives restarts.
package queue
