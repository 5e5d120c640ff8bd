package queue

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a job.
type Status string

// Possible job status values. StatusFailed is terminal: a job only reaches
// it after exhausting its retries (dead-letter) or failing a non-retryable
// way; transient failures send the job back to StatusPending.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Job is the queue's trackable unit of work wrapping one envelope.
// The queue owns Job records exclusively; workers only hold a transient
// claim while running one, and all reads outside the queue see copies.
type Job struct {
	// ID uniquely identifies the job.
	ID uuid.UUID `json:"id"`

	// Seq is assigned monotonically at enqueue time and drives FIFO order.
	Seq uint64 `json:"seq"`

	// Envelope is the action and payload this job executes.
	Envelope Envelope `json:"envelope"`

	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`

	// LastError holds the most recent failure, retained through
	// dead-lettering for operator diagnosis.
	LastError string `json:"last_error,omitempty"`

	// RunAfter delays claiming of a re-enqueued job (retry backoff or
	// keyed-serialization contention). Zero means immediately runnable.
	RunAfter time.Time `json:"run_after,omitempty"`

	// CancelRequested marks a running job for non-requeue on completion.
	// Cancellation of running jobs is cooperative, not preemptive.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Runnable reports whether a pending job may be claimed at the given time.
func (j *Job) Runnable(now time.Time) bool {
	return j.Status == StatusPending && !j.RunAfter.After(now)
}

// clone returns a copy of the job safe to hand outside the queue's lock.
func (j *Job) clone() *Job {
	c := *j
	return &c
}
