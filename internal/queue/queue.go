package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// JobStore defines the interface for mirroring job records to durable
// storage so pending work survives restarts. All queue operations remain
// correct with a nil store; persistence failures after enqueue are logged,
// never propagated to callers.
type JobStore interface {
	// SaveJob persists a newly enqueued job.
	SaveJob(ctx context.Context, job *Job) error

	// UpdateJob persists a job state transition.
	UpdateJob(ctx context.Context, job *Job) error

	// ListJobs retrieves stored jobs in enqueue order, optionally filtered
	// by status.
	ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error)
}

// Config holds the queue's retry policy.
type Config struct {
	// MaxRetries bounds failed attempts before dead-lettering.
	MaxRetries int

	// BackoffBase is the delay before the first retry; each further retry
	// doubles it up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Retention is how long succeeded and cancelled jobs stay queryable
	// before the in-memory table drops them. Failed jobs are exempt so
	// dead letters stay inspectable until restart.
	Retention time.Duration
}

// DefaultConfig returns a Config with the documented retry policy:
// three attempts with exponential backoff from 1s capped at 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BackoffBase: time.Second,
		BackoffCap:  30 * time.Second,
		Retention:   time.Hour,
	}
}

// Outcome reports how a claimed job's execution ended.
type Outcome struct {
	// Err is nil on success.
	Err error

	// Terminal marks the failure as non-retryable (e.g. unregistered
	// action, ownership violation); the job dead-letters immediately
	// regardless of remaining attempts.
	Terminal bool
}

// Queue is an ordered in-process job queue safe for concurrent producers
// and consumers. The mutex-guarded job table is the single source of
// ordering truth; claiming is a single pending→running transition under
// the lock, so no two claimants ever receive the same job.
type Queue struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*Job
	seq    uint64
	closed bool

	cfg      Config
	store    JobStore
	validate *validator.Validate
	logger   *slog.Logger

	// signal wakes idle workers after a push or re-enqueue. Buffered with
	// size one: a missed send means a wake-up is already pending.
	signal chan struct{}

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Queue with the given retry policy. store may be nil for a
// purely in-memory queue.
func New(cfg Config, store JobStore, logger *slog.Logger) *Queue {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}

	return &Queue{
		jobs:     make(map[uuid.UUID]*Job),
		cfg:      cfg,
		store:    store,
		validate: validator.New(),
		logger:   logger.With("component", "job_queue"),
		signal:   make(chan struct{}, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Signal returns the channel workers wait on for new runnable work.
func (q *Queue) Signal() <-chan struct{} {
	return q.signal
}

// Push validates the envelope and appends a new pending job, returning it
// immediately. It fails with ErrValidation on a malformed envelope and
// never waits on job execution.
func (q *Queue) Push(ctx context.Context, env Envelope) (*Job, error) {
	if err := env.Validate(q.validate); err != nil {
		return nil, err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}

	q.seq++
	now := q.now()
	q.pruneLocked(now)
	job := &Job{
		ID:         uuid.New(),
		Seq:        q.seq,
		Envelope:   env,
		Status:     StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	q.jobs[job.ID] = job
	snapshot := job.clone()
	q.mu.Unlock()

	q.persistSave(ctx, snapshot)
	q.wake()

	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"action", env.Action,
		"seq", job.Seq)

	return snapshot, nil
}

// Claim atomically selects the oldest runnable pending job, marks it
// running and returns it. Exactly one caller wins each job. The second
// return value is false when no job is currently runnable.
func (q *Queue) Claim(ctx context.Context) (*Job, bool) {
	q.mu.Lock()

	job := q.oldestRunnableLocked()
	if job == nil {
		q.mu.Unlock()
		return nil, false
	}

	job.Status = StatusRunning
	job.UpdatedAt = q.now()
	snapshot := job.clone()
	q.mu.Unlock()

	q.persistUpdate(ctx, snapshot)
	return snapshot, true
}

// Complete marks a running job succeeded or failed. On retryable failure
// the job is re-enqueued pending with exponential backoff until the retry
// limit, after which it is dead-lettered with its last error retained.
// A job whose cancellation was requested while running is never requeued.
func (q *Queue) Complete(ctx context.Context, id uuid.UUID, outcome Outcome) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status != StatusRunning {
		q.mu.Unlock()
		return fmt.Errorf("job %s is %s, not running", id, job.Status)
	}

	now := q.now()
	job.UpdatedAt = now

	switch {
	case outcome.Err == nil:
		job.Status = StatusSucceeded
		job.LastError = ""

	default:
		job.Attempts++
		job.LastError = outcome.Err.Error()

		switch {
		case job.CancelRequested:
			job.Status = StatusCancelled
		case outcome.Terminal || job.Attempts >= q.cfg.MaxRetries:
			job.Status = StatusFailed
		default:
			job.Status = StatusPending
			job.RunAfter = now.Add(q.backoff(job.Attempts))
		}
	}

	// A successfully completed job that was asked to cancel stays
	// succeeded; cancellation only suppresses requeueing.
	requeued := job.Status == StatusPending
	snapshot := job.clone()
	q.pruneLocked(now)
	q.mu.Unlock()

	q.persistUpdate(ctx, snapshot)
	if requeued {
		q.wake()
	}

	q.logger.Debug("job completed",
		"job_id", id,
		"status", snapshot.Status,
		"attempts", snapshot.Attempts)

	return nil
}

// Release returns a claimed job to pending without counting an attempt.
// The dispatcher uses it when a job's serialization key is already in
// flight; the delay keeps the job from being reclaimed immediately.
func (q *Queue) Release(ctx context.Context, id uuid.UUID, delay time.Duration) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status != StatusRunning {
		q.mu.Unlock()
		return fmt.Errorf("job %s is %s, not running", id, job.Status)
	}

	now := q.now()
	job.Status = StatusPending
	job.RunAfter = now.Add(delay)
	job.UpdatedAt = now
	snapshot := job.clone()
	q.mu.Unlock()

	q.persistUpdate(ctx, snapshot)
	return nil
}

// Cancel cancels a pending job immediately. A running job is only marked
// for non-requeue on completion. Terminal jobs are not cancelable.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}

	switch job.Status {
	case StatusPending:
		job.Status = StatusCancelled
		job.UpdatedAt = q.now()
	case StatusRunning:
		job.CancelRequested = true
		job.UpdatedAt = q.now()
	default:
		q.mu.Unlock()
		return fmt.Errorf("%w: job %s is %s", ErrJobNotCancelable, id, job.Status)
	}

	snapshot := job.clone()
	q.mu.Unlock()

	q.persistUpdate(ctx, snapshot)
	return nil
}

// Get returns a snapshot of a single job.
func (q *Queue) Get(id uuid.UUID) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.clone(), nil
}

// List returns a snapshot of jobs in enqueue order, optionally filtered by
// status. It copies under the lock and never blocks writers beyond that.
func (q *Queue) List(statuses ...Status) []*Job {
	filter := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		filter[s] = struct{}{}
	}

	q.mu.Lock()
	jobs := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if len(filter) > 0 {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		jobs = append(jobs, job.clone())
	}
	q.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Seq < jobs[j].Seq })
	return jobs
}

// DeadLetters returns the terminally failed jobs with their retained last
// errors, for operator diagnosis.
func (q *Queue) DeadLetters() []*Job {
	return q.List(StatusFailed)
}

// Recover reloads unfinished jobs from the store: pending jobs are
// requeued as-is and jobs stuck running (from a crashed worker) are reset
// to pending. No-op without a store.
func (q *Queue) Recover(ctx context.Context) error {
	if q.store == nil {
		return nil
	}

	stored, err := q.store.ListJobs(ctx, StatusPending, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to load unfinished jobs: %w", err)
	}

	q.mu.Lock()
	recovered := 0
	for _, job := range stored {
		if _, exists := q.jobs[job.ID]; exists {
			continue
		}

		j := job.clone()
		if j.Status == StatusRunning {
			j.Status = StatusPending
			j.LastError = "reset after recovery"
			j.UpdatedAt = q.now()
		}

		q.seq++
		j.Seq = q.seq
		q.jobs[j.ID] = j
		recovered++
	}
	q.mu.Unlock()

	if recovered > 0 {
		q.wake()
	}

	q.logger.Info("recovered unfinished jobs", "count", recovered)
	return nil
}

// Close prevents further pushes. Jobs already queued remain claimable so
// workers can drain.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.logger.Info("job queue closed")
}

// oldestRunnableLocked returns the runnable pending job with the lowest
// sequence number. Caller must hold q.mu.
func (q *Queue) oldestRunnableLocked() *Job {
	now := q.now()
	var oldest *Job
	for _, job := range q.jobs {
		if !job.Runnable(now) {
			continue
		}
		if oldest == nil || job.Seq < oldest.Seq {
			oldest = job
		}
	}
	return oldest
}

// pruneLocked drops succeeded and cancelled jobs older than the retention
// window so the in-memory table stays bounded. Failed jobs are kept: the
// dead-letter view must outlive the window. The durable store record is
// untouched. Caller must hold q.mu.
func (q *Queue) pruneLocked(now time.Time) {
	cutoff := now.Add(-q.cfg.Retention)
	for id, job := range q.jobs {
		switch job.Status {
		case StatusSucceeded, StatusCancelled:
			if job.UpdatedAt.Before(cutoff) {
				delete(q.jobs, id)
			}
		}
	}
}

// backoff returns the retry delay after the given number of failed
// attempts: base * 2^(attempts-1), capped.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= q.cfg.BackoffCap {
			return q.cfg.BackoffCap
		}
	}
	if d > q.cfg.BackoffCap {
		return q.cfg.BackoffCap
	}
	return d
}

// wake nudges one idle worker. Dropping the send when the buffer is full
// is fine: a wake-up is already pending.
func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// persistSave mirrors a new job to the store, logging on failure. The
// caller already received its job id; enqueue never fails on storage.
func (q *Queue) persistSave(ctx context.Context, job *Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.logger.Error("failed to persist job",
			"job_id", job.ID,
			"action", job.Envelope.Action,
			"error", err)
	}
}

// persistUpdate mirrors a job transition to the store, logging on failure.
func (q *Queue) persistUpdate(ctx context.Context, job *Job) {
	if q.store == nil {
		return
	}
	if err := q.store.UpdateJob(ctx, job); err != nil {
		q.logger.Error("failed to persist job transition",
			"job_id", job.ID,
			"status", job.Status,
			"error", err)
	}
}
