package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linkhive/linkhive-api/internal/platform/logger"
	"github.com/linkhive/linkhive-api/internal/queue"
	"github.com/linkhive/linkhive-api/internal/store"
)

// PostgresJobStore implements the queue.JobStore interface using a
// PostgreSQL database, mirroring the in-memory queue so unfinished jobs
// survive restarts.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// queue.JobStore interface.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements queue.JobStore interface
var _ queue.JobStore = (*PostgresJobStore)(nil)

// SaveJob implements queue.JobStore.SaveJob.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job *queue.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (id, action, payload, status, attempts, last_error, run_after, cancel_requested, enqueued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		string(job.Envelope.Action),
		[]byte(job.Envelope.Data),
		string(job.Status),
		job.Attempts,
		job.LastError,
		nullableTime(job.RunAfter),
		job.CancelRequested,
		job.EnqueuedAt,
		job.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to save job",
			"job_id", job.ID,
			"action", job.Envelope.Action,
			"error", err)
		return store.NewStoreError("job", "save", "database error", MapError(err))
	}

	return nil
}

// UpdateJob implements queue.JobStore.UpdateJob. A missing row is treated
// as a no-op: the mirror is best effort and must not wedge the queue.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job *queue.Job) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = $1, attempts = $2, last_error = $3, run_after = $4, cancel_requested = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		string(job.Status),
		job.Attempts,
		job.LastError,
		nullableTime(job.RunAfter),
		job.CancelRequested,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			"job_id", job.ID,
			"status", job.Status,
			"error", err)
		return store.NewStoreError("job", "update", "database error", MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no job row to update", "job_id", job.ID)
	}

	return nil
}

// ListJobs implements queue.JobStore.ListJobs.
func (s *PostgresJobStore) ListJobs(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, action, payload, status, attempts, last_error, run_after, cancel_requested, enqueued_at, updated_at
		FROM jobs
	`
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY enqueued_at ASC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list jobs", "error", err)
		return nil, store.NewStoreError("job", "list", "database error", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*queue.Job
	for rows.Next() {
		job := &queue.Job{}
		var action string
		var payload []byte
		var status string
		var runAfter sql.NullTime

		err := rows.Scan(
			&job.ID,
			&action,
			&payload,
			&status,
			&job.Attempts,
			&job.LastError,
			&runAfter,
			&job.CancelRequested,
			&job.EnqueuedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			return nil, store.NewStoreError("job", "list", "failed to scan row", MapError(err))
		}

		job.Envelope = queue.Envelope{
			Action: queue.Action(action),
			Data:   payload,
		}
		job.Status = queue.Status(status)
		if runAfter.Valid {
			job.RunAfter = runAfter.Time
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", "list", "row iteration error", MapError(err))
	}

	return jobs, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
