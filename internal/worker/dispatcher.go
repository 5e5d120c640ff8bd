package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkhive/linkhive-api/internal/platform/logger"
	"github.com/linkhive/linkhive-api/internal/queue"
	"github.com/linkhive/linkhive-api/internal/store"
)

// releaseDelay is how long a job waits before re-claim when its
// serialization key was already in flight.
const releaseDelay = 100 * time.Millisecond

// Handler executes the side effect for one action. Implementations must
// honor ctx cancellation and report failures via the returned error; they
// are invoked concurrently for different jobs.
type Handler interface {
	Handle(ctx context.Context, data json.RawMessage) error
}

// KeyedHandler is a Handler that additionally declares a per-key
// serialization requirement. The dispatcher guarantees at most one
// in-flight execution per non-empty key while jobs with other keys
// proceed unblocked.
type KeyedHandler interface {
	Handler

	// SerializationKey derives the mutual-exclusion key from the payload.
	// An empty key disables serialization for that job.
	SerializationKey(data json.RawMessage) string
}

// Config holds configuration for the dispatcher.
type Config struct {
	// WorkerCount determines how many concurrent workers claim jobs.
	WorkerCount int

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration

	// PollInterval is how often idle workers re-check the queue in
	// addition to push wake-ups, which covers retry backoff expiry.
	PollInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		WorkerCount:    2,
		HandlerTimeout: 30 * time.Second,
		PollInterval:   5 * time.Second,
	}
}

// Dispatcher consumes jobs from the queue and routes each to the handler
// registered for its action.
type Dispatcher struct {
	queue    *queue.Queue
	handlers map[queue.Action]Handler
	keys     *keyLock

	cfg    Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Dispatcher draining the given queue.
func New(q *queue.Queue, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.WorkerCount <= 0 {
		log.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
		cfg.WorkerCount = 1
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		queue:    q,
		handlers: make(map[queue.Action]Handler),
		keys:     newKeyLock(),
		cfg:      cfg,
		logger:   log.With("component", "dispatcher"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register binds a handler to an action. Registration happens during
// startup, before Start; later registrations would race the workers.
func (d *Dispatcher) Register(action queue.Action, handler Handler) {
	d.handlers[action] = handler
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("dispatcher started", "worker_count", d.cfg.WorkerCount)
}

// Stop cancels the run context and waits for all workers to finish their
// current job.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// worker repeatedly drains runnable jobs, then sleeps until a queue
// signal or the poll tick.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	log := d.logger.With("worker_id", id)
	log.Debug("starting worker")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.drain(id)

		select {
		case <-d.ctx.Done():
			log.Debug("stopping worker")
			return
		case <-d.queue.Signal():
		case <-ticker.C:
			// Poll tick: retry backoffs expire without a push signal.
		}
	}
}

// drain claims and processes jobs until none are runnable.
func (d *Dispatcher) drain(workerID int) {
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		job, ok := d.queue.Claim(d.ctx)
		if !ok {
			return
		}
		d.process(job, workerID)
	}
}

// process executes one claimed job and completes it exactly once.
// Handler errors, timeouts and panics are all translated into a failed
// outcome; nothing escapes to crash the loop.
func (d *Dispatcher) process(job *queue.Job, workerID int) {
	log := d.logger.With(
		"job_id", job.ID,
		"action", job.Envelope.Action,
		"worker_id", workerID,
	)
	ctx := logger.WithLogger(d.ctx, log)

	handler, ok := d.handlers[job.Envelope.Action]
	if !ok {
		log.Error("no handler registered for action")
		d.complete(ctx, job, queue.Outcome{
			Err:      fmt.Errorf("%w: %s", ErrUnsupportedAction, job.Envelope.Action),
			Terminal: true,
		})
		return
	}

	// Per-key serialization: a contended job goes back to pending with a
	// short delay and no attempt counted, leaving this worker free.
	var key string
	if keyed, isKeyed := handler.(KeyedHandler); isKeyed {
		key = keyed.SerializationKey(job.Envelope.Data)
	}
	if key != "" && !d.keys.TryAcquire(key) {
		log.Debug("serialization key in flight, releasing job", "key", key)
		if err := d.queue.Release(ctx, job.ID, releaseDelay); err != nil {
			log.Error("failed to release contended job", "error", err)
		}
		return
	}

	log.Info("processing job", "attempt", job.Attempts+1)

	err := d.invoke(ctx, handler, job.Envelope.Data, key)

	outcome := queue.Outcome{Err: err}
	if err != nil {
		outcome.Terminal = isTerminal(err)
		log.Error("job execution failed",
			"error", err,
			"terminal", outcome.Terminal)
	} else {
		log.Info("job completed successfully")
	}

	d.complete(ctx, job, outcome)
}

// invoke runs the handler under the configured time bound. The key (if
// any) is released by the execution goroutine itself, exactly once, when
// the handler actually returns, even if the dispatcher has already given
// up on it.
func (d *Dispatcher) invoke(
	ctx context.Context,
	handler Handler,
	data json.RawMessage,
	key string,
) error {
	hctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("handler panicked: %v", p)
			}
			if key != "" {
				d.keys.Release(key)
			}
		}()
		done <- handler.Handle(hctx, data)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	case <-hctx.Done():
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, d.cfg.HandlerTimeout)
		}
		return hctx.Err()
	}
}

// complete records the outcome, logging rather than propagating queue
// errors: the enqueuing caller already got its response.
func (d *Dispatcher) complete(ctx context.Context, job *queue.Job, outcome queue.Outcome) {
	if err := d.queue.Complete(ctx, job.ID, outcome); err != nil {
		d.logger.Error("failed to record job outcome",
			"job_id", job.ID,
			"error", err)
	}
}

// isTerminal reports whether a handler error should dead-letter the job
// immediately instead of following the retry policy. Ownership and
// existence violations cannot heal by retrying.
func isTerminal(err error) bool {
	return store.IsNotFoundError(err) || errors.Is(err, ErrUnsupportedAction)
}
