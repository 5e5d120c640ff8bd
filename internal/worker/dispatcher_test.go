package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhive/linkhive-api/internal/queue"
	"github.com/linkhive/linkhive-api/internal/store"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fastConfig keeps retries and polling tight so tests finish quickly.
func fastConfig() Config {
	return Config{
		WorkerCount:    2,
		HandlerTimeout: time.Second,
		PollInterval:   5 * time.Millisecond,
	}
}

func fastQueue() *queue.Queue {
	return queue.New(queue.Config{
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
	}, nil, setupTestLogger())
}

// funcHandler adapts a function to the Handler interface.
type funcHandler func(ctx context.Context, data json.RawMessage) error

func (f funcHandler) Handle(ctx context.Context, data json.RawMessage) error {
	return f(ctx, data)
}

// keyedFuncHandler adds a fixed-key serialization requirement.
type keyedFuncHandler struct {
	funcHandler
	keyFn func(data json.RawMessage) string
}

func (h keyedFuncHandler) SerializationKey(data json.RawMessage) string {
	return h.keyFn(data)
}

func pushScreenshot(t *testing.T, q *queue.Queue, url string) *queue.Job {
	t.Helper()
	env, err := queue.NewEnvelope(queue.ActionAddScreenshot, queue.ScreenshotPayload{
		URL:    url,
		UserID: uuid.New(),
	})
	require.NoError(t, err)
	job, err := q.Push(context.Background(), env)
	require.NoError(t, err)
	return job
}

func awaitStatus(t *testing.T, q *queue.Queue, id uuid.UUID, want queue.Status) *queue.Job {
	t.Helper()
	var got *queue.Job
	require.Eventually(t, func() bool {
		job, err := q.Get(id)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 5*time.Second, 2*time.Millisecond, "job never reached status %s", want)
	return got
}

func TestDispatcherProcessesJob(t *testing.T) {
	q := fastQueue()
	d := New(q, fastConfig(), setupTestLogger())

	var mu sync.Mutex
	var handled []string
	d.Register(queue.ActionAddScreenshot, funcHandler(func(_ context.Context, data json.RawMessage) error {
		var payload queue.ScreenshotPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		mu.Lock()
		handled = append(handled, payload.URL)
		mu.Unlock()
		return nil
	}))

	d.Start()
	defer d.Stop()

	job := pushScreenshot(t, q, "https://a.example")
	got := awaitStatus(t, q, job.ID, queue.StatusSucceeded)

	assert.Zero(t, got.Attempts)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"https://a.example"}, handled)
}

func TestUnregisteredActionFailsWithoutRetry(t *testing.T) {
	q := fastQueue()
	d := New(q, fastConfig(), setupTestLogger())
	// No handler registered for ADD_FEED.
	d.Start()
	defer d.Stop()

	env, err := queue.NewEnvelope(queue.ActionAddFeed, queue.FeedPayload{
		FeedURL: "https://a.example/rss.xml",
		UserID:  uuid.New(),
	})
	require.NoError(t, err)
	job, err := q.Push(context.Background(), env)
	require.NoError(t, err)

	got := awaitStatus(t, q, job.ID, queue.StatusFailed)
	assert.Equal(t, 1, got.Attempts, "unsupported actions are not retried")
	assert.Contains(t, got.LastError, "no handler registered")
}

func TestRetryableFailureDeadLettersAfterMaxRetries(t *testing.T) {
	q := fastQueue()
	d := New(q, fastConfig(), setupTestLogger())

	var calls int32
	var mu sync.Mutex
	d.Register(queue.ActionAddScreenshot, funcHandler(func(context.Context, json.RawMessage) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("capture service unavailable")
	}))

	d.Start()
	defer d.Stop()

	job := pushScreenshot(t, q, "https://a.example")
	got := awaitStatus(t, q, job.ID, queue.StatusFailed)

	assert.Equal(t, 3, got.Attempts)
	assert.Equal(t, "capture service unavailable", got.LastError)

	mu.Lock()
	defer mu.Unlock()
	assert.EqualValues(t, 3, calls)
}

func TestNotFoundErrorIsTerminal(t *testing.T) {
	q := fastQueue()
	d := New(q, fastConfig(), setupTestLogger())

	d.Register(queue.ActionAddScreenshot, funcHandler(func(context.Context, json.RawMessage) error {
		return store.ErrBookmarkNotFound
	}))

	d.Start()
	defer d.Stop()

	job := pushScreenshot(t, q, "https://a.example")
	got := awaitStatus(t, q, job.ID, queue.StatusFailed)
	assert.Equal(t, 1, got.Attempts, "not-found failures cannot heal by retrying")
}

func TestHandlerTimeout(t *testing.T) {
	q := queue.New(queue.Config{
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		BackoffCap:  time.Millisecond,
	}, nil, setupTestLogger())

	cfg := fastConfig()
	cfg.HandlerTimeout = 20 * time.Millisecond
	d := New(q, cfg, setupTestLogger())

	d.Register(queue.ActionAddScreenshot, funcHandler(func(ctx context.Context, _ json.RawMessage) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	d.Start()
	defer d.Stop()

	job := pushScreenshot(t, q, "https://a.example")
	got := awaitStatus(t, q, job.ID, queue.StatusFailed)
	assert.Contains(t, got.LastError, "timed out")
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	q := fastQueue()
	d := New(q, fastConfig(), setupTestLogger())

	d.Register(queue.ActionAddScreenshot, funcHandler(func(_ context.Context, data json.RawMessage) error {
		var payload queue.ScreenshotPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		if payload.URL == "https://bad.example" {
			panic("handler bug")
		}
		return nil
	}))

	d.Start()
	defer d.Stop()

	bad := pushScreenshot(t, q, "https://bad.example")
	good := pushScreenshot(t, q, "https://good.example")

	gotBad := awaitStatus(t, q, bad.ID, queue.StatusFailed)
	assert.Contains(t, gotBad.LastError, "panicked")

	// The panic did not take down the dispatch loop.
	awaitStatus(t, q, good.ID, queue.StatusSucceeded)
}

func TestKeyedSerializationAdmitsOneInFlightPerKey(t *testing.T) {
	q := fastQueue()
	cfg := fastConfig()
	cfg.WorkerCount = 8
	d := New(q, cfg, setupTestLogger())

	var mu sync.Mutex
	inFlight := make(map[string]int)
	maxInFlight := make(map[string]int)

	keyOf := func(data json.RawMessage) string {
		var payload queue.ScreenshotPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return ""
		}
		return payload.URL
	}

	d.Register(queue.ActionAddScreenshot, keyedFuncHandler{
		funcHandler: func(_ context.Context, data json.RawMessage) error {
			key := keyOf(data)
			mu.Lock()
			inFlight[key]++
			if inFlight[key] > maxInFlight[key] {
				maxInFlight[key] = inFlight[key]
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inFlight[key]--
			mu.Unlock()
			return nil
		},
		keyFn: keyOf,
	})

	d.Start()
	defer d.Stop()

	urls := []string{"https://a.example", "https://b.example"}
	var jobs []*queue.Job
	for i := 0; i < 12; i++ {
		jobs = append(jobs, pushScreenshot(t, q, urls[i%len(urls)]))
	}

	for _, job := range jobs {
		got := awaitStatus(t, q, job.ID, queue.StatusSucceeded)
		assert.Zero(t, got.Attempts, "key contention must not count attempts")
	}

	mu.Lock()
	defer mu.Unlock()
	for key, max := range maxInFlight {
		assert.LessOrEqual(t, max, 1, "key %s ran concurrently", key)
	}
}

func TestKeyLock(t *testing.T) {
	l := newKeyLock()

	require.True(t, l.TryAcquire("a"))
	assert.False(t, l.TryAcquire("a"), "held key cannot be acquired twice")
	assert.True(t, l.TryAcquire("b"), "other keys proceed unblocked")

	l.Release("a")
	assert.True(t, l.TryAcquire("a"), "released key is acquirable again")
}
