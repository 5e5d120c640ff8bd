package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhive/linkhive-api/internal/queue"
)

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestScreenshotHandlerSavesImage(t *testing.T) {
	saver := newFakeSaver()
	capture := &fakeCapture{imageURL: "https://cdn.example/shots/abc123.png"}
	h := NewScreenshotHandler(capture, saver, testLogger())

	userID := uuid.New()
	payload := mustMarshal(t, queue.ScreenshotPayload{
		URL:    "https://example.com/article",
		UserID: userID,
	})

	require.NoError(t, h.Handle(context.Background(), payload))

	call := saver.lastCall()
	assert.Equal(t, userID, call.userID)
	assert.Equal(t, "https://example.com/article", call.url)
	require.NotNil(t, call.fields.Image)
	assert.Equal(t, "https://cdn.example/shots/abc123.png", *call.fields.Image)
	assert.Equal(t, []string{"https://example.com/article"}, capture.calls)
}

func TestScreenshotHandlerIsIdempotent(t *testing.T) {
	saver := newFakeSaver()
	capture := &fakeCapture{imageURL: "https://cdn.example/shots/abc123.png"}
	h := NewScreenshotHandler(capture, saver, testLogger())

	payload := mustMarshal(t, queue.ScreenshotPayload{
		URL:    "https://example.com/article",
		UserID: uuid.New(),
	})

	require.NoError(t, h.Handle(context.Background(), payload))
	require.NoError(t, h.Handle(context.Background(), payload))

	assert.Len(t, saver.bookmarks, 1, "repeated captures merge into one bookmark")
}

func TestScreenshotHandlerWrapsCaptureFailure(t *testing.T) {
	saver := newFakeSaver()
	capture := &fakeCapture{err: errors.New("render timeout")}
	h := NewScreenshotHandler(capture, saver, testLogger())

	payload := mustMarshal(t, queue.ScreenshotPayload{
		URL:    "https://example.com/article",
		UserID: uuid.New(),
	})

	err := h.Handle(context.Background(), payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapture)
	assert.Empty(t, saver.calls, "nothing saved when capture fails")
}

func TestScreenshotHandlerRejectsMalformedPayload(t *testing.T) {
	h := NewScreenshotHandler(&fakeCapture{}, newFakeSaver(), testLogger())

	err := h.Handle(context.Background(), json.RawMessage(`{"url": 42}`))
	require.Error(t, err)
}
