package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logLevel slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"mixed case", "DeBuG", slog.LevelDebug},
		{"invalid falls back to info", "verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logger := Setup(tc.level)
			require.NotNil(t, logger)

			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tc.logLevel))
			if tc.logLevel > slog.LevelDebug {
				assert.False(t, logger.Enabled(ctx, tc.logLevel-1))
			}
		})
	}
}

func TestFromContextDefault(t *testing.T) {
	// A bare context yields the default logger rather than nil.
	logger := FromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestWithLoggerRoundTrip(t *testing.T) {
	base := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "test")
	ctx := WithLogger(context.Background(), base)

	got := FromContext(ctx)
	assert.Same(t, base, got)
}
