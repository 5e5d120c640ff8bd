// Package logger provides structured logging functionality for the
// application: slog setup from configuration and helpers for carrying a
// request- or job-scoped logger through a context.
package logger
