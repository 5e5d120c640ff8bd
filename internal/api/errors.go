package api

import (
	"errors"
	"net/http"

	"github.com/linkhive/linkhive-api/internal/domain"
	"github.com/linkhive/linkhive-api/internal/queue"
	"github.com/linkhive/linkhive-api/internal/service/auth"
	"github.com/linkhive/linkhive-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, auth.ErrInvalidAdminKey),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, queue.ErrJobNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, queue.ErrJobNotCancelable):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, queue.ErrValidation),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidURL),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Shutdown in progress
	case errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidAdminKey):
		return "Invalid admin key"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Operation not permitted"

	case errors.Is(err, store.ErrBookmarkNotFound):
		return "Bookmark not found"

	case errors.Is(err, store.ErrFeedNotFound):
		return "Feed not found"

	case errors.Is(err, queue.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, queue.ErrJobNotCancelable):
		return "Job already finished"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Already exists"

	case errors.Is(err, queue.ErrValidation),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID format"

	case errors.Is(err, domain.ErrInvalidURL):
		return "Invalid URL"

	case errors.Is(err, queue.ErrQueueClosed):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}
