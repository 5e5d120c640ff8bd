package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhive/linkhive-api/internal/config"
	"github.com/linkhive/linkhive-api/internal/service/auth"
)

func newTestJWTService(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "test-secret-key-that-is-long-enough-for-hmac",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)
	return svc
}

// okHandler records whether the middleware let the request through and
// what user ID it attached.
type okHandler struct {
	called bool
	userID uuid.UUID
	hasID  bool
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, h.hasID = GetUserID(r)
	w.WriteHeader(http.StatusOK)
}

func TestAuthenticateValidToken(t *testing.T) {
	t.Parallel()

	svc := newTestJWTService(t)
	userID := uuid.New()
	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	next := &okHandler{}
	mw := NewAuthMiddleware(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mw.Authenticate(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, next.called)
	require.True(t, next.hasID)
	assert.Equal(t, userID, next.userID)
}

func TestAuthenticateRejectsBadRequests(t *testing.T) {
	t.Parallel()

	mw := NewAuthMiddleware(newTestJWTService(t))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc123"},
		{"malformed token", "Bearer not.a.token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next := &okHandler{}
			req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, next.called)
		})
	}
}

func TestAdminRequire(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashAdminKey("letmein")
	require.NoError(t, err)
	mw := NewAdminMiddleware(hash)

	t.Run("valid key", func(t *testing.T) {
		next := &okHandler{}
		req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters", nil)
		req.Header.Set(AdminKeyHeader, "letmein")
		rec := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, next.called)
	})

	t.Run("missing key", func(t *testing.T) {
		next := &okHandler{}
		req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters", nil)
		rec := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, next.called)
	})

	t.Run("wrong key", func(t *testing.T) {
		next := &okHandler{}
		req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters", nil)
		req.Header.Set(AdminKeyHeader, "wrong")
		rec := httptest.NewRecorder()
		mw.Require(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, next.called)
	})
}

func TestAdminRequireDisabledWithoutHash(t *testing.T) {
	t.Parallel()

	mw := NewAdminMiddleware("")
	next := &okHandler{}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/dead-letters", nil)
	req.Header.Set(AdminKeyHeader, "anything")
	rec := httptest.NewRecorder()
	mw.Require(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, next.called)
}
