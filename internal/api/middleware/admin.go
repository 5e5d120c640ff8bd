package middleware

import (
	"net/http"

	"github.com/linkhive/linkhive-api/internal/api/shared"
	"github.com/linkhive/linkhive-api/internal/service/auth"
)

// AdminKeyHeader carries the operator key for administrative endpoints.
const AdminKeyHeader = "X-Admin-Key"

// AdminMiddleware guards operator endpoints with a bcrypt-hashed key. An
// empty configured hash disables the endpoints entirely rather than
// leaving them open.
type AdminMiddleware struct {
	keyHash string
}

// NewAdminMiddleware creates an AdminMiddleware checking against the
// given bcrypt hash.
func NewAdminMiddleware(keyHash string) *AdminMiddleware {
	return &AdminMiddleware{keyHash: keyHash}
}

// Require verifies the admin key header before passing the request on.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.keyHash == "" {
			shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
			return
		}

		key := r.Header.Get(AdminKeyHeader)
		if key == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Admin key required")
			return
		}

		if err := auth.VerifyAdminKey(m.keyHash, key); err != nil {
			shared.RespondWithError(w, r, http.StatusForbidden, "Invalid admin key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
