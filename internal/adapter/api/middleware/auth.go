package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminAuth is a middleware factory that guards operator endpoints with a
// static shared token. Token issuance and rotation live outside this service.
func AdminAuth(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(AdminTokenHeader)
			if provided == "" {
				logger.Warn("admin token missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: admin token required", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				logger.Warn("invalid admin token provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: invalid admin token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
