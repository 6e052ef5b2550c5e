package middleware

import (
	"log/slog"
	"net/http"

	"complyd/pkg/requestcontext"
	"complyd/pkg/secrets"
)

// RequireAdminToken guards administrative routes (reopen, force close) with a
// shared token. Only the bcrypt hash of the token is held in memory.
func RequireAdminToken(expectedHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if expectedHash == "" || secrets.Verify(token, expectedHash) != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
