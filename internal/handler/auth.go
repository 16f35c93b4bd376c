package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"transfer-hub/internal/errors"
)

const APIKeyHeader = "x-api-key"

// APIKeyMiddleware rejects requests whose x-api-key header does not match
// apiKey. An empty apiKey disables the check.
func APIKeyMiddleware(apiKey string, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				writeError(w, errors.ErrAPIKeyRequired)
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				logger.Warn("Rejected request with invalid API key", "method", r.Method, "path", r.URL.Path)
				writeError(w, errors.ErrInvalidAPIKey)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
