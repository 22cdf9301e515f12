package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	errx "github.com/atendimento-virtual/server/internal/core/error"
)

const apiKeyHeader = "X-API-Key"

var errMissingCredentials = errors.New("missing api key")

// apiKeyMiddleware accepts the shared secret either in X-API-Key or as a
// Bearer token, compared in constant time.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(apiKeyHeader)
			if presented == "" {
				presented, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}

			if presented == "" {
				hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Msg("auth failure: missing credentials")
				writeError(w, errx.Unauthorized(errMissingCredentials))
				return
			}
			if !constantTimeEqual(presented, apiKey) {
				hlog.FromRequest(r).Warn().Str("path", r.URL.Path).Msg("auth failure: invalid credentials")
				writeError(w, errx.Unauthorized(errors.New("invalid api key")))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
