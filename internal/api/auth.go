package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"

	"restep/internal/metrics"
)

// TokenAuth returns middleware that requires "Authorization: Bearer <token>"
// on every request. An empty token disables the check.
func TokenAuth(token string) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			got := sha256.Sum256([]byte(provided))
			// compare digests so timing does not leak the token length
			if !ok || !hmac.Equal(got[:], want[:]) {
				metrics.RecordConnectionRejected("auth")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":   "unauthorized",
					"message": "Bearer token required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
