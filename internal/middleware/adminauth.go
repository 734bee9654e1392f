// Package middleware provides HTTP middlewares for admin gating and logging.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// adminHeader carries the shared admin secret on gated requests.
const adminHeader = "X-Admin-Secret"

// AdminGate returns a middleware that rejects requests whose admin secret
// header does not match the configured secret. An empty configured secret
// disables the gated endpoints entirely.
func AdminGate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(adminHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"ok":      false,
					"message": "admin secret required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
