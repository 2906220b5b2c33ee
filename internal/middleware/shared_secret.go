package middleware

import (
	"crypto/subtle"
	"net/http"
)

// CronSecretHeader carries the shared secret of internal job endpoints.
const CronSecretHeader = "X-Cron-Secret"

// SharedSecret admits requests whose header matches secret. An empty secret
// locks the endpoints.
func SharedSecret(header, secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				WriteError(w, r, http.StatusUnauthorized, ErrorCodeUnauthorized, ErrorMessageUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
