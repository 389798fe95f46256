package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// WebhookTokenHeader carries the shared secret configured on the
// messaging gateway's webhook.
const WebhookTokenHeader = "X-Webhook-Token"

// WebhookToken rejects inbound webhooks that do not present token, either
// in WebhookTokenHeader or the "token" query parameter. An empty token
// disables the check.
func WebhookToken(token string) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(WebhookTokenHeader)
			if presented == "" {
				presented = r.URL.Query().Get("token")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				writeUnauthorized(w, "invalid webhook token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
