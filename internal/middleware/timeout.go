package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds unary (non-streaming) requests. http.TimeoutHandler
// buffers the response, so it must never wrap the chat stream route —
// that one uses StreamingTimeout instead.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"request timed out"}}`

	return func(next http.Handler) http.Handler {
		wrapped := http.TimeoutHandler(next, timeout, message)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// TimeoutHandler writes the timeout body straight to this
			// writer without a content type; handlers that respond in
			// time overwrite the header with their own.
			w.Header().Set("Content-Type", "application/json")
			wrapped.ServeHTTP(w, r)
		})
	}
}
