package middleware

import (
	"net/http"
	"time"
)

// Timeout bounds API handlers. The response is buffered by
// http.TimeoutHandler, so media routes use TransferTimeout instead.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := `{"success":false,"code":"REQUEST_TIMEOUT","message":"request timed out","errors":[]}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
