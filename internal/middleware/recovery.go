package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			slog.ErrorContext(r.Context(), "panic recovered",
				"error", fmt.Sprintf("%v", recovered),
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		}()

		next.ServeHTTP(w, r)
	})
}
