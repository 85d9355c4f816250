package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// TransferTimeout bounds media downloads without buffering them the way
// http.TimeoutHandler does, so http.ServeFile can still answer Range
// requests. maxDuration caps the whole transfer; idleTimeout caps the gap
// between two writes.
func TransferTimeout(maxDuration time.Duration, idleTimeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(maxDuration))

			tw := &transferWriter{ResponseWriter: w, rc: rc, idle: idleTimeout, cancel: cancel}
			tw.touch()
			defer tw.stop()

			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

type transferWriter struct {
	http.ResponseWriter
	rc     *http.ResponseController
	idle   time.Duration
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

// touch restarts the idle countdown. When it fires the write deadline is
// pulled in so a blocked Write fails immediately.
func (tw *transferWriter) touch() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timer != nil {
		tw.timer.Reset(tw.idle)
		return
	}

	tw.timer = time.AfterFunc(tw.idle, func() {
		_ = tw.rc.SetWriteDeadline(time.Now())
		tw.cancel()
	})
}

func (tw *transferWriter) stop() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timer != nil {
		tw.timer.Stop()
	}
}

func (tw *transferWriter) Write(b []byte) (int, error) {
	tw.touch()
	return tw.ResponseWriter.Write(b)
}

func (tw *transferWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func (tw *transferWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
