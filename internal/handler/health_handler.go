package handler

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"go-videotube/pkg/apierror"
)

var errDocsUnavailable = apierror.NotFound("api documentation is not available", "")

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	down := make([]string, 0)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = "down"
			down = append(down, name)
			continue
		}
		status[name] = "up"
	}

	if len(down) > 0 {
		sort.Strings(down)
		writeError(w, r, apierror.New("UNAVAILABLE", "service unavailable",
			"unreachable: "+strings.Join(down, ", "), http.StatusServiceUnavailable))
		return
	}

	writeSuccess(w, http.StatusOK, "ok", status)
}
