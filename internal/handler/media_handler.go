package handler

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"go-videotube/internal/storage"
	"go-videotube/pkg/apierror"
)

// MediaHandler serves objects written by the local store. Directories are
// never listed.
type MediaHandler struct {
	paths *storage.PathValidator
}

func NewMediaHandler(paths *storage.PathValidator) *MediaHandler {
	return &MediaHandler{paths: paths}
}

func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	notFound := apierror.NotFound("media not found", "")

	target, err := h.paths.ResolveKey(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, r, notFound)
		return
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		writeError(w, r, notFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	http.ServeFile(w, r, target)
}
