package middleware

import (
	"encoding/json"
	"net/http"

	"go-videotube/internal/model"
)

func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.NewErrorResponse(code, message, "", nil))
}
