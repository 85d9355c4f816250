package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-videotube/internal/middleware"
	"go-videotube/internal/model"
	"go-videotube/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := model.NewErrorResponse(apierror.CodeInternal, "unexpected server error", "", nil)

	var apiErr *apierror.APIError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body = model.NewErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details, apiErr.Errors)
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
		body.Code = "PAYLOAD_TOO_LARGE"
		body.Message = "request body is too large"
	case errors.Is(err, model.ErrUserAlreadyExists):
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Message = "user with email or username already exists"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeBadCredential
		body.Message = "invalid user credentials"
	case errors.Is(err, model.ErrTokenMissing), errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "unauthorized request"
	case errors.Is(err, model.ErrChannelNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = model.ErrChannelNotFound.Error()
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "user not found"
	default:
		slog.ErrorContext(r.Context(), "unhandled error",
			"error", err.Error(),
			"path", r.URL.Path,
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a small JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return apierror.New(apierror.CodeValidation, "invalid JSON body", "", http.StatusBadRequest)
	}
	return nil
}
