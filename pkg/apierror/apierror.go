package apierror

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeConflict      = "CONFLICT"
	CodeBadCredential = "BAD_CREDENTIAL"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    string   `json:"details,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	HTTPStatus int      `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithErrors attaches per-field messages and returns the same error.
func (e *APIError) WithErrors(errs ...string) *APIError {
	e.Errors = append(e.Errors, errs...)
	return e
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(message string, fields ...string) *APIError {
	return New(CodeValidation, message, "", http.StatusBadRequest).WithErrors(fields...)
}

func Conflict(message string) *APIError {
	return New(CodeConflict, message, "", http.StatusConflict)
}

func BadCredential(message string) *APIError {
	return New(CodeBadCredential, message, "", http.StatusUnauthorized)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Internal(message string) *APIError {
	return New(CodeInternal, message, "", http.StatusInternalServerError)
}
