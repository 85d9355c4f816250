package model

type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the single failure envelope. Errors is always present,
// even when empty.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors"`
}

func NewErrorResponse(code string, message string, details string, errs []string) ErrorResponse {
	if errs == nil {
		errs = []string{}
	}

	return ErrorResponse{
		Success: false,
		Code:    code,
		Message: message,
		Details: details,
		Errors:  errs,
	}
}
