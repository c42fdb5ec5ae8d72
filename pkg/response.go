package pkg

import (
	"encoding/json"
	"errors"
	"net/http"
)

// APIResponse is the envelope every JSON endpoint answers with.
// Client widgets always expect the same shape.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JSON writes a successful response.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// Error writes an error response. Domain errors are mapped to the matching
// HTTP status code; anything unknown becomes 500.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		message = ErrInternal.Error()
	}

	ErrorWithMessage(w, status, message)
}

// ErrorWithMessage writes an error response with a custom message.
func ErrorWithMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := APIResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode error response", http.StatusInternalServerError)
	}
}

// StatusFor maps domain errors to HTTP status codes.
// errors.Is walks the wrap chain, so "%w: ..." errors match too.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
