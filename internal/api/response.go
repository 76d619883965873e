package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Tiliavir/epunch/internal/tracker"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fallback := Response{
			Success: false,
			Error: &ErrorDetail{
				Code:    "ENCODING_ERROR",
				Message: "Failed to encode response",
			},
		}
		_ = json.NewEncoder(w).Encode(fallback)
	}
}

// Success responses
func Success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func SuccessWithMessage(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Created(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error responses
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, "BAD_REQUEST", message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusConflict, code, message)
}

func DataIntegrity(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnprocessableEntity, "DATA_INTEGRITY", message)
}

func StoreUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", message)
}

func InternalServerError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

var errForbidden = errors.New("not allowed to access this resource")

// HandleError maps tracker errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var (
		integrity *tracker.DataIntegrityError
		store     *tracker.StoreError
	)
	switch {
	case errors.Is(err, tracker.ErrAlreadyActive):
		Conflict(w, "ALREADY_ACTIVE", err.Error())
	case errors.Is(err, tracker.ErrNoActiveShift):
		Conflict(w, "NO_ACTIVE_SHIFT", err.Error())

	case errors.Is(err, tracker.ErrInvalidTimeRange),
		errors.Is(err, tracker.ErrMissingUserID),
		errors.Is(err, tracker.ErrMissingName),
		errors.Is(err, tracker.ErrUnknownWeekday):
		BadRequest(w, err.Error())

	case errors.Is(err, tracker.ErrShiftNotFound):
		NotFound(w, "Shift not found")
	case errors.Is(err, tracker.ErrUserNotFound):
		NotFound(w, "User not found")
	case errors.Is(err, tracker.ErrCompanyNotFound):
		NotFound(w, "Company not found")

	case errors.Is(err, errForbidden):
		Forbidden(w, err.Error())

	case errors.As(err, &integrity):
		DataIntegrity(w, integrity.Error())
	case errors.As(err, &store):
		StoreUnavailable(w, "The shift store is unavailable, please retry")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
