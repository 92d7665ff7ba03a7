package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/scans"
	"github.com/recontor/recontor/pkg/storage"
)

// ErrorResponse represents a standard JSON error response.
// Used consistently across all API endpoints.
//
// Example:
//
//	{
//	  "error": "Not Found",
//	  "code": "RESOURCE_NOT_FOUND",
//	  "message": "scan \"b2a7...\" not found"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`             // Short error type (e.g., "Not Found")
	Code    string `json:"code,omitempty"`    // Machine-readable error code
	Message string `json:"message,omitempty"` // Detailed error message (optional)
}

// WriteError writes a standard JSON error response, mapping domain errors
// to HTTP status codes:
//   - storage.NotFoundError → 404
//   - storage.InvalidInputError → 400
//   - scans.ErrResultsNotReady → 409
//   - everything else → 500
//
// It also logs the error with structured fields for observability.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	var errorType string
	var errorCode string
	message := err.Error()

	var notFoundErr *storage.NotFoundError
	var invalidInputErr *storage.InvalidInputError
	switch {
	case errors.As(err, &notFoundErr):
		statusCode = http.StatusNotFound
		errorType = "Not Found"
		errorCode = "RESOURCE_NOT_FOUND"
	case errors.As(err, &invalidInputErr):
		statusCode = http.StatusBadRequest
		errorType = "Bad Request"
		errorCode = "INVALID_INPUT"
	case errors.Is(err, scans.ErrResultsNotReady):
		statusCode = http.StatusConflict
		errorType = "Conflict"
		errorCode = "RESULTS_NOT_READY"
	default:
		statusCode = http.StatusInternalServerError
		errorType = "Internal Server Error"
		errorCode = "INTERNAL_ERROR"
	}

	logEvent := log.Error().
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Str("error_code", errorCode).
		Err(err)

	switch {
	case statusCode == http.StatusNotFound:
		logEvent.Msg("Resource not found")
	case statusCode >= 500:
		logEvent.Msg("Internal server error")
	default:
		logEvent.Msg("Client error")
	}

	writeErrorResponse(w, statusCode, ErrorResponse{
		Error:   errorType,
		Code:    errorCode,
		Message: message,
	})
}

// WriteJSONError writes a custom JSON error response with a specific
// status code, for handlers that validate before touching the service.
//
// Example:
//
//	WriteJSONError(w, http.StatusBadRequest, "Bad Request", "INVALID_MODE", "mode parameter is required")
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, errorCode, message string) {
	writeErrorResponse(w, statusCode, ErrorResponse{
		Error:   errorType,
		Code:    errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response to the client.
// Use this for successful API responses.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, response ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode error response")
	}
}
