// Package errors defines the structured error responses for the receipt
// export API.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors for the batch rejection cases. Each carries a
// distinct code clients can branch on.
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Request body must contain a records array")
	ErrEmptyBatch     = New(http.StatusBadRequest, "EMPTY_BATCH", "At least one record is required for export")
	ErrBatchTooLarge  = New(http.StatusBadRequest, "BATCH_TOO_LARGE", "Record count exceeds the maximum batch size")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// BatchTooLargeError creates a batch size error carrying the limit
func BatchTooLargeError(count, max int) *APIError {
	return NewWithDetails(http.StatusBadRequest, "BATCH_TOO_LARGE",
		fmt.Sprintf("Record count %d exceeds the maximum batch size of %d", count, max),
		map[string]interface{}{"count": count, "max": max})
}

// ExportFailedError creates an export failure error with a human-readable
// detail string and elapsed processing time in milliseconds.
func ExportFailedError(err error, elapsedMs int64) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "EXPORT_FAILED",
		"Failed to generate export document",
		map[string]interface{}{"detail": err.Error(), "processing_time_ms": elapsedMs})
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}
