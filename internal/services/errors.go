package services

import "errors"

// Validation errors returned before any export work begins. Each maps to
// a distinct API error code at the transport boundary.
var (
	// ErrInvalidRequest means the records field was absent or not a sequence.
	ErrInvalidRequest = errors.New("records must be a non-empty array")

	// ErrEmptyBatch means records was present but empty.
	ErrEmptyBatch = errors.New("at least one record is required")

	// ErrBatchTooLarge means records exceeded the configured maximum.
	ErrBatchTooLarge = errors.New("record count exceeds maximum batch size")
)
