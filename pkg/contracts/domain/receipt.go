// Package domain contains the shared domain contracts for the receipt
// export service.
package domain

import (
	"bytes"
	"strconv"
	"strings"
)

// MaxExportRecords is the upper bound on the number of records accepted in a
// single export request.
const MaxExportRecords = 1000

// ReceiptRecord represents one expense receipt submitted for export. The
// record is immutable input; the service never stores it beyond the request.
type ReceiptRecord struct {
	ID          string `json:"id,omitempty"`
	StoreName   string `json:"store_name,omitempty"`
	Amount      Amount `json:"amount,omitempty"`
	ReceiptDate string `json:"receipt_date,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	ImageID     string `json:"image_id,omitempty"`
}

// HasImage reports whether the record declares a receipt image.
func (r ReceiptRecord) HasImage() bool {
	return r.ImageID != ""
}

// Amount is a monetary value that tolerates malformed input. Missing,
// null, or non-numeric JSON values unmarshal to zero rather than failing,
// so one bad amount never rejects a whole batch.
type Amount float64

// UnmarshalJSON accepts numbers, numeric strings, null, and anything else
// (which decodes as zero).
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(bytes.Trim(data, `"`)))
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(v)
	return nil
}

// Float64 returns the underlying value.
func (a Amount) Float64() float64 {
	return float64(a)
}

// FilterDescriptor narrates the filters the caller applied before
// submitting the batch. It is informational only: the service renders it
// into the document but never re-filters records.
type FilterDescriptor struct {
	Search   string `json:"search,omitempty"`
	Category string `json:"category,omitempty"`
}

// HasAny reports whether any filter should appear in the document's
// filter-summary line. The sentinel category "all" means no category
// filter was applied.
func (f FilterDescriptor) HasAny() bool {
	return f.Search != "" || (f.Category != "" && f.Category != "all")
}

// Requester identifies who asked for the export. Used only as document
// metadata.
type Requester struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// ExportRequest is the inbound payload for one export call.
type ExportRequest struct {
	Records   []ReceiptRecord  `json:"records"`
	Filters   FilterDescriptor `json:"filters,omitempty"`
	Requester Requester        `json:"requester,omitempty"`
}
