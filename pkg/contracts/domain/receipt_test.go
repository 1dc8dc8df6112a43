package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		expected float64
	}{
		{
			name:     "plain number",
			json:     `{"amount": 25.99}`,
			expected: 25.99,
		},
		{
			name:     "integer",
			json:     `{"amount": 100}`,
			expected: 100,
		},
		{
			name:     "numeric string",
			json:     `{"amount": "42.50"}`,
			expected: 42.50,
		},
		{
			name:     "negative number",
			json:     `{"amount": -5.25}`,
			expected: -5.25,
		},
		{
			name:     "null collapses to zero",
			json:     `{"amount": null}`,
			expected: 0,
		},
		{
			name:     "empty string collapses to zero",
			json:     `{"amount": ""}`,
			expected: 0,
		},
		{
			name:     "non-numeric string collapses to zero",
			json:     `{"amount": "twelve"}`,
			expected: 0,
		},
		{
			name:     "missing field",
			json:     `{}`,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec ReceiptRecord
			require.NoError(t, json.Unmarshal([]byte(tt.json), &rec))
			assert.InDelta(t, tt.expected, rec.Amount.Float64(), 0.0001)
		})
	}
}

func TestReceiptRecord_HasImage(t *testing.T) {
	assert.True(t, ReceiptRecord{ImageID: "img-1"}.HasImage())
	assert.False(t, ReceiptRecord{}.HasImage())
}

func TestFilterDescriptor_HasAny(t *testing.T) {
	tests := []struct {
		name     string
		filters  FilterDescriptor
		expected bool
	}{
		{
			name:     "no filters",
			filters:  FilterDescriptor{},
			expected: false,
		},
		{
			name:     "search only",
			filters:  FilterDescriptor{Search: "pharmacy"},
			expected: true,
		},
		{
			name:     "category only",
			filters:  FilterDescriptor{Category: "medical"},
			expected: true,
		},
		{
			name:     "category all is the no-filter sentinel",
			filters:  FilterDescriptor{Category: "all"},
			expected: false,
		},
		{
			name:     "search with category all",
			filters:  FilterDescriptor{Search: "dental", Category: "all"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filters.HasAny())
		})
	}
}

func TestExportRequest_Unmarshal(t *testing.T) {
	body := `{
		"records": [
			{"id": "r-1", "store_name": "CVS", "amount": 25.99, "receipt_date": "2024-03-15", "category": "medical", "description": "Refill", "image_id": "img-1"}
		],
		"filters": {"search": "cvs", "category": "medical"},
		"requester": {"name": "Pat", "email": "pat@example.com"}
	}`

	var req ExportRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	require.Len(t, req.Records, 1)
	assert.Equal(t, "CVS", req.Records[0].StoreName)
	assert.InDelta(t, 25.99, req.Records[0].Amount.Float64(), 0.0001)
	assert.True(t, req.Records[0].HasImage())
	assert.Equal(t, "cvs", req.Filters.Search)
	assert.Equal(t, "Pat", req.Requester.Name)
}
