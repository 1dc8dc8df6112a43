package exporter

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// dateDisplayLayout is the layout used for all dates rendered into the
// spreadsheet, e.g. "Mar 15, 2024".
const dateDisplayLayout = "Jan 2, 2006"

// dateParseLayouts are the accepted inbound date formats, tried in order.
var dateParseLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// FormatCurrency renders a monetary value as a US dollar display string
// with thousands separators and two decimals, e.g. "$1,234.56".
// Negative values render as "-$12.34".
func FormatCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	// Half-up cent rounding. Sprintf alone rounds to even on binary
	// representations like 10.555 -> 10.55.
	amount = math.Round(amount*100) / 100

	s := fmt.Sprintf("%.2f", amount)
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}

	return sign + "$" + b.String() + "." + fracPart
}

// FormatDate parses a raw date value and renders it as "Jan 2, 2006".
// When parsing fails the raw value is returned unchanged, or the literal
// "Invalid Date" when no raw value exists.
func FormatDate(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Invalid Date"
	}

	for _, layout := range dateParseLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format(dateDisplayLayout)
		}
	}

	return raw
}
