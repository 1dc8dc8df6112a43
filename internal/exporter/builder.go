// Package exporter builds the receipt export spreadsheet. The layout is a
// compatibility contract: title, optional filter summary, spacer, styled
// header, one data row per record in input order, and a summary row.
package exporter

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/xuri/excelize/v2"

	"receiptexport/internal/images"
	"receiptexport/pkg/contracts/domain"
)

const (
	// imageDisplayWidth and imageDisplayHeight are the fixed footprint, in
	// pixels, every embedded image is scaled to.
	imageDisplayWidth  = 150
	imageDisplayHeight = 100

	// imageRowHeight is the enlarged row height for rows carrying an
	// embedded image.
	imageRowHeight = 100

	// minColumnWidth is the floor applied to the first five column widths
	// after all rows are written.
	minColumnWidth = 15

	placeholderWithImage = "Image attached"
	placeholderNoImage   = "No image"

	headerFillColor  = "4472C4"
	summaryFillColor = "F2F2F2"
	dataBorderColor  = "D3D3D3"
)

// columns maps the output columns in order. Widths are the initial
// character-unit widths before the minimum-width post-pass.
var columns = []struct {
	Letter string
	Title  string
	Width  float64
}{
	{"A", "Store/Provider", 25},
	{"B", "Amount", 12},
	{"C", "Date", 15},
	{"D", "Category", 20},
	{"E", "Description", 40},
	{"F", "Receipt Image", 20},
}

// Builder incrementally assembles the export workbook. It is consumed
// once by serialization and must not be reused across requests.
type Builder struct {
	f      *excelize.File
	sheet  string
	logger *slog.Logger

	row         int // next row to write
	recordCount int
	imageCount  int
	total       float64

	dataStyle    int
	summaryStyle int
}

// NewBuilder creates a workbook with the title, optional filter summary,
// spacer, and header rows already written. Data rows follow immediately:
// when no filters are present the filter row is skipped entirely and the
// remaining rows shift up.
func NewBuilder(sheet string, filters domain.FilterDescriptor, now time.Time, logger *slog.Logger) (*Builder, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	b := &Builder{
		f:      f,
		sheet:  sheet,
		logger: logger.With(slog.String("component", "document_builder")),
		row:    1,
	}

	for _, col := range columns {
		if err := f.SetColWidth(sheet, col.Letter, col.Letter, col.Width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := b.createStyles(); err != nil {
		return nil, err
	}

	if err := b.writeTitle(now); err != nil {
		return nil, err
	}
	if err := b.writeFilterSummary(filters); err != nil {
		return nil, err
	}
	b.row++ // blank spacer row
	if err := b.writeHeader(); err != nil {
		return nil, err
	}

	return b, nil
}

// createStyles registers the reusable cell styles on the workbook.
func (b *Builder) createStyles() error {
	var err error
	b.dataStyle, err = b.f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
		Border:    thinBorder(dataBorderColor),
	})
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}

	b.summaryStyle, err = b.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{summaryFillColor}},
	})
	if err != nil {
		return fmt.Errorf("failed to create summary style: %w", err)
	}

	return nil
}

// writeTitle writes the merged title row.
func (b *Builder) writeTitle(now time.Time) error {
	cell := fmt.Sprintf("A%d", b.row)
	title := fmt.Sprintf("Healthcare Receipt Export - %s", now.Format(dateDisplayLayout))
	if err := b.f.SetCellValue(b.sheet, cell, title); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}
	if err := b.f.MergeCell(b.sheet, cell, fmt.Sprintf("F%d", b.row)); err != nil {
		return fmt.Errorf("failed to merge title cells: %w", err)
	}

	style, err := b.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create title style: %w", err)
	}
	if err := b.f.SetCellStyle(b.sheet, cell, cell, style); err != nil {
		return fmt.Errorf("failed to style title: %w", err)
	}

	b.row++
	return nil
}

// writeFilterSummary writes the merged applied-filters line. The row is
// present only when a filter was actually applied; downstream rows shift
// up when it is absent.
func (b *Builder) writeFilterSummary(filters domain.FilterDescriptor) error {
	if !filters.HasAny() {
		return nil
	}

	var parts []string
	if filters.Search != "" {
		parts = append(parts, fmt.Sprintf("Search: %q", filters.Search))
	}
	if filters.Category != "" && filters.Category != "all" {
		parts = append(parts, fmt.Sprintf("Category: %s", filters.Category))
	}

	cell := fmt.Sprintf("A%d", b.row)
	if err := b.f.SetCellValue(b.sheet, cell, strings.Join(parts, ", ")); err != nil {
		return fmt.Errorf("failed to write filter summary: %w", err)
	}
	if err := b.f.MergeCell(b.sheet, cell, fmt.Sprintf("F%d", b.row)); err != nil {
		return fmt.Errorf("failed to merge filter cells: %w", err)
	}

	style, err := b.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Size: 10},
	})
	if err != nil {
		return fmt.Errorf("failed to create filter style: %w", err)
	}
	if err := b.f.SetCellStyle(b.sheet, cell, cell, style); err != nil {
		return fmt.Errorf("failed to style filter summary: %w", err)
	}

	b.row++
	return nil
}

// writeHeader writes the styled column header row.
func (b *Builder) writeHeader() error {
	style, err := b.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFillColor}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder("000000"),
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for _, col := range columns {
		cell := fmt.Sprintf("%s%d", col.Letter, b.row)
		if err := b.f.SetCellValue(b.sheet, cell, col.Title); err != nil {
			return fmt.Errorf("failed to write header cell %s: %w", cell, err)
		}
	}
	first := fmt.Sprintf("A%d", b.row)
	last := fmt.Sprintf("F%d", b.row)
	if err := b.f.SetCellStyle(b.sheet, first, last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	b.row++
	return nil
}

// AppendRow writes one data row for a record and, when the fetch yielded
// an image, embeds it in the image column. An Absent result leaves the
// placeholder text with no embedding and no error.
func (b *Builder) AppendRow(rec domain.ReceiptRecord, img images.Result) error {
	placeholder := placeholderNoImage
	if rec.HasImage() {
		placeholder = placeholderWithImage
	}

	values := []interface{}{
		rec.StoreName,
		FormatCurrency(rec.Amount.Float64()),
		FormatDate(rec.ReceiptDate),
		rec.Category,
		rec.Description,
		placeholder,
	}
	for i, col := range columns {
		cell := fmt.Sprintf("%s%d", col.Letter, b.row)
		if err := b.f.SetCellValue(b.sheet, cell, values[i]); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}

	first := fmt.Sprintf("A%d", b.row)
	last := fmt.Sprintf("F%d", b.row)
	if err := b.f.SetCellStyle(b.sheet, first, last, b.dataStyle); err != nil {
		return fmt.Errorf("failed to style row %d: %w", b.row, err)
	}

	if rec.HasImage() && img.Present {
		if err := b.embedImage(rec, img); err != nil {
			// Best effort: a malformed image degrades this row to its
			// placeholder, never the export.
			b.logger.Warn("failed to embed image",
				slog.String("record_id", rec.ID),
				slog.String("image_id", rec.ImageID),
				slog.String("error", err.Error()))
		} else {
			b.imageCount++
		}
	}

	b.total += rec.Amount.Float64()
	b.recordCount++
	b.row++
	return nil
}

// embedImage anchors the image at the current row's image column, scaled
// to the fixed display footprint, and enlarges the row to fit it.
func (b *Builder) embedImage(rec domain.ReceiptRecord, img images.Result) error {
	scaleX, scaleY := imageScale(img.Data)

	cell := fmt.Sprintf("F%d", b.row)
	err := b.f.AddPictureFromBytes(b.sheet, cell, &excelize.Picture{
		Extension: extensionForContentType(img.ContentType),
		File:      img.Data,
		Format: &excelize.GraphicOptions{
			ScaleX:          scaleX,
			ScaleY:          scaleY,
			LockAspectRatio: false,
		},
	})
	if err != nil {
		return err
	}

	if err := b.f.SetRowHeight(b.sheet, b.row, imageRowHeight); err != nil {
		return fmt.Errorf("failed to set row height: %w", err)
	}

	return nil
}

// Finalize writes the summary row and applies the minimum-width pass to
// the first five columns. Call exactly once, after the last AppendRow.
func (b *Builder) Finalize() error {
	values := []interface{}{
		"TOTAL:",
		FormatCurrency(b.total),
		fmt.Sprintf("%d receipts", b.recordCount),
		"",
		"",
		fmt.Sprintf("%d images", b.imageCount),
	}
	for i, col := range columns {
		cell := fmt.Sprintf("%s%d", col.Letter, b.row)
		if err := b.f.SetCellValue(b.sheet, cell, values[i]); err != nil {
			return fmt.Errorf("failed to write summary cell %s: %w", cell, err)
		}
	}

	first := fmt.Sprintf("A%d", b.row)
	last := fmt.Sprintf("F%d", b.row)
	if err := b.f.SetCellStyle(b.sheet, first, last, b.summaryStyle); err != nil {
		return fmt.Errorf("failed to style summary row: %w", err)
	}
	b.row++

	// Widen the first five columns to at least the minimum.
	for _, col := range columns[:5] {
		if col.Width < minColumnWidth {
			if err := b.f.SetColWidth(b.sheet, col.Letter, col.Letter, minColumnWidth); err != nil {
				return fmt.Errorf("failed to widen column %s: %w", col.Letter, err)
			}
		}
	}

	return nil
}

// SetRequester records who asked for the export as workbook metadata.
func (b *Builder) SetRequester(req domain.Requester) error {
	if req.Name == "" && req.Email == "" {
		return nil
	}
	return b.f.SetDocProps(&excelize.DocProperties{
		Creator:     req.Name,
		Description: fmt.Sprintf("Generated for %s <%s>", req.Name, req.Email),
	})
}

// ImagesEmbedded returns the number of images successfully embedded.
func (b *Builder) ImagesEmbedded() int {
	return b.imageCount
}

// RecordCount returns the number of data rows written.
func (b *Builder) RecordCount() int {
	return b.recordCount
}

// Total returns the running monetary total.
func (b *Builder) Total() float64 {
	return b.total
}

// SaveAs serializes the workbook to the given path.
func (b *Builder) SaveAs(path string) error {
	return b.f.SaveAs(path)
}

// Close releases the workbook resources.
func (b *Builder) Close() error {
	return b.f.Close()
}

// thinBorder builds a thin border on all four sides in the given color.
func thinBorder(color string) []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: color, Style: 1},
		{Type: "right", Color: color, Style: 1},
		{Type: "top", Color: color, Style: 1},
		{Type: "bottom", Color: color, Style: 1},
	}
}

// imageScale computes the scale factors that fit the image into the fixed
// display footprint. Unknown dimensions fall back to the unscaled image.
func imageScale(data []byte) (float64, float64) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return 1, 1
	}
	return float64(imageDisplayWidth) / float64(cfg.Width), float64(imageDisplayHeight) / float64(cfg.Height)
}

// extensionForContentType maps the upstream content type to a picture
// extension, defaulting to JPEG.
func extensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
