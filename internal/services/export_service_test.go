package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptexport/internal/config"
	"receiptexport/internal/images"
	"receiptexport/pkg/contracts/domain"
)

// tinyPNG is a valid 1x1 transparent PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

func pngBytes(t *testing.T) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(tinyPNG)
	require.NoError(t, err)
	return data
}

// stubFetcher serves canned results keyed by image id. Unknown ids are
// absent, matching the real fetcher's failure behavior.
type stubFetcher struct {
	results map[string]images.Result
}

func (s *stubFetcher) Fetch(ctx context.Context, imageID string) images.Result {
	if r, ok := s.results[imageID]; ok {
		return r
	}
	return images.Absent()
}

func testExportConfig(t *testing.T) config.ExportConfig {
	t.Helper()
	return config.ExportConfig{
		Dir:            t.TempDir(),
		MaxRecords:     1000,
		FetchWorkers:   2,
		SheetName:      "Receipts",
		FilenamePrefix: "receipt-export",
	}
}

func newTestService(t *testing.T, cfg config.ExportConfig, fetcher images.Fetcher) *ExportService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewExportService(cfg, fetcher, metrics, logger)
}

func makeRecords(n int) []domain.ReceiptRecord {
	records := make([]domain.ReceiptRecord, n)
	for i := range records {
		records[i] = domain.ReceiptRecord{
			ID:        fmt.Sprintf("r-%d", i),
			StoreName: fmt.Sprintf("Store %d", i),
			Amount:    domain.Amount(float64(i) + 0.5),
		}
	}
	return records
}

func TestExportService_Validate(t *testing.T) {
	svc := newTestService(t, testExportConfig(t), &stubFetcher{})

	tests := []struct {
		name    string
		req     *domain.ExportRequest
		wantErr error
	}{
		{
			name:    "nil request",
			req:     nil,
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing records field",
			req:     &domain.ExportRequest{},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "empty batch",
			req:     &domain.ExportRequest{Records: []domain.ReceiptRecord{}},
			wantErr: ErrEmptyBatch,
		},
		{
			name:    "single record",
			req:     &domain.ExportRequest{Records: makeRecords(1)},
			wantErr: nil,
		},
		{
			name:    "exactly at the limit",
			req:     &domain.ExportRequest{Records: makeRecords(1000)},
			wantErr: nil,
		},
		{
			name:    "one over the limit",
			req:     &domain.ExportRequest{Records: makeRecords(1001)},
			wantErr: ErrBatchTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Validate(tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExportService_Export(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]images.Result{
		"img-present": {Present: true, Data: pngBytes(t), ContentType: "image/png"},
	}}
	svc := newTestService(t, testExportConfig(t), fetcher)

	req := &domain.ExportRequest{
		Records: []domain.ReceiptRecord{
			{ID: "r-1", StoreName: "CVS", Amount: 25.99, ReceiptDate: "2024-03-15", ImageID: "img-present"},
			{ID: "r-2", StoreName: "Walgreens", Amount: 10, ImageID: "img-gone"},
			{ID: "r-3", StoreName: "Costco", Amount: 99.95},
		},
	}

	result, err := svc.Export(context.Background(), req)
	require.NoError(t, err)
	defer svc.Cleanup(context.Background(), result)

	assert.Equal(t, 3, result.RecordCount)
	assert.Equal(t, 1, result.ImagesEmbedded)
	assert.Greater(t, result.Elapsed.Nanoseconds(), int64(0))

	assert.True(t, strings.HasPrefix(result.Filename, "receipt-export-"))
	assert.True(t, strings.HasSuffix(result.Filename, ".xlsx"))

	info, err := os.Stat(result.Path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportService_ExportUndecodableImageBytes(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]images.Result{
		"img-bad": {Present: true, Data: []byte("not-an-image"), ContentType: "image/jpeg"},
	}}
	svc := newTestService(t, testExportConfig(t), fetcher)

	req := &domain.ExportRequest{
		Records: []domain.ReceiptRecord{
			{ID: "r-1", StoreName: "CVS", Amount: 25.99, ImageID: "img-bad"},
		},
	}

	// Undecodable bytes degrade the row to its placeholder instead of
	// failing the export; the embedded count stays at zero.
	result, err := svc.Export(context.Background(), req)
	require.NoError(t, err)
	defer svc.Cleanup(context.Background(), result)

	assert.Equal(t, 1, result.RecordCount)
	assert.Equal(t, 0, result.ImagesEmbedded)
}

func TestExportService_ExportRejectsInvalidBatch(t *testing.T) {
	svc := newTestService(t, testExportConfig(t), &stubFetcher{})

	result, err := svc.Export(context.Background(), &domain.ExportRequest{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExportService_ExportCreatesDirectoryLazily(t *testing.T) {
	cfg := testExportConfig(t)
	cfg.Dir = filepath.Join(t.TempDir(), "nested", "exports")
	svc := newTestService(t, cfg, &stubFetcher{})

	_, err := os.Stat(cfg.Dir)
	require.True(t, os.IsNotExist(err))

	result, err := svc.Export(context.Background(), &domain.ExportRequest{Records: makeRecords(1)})
	require.NoError(t, err)
	defer svc.Cleanup(context.Background(), result)

	_, err = os.Stat(cfg.Dir)
	assert.NoError(t, err)
}

func TestExportService_Cleanup(t *testing.T) {
	svc := newTestService(t, testExportConfig(t), &stubFetcher{})

	result, err := svc.Export(context.Background(), &domain.ExportRequest{Records: makeRecords(2)})
	require.NoError(t, err)

	svc.Cleanup(context.Background(), result)

	_, err = os.Stat(result.Path)
	assert.True(t, os.IsNotExist(err))

	// Idempotent: a second cleanup and a nil result are both no-ops.
	svc.Cleanup(context.Background(), result)
	svc.Cleanup(context.Background(), nil)
}

func TestExportService_ImageMetrics(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]images.Result{
		"img-1": {Present: true, Data: []byte("data"), ContentType: "image/jpeg"},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewExportService(testExportConfig(t), fetcher, metrics, logger)

	req := &domain.ExportRequest{
		Records: []domain.ReceiptRecord{
			{ID: "r-1", StoreName: "A", ImageID: "img-1"},
			{ID: "r-2", StoreName: "B", ImageID: "img-unknown"},
			{ID: "r-3", StoreName: "C"},
		},
	}

	result, err := svc.Export(context.Background(), req)
	require.NoError(t, err)
	defer svc.Cleanup(context.Background(), result)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ImagesEmbedded))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ImagesAbsent))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ExportsTotal.WithLabelValues("success")))
}
