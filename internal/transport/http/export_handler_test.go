package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "receiptexport/internal/errors"
	"receiptexport/internal/services"
	"receiptexport/pkg/contracts/domain"
)

// MockExportService is a mock implementation of ExportServiceInterface
type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) Export(ctx context.Context, req *domain.ExportRequest) (*services.ExportResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ExportResult), args.Error(1)
}

func (m *MockExportService) Cleanup(ctx context.Context, res *services.ExportResult) {
	m.Called(res)
}

func newTestHandler(service ExportServiceInterface) *ExportHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	return NewExportHandler(service, 1000, logger, errorHandler)
}

// writeArtifact creates an xlsx-shaped file on disk for ServeFile to
// stream back.
func writeArtifact(t *testing.T, content string) (string, string) {
	t.Helper()
	filename := "receipt-export-2024-03-15-1710500000000000000.xlsx"
	path := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, filename
}

func TestExportHandler_Export_Success(t *testing.T) {
	path, filename := writeArtifact(t, "workbook-bytes")

	result := &services.ExportResult{
		Path:           path,
		Filename:       filename,
		RecordCount:    2,
		ImagesEmbedded: 1,
		Elapsed:        1500 * time.Millisecond,
	}

	mockService := new(MockExportService)
	mockService.On("Export", mock.AnythingOfType("*domain.ExportRequest")).Return(result, nil)
	mockService.On("Cleanup", result).Return()

	handler := newTestHandler(mockService)

	body := `{"records":[{"id":"r-1","store_name":"CVS","amount":25.99,"image_id":"img-1"},{"id":"r-2","store_name":"Walgreens","amount":10}]}`
	req := httptest.NewRequest("POST", "/api/export", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Export(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`attachment; filename="`+filename+`"`,
		rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "1500", rec.Header().Get("X-Processing-Time"))
	assert.Equal(t, "1", rec.Header().Get("X-Images-Included"))
	assert.Equal(t, "workbook-bytes", rec.Body.String())

	mockService.AssertExpectations(t)
}

func TestExportHandler_Export_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockExportService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "malformed JSON",
			body:           `{"records": [`,
			setupMock:      func(m *MockExportService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name: "missing records field",
			body: `{}`,
			setupMock: func(m *MockExportService) {
				m.On("Export", mock.AnythingOfType("*domain.ExportRequest")).
					Return(nil, services.ErrInvalidRequest)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"INVALID_REQUEST"`,
		},
		{
			name: "empty batch",
			body: `{"records":[]}`,
			setupMock: func(m *MockExportService) {
				m.On("Export", mock.AnythingOfType("*domain.ExportRequest")).
					Return(nil, services.ErrEmptyBatch)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"EMPTY_BATCH"`,
		},
		{
			name: "batch too large",
			body: `{"records":[{"id":"r-1"}]}`,
			setupMock: func(m *MockExportService) {
				m.On("Export", mock.AnythingOfType("*domain.ExportRequest")).
					Return(nil, services.ErrBatchTooLarge)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"BATCH_TOO_LARGE"`,
		},
		{
			name: "generation failure",
			body: `{"records":[{"id":"r-1"}]}`,
			setupMock: func(m *MockExportService) {
				m.On("Export", mock.AnythingOfType("*domain.ExportRequest")).
					Return(nil, errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"EXPORT_FAILED"`,
		},
		{
			name:           "invalid requester email",
			body:           `{"records":[{"id":"r-1"}],"requester":{"email":"not-an-email"}}`,
			setupMock:      func(m *MockExportService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"VALIDATION_FAILED"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockExportService)
			tt.setupMock(mockService)

			handler := newTestHandler(mockService)

			req := httptest.NewRequest("POST", "/api/export", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.Export(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestExportHandler_Export_CleansUpAfterStreaming(t *testing.T) {
	path, filename := writeArtifact(t, "workbook-bytes")

	result := &services.ExportResult{Path: path, Filename: filename}

	mockService := new(MockExportService)
	mockService.On("Export", mock.AnythingOfType("*domain.ExportRequest")).Return(result, nil)
	mockService.On("Cleanup", result).Run(func(args mock.Arguments) {
		res := args.Get(0).(*services.ExportResult)
		require.NoError(t, os.Remove(res.Path))
	}).Return()

	handler := newTestHandler(mockService)

	req := httptest.NewRequest("POST", "/api/export", strings.NewReader(`{"records":[{"id":"r-1"}]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.Export(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "workbook-bytes", rec.Body.String())

	// The artifact must be gone once the handler returns.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	mockService.AssertExpectations(t)
}

func TestExportHandler_Formats(t *testing.T) {
	handler := newTestHandler(new(MockExportService))

	req := httptest.NewRequest("GET", "/api/export/formats", nil)
	rec := httptest.NewRecorder()

	handler.Formats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"format":"xlsx"`)
	assert.Contains(t, rec.Body.String(), `"max_records":1000`)
	assert.Contains(t, rec.Body.String(), "Store/Provider")
}
