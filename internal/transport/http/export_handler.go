// Package http contains the HTTP handlers for the receipt export service.
package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "receiptexport/internal/errors"
	"receiptexport/internal/services"
	"receiptexport/pkg/contracts/domain"
)

// xlsxContentType is the MIME type declared on successful export responses.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler handles spreadsheet export HTTP requests
type ExportHandler struct {
	service      ExportServiceInterface
	validate     *validator.Validate
	maxRecords   int
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewExportHandler creates a new export handler
func NewExportHandler(service ExportServiceInterface, maxRecords int, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ExportHandler {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ExportHandler{
		service:      service,
		validate:     v,
		maxRecords:   maxRecords,
		logger:       logger.With(slog.String("component", "export_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the export routes
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Export)
	r.Get("/formats", h.Formats)

	return r
}

// Export handles POST /api/export. It validates the batch, generates the
// spreadsheet, streams it back, and always deletes the temp artifact.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req domain.ExportRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.errorHandler.HandleError(w, r, h.validationError(err))
		return
	}

	result, err := h.service.Export(ctx, &req)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.exportError(err, len(req.Records), start))
		return
	}

	// The artifact is request-scoped: delete it once streaming finishes,
	// on success and on mid-stream failure alike.
	defer h.service.Cleanup(ctx, result)

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("X-Processing-Time", strconv.FormatInt(result.Elapsed.Milliseconds(), 10))
	w.Header().Set("X-Images-Included", strconv.Itoa(result.ImagesEmbedded))

	http.ServeFile(w, r, result.Path)
}

// Formats handles GET /api/export/formats. The response is fixed data
// describing the one supported output format.
func (h *ExportHandler) Formats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"format":       "xlsx",
		"content_type": xlsxContentType,
		"max_records":  h.maxRecords,
		"columns": []string{
			"Store/Provider", "Amount", "Date", "Category", "Description", "Receipt Image",
		},
	})
}

// exportError maps orchestrator errors onto distinct API error codes.
func (h *ExportHandler) exportError(err error, recordCount int, start time.Time) *apierrors.APIError {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return apierrors.ErrInvalidRequest
	case errors.Is(err, services.ErrEmptyBatch):
		return apierrors.ErrEmptyBatch
	case errors.Is(err, services.ErrBatchTooLarge):
		return apierrors.BatchTooLargeError(recordCount, h.maxRecords)
	default:
		return apierrors.ExportFailedError(err, time.Since(start).Milliseconds())
	}
}

// validationError converts validator failures to a structured API error.
func (h *ExportHandler) validationError(err error) *apierrors.APIError {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return apierrors.InvalidRequestWithError(err)
	}

	errs := make([]apierrors.ValidationError, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		errs = append(errs, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()),
		})
	}
	return apierrors.NewValidationErrors(errs)
}
