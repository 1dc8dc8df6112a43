// Package services contains the export orchestration: request validation,
// per-record image acquisition, document construction, and temporary
// artifact lifecycle.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"receiptexport/internal/config"
	"receiptexport/internal/exporter"
	"receiptexport/internal/images"
	"receiptexport/pkg/contracts/domain"
)

// ExportResult describes a fully serialized export artifact. The artifact
// is exclusively owned by its request: callers must release it with
// Cleanup after streaming, on every exit path.
type ExportResult struct {
	Path           string
	Filename       string
	RecordCount    int
	ImagesEmbedded int
	Elapsed        time.Duration
}

// ExportService drives one export request from validation through
// serialization. It is safe for concurrent use; all per-request state
// lives in locals.
type ExportService struct {
	cfg     config.ExportConfig
	fetcher images.Fetcher
	metrics *Metrics
	logger  *slog.Logger
}

// NewExportService creates the export orchestrator. Configuration is
// injected explicitly so tests can point it at temp directories and fake
// image services.
func NewExportService(cfg config.ExportConfig, fetcher images.Fetcher, metrics *Metrics, logger *slog.Logger) *ExportService {
	return &ExportService{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "export_service")),
	}
}

// Validate rejects malformed batches before any work begins. Each
// rejection is a distinct sentinel so the transport layer can classify it.
func (s *ExportService) Validate(req *domain.ExportRequest) error {
	if req == nil || req.Records == nil {
		return ErrInvalidRequest
	}
	if len(req.Records) == 0 {
		return ErrEmptyBatch
	}
	if len(req.Records) > s.cfg.MaxRecords {
		return ErrBatchTooLarge
	}
	return nil
}

// Export runs the full pipeline and returns the serialized artifact. On
// any error after the artifact was created, the file is already removed
// before returning.
func (s *ExportService) Export(ctx context.Context, req *domain.ExportRequest) (*ExportResult, error) {
	start := time.Now()

	if err := s.Validate(req); err != nil {
		s.metrics.ExportsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	s.logger.InfoContext(ctx, "starting export",
		slog.Int("record_count", len(req.Records)),
		slog.String("filter_search", req.Filters.Search),
		slog.String("filter_category", req.Filters.Category))

	fetched := s.fetchImages(ctx, req.Records)

	builder, err := exporter.NewBuilder(s.cfg.SheetName, req.Filters, start, s.logger)
	if err != nil {
		return nil, s.fail(ctx, fmt.Errorf("failed to create workbook: %w", err))
	}
	defer builder.Close()

	if err := builder.SetRequester(req.Requester); err != nil {
		return nil, s.fail(ctx, fmt.Errorf("failed to set document metadata: %w", err))
	}

	// Rows are appended strictly in input order regardless of fetch
	// completion order.
	for i, rec := range req.Records {
		if err := builder.AppendRow(rec, fetched[i]); err != nil {
			return nil, s.fail(ctx, fmt.Errorf("failed to build row %d: %w", i+1, err))
		}
	}

	if err := builder.Finalize(); err != nil {
		return nil, s.fail(ctx, fmt.Errorf("failed to finalize document: %w", err))
	}

	path, filename, err := s.serialize(ctx, builder)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	elapsed := time.Since(start)
	s.metrics.ExportsTotal.WithLabelValues("success").Inc()
	s.metrics.ExportDuration.Observe(elapsed.Seconds())
	s.metrics.RecordsPerExport.Observe(float64(builder.RecordCount()))

	s.logger.InfoContext(ctx, "export complete",
		slog.String("artifact", filename),
		slog.Int("record_count", builder.RecordCount()),
		slog.Int("images_embedded", builder.ImagesEmbedded()),
		slog.String("elapsed", elapsed.String()))

	return &ExportResult{
		Path:           path,
		Filename:       filename,
		RecordCount:    builder.RecordCount(),
		ImagesEmbedded: builder.ImagesEmbedded(),
		Elapsed:        elapsed,
	}, nil
}

// fetchImages resolves every record's image through a bounded worker
// pool. Results are indexed by record position; a slow or failed fetch
// degrades only its own record to Absent.
func (s *ExportService) fetchImages(ctx context.Context, records []domain.ReceiptRecord) []images.Result {
	results := make([]images.Result, len(records))

	var g errgroup.Group
	g.SetLimit(s.cfg.FetchWorkers)

	for i, rec := range records {
		if !rec.HasImage() {
			continue
		}
		i, rec := i, rec
		g.Go(func() error {
			results[i] = s.fetcher.Fetch(ctx, rec.ImageID)
			return nil
		})
	}

	// Workers never return errors; failures collapse to Absent inside
	// the fetcher.
	g.Wait()

	for i, rec := range records {
		if rec.HasImage() {
			if results[i].Present {
				s.metrics.ImagesEmbedded.Inc()
			} else {
				s.metrics.ImagesAbsent.Inc()
			}
		}
	}

	return results
}

// serialize writes the workbook to a uniquely named artifact in the
// export directory. Directory creation is idempotent; filenames carry a
// date stamp and a nanosecond token so concurrent requests never collide.
func (s *ExportService) serialize(ctx context.Context, builder *exporter.Builder) (string, string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create export directory: %w", err)
	}

	now := time.Now()
	filename := fmt.Sprintf("%s-%s-%d.xlsx", s.cfg.FilenamePrefix, now.Format("2006-01-02"), now.UnixNano())
	path := filepath.Join(s.cfg.Dir, filename)

	if err := builder.SaveAs(path); err != nil {
		// A partial artifact may exist; remove it before surfacing the error.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			s.logger.WarnContext(ctx, "failed to remove partial artifact",
				slog.String("path", path),
				slog.String("error", rmErr.Error()))
		}
		return "", "", fmt.Errorf("failed to serialize document: %w", err)
	}

	return path, filename, nil
}

// Cleanup deletes the temporary artifact. Deletion failures are logged,
// never escalated: the response has already been decided by the time
// cleanup runs.
func (s *ExportService) Cleanup(ctx context.Context, res *ExportResult) {
	if res == nil || res.Path == "" {
		return
	}
	if err := os.Remove(res.Path); err != nil && !os.IsNotExist(err) {
		s.logger.ErrorContext(ctx, "failed to delete export artifact",
			slog.String("path", res.Path),
			slog.String("error", err.Error()))
		return
	}
	s.logger.DebugContext(ctx, "export artifact deleted", slog.String("path", res.Path))
}

// fail records a failed export and passes the error through.
func (s *ExportService) fail(ctx context.Context, err error) error {
	s.metrics.ExportsTotal.WithLabelValues("failure").Inc()
	s.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
	return err
}
