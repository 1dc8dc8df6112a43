package http

import (
	"context"

	"receiptexport/internal/services"
	"receiptexport/pkg/contracts/domain"
)

// ExportServiceInterface defines the orchestrator contract consumed by the
// export handler. Extracted as an interface for handler testing.
type ExportServiceInterface interface {
	Export(ctx context.Context, req *domain.ExportRequest) (*services.ExportResult, error)
	Cleanup(ctx context.Context, res *services.ExportResult)
}
