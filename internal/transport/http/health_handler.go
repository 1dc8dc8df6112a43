package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	version string
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":    "healthy",
		"service":   "receipt-export",
		"version":   h.version,
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
