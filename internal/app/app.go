// Package app wires the receipt export service together: configuration,
// logging, metrics, HTTP router, and graceful lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"receiptexport/internal/config"
	"receiptexport/internal/errors"
	"receiptexport/internal/images"
	"receiptexport/internal/infrastructure"
	custommw "receiptexport/internal/middleware"
	"receiptexport/internal/services"
	handlers "receiptexport/internal/transport/http"
)

// Version identifies the running build.
const Version = "1.2.0"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	ExportService *services.ExportService
	Logger        *slog.Logger
	Registry      *prometheus.Registry
}

// NewApplication creates a new application instance with dependency injection
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("service", "receipt-export"),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &Application{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices constructs the export pipeline with explicit
// configuration so nothing reads ambient process state.
func (a *Application) initializeServices() {
	fetcher := images.NewClient(a.Config.ImageService, a.Logger)
	metrics := services.NewMetrics(a.Registry)
	a.ExportService = services.NewExportService(a.Config.Export, fetcher, metrics, a.Logger)
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	errorHandler := errors.NewErrorHandler(a.Logger, false)

	r.Use(custommw.RequestID)
	r.Use(custommw.RealIP)
	r.Use(custommw.StructuredLogger(a.Logger))
	r.Use(custommw.Recoverer(errorHandler))
	r.Use(custommw.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(custommw.CORS(custommw.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			ExposedHeaders: []string{"Content-Disposition", "X-Processing-Time", "X-Images-Included"},
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(custommw.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(custommw.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(Version, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)

		r.With(render.SetContentType(render.ContentTypeJSON)).
			Mount("/export", handlers.NewExportHandler(
				a.ExportService,
				a.Config.Export.MaxRecords,
				a.Logger,
				errorHandler,
			).Routes())
	})

	// Prometheus metrics endpoint outside the middleware group.
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	r.NotFound(errorHandler.NotFound)

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the HTTP server and blocks until shutdown
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.Warn("failed to close log file", slog.String("error", err.Error()))
	}

	a.Logger.Info("server stopped")
	return nil
}

// Shutdown stops the server immediately. Used by tests.
func (a *Application) Shutdown(ctx context.Context) error {
	return a.Server.Shutdown(ctx)
}
