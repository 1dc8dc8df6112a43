// Package images retrieves receipt image bytes from the upstream image
// hosting service. Every failure mode collapses to an Absent result so a
// bad or slow image can never abort an export.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"receiptexport/internal/config"
)

// defaultContentType is assumed when the upstream service omits the
// Content-Type header.
const defaultContentType = "image/jpeg"

// Result is the outcome of one image fetch. Absence is a normal outcome,
// never an error.
type Result struct {
	Present     bool
	Data        []byte
	ContentType string
}

// Absent returns the no-image outcome.
func Absent() Result {
	return Result{}
}

// Fetcher fetches image bytes by identifier within a bounded timeout.
type Fetcher interface {
	Fetch(ctx context.Context, imageID string) Result
}

// Client is the HTTP implementation of Fetcher against the image service.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates an image service client from configuration. The
// configured fetch timeout bounds every individual request.
func NewClient(cfg config.ImageServiceConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		logger:  logger.With(slog.String("component", "image_fetcher")),
	}
}

// Fetch retrieves the raw bytes and content type for one image. It never
// returns an error: missing id, network failure, non-2xx status, and
// timeout all yield Absent. Failures are logged with the image id so they
// stay attributable to their originating record.
func (c *Client) Fetch(ctx context.Context, imageID string) Result {
	if imageID == "" {
		return Absent()
	}

	url := fmt.Sprintf("%s/image/%s", c.baseURL, imageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to build image request",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()))
		return Absent()
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "image fetch failed",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()),
			slog.String("elapsed", time.Since(start).String()))
		return Absent()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "image service returned non-success status",
			slog.String("image_id", imageID),
			slog.Int("status", resp.StatusCode))
		return Absent()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to read image body",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()))
		return Absent()
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	c.logger.DebugContext(ctx, "image fetched",
		slog.String("image_id", imageID),
		slog.Int("bytes", len(data)),
		slog.String("content_type", contentType),
		slog.String("elapsed", time.Since(start).String()))

	return Result{
		Present:     true,
		Data:        data,
		ContentType: contentType,
	}
}
