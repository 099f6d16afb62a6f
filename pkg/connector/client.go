// Package connector is the HTTP access layer for the bank connect service.
//
// Create, lookup and upload retry up to the configured limit on transport
// failures and malformed success responses. Category reads are single shot; the
// caller decides whether to poll again.
package connector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/bankconnect-go/pkg/config"
)

const (
	tracerName   = "github.com/FACorreiaa/bankconnect-go/pkg/connector"
	apiKeyHeader = "x-api-key"
)

// Operation names used in logs, spans and metrics.
const (
	OpCreateEntity = "create_entity"
	OpGetLinkID    = "get_link_id"
	OpUpload       = "upload_statement"
	OpFetch        = "fetch"
)

// Client talks to the bank connect REST API.
type Client struct {
	cfg        config.BankConnectConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracerProvider uses tp instead of the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient creates a client from validated configuration.
func NewClient(cfg config.BankConnectConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bank connect config: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		tracer:     otel.Tracer(tracerName),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) url(format string, args ...any) string {
	return c.cfg.APIRoot() + fmt.Sprintf(format, args...)
}

// response is the raw outcome of one HTTP exchange.
type response struct {
	status int
	body   []byte
}

// send performs one request. It waits on the rate limiter, sets auth headers,
// reads the whole body and records logs and metrics for the attempt.
func (c *Client) send(ctx context.Context, op string, attempt int, build func(ctx context.Context) (*http.Request, error)) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	reqID := uuid.New().String()
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observeRequest(op, 0, time.Since(start))
		c.logger.Warn("bank connect request failed",
			"req_id", reqID,
			"operation", op,
			"attempt", attempt,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("response body close error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.observeRequest(op, resp.StatusCode, time.Since(start))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.metrics.observeRequest(op, resp.StatusCode, time.Since(start))
	c.logger.Debug("bank connect response",
		"req_id", reqID,
		"operation", op,
		"attempt", attempt,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	return &response{status: resp.StatusCode, body: body}, nil
}

// getRequest returns a builder for a body-less GET.
func getRequest(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

// postRequest returns a builder that replays the same body on every attempt.
func postRequest(url, contentType string, body []byte) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// truncate keeps logged response bodies short.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
