package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kilat-Pet-Delivery/service-fare/internal/observability"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// Error is the single failure type for an outbound call.
type Error struct {
	Upstream   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Upstream, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Upstream, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether the upstream refused the call for quota reasons.
func (e *Error) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NewError wraps err as an upstream failure.
func NewError(upstream string, statusCode int, err error) *Error {
	return &Error{Upstream: upstream, StatusCode: statusCode, Err: err}
}

// IsError reports whether err came from an upstream call.
func IsError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// Client performs single-shot JSON calls against one third-party API.
type Client struct {
	name       string
	httpClient *http.Client
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewClient creates a Client. A zero timeout leaves deadlines to the caller's context.
func NewClient(name string, timeout time.Duration, metrics *observability.Collector, logger *zap.Logger) *Client {
	return &Client{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger.With(zap.String("upstream", name)),
	}
}

// Name returns the upstream name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// DoJSON sends req once and decodes a 2xx JSON body into out. Anything else is an *Error.
func (c *Client) DoJSON(ctx context.Context, req *http.Request, out interface{}) error {
	start := time.Now()
	err := c.do(req.WithContext(ctx), out)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		}
		var upErr *Error
		switch {
		case errors.Is(err, context.Canceled):
			result = "cancelled"
			c.logger.Debug("upstream request cancelled", fields...)
		case errors.As(err, &upErr) && upErr.IsRateLimited():
			result = "rate_limited"
			c.logger.Warn("upstream request rate limited", fields...)
		default:
			result = "error"
			c.logger.Warn("upstream request failed", fields...)
		}
	}
	c.metrics.ObserveUpstream(c.name, result, elapsed)
	return err
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewError(c.name, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return NewError(c.name, resp.StatusCode, fmt.Errorf("failed to read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewError(c.name, resp.StatusCode, fmt.Errorf("body: %s", truncate(body, 256)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewError(c.name, 0, fmt.Errorf("JSON decode failed: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
