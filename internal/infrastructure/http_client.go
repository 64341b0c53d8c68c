package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 32 << 20

// ClientOptions configures the outbound client shared by every upstream integration.
type ClientOptions struct {
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
}

// HTTPClient is the rate-limited, retrying transport used by the platform adapters,
// the chat client and the sink client. Each call is labelled with an api name for metrics.
type HTTPClient struct {
	client       *http.Client
	logger       *logger.Logger
	metrics      *metrics.Metrics
	rateLimiter  *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
}

type upstreamResponse struct {
	StatusCode int
	Body       []byte
}

func (r *upstreamResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// creates a new HTTP client
func NewHTTPClient(opts ClientOptions, logger *logger.Logger, metrics *metrics.Metrics) *HTTPClient {
	limit := rate.Limit(opts.RateLimitPerSecond)
	if opts.RateLimitPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:       logger,
		metrics:      metrics,
		rateLimiter:  rate.NewLimiter(limit, burst),
		maxRetries:   max(opts.MaxRetries, 0),
		retryBackoff: opts.RetryBackoff,
	}
}

func (c *HTTPClient) Get(ctx context.Context, api, url string, header http.Header) (*upstreamResponse, error) {
	return c.do(ctx, api, http.MethodGet, url, header, nil)
}

func (c *HTTPClient) PostJSON(ctx context.Context, api, url string, header http.Header, body []byte) (*upstreamResponse, error) {
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")
	return c.do(ctx, api, http.MethodPost, url, h, body)
}

// do sends the request, retrying network errors, 429 and 5xx with exponential backoff.
// A non-2xx response that is not retried (or runs out of retries) is returned to the
// caller, which owns the interpretation of error payloads.
func (c *HTTPClient) do(ctx context.Context, api, method, url string, header http.Header, body []byte) (*upstreamResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			c.metrics.RecordExternalAPIFailure(api, "rate_limit")
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			c.metrics.RecordExternalAPIFailure(api, "request_creation")
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			c.metrics.RecordExternalAPIFailure(api, "network_error")
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s request cancelled: %w", api, ctx.Err())
			}
			lastErr = err
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"api":     api,
				"attempt": attempt + 1,
				"error":   err.Error(),
			}).Warn("Upstream request failed")
			continue
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		duration := time.Since(start)
		if err != nil {
			c.metrics.RecordExternalAPIFailure(api, "read_body")
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		result := &upstreamResponse{StatusCode: resp.StatusCode, Body: data}
		if result.ok() {
			c.metrics.RecordExternalAPICall(api, "success", duration)
			return result, nil
		}

		c.metrics.RecordExternalAPICall(api, fmt.Sprintf("error_%d", resp.StatusCode), duration)
		if !retryableStatus(resp.StatusCode) || attempt == c.maxRetries {
			return result, nil
		}

		c.logger.WithContext(ctx).WithFields(map[string]any{
			"api":         api,
			"attempt":     attempt + 1,
			"status_code": resp.StatusCode,
		}).Warn("Upstream returned retryable status")
	}

	return nil, fmt.Errorf("%s request failed after %d attempts: %w", api, c.maxRetries+1, lastErr)
}

func (c *HTTPClient) backoff(ctx context.Context, attempt int) error {
	wait := c.retryBackoff << (attempt - 1)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// isCancellation reports whether err came from the caller giving up rather than upstream.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
