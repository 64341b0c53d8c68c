package infrastructure

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

const sinkAPI = "sink"

// ErrSinkNotConfigured is returned when no sink URL was supplied.
var ErrSinkNotConfigured = errors.New("sink URL not configured")

// SinkClient pushes a computed table to an external HTTP sink.
type SinkClient struct {
	client *HTTPClient
	url    string
	secret string
	logger *logger.Logger
}

func NewSinkClient(client *HTTPClient, url, secret string, logger *logger.Logger) *SinkClient {
	return &SinkClient{client: client, url: url, secret: secret, logger: logger}
}

func (c *SinkClient) Configured() bool {
	return c.url != ""
}

type exportPayload struct {
	Start domain.CalendarDay `json:"start"`
	End   domain.CalendarDay `json:"end"`
	Count int                `json:"count"`
	Rows  []domain.Row       `json:"rows"`
}

// Export posts rows as JSON. With a secret set, the body is signed with HMAC-SHA256 and the
// hex digest sent as X-Signature.
func (c *SinkClient) Export(ctx context.Context, rows []domain.Row, start, end domain.CalendarDay) error {
	if !c.Configured() {
		return ErrSinkNotConfigured
	}

	payload, err := json.Marshal(exportPayload{Start: start, End: end, Count: len(rows), Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to marshal export data: %w", err)
	}

	header := http.Header{}
	if c.secret != "" {
		header.Set("X-Signature", c.sign(payload))
	}

	began := time.Now()
	resp, err := c.client.PostJSON(ctx, sinkAPI, c.url, header, payload)
	if err != nil {
		return fmt.Errorf("failed to export data: %w", err)
	}
	if !resp.ok() {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"url":      c.url,
		"duration": time.Since(began),
		"records":  len(rows),
		"start":    start,
		"end":      end,
	}).Info("Successfully exported data")

	return nil
}

func (c *SinkClient) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(c.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
