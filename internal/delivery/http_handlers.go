package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"adperf/internal/domain"
	"adperf/internal/usecase"
	"adperf/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HandlerOptions carries the startup facts the handlers gate on
type HandlerOptions struct {
	MissingCredentials  []string
	ChatEnabled         bool
	ExportEnabled       bool
	DefaultLookbackDays int
}

// handles HTTP requests
type HTTPHandlers struct {
	reconciler *usecase.Reconciler
	reports    *usecase.ReportService
	chat       *usecase.ChatService
	opts       HandlerOptions
	logger     *logger.Logger
}

// creates new HTTP handlers
func NewHTTPHandlers(
	reconciler *usecase.Reconciler,
	reports *usecase.ReportService,
	chat *usecase.ChatService,
	opts HandlerOptions,
	logger *logger.Logger,
) *HTTPHandlers {
	opts.DefaultLookbackDays = domain.NormalizeLookback(opts.DefaultLookbackDays)
	return &HTTPHandlers{
		reconciler: reconciler,
		reports:    reports,
		chat:       chat,
		opts:       opts,
		logger:     logger,
	}
}

type chatRequestBody struct {
	Query        string            `json:"query" binding:"required"`
	History      []domain.ChatTurn `json:"history"`
	Data         []domain.Row      `json:"data"`
	LookbackDays int               `json:"lookback_days"`
}

// GetPerformance returns the unified daily table
func (h *HTTPHandlers) GetPerformance(c *gin.Context) {
	if !h.requireCredentials(c) {
		return
	}

	report, err := h.reconciler.Reconcile(c.Request.Context(), h.lookback(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":          report.Table.Rows(),
		"lookback_days": report.LookbackDays,
		"start":         report.Start,
		"end":           report.End,
		"sources":       report.Sources,
		"request_id":    c.GetString("request_id"),
	})
}

// GetPerformanceSummary returns per-platform totals over the range
func (h *HTTPHandlers) GetPerformanceSummary(c *gin.Context) {
	if !h.requireCredentials(c) {
		return
	}

	summary, err := h.reports.Summarize(c.Request.Context(), h.lookback(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       summary,
		"request_id": c.GetString("request_id"),
	})
}

// Chat forwards a question about the table to the language model
func (h *HTTPHandlers) Chat(c *gin.Context) {
	requestID := c.GetString("request_id")

	if !h.opts.ChatEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Chat not configured",
			"message":    (&domain.ConfigurationError{Missing: []string{"CHAT_API_KEY"}}).Error(),
			"request_id": requestID,
		})
		return
	}

	var body chatRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid request body",
			"message":    err.Error(),
			"request_id": requestID,
		})
		return
	}

	if len(body.Data) == 0 && !h.requireCredentials(c) {
		return
	}

	reply, err := h.chat.Ask(c.Request.Context(), usecase.ChatRequest{
		Query:        body.Query,
		History:      body.History,
		Rows:         body.Data,
		LookbackDays: h.normalizeLookback(body.LookbackDays),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":      reply,
		"request_id": requestID,
	})
}

// ExportRun recomputes the table and pushes it to the configured sink
func (h *HTTPHandlers) ExportRun(c *gin.Context) {
	requestID := c.GetString("request_id")

	if !h.opts.ExportEnabled {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "Export not configured",
			"message":    (&domain.ConfigurationError{Missing: []string{"SINK_URL"}}).Error(),
			"request_id": requestID,
		})
		return
	}
	if !h.requireCredentials(c) {
		return
	}

	result, err := h.reports.Export(c.Request.Context(), h.lookback(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Export completed successfully",
		"data":       result,
		"request_id": requestID,
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "adperf",
		"description": "Unified daily Meta and TikTok ad performance with derived metrics",
		"endpoints": gin.H{
			"performance": gin.H{
				"path":        "/api/v1/performance",
				"method":      "GET",
				"description": "Daily rows for both platforms, most recent first",
				"parameters":  gin.H{"lookback_days": "Optional: 90 or 365 (default 90)"},
				"example":     "/api/v1/performance?lookback_days=365",
			},
			"summary": gin.H{
				"path":        "/api/v1/performance/summary",
				"method":      "GET",
				"description": "Per-platform totals and ratios over the range",
				"parameters":  gin.H{"lookback_days": "Optional: 90 or 365 (default 90)"},
			},
			"chat": gin.H{
				"path":        "/api/v1/chat",
				"method":      "POST",
				"description": "Ask a question about the table",
				"body": gin.H{
					"query":         "Required: free-text question",
					"history":       "Optional: prior turns [{role, content, loading}]",
					"data":          "Optional: rows to analyse; recomputed when absent",
					"lookback_days": "Optional: used when data is absent",
				},
			},
			"export": gin.H{
				"path":        "/api/v1/export/run",
				"method":      "POST",
				"description": "Push the table to the configured sink",
				"parameters":  gin.H{"lookback_days": "Optional: 90 or 365 (default 90)"},
			},
		},
		"other_endpoints": gin.H{
			"health":  "/health",
			"metrics": "/metrics",
		},
		"request_id": c.GetString("request_id"),
	})
}

// HealthCheck reports liveness and which integrations are configured
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "healthy",
		"credentials_complete": len(h.opts.MissingCredentials) == 0,
		"chat_enabled":         h.opts.ChatEnabled,
		"export_enabled":       h.opts.ExportEnabled,
	})
}

// lookback reads lookback_days; anything but a supported window falls back to the default
func (h *HTTPHandlers) lookback(c *gin.Context) int {
	days, err := strconv.Atoi(c.Query("lookback_days"))
	if err != nil {
		return h.opts.DefaultLookbackDays
	}
	return h.normalizeLookback(days)
}

// normalizeLookback falls back to the configured default for anything not allowed.
func (h *HTTPHandlers) normalizeLookback(days int) int {
	if !domain.IsAllowedLookback(days) {
		return h.opts.DefaultLookbackDays
	}
	return days
}

func (h *HTTPHandlers) requireCredentials(c *gin.Context) bool {
	if len(h.opts.MissingCredentials) == 0 {
		return true
	}
	h.writeError(c, &domain.ConfigurationError{Missing: h.opts.MissingCredentials})
	return false
}

// writeError maps domain and service errors to a status and a JSON body
func (h *HTTPHandlers) writeError(c *gin.Context, err error) {
	var (
		configErr *domain.ConfigurationError
		rangeErr  *domain.RangeError
	)

	status, title := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.As(err, &configErr):
		status, title = http.StatusServiceUnavailable, "Service not configured"
	case errors.As(err, &rangeErr), errors.Is(err, usecase.ErrEmptyQuery):
		status, title = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, usecase.ErrChatFailed):
		status, title = http.StatusBadGateway, "Chat service failed"
	case errors.Is(err, usecase.ErrExportFailed):
		status, title = http.StatusBadGateway, "Export failed"
	}

	log := h.logger.WithContext(c.Request.Context()).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		log.Error(title)
	} else {
		log.Warn(title)
	}

	c.JSON(status, gin.H{
		"error":      title,
		"message":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}
