package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/shopspring/decimal"
)

const metaAPI = "meta_insights"

type MetaOptions struct {
	AccessToken      string
	AdAccountID      string
	BaseURL          string
	APIVersion       string
	ConversionAction string
	PageLimit        int
	MaxPages         int
}

// MetaAdapter reads account-level daily insights from the Meta Marketing API.
type MetaAdapter struct {
	client  *HTTPClient
	opts    MetaOptions
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewMetaAdapter(client *HTTPClient, opts MetaOptions, logger *logger.Logger, metrics *metrics.Metrics) *MetaAdapter {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &MetaAdapter{
		client:  client,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

func (a *MetaAdapter) Platform() domain.Platform {
	return domain.PlatformMeta
}

func (a *MetaAdapter) Configured() bool {
	return a.opts.AccessToken != "" && a.opts.AdAccountID != ""
}

type metaInsightsResponse struct {
	Data   []metaInsightRow `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *metaError `json:"error"`
}

type metaInsightRow struct {
	DateStart   flexString      `json:"date_start"`
	Clicks      flexNumber      `json:"clicks"`
	Impressions flexNumber      `json:"impressions"`
	Spend       flexNumber      `json:"spend"`
	Actions     json.RawMessage `json:"actions"`
}

type metaAction struct {
	ActionType string     `json:"action_type"`
	Value      flexNumber `json:"value"`
}

type metaError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// Fetch pulls daily insights for [start, end], following paging links up to MaxPages.
func (a *MetaAdapter) Fetch(ctx context.Context, start, end domain.CalendarDay) (map[domain.CalendarDay]domain.BaseMetrics, error) {
	log := a.logger.WithPlatform(ctx, string(domain.PlatformMeta))

	if !a.Configured() {
		log.Debug("Meta credentials not configured, skipping fetch")
		return map[domain.CalendarDay]domain.BaseMetrics{}, nil
	}

	began := time.Now()
	acc := newDayAccumulator()
	header := http.Header{"Authorization": []string{"Bearer " + a.opts.AccessToken}}
	rows := 0

	next := a.insightsURL(start, end)
	for page := 0; next != ""; page++ {
		if page >= a.opts.MaxPages {
			log.WithField("max_pages", a.opts.MaxPages).Warn("Meta page cap reached, remaining pages ignored")
			break
		}

		resp, err := a.client.Get(ctx, metaAPI, next, header)
		if err != nil {
			return nil, transportError(domain.PlatformMeta, err)
		}

		var payload metaInsightsResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			if !resp.ok() {
				return nil, statusError(domain.PlatformMeta, resp)
			}
			return nil, &domain.UpstreamFetchError{
				Platform:   domain.PlatformMeta,
				Message:    "malformed response body",
				StatusCode: resp.StatusCode,
				Err:        err,
			}
		}
		if payload.Error != nil {
			return nil, &domain.UpstreamFetchError{
				Platform:   domain.PlatformMeta,
				Message:    fmt.Sprintf("%s (code %d)", payload.Error.Message, payload.Error.Code),
				StatusCode: resp.StatusCode,
			}
		}
		if !resp.ok() {
			return nil, statusError(domain.PlatformMeta, resp)
		}

		for _, row := range payload.Data {
			day, ok := parseReportDay(string(row.DateStart))
			if !ok {
				a.metrics.RecordUpstreamRowSkipped(string(domain.PlatformMeta), "bad_date")
				log.WithField("date_start", row.DateStart).Warn("Skipping Meta row with unparseable date")
				continue
			}
			if !inRange(day, start, end) {
				a.metrics.RecordUpstreamRowSkipped(string(domain.PlatformMeta), "out_of_range")
				continue
			}

			acc.add(day,
				row.Clicks.Int64(),
				row.Impressions.Int64(),
				row.Spend.Decimal(),
				a.conversions(row.Actions),
			)
			rows++
		}

		next = payload.Paging.Next
		if next != "" && !a.sameOrigin(next) {
			log.WithField("next", next).Warn("Meta paging link points off the API host, remaining pages ignored")
			break
		}
	}

	result := acc.result()
	a.metrics.RecordUpstreamRows(string(domain.PlatformMeta), rows)
	log.WithFields(map[string]any{
		"rows":     rows,
		"days":     len(result),
		"duration": time.Since(began),
	}).Info("Fetched Meta insights")

	return result, nil
}

// conversions sums the values of actions matching the configured action type. An actions
// field of the wrong shape counts as no conversions; a malformed entry is skipped alone.
func (a *MetaAdapter) conversions(raw json.RawMessage) decimal.Decimal {
	var entries []json.RawMessage
	if !decodeLenient(raw, &entries) {
		return decimal.Zero
	}

	total := decimal.Zero
	for _, entry := range entries {
		var action metaAction
		if !decodeLenient(entry, &action) {
			continue
		}
		if action.ActionType == a.opts.ConversionAction {
			total = total.Add(action.Value.Decimal())
		}
	}
	return total
}

// sameOrigin reports whether a paging link stays on the configured API host. The access
// token is sent with every page, so links elsewhere are not followed.
func (a *MetaAdapter) sameOrigin(link string) bool {
	next, err := url.Parse(link)
	if err != nil {
		return false
	}
	base, err := url.Parse(a.opts.BaseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(next.Scheme, base.Scheme) && strings.EqualFold(next.Host, base.Host)
}

func (a *MetaAdapter) insightsURL(start, end domain.CalendarDay) string {
	account := strings.TrimPrefix(a.opts.AdAccountID, "act_")
	timeRange, _ := json.Marshal(map[string]string{
		"since": start.String(),
		"until": end.String(),
	})

	q := url.Values{}
	q.Set("level", "account")
	q.Set("fields", "date_start,date_stop,clicks,impressions,spend,actions")
	q.Set("time_increment", "1")
	q.Set("time_range", string(timeRange))
	if a.opts.PageLimit > 0 {
		q.Set("limit", strconv.Itoa(a.opts.PageLimit))
	}

	return fmt.Sprintf("%s/%s/act_%s/insights?%s", a.opts.BaseURL, a.opts.APIVersion, account, q.Encode())
}

// transportError wraps a failure that produced no usable response.
func transportError(platform domain.Platform, err error) *domain.UpstreamFetchError {
	msg := "request failed"
	if isCancellation(err) {
		msg = "request cancelled or timed out"
	}
	return &domain.UpstreamFetchError{Platform: platform, Message: msg, Err: err}
}

// statusError describes a non-2xx response whose body carried nothing more specific.
func statusError(platform domain.Platform, resp *upstreamResponse) *domain.UpstreamFetchError {
	msg := http.StatusText(resp.StatusCode)
	if snippet := strings.TrimSpace(string(resp.Body)); snippet != "" {
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		msg += ": " + snippet
	}
	return &domain.UpstreamFetchError{Platform: platform, Message: msg, StatusCode: resp.StatusCode}
}
