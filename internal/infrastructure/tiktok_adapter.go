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
)

const (
	tiktokAPI        = "tiktok_report"
	tiktokReportPath = "/open_api/v1.3/report/integrated/get/"
)

type TikTokOptions struct {
	AccessToken      string
	AdvertiserID     string
	BaseURL          string
	ConversionMetric string
	MaxRangeDays     int
	PageSize         int
	MaxPages         int
}

// TikTokAdapter reads advertiser-level daily reports from the TikTok Business API.
type TikTokAdapter struct {
	client  *HTTPClient
	opts    TikTokOptions
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewTikTokAdapter(client *HTTPClient, opts TikTokOptions, logger *logger.Logger, metrics *metrics.Metrics) *TikTokAdapter {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 30
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &TikTokAdapter{
		client:  client,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

func (a *TikTokAdapter) Platform() domain.Platform {
	return domain.PlatformTikTok
}

func (a *TikTokAdapter) Configured() bool {
	return a.opts.AccessToken != "" && a.opts.AdvertiserID != ""
}

type tiktokReportResponse struct {
	Code      *int   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Data      struct {
		List     []tiktokReportRow `json:"list"`
		PageInfo struct {
			Page      int `json:"page"`
			TotalPage int `json:"total_page"`
		} `json:"page_info"`
	} `json:"data"`
}

type tiktokReportRow struct {
	Dimensions struct {
		StatTimeDay flexString `json:"stat_time_day"`
	} `json:"dimensions"`
	Metrics json.RawMessage `json:"metrics"`
}

// dateWindow is an inclusive slice of the requested range.
type dateWindow struct {
	start, end domain.CalendarDay
}

// splitWindows cuts [start, end] into consecutive windows of at most size days.
func splitWindows(start, end domain.CalendarDay, size int) []dateWindow {
	days := domain.Enumerate(start, end)
	windows := make([]dateWindow, 0, len(days)/size+1)
	for i := 0; i < len(days); i += size {
		last := min(i+size, len(days)) - 1
		windows = append(windows, dateWindow{start: days[i], end: days[last]})
	}
	return windows
}

// Fetch pulls the daily report for [start, end]. The range is requested window by window;
// any failed window fails the whole fetch.
func (a *TikTokAdapter) Fetch(ctx context.Context, start, end domain.CalendarDay) (map[domain.CalendarDay]domain.BaseMetrics, error) {
	log := a.logger.WithPlatform(ctx, string(domain.PlatformTikTok))

	if !a.Configured() {
		log.Debug("TikTok credentials not configured, skipping fetch")
		return map[domain.CalendarDay]domain.BaseMetrics{}, nil
	}

	began := time.Now()
	acc := newDayAccumulator()
	rows := 0

	windows := splitWindows(start, end, a.opts.MaxRangeDays)
	for _, w := range windows {
		n, err := a.fetchWindow(ctx, w, acc)
		if err != nil {
			return nil, err
		}
		rows += n
	}

	result := acc.result()
	a.metrics.RecordUpstreamRows(string(domain.PlatformTikTok), rows)
	log.WithFields(map[string]any{
		"rows":     rows,
		"days":     len(result),
		"windows":  len(windows),
		"duration": time.Since(began),
	}).Info("Fetched TikTok report")

	return result, nil
}

func (a *TikTokAdapter) fetchWindow(ctx context.Context, w dateWindow, acc *dayAccumulator) (int, error) {
	log := a.logger.WithPlatform(ctx, string(domain.PlatformTikTok))
	header := http.Header{"Access-Token": []string{a.opts.AccessToken}}
	rows := 0

	for page := 1; ; page++ {
		if page > a.opts.MaxPages {
			log.WithFields(map[string]any{
				"window_start": w.start,
				"max_pages":    a.opts.MaxPages,
			}).Warn("TikTok page cap reached, remaining pages ignored")
			return rows, nil
		}

		resp, err := a.client.Get(ctx, tiktokAPI, a.reportURL(w, page), header)
		if err != nil {
			return 0, transportError(domain.PlatformTikTok, err)
		}
		if !resp.ok() {
			return 0, statusError(domain.PlatformTikTok, resp)
		}

		var payload tiktokReportResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Code == nil {
			return 0, &domain.UpstreamFetchError{
				Platform:   domain.PlatformTikTok,
				Message:    "malformed response body",
				StatusCode: resp.StatusCode,
				Err:        err,
			}
		}
		if *payload.Code != 0 {
			return 0, &domain.UpstreamFetchError{
				Platform:   domain.PlatformTikTok,
				Message:    fmt.Sprintf("%s (code %d, request %s)", payload.Message, *payload.Code, payload.RequestID),
				StatusCode: resp.StatusCode,
			}
		}

		for _, row := range payload.Data.List {
			day, ok := parseReportDay(string(row.Dimensions.StatTimeDay))
			if !ok {
				a.metrics.RecordUpstreamRowSkipped(string(domain.PlatformTikTok), "bad_date")
				log.WithField("stat_time_day", row.Dimensions.StatTimeDay).Warn("Skipping TikTok row with unparseable date")
				continue
			}
			if !inRange(day, w.start, w.end) {
				a.metrics.RecordUpstreamRowSkipped(string(domain.PlatformTikTok), "out_of_range")
				continue
			}

			var m map[string]flexNumber
			decodeLenient(row.Metrics, &m)

			acc.add(day,
				m["clicks"].Int64(),
				m["impressions"].Int64(),
				m["spend"].Decimal(),
				m[a.opts.ConversionMetric].Decimal(),
			)
			rows++
		}

		if page >= payload.Data.PageInfo.TotalPage {
			return rows, nil
		}
	}
}

func (a *TikTokAdapter) reportURL(w dateWindow, page int) string {
	metricNames, _ := json.Marshal([]string{"spend", "impressions", "clicks", a.opts.ConversionMetric})

	q := url.Values{}
	q.Set("advertiser_id", a.opts.AdvertiserID)
	q.Set("report_type", "BASIC")
	q.Set("data_level", "AUCTION_ADVERTISER")
	q.Set("dimensions", `["stat_time_day"]`)
	q.Set("metrics", string(metricNames))
	q.Set("start_date", w.start.String())
	q.Set("end_date", w.end.String())
	q.Set("page", strconv.Itoa(page))
	if a.opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(a.opts.PageSize))
	}

	return a.opts.BaseURL + tiktokReportPath + "?" + q.Encode()
}
