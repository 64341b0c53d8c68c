package usecase

import (
	"context"
	"errors"
	"testing"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

func TestReportSummarize(t *testing.T) {
	meta := &fakeAdapter{platform: domain.PlatformMeta, configured: true, days: map[domain.CalendarDay]domain.BaseMetrics{
		"2024-03-30": {Clicks: 30, Impressions: 600, Cost: 15, Conversions: 3},
		"2024-03-01": {Clicks: 20, Impressions: 400, Cost: 10, Conversions: 2},
	}}
	tiktok := &fakeAdapter{platform: domain.PlatformTikTok, configured: true, err: upstreamFailure(domain.PlatformTikTok)}

	svc := NewReportService(newTestReconciler(meta, tiktok, "2024-03-30"), &fakeExportClient{}, logger.Discard(), testMetrics())

	summary, err := svc.Summarize(context.Background(), 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := summary.Platforms[domain.PlatformMeta]
	if got.Totals != (domain.BaseMetrics{Clicks: 50, Impressions: 1000, Cost: 25, Conversions: 5}) || got.ActiveDays != 2 {
		t.Fatalf("unexpected meta summary %+v", got)
	}
	if got.Derived.CTR != 5 || got.Derived.CPA != 5 {
		t.Fatalf("unexpected derived totals %+v", got.Derived)
	}
	if summary.Platforms[domain.PlatformTikTok].ActiveDays != 0 {
		t.Fatal("failed platform must have no active days")
	}
	if summary.Sources[domain.PlatformTikTok].Status != domain.SourceFailed {
		t.Fatal("expected tiktok failure in sources")
	}
}

func TestReportExport(t *testing.T) {
	meta := &fakeAdapter{platform: domain.PlatformMeta, configured: true}
	tiktok := &fakeAdapter{platform: domain.PlatformTikTok, configured: true}
	sink := &fakeExportClient{}

	svc := NewReportService(newTestReconciler(meta, tiktok, "2024-03-30"), sink, logger.Discard(), testMetrics())

	result, err := svc.Export(context.Background(), 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Rows != 90 || len(sink.rows) != 90 {
		t.Fatalf("expected 90 rows exported, got %d/%d", result.Rows, len(sink.rows))
	}
	if sink.start != "2024-01-01" || sink.end != "2024-03-30" || sink.rows[0].Date != "2024-03-30" {
		t.Fatalf("unexpected export range %s..%s first %s", sink.start, sink.end, sink.rows[0].Date)
	}
}

func TestReportExportFailure(t *testing.T) {
	meta := &fakeAdapter{platform: domain.PlatformMeta, configured: true}
	tiktok := &fakeAdapter{platform: domain.PlatformTikTok, configured: true}
	cause := errors.New("sink down")

	svc := NewReportService(newTestReconciler(meta, tiktok, "2024-03-30"), &fakeExportClient{err: cause}, logger.Discard(), testMetrics())

	if _, err := svc.Export(context.Background(), 90); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
}

func TestReportRangeErrorPropagates(t *testing.T) {
	meta := &fakeAdapter{platform: domain.PlatformMeta, configured: true}
	tiktok := &fakeAdapter{platform: domain.PlatformTikTok, configured: true}
	svc := NewReportService(newTestReconciler(meta, tiktok, "2024-03-30"), &fakeExportClient{}, logger.Discard(), testMetrics())

	var rangeErr *domain.RangeError
	if _, err := svc.Summarize(context.Background(), 12); !errors.As(err, &rangeErr) {
		t.Fatalf("expected RangeError, got %v", err)
	}
}
