package usecase

import (
	"context"
	"sync"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeAdapter struct {
	platform   domain.Platform
	configured bool
	days       map[domain.CalendarDay]domain.BaseMetrics
	err        error
	panicWith  any

	mu    sync.Mutex
	calls [][2]domain.CalendarDay
}

func (f *fakeAdapter) Platform() domain.Platform { return f.platform }

func (f *fakeAdapter) Configured() bool { return f.configured }

func (f *fakeAdapter) Fetch(ctx context.Context, start, end domain.CalendarDay) (map[domain.CalendarDay]domain.BaseMetrics, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]domain.CalendarDay{start, end})
	f.mu.Unlock()

	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

type fakeChatClient struct {
	reply    string
	err      error
	messages []domain.ChatMessage
}

func (f *fakeChatClient) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

type fakeExportClient struct {
	err        error
	rows       []domain.Row
	start, end domain.CalendarDay
}

func (f *fakeExportClient) Export(ctx context.Context, rows []domain.Row, start, end domain.CalendarDay) error {
	f.rows, f.start, f.end = rows, start, end
	return f.err
}

func testMetrics() *metrics.Metrics {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

// newTestReconciler pins today to the given day
func newTestReconciler(meta, tiktok domain.SourceAdapter, today string) *Reconciler {
	r := NewReconciler(meta, tiktok, logger.Discard(), testMetrics())
	day, _ := time.Parse(domain.DayLayout, today)
	r.now = func() time.Time { return day.Add(15 * time.Hour) }
	return r
}

func upstreamFailure(p domain.Platform) error {
	return &domain.UpstreamFetchError{Platform: p, Message: "boom", StatusCode: 500}
}
