package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

// Reconciler turns the two platform feeds into one dense, date-indexed table.
type Reconciler struct {
	meta    domain.SourceAdapter
	tiktok  domain.SourceAdapter
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReconciler(
	meta domain.SourceAdapter,
	tiktok domain.SourceAdapter,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Reconciler {
	return &Reconciler{
		meta:    meta,
		tiktok:  tiktok,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// fetchResult is one adapter's settled outcome
type fetchResult struct {
	days map[domain.CalendarDay]domain.BaseMetrics
	err  error
}

// Range returns the canonical range ending today (UTC) for lookbackDays.
func (s *Reconciler) Range(lookbackDays int) (domain.CalendarDay, domain.CalendarDay, []domain.CalendarDay, error) {
	if !domain.IsAllowedLookback(lookbackDays) {
		return "", "", nil, &domain.RangeError{LookbackDays: lookbackDays, Reason: "lookback must be 90 or 365 days"}
	}

	end := domain.DayOf(s.now())
	start := end.AddDays(-(lookbackDays - 1))
	days := domain.Enumerate(start, end)
	if len(days) == 0 {
		return "", "", nil, &domain.RangeError{LookbackDays: lookbackDays, Reason: "empty date range"}
	}

	return start, end, days, nil
}

// Reconcile runs one full pull. Adapter failures never fail the run: the failed platform
// is zero-filled and reported in Sources. Only range errors are returned.
func (s *Reconciler) Reconcile(ctx context.Context, lookbackDays int) (*domain.Report, error) {
	began := time.Now()
	lookbackLabel := strconv.Itoa(lookbackDays)

	s.metrics.IncReconcilesInProgress()
	defer s.metrics.DecReconcilesInProgress()

	log := s.logger.WithContext(ctx).WithField("lookback_days", lookbackDays)

	start, end, days, err := s.Range(lookbackDays)
	if err != nil {
		s.metrics.RecordReconcile("invalid_range", lookbackLabel, time.Since(began))
		return nil, err
	}

	log.WithFields(map[string]any{
		"start": start,
		"end":   end,
	}).Info("Starting reconciliation")

	metaResult, tiktokResult := s.fetchAll(ctx, start, end)

	sources := map[domain.Platform]domain.SourceOutcome{
		domain.PlatformMeta:   s.settle(ctx, s.meta, &metaResult),
		domain.PlatformTikTok: s.settle(ctx, s.tiktok, &tiktokResult),
	}

	table := make(domain.ResultTable, 0, len(days))
	for _, day := range days {
		table = append(table, domain.DailyRecord{
			Date:   day,
			Meta:   domain.NewPlatformDay(metaResult.days[day]),
			TikTok: domain.NewPlatformDay(tiktokResult.days[day]),
		})
	}
	table.SortDescending()

	status := "success"
	for _, o := range sources {
		if o.Status == domain.SourceFailed {
			status = "degraded"
		}
	}

	duration := time.Since(began)
	s.metrics.RecordReconcile(status, lookbackLabel, duration)

	log.WithFields(map[string]any{
		"duration":    duration,
		"days":        len(table),
		"meta_days":   sources[domain.PlatformMeta].Days,
		"tiktok_days": sources[domain.PlatformTikTok].Days,
		"status":      status,
	}).Info("Reconciliation completed")

	return &domain.Report{
		LookbackDays: lookbackDays,
		Start:        start,
		End:          end,
		Table:        table,
		Sources:      sources,
	}, nil
}

// fetchAll calls both adapters concurrently and waits for both to settle
func (s *Reconciler) fetchAll(ctx context.Context, start, end domain.CalendarDay) (fetchResult, fetchResult) {
	var metaResult, tiktokResult fetchResult

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		metaResult = s.fetchOne(ctx, s.meta, start, end)
	}()
	go func() {
		defer wg.Done()
		tiktokResult = s.fetchOne(ctx, s.tiktok, start, end)
	}()
	wg.Wait()

	return metaResult, tiktokResult
}

// fetchOne runs a single adapter. A panic inside it is settled as that platform's failure.
func (s *Reconciler) fetchOne(ctx context.Context, adapter domain.SourceAdapter, start, end domain.CalendarDay) (result fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = fetchResult{err: &domain.UpstreamFetchError{
				Platform: adapter.Platform(),
				Message:  fmt.Sprintf("adapter panicked: %v", r),
			}}
		}
	}()

	result.days, result.err = adapter.Fetch(ctx, start, end)
	return result
}

// settle records the outcome of one adapter and replaces a failure with the empty map
func (s *Reconciler) settle(ctx context.Context, adapter domain.SourceAdapter, result *fetchResult) domain.SourceOutcome {
	platform := adapter.Platform()
	outcome := domain.SourceOutcome{Platform: platform}

	switch {
	case result.err != nil:
		outcome.Status = domain.SourceFailed
		outcome.Error = result.err.Error()
		result.days = nil

		s.metrics.RecordPlatformDegraded(string(platform))
		s.logger.WithPlatform(ctx, string(platform)).WithError(result.err).
			Error("Platform fetch failed, zero-filling its columns")
	case !adapter.Configured():
		outcome.Status = domain.SourceSkipped
	default:
		outcome.Status = domain.SourceOK
		outcome.Days = len(result.days)
	}

	return outcome
}
