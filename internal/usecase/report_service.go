package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adperf/internal/domain"
	"adperf/pkg/logger"
	"adperf/pkg/metrics"
)

// ErrExportFailed wraps any failure to deliver the table to the sink.
var ErrExportFailed = errors.New("failed to export table")

// Summary is the per-platform roll-up of one reconciliation run.
type Summary struct {
	LookbackDays int                                        `json:"lookback_days"`
	Start        domain.CalendarDay                         `json:"start"`
	End          domain.CalendarDay                         `json:"end"`
	Platforms    map[domain.Platform]domain.PlatformSummary `json:"platforms"`
	Sources      map[domain.Platform]domain.SourceOutcome   `json:"sources"`
}

// ExportResult describes a completed push to the sink.
type ExportResult struct {
	LookbackDays int                                      `json:"lookback_days"`
	Start        domain.CalendarDay                       `json:"start"`
	End          domain.CalendarDay                       `json:"end"`
	Rows         int                                      `json:"rows"`
	Sources      map[domain.Platform]domain.SourceOutcome `json:"sources"`
}

// ReportService builds the derived views over a reconciliation run
type ReportService struct {
	reconciler   *Reconciler
	exportClient domain.ExportClient
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewReportService(
	reconciler *Reconciler,
	exportClient domain.ExportClient,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *ReportService {
	return &ReportService{
		reconciler:   reconciler,
		exportClient: exportClient,
		logger:       logger,
		metrics:      metrics,
	}
}

// Summarize reconciles the range and aggregates it per platform
func (s *ReportService) Summarize(ctx context.Context, lookbackDays int) (*Summary, error) {
	report, err := s.reconciler.Reconcile(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}

	return &Summary{
		LookbackDays: report.LookbackDays,
		Start:        report.Start,
		End:          report.End,
		Platforms:    report.Table.Summarize(),
		Sources:      report.Sources,
	}, nil
}

// Export reconciles the range and pushes the rows to the sink
func (s *ReportService) Export(ctx context.Context, lookbackDays int) (*ExportResult, error) {
	log := s.logger.WithContext(ctx)
	start := time.Now()

	report, err := s.reconciler.Reconcile(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}

	rows := report.Table.Rows()
	if err := s.exportClient.Export(ctx, rows, report.Start, report.End); err != nil {
		s.metrics.RecordExport("failed")
		log.WithError(err).Error("Failed to export table")
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	s.metrics.RecordExport("success")
	log.WithFields(map[string]any{
		"rows":     len(rows),
		"duration": time.Since(start),
	}).Info("Exported table to sink")

	return &ExportResult{
		LookbackDays: report.LookbackDays,
		Start:        report.Start,
		End:          report.End,
		Rows:         len(rows),
		Sources:      report.Sources,
	}, nil
}
