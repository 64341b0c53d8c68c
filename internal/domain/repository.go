package domain

import (
	"context"
)

// Supported lookback windows, in days.
const (
	Lookback90  = 90
	Lookback365 = 365

	DefaultLookbackDays = Lookback90
)

// IsAllowedLookback reports whether days is one of the supported windows.
func IsAllowedLookback(days int) bool {
	return days == Lookback90 || days == Lookback365
}

// NormalizeLookback replaces any unsupported window with the default.
func NormalizeLookback(days int) int {
	if IsAllowedLookback(days) {
		return days
	}
	return DefaultLookbackDays
}

// interface for one upstream ads-reporting platform
type SourceAdapter interface {
	Platform() Platform
	// Configured reports whether credentials are present. An unconfigured adapter
	// returns an empty map from Fetch without calling upstream.
	Configured() bool
	// Fetch returns the days the upstream reported within [start, end]. The result is sparse.
	// Failures are *UpstreamFetchError and never come with partial data.
	Fetch(ctx context.Context, start, end CalendarDay) (map[CalendarDay]BaseMetrics, error)
}

// interface for the external language-model chat service
type ChatClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// interface for pushing a computed table to an external sink
type ExportClient interface {
	Export(ctx context.Context, rows []Row, start, end CalendarDay) error
}
