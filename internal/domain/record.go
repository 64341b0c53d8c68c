package domain

import "sort"

type Platform string

const (
	PlatformMeta   Platform = "meta"
	PlatformTikTok Platform = "tiktok"
)

// PlatformDay is one platform's slice of a DailyRecord.
type PlatformDay struct {
	Base    BaseMetrics    `json:"base"`
	Derived DerivedMetrics `json:"derived"`
}

// NewPlatformDay derives the ratios for base.
func NewPlatformDay(base BaseMetrics) PlatformDay {
	return PlatformDay{Base: base, Derived: Derive(base)}
}

// one output row of the unified time series
type DailyRecord struct {
	Date   CalendarDay `json:"date"`
	Meta   PlatformDay `json:"meta"`
	TikTok PlatformDay `json:"tiktok"`
}

// Platform returns the slice of the record belonging to p.
func (r DailyRecord) Platform(p Platform) PlatformDay {
	if p == PlatformTikTok {
		return r.TikTok
	}
	return r.Meta
}

// Row flattens the record into its wire shape.
func (r DailyRecord) Row() Row {
	return Row{
		Date: r.Date,

		MetaClicks:      r.Meta.Base.Clicks,
		MetaImpressions: r.Meta.Base.Impressions,
		MetaCost:        r.Meta.Base.Cost,
		MetaConversions: r.Meta.Base.Conversions,
		MetaCTR:         r.Meta.Derived.CTR,
		MetaCPM:         r.Meta.Derived.CPM,
		MetaCPC:         r.Meta.Derived.CPC,
		MetaCPA:         r.Meta.Derived.CPA,
		MetaCVR:         r.Meta.Derived.CVR,

		TikTokClicks:      r.TikTok.Base.Clicks,
		TikTokImpressions: r.TikTok.Base.Impressions,
		TikTokCost:        r.TikTok.Base.Cost,
		TikTokConversions: r.TikTok.Base.Conversions,
		TikTokCTR:         r.TikTok.Derived.CTR,
		TikTokCPM:         r.TikTok.Derived.CPM,
		TikTokCPC:         r.TikTok.Derived.CPC,
		TikTokCPA:         r.TikTok.Derived.CPA,
		TikTokCVR:         r.TikTok.Derived.CVR,
	}
}

// Row is the flat serialized form of a DailyRecord: the day, four counters and five ratios
// per platform.
type Row struct {
	Date CalendarDay `json:"date"`

	MetaClicks      int64   `json:"meta_clicks"`
	MetaImpressions int64   `json:"meta_impressions"`
	MetaCost        float64 `json:"meta_cost"`
	MetaConversions float64 `json:"meta_conversions"`
	MetaCTR         float64 `json:"meta_ctr"`
	MetaCPM         float64 `json:"meta_cpm"`
	MetaCPC         float64 `json:"meta_cpc"`
	MetaCPA         float64 `json:"meta_cpa"`
	MetaCVR         float64 `json:"meta_cvr"`

	TikTokClicks      int64   `json:"tiktok_clicks"`
	TikTokImpressions int64   `json:"tiktok_impressions"`
	TikTokCost        float64 `json:"tiktok_cost"`
	TikTokConversions float64 `json:"tiktok_conversions"`
	TikTokCTR         float64 `json:"tiktok_ctr"`
	TikTokCPM         float64 `json:"tiktok_cpm"`
	TikTokCPC         float64 `json:"tiktok_cpc"`
	TikTokCPA         float64 `json:"tiktok_cpa"`
	TikTokCVR         float64 `json:"tiktok_cvr"`
}

// ordered sequence of DailyRecord, one per canonical day
type ResultTable []DailyRecord

// SortDescending orders the table most recent day first.
func (t ResultTable) SortDescending() {
	sort.Slice(t, func(i, j int) bool {
		return t[j].Date.Before(t[i].Date)
	})
}

// Rows returns the flat wire form of every record, preserving order.
func (t ResultTable) Rows() []Row {
	rows := make([]Row, len(t))
	for i, r := range t {
		rows[i] = r.Row()
	}
	return rows
}

// PlatformSummary holds range totals and the ratios derived from those totals.
type PlatformSummary struct {
	Totals     BaseMetrics    `json:"totals"`
	Derived    DerivedMetrics `json:"derived"`
	ActiveDays int            `json:"active_days"`
}

// Summarize aggregates every day of the table per platform.
func (t ResultTable) Summarize() map[Platform]PlatformSummary {
	summary := make(map[Platform]PlatformSummary, 2)

	for _, p := range []Platform{PlatformMeta, PlatformTikTok} {
		var s PlatformSummary
		for _, r := range t {
			base := r.Platform(p).Base
			if !base.IsZero() {
				s.ActiveDays++
			}
			s.Totals = s.Totals.Add(base)
		}
		s.Derived = Derive(s.Totals)
		summary[p] = s
	}

	return summary
}

type SourceStatus string

const (
	SourceOK      SourceStatus = "ok"
	SourceFailed  SourceStatus = "failed"
	SourceSkipped SourceStatus = "skipped" // no credentials, nothing requested
)

// SourceOutcome records how one adapter call settled within a reconciliation run.
type SourceOutcome struct {
	Platform Platform     `json:"platform"`
	Status   SourceStatus `json:"status"`
	Days     int          `json:"days"`
	Error    string       `json:"error,omitempty"`
}

// Report is the output of one reconciliation run.
type Report struct {
	LookbackDays int                        `json:"lookback_days"`
	Start        CalendarDay                `json:"start"`
	End          CalendarDay                `json:"end"`
	Table        ResultTable                `json:"-"`
	Sources      map[Platform]SourceOutcome `json:"sources"`
}
