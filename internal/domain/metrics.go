package domain

import "math"

// raw per-platform, per-day counters
type BaseMetrics struct {
	Clicks      int64   `json:"clicks"`
	Impressions int64   `json:"impressions"`
	Cost        float64 `json:"cost"`
	Conversions float64 `json:"conversions"`
}

// Add returns the element-wise sum of two counters.
func (b BaseMetrics) Add(o BaseMetrics) BaseMetrics {
	return BaseMetrics{
		Clicks:      b.Clicks + o.Clicks,
		Impressions: b.Impressions + o.Impressions,
		Cost:        b.Cost + o.Cost,
		Conversions: b.Conversions + o.Conversions,
	}
}

// IsZero reports whether every counter is zero.
func (b BaseMetrics) IsZero() bool {
	return b == BaseMetrics{}
}

// efficiency ratios computed from BaseMetrics
type DerivedMetrics struct {
	CTR float64 `json:"ctr"` // clicks / impressions * 100
	CPM float64 `json:"cpm"` // cost / impressions * 1000
	CPC float64 `json:"cpc"` // cost / clicks
	CPA float64 `json:"cpa"` // cost / conversions
	CVR float64 `json:"cvr"` // conversions / clicks * 100
}

// Derive computes the efficiency ratios for one platform-day. Any ratio whose denominator
// is zero, or whose operands are not finite, is exactly 0. No rounding is applied.
func Derive(b BaseMetrics) DerivedMetrics {
	clicks := float64(b.Clicks)
	impressions := float64(b.Impressions)

	return DerivedMetrics{
		CTR: ratio(clicks, impressions, 100),
		CPM: ratio(b.Cost, impressions, 1000),
		CPC: ratio(b.Cost, clicks, 1),
		CPA: ratio(b.Cost, b.Conversions, 1),
		CVR: ratio(b.Conversions, clicks, 100),
	}
}

func ratio(numerator, denominator, multiplier float64) float64 {
	if !finite(numerator) || !finite(denominator) || denominator == 0 {
		return 0
	}

	v := numerator / denominator * multiplier
	if !finite(v) {
		return 0
	}
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
