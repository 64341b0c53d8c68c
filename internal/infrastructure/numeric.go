package infrastructure

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"adperf/internal/domain"

	"github.com/shopspring/decimal"
)

// flexNumber decodes an upstream numeric field that may arrive as a JSON number, a quoted
// string, null, or something else entirely. Anything that is not a finite number decodes
// to zero and never fails the surrounding document.
type flexNumber struct {
	value decimal.Decimal
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	n.value = decimal.Zero

	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	n.value = d
	return nil
}

// Decimal returns the value clamped at zero; counters are never negative.
func (n flexNumber) Decimal() decimal.Decimal {
	if n.value.IsNegative() {
		return decimal.Zero
	}
	return n.value
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

// Int64 rounds to a whole count. Values beyond the int64 range are treated as garbage.
func (n flexNumber) Int64() int64 {
	return toInt64(n.Decimal().Round(0))
}

func toInt64(d decimal.Decimal) int64 {
	if d.IsNegative() || d.GreaterThan(maxInt64) {
		return 0
	}
	return d.IntPart()
}

// finiteFloat converts d, mapping anything float64 cannot hold to zero.
func finiteFloat(d decimal.Decimal) float64 {
	f := d.InexactFloat64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// flexString decodes a field expected to be a string. Any other JSON value is kept as its
// raw text so the caller can reject it per row instead of failing the whole document.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	*s = flexString(b)
	return nil
}

func newFlexNumber(s string) flexNumber {
	var n flexNumber
	_ = n.UnmarshalJSON([]byte(`"` + s + `"`))
	return n
}

// decodeLenient unmarshals raw into v and reports whether it succeeded. A failure leaves v
// at its zero value, which callers treat as "field absent".
func decodeLenient(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

var reportDayLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
}

// parseReportDay reads the calendar date an upstream row reports. The date part is taken
// literally; upstream days are already bucketed in the ad account's reporting zone.
func parseReportDay(s string) (domain.CalendarDay, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range reportDayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.CalendarDay(t.Format(domain.DayLayout)), true
		}
	}
	return "", false
}

// dayAccumulator sums rows per day. Everything is summed as decimals and converted once,
// so a sum that overflows the output type reads as zero rather than wrapping.
type dayAccumulator struct {
	days map[domain.CalendarDay]*dayTotals
}

type dayTotals struct {
	clicks      decimal.Decimal
	impressions decimal.Decimal
	cost        decimal.Decimal
	conversions decimal.Decimal
}

func newDayAccumulator() *dayAccumulator {
	return &dayAccumulator{days: make(map[domain.CalendarDay]*dayTotals)}
}

func (a *dayAccumulator) add(day domain.CalendarDay, clicks, impressions int64, cost, conversions decimal.Decimal) {
	t, ok := a.days[day]
	if !ok {
		t = &dayTotals{}
		a.days[day] = t
	}
	t.clicks = t.clicks.Add(decimal.NewFromInt(clicks))
	t.impressions = t.impressions.Add(decimal.NewFromInt(impressions))
	t.cost = t.cost.Add(cost)
	t.conversions = t.conversions.Add(conversions)
}

func (a *dayAccumulator) result() map[domain.CalendarDay]domain.BaseMetrics {
	out := make(map[domain.CalendarDay]domain.BaseMetrics, len(a.days))
	for day, t := range a.days {
		out[day] = domain.BaseMetrics{
			Clicks:      toInt64(t.clicks),
			Impressions: toInt64(t.impressions),
			Cost:        finiteFloat(t.cost),
			Conversions: finiteFloat(t.conversions),
		}
	}
	return out
}

func inRange(day, start, end domain.CalendarDay) bool {
	return !day.Before(start) && !end.Before(day)
}
