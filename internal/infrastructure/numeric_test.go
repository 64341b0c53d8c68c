package infrastructure

import (
	"encoding/json"
	"math"
	"testing"

	"adperf/internal/domain"

	"github.com/shopspring/decimal"
)

func TestFlexNumberCoercion(t *testing.T) {
	cases := map[string]string{
		`12`:           "12",
		`12.75`:        "12.75",
		`"42.10"`:      "42.1",
		`" 7 "`:        "7",
		`null`:         "0",
		`"abc"`:        "0",
		`true`:         "0",
		`{"value": 3}`: "0",
		`[1, 2]`:       "0",
		`-5`:           "0",
		`"-3.5"`:       "0",
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			var n flexNumber
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !n.Decimal().Equal(decimal.RequireFromString(want)) {
				t.Fatalf("expected %s, got %s", want, n.Decimal())
			}
		})
	}
}

func TestFlexNumberInsideDocument(t *testing.T) {
	var row struct {
		Clicks flexNumber `json:"clicks"`
		Spend  flexNumber `json:"spend"`
		Absent flexNumber `json:"absent"`
	}
	if err := json.Unmarshal([]byte(`{"clicks": "15", "spend": {"bad": true}}`), &row); err != nil {
		t.Fatalf("document should decode despite bad field: %v", err)
	}

	if row.Clicks.Int64() != 15 {
		t.Fatalf("expected 15 clicks, got %d", row.Clicks.Int64())
	}
	if !row.Spend.Decimal().IsZero() || !row.Absent.Decimal().IsZero() {
		t.Fatalf("expected zero for mismatched and absent fields")
	}
}

func TestFlexNumberInt64Rounds(t *testing.T) {
	if got := newFlexNumber("9.6").Int64(); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := newFlexNumber("9.4").Int64(); got != 9 {
		t.Fatalf("expected 9, got %d", got)
	}
}

func TestParseReportDay(t *testing.T) {
	cases := map[string]domain.CalendarDay{
		"2024-01-01":           "2024-01-01",
		"2024-01-01 00:00:00":  "2024-01-01",
		"2024-02-29T23:00:00Z": "2024-02-29",
		"2024/03/05":           "2024-03-05",
	}
	for in, want := range cases {
		got, ok := parseReportDay(in)
		if !ok || got != want {
			t.Fatalf("parseReportDay(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}

	for _, bad := range []string{"", "yesterday", "2024-13-01", "01/02/2024"} {
		if _, ok := parseReportDay(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestDayAccumulatorSumsSameDay(t *testing.T) {
	acc := newDayAccumulator()
	acc.add("2024-01-01", 10, 100, decimal.RequireFromString("0.1"), decimal.RequireFromString("1"))
	acc.add("2024-01-01", 5, 50, decimal.RequireFromString("0.2"), decimal.RequireFromString("0.5"))
	acc.add("2024-01-02", 1, 2, decimal.Zero, decimal.Zero)

	got := acc.result()
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}

	want := domain.BaseMetrics{Clicks: 15, Impressions: 150, Cost: 0.3, Conversions: 1.5}
	if got["2024-01-01"] != want {
		t.Fatalf("expected %+v, got %+v", want, got["2024-01-01"])
	}
}

func TestFlexNumberInt64OutOfRange(t *testing.T) {
	for _, raw := range []string{"1e30", "9223372036854775808"} {
		if got := newFlexNumber(raw).Int64(); got != 0 {
			t.Fatalf("expected %s to read as 0, got %d", raw, got)
		}
	}
	if got := newFlexNumber("9223372036854775807").Int64(); got != math.MaxInt64 {
		t.Fatalf("expected max int64 to survive, got %d", got)
	}
}

func TestDayAccumulatorNonFiniteAndOverflow(t *testing.T) {
	acc := newDayAccumulator()
	acc.add("2024-01-01", math.MaxInt64, 10, newFlexNumber("1e400").Decimal(), decimal.RequireFromString("2"))
	acc.add("2024-01-01", 1, 10, decimal.Zero, decimal.Zero)

	got := acc.result()["2024-01-01"]
	want := domain.BaseMetrics{Clicks: 0, Impressions: 20, Cost: 0, Conversions: 2}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if _, err := json.Marshal(domain.Derive(got)); err != nil {
		t.Fatalf("result must stay serializable: %v", err)
	}
}

func TestFlexStringKeepsNonStringsAsText(t *testing.T) {
	var row struct {
		Day flexString `json:"day"`
	}
	if err := json.Unmarshal([]byte(`{"day": 20240102}`), &row); err != nil {
		t.Fatalf("document should decode despite numeric day: %v", err)
	}
	if _, ok := parseReportDay(string(row.Day)); ok {
		t.Fatalf("numeric day %q must not parse", row.Day)
	}
}
