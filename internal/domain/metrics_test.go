package domain

import (
	"math"
	"testing"
)

func TestDeriveExample(t *testing.T) {
	got := Derive(BaseMetrics{Clicks: 50, Impressions: 1000, Cost: 25.0, Conversions: 5})

	want := DerivedMetrics{CTR: 5, CPM: 25, CPC: 0.5, CPA: 5, CVR: 10}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDeriveAllZero(t *testing.T) {
	got := Derive(BaseMetrics{})
	if got != (DerivedMetrics{}) {
		t.Fatalf("expected all-zero ratios, got %+v", got)
	}
}

func TestDeriveZeroDenominators(t *testing.T) {
	cases := []struct {
		name string
		base BaseMetrics
		want DerivedMetrics
	}{
		{
			name: "no impressions",
			base: BaseMetrics{Clicks: 10, Cost: 20, Conversions: 2},
			want: DerivedMetrics{CTR: 0, CPM: 0, CPC: 2, CPA: 10, CVR: 20},
		},
		{
			name: "no clicks",
			base: BaseMetrics{Impressions: 500, Cost: 5, Conversions: 1},
			want: DerivedMetrics{CTR: 0, CPM: 10, CPC: 0, CPA: 5, CVR: 0},
		},
		{
			name: "no conversions",
			base: BaseMetrics{Clicks: 4, Impressions: 200, Cost: 8},
			want: DerivedMetrics{CTR: 2, CPM: 40, CPC: 2, CPA: 0, CVR: 0},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Derive(c.base)
			if got != c.want {
				t.Fatalf("expected %+v, got %+v", c.want, got)
			}
		})
	}
}

func TestDeriveNonFiniteOperandsYieldZero(t *testing.T) {
	got := Derive(BaseMetrics{Clicks: 10, Impressions: 100, Cost: math.NaN(), Conversions: math.Inf(1)})

	for name, v := range map[string]float64{"cpm": got.CPM, "cpc": got.CPC, "cpa": got.CPA, "cvr": got.CVR} {
		if v != 0 {
			t.Fatalf("%s: expected 0, got %v", name, v)
		}
	}
	if got.CTR != 10 {
		t.Fatalf("ctr: expected 10, got %v", got.CTR)
	}
}

func TestBaseMetricsAdd(t *testing.T) {
	a := BaseMetrics{Clicks: 1, Impressions: 2, Cost: 1.5, Conversions: 0.5}
	b := BaseMetrics{Clicks: 3, Impressions: 4, Cost: 2.5, Conversions: 1}

	got := a.Add(b)
	want := BaseMetrics{Clicks: 4, Impressions: 6, Cost: 4, Conversions: 1.5}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if got.IsZero() || !(BaseMetrics{}).IsZero() {
		t.Fatal("IsZero mismatch")
	}
}
