package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"adperf/internal/domain"
	"adperf/pkg/logger"
)

func newTestMetaAdapter(baseURL string) *MetaAdapter {
	return NewMetaAdapter(newTestHTTPClient(0), MetaOptions{
		AccessToken:      "meta-token",
		AdAccountID:      "act_123",
		BaseURL:          baseURL,
		APIVersion:       "v19.0",
		ConversionAction: "offsite_conversion.fb_pixel_purchase",
		PageLimit:        500,
		MaxPages:         5,
	}, logger.Discard(), newTestMetrics())
}

func TestMetaAdapterFetchMapsAndPaginates(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer meta-token" {
			t.Errorf("unexpected authorization header %q", got)
		}

		switch r.URL.Path {
		case "/v19.0/act_123/insights":
			q := r.URL.Query()
			if q.Get("time_increment") != "1" || q.Get("level") != "account" || q.Get("limit") != "500" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			if !strings.Contains(q.Get("time_range"), `"since":"2024-01-01"`) {
				t.Errorf("unexpected time_range %s", q.Get("time_range"))
			}
			w.Write([]byte(`{
				"data": [
					{"date_start": "2024-01-01", "clicks": "50", "impressions": "1000", "spend": "25.00",
					 "actions": [{"action_type": "link_click", "value": "50"},
					             {"action_type": "offsite_conversion.fb_pixel_purchase", "value": "5"}]},
					{"date_start": "not-a-date", "clicks": "9"},
					{"date_start": "2024-01-02", "clicks": null, "impressions": 300, "spend": "abc", "actions": "oops"}
				],
				"paging": {"next": "` + server.URL + `/page2"}
			}`))
		case "/page2":
			w.Write([]byte(`{
				"data": [
					{"date_start": "2024-01-01", "clicks": "10", "impressions": "200", "spend": "5.5",
					 "actions": [{"action_type": "offsite_conversion.fb_pixel_purchase", "value": 1.5}]},
					{"date_start": "2023-12-31", "clicks": "1"}
				]
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d: %+v", len(got), got)
	}

	want := domain.BaseMetrics{Clicks: 60, Impressions: 1200, Cost: 30.5, Conversions: 6.5}
	if got["2024-01-01"] != want {
		t.Fatalf("expected %+v, got %+v", want, got["2024-01-01"])
	}

	want = domain.BaseMetrics{Impressions: 300}
	if got["2024-01-02"] != want {
		t.Fatalf("expected %+v, got %+v", want, got["2024-01-02"])
	}
}

func TestMetaAdapterErrorObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "Invalid OAuth access token.", "type": "OAuthException", "code": 190}}`))
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if got != nil {
		t.Fatalf("expected no partial data, got %+v", got)
	}

	var fetchErr *domain.UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected UpstreamFetchError, got %v", err)
	}
	if fetchErr.Platform != domain.PlatformMeta || fetchErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error fields: %+v", fetchErr)
	}
	if !strings.Contains(fetchErr.Message, "Invalid OAuth access token") {
		t.Fatalf("expected upstream message, got %q", fetchErr.Message)
	}
}

func TestMetaAdapterErrorOnLaterPageDiscardsData(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data": [{"date_start": "2024-01-01", "clicks": "1"}], "paging": {"next": "` + server.URL + `/page2"}}`))
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err == nil || got != nil {
		t.Fatalf("expected error without data, got %+v, %v", got, err)
	}
}

func TestMetaAdapterMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	_, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")

	var fetchErr *domain.UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected UpstreamFetchError, got %v", err)
	}
}

func TestMetaAdapterPageCap(t *testing.T) {
	var calls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data": [{"date_start": "2024-01-01", "clicks": "1"}], "paging": {"next": "` + server.URL + `/more"}}`))
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected 5 page requests, got %d", calls.Load())
	}
	if got["2024-01-01"].Clicks != 5 {
		t.Fatalf("expected clicks summed across pages, got %d", got["2024-01-01"].Clicks)
	}
}

func TestMetaAdapterUnconfiguredMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	adapter := NewMetaAdapter(newTestHTTPClient(0), MetaOptions{BaseURL: server.URL}, logger.Discard(), newTestMetrics())
	if adapter.Configured() {
		t.Fatal("adapter without credentials must not be configured")
	}

	got, err := adapter.Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty map and no error, got %+v, %v", got, err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected no upstream calls, got %d", calls.Load())
	}
}

func TestMetaAdapterToleratesMalformedRowFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": [
				{"date_start": "2024-01-01", "clicks": "4",
				 "actions": [{"action_type": 7, "value": "1"},
				             {"action_type": "offsite_conversion.fb_pixel_purchase", "value": "3"}]},
				{"date_start": 20240102, "clicks": "9"},
				{"date_start": "2024-01-03", "clicks": "2"}
			]
		}`))
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d: %+v", len(got), got)
	}

	want := domain.BaseMetrics{Clicks: 4, Conversions: 3}
	if got["2024-01-01"] != want {
		t.Fatalf("expected %+v, got %+v", want, got["2024-01-01"])
	}
	if _, ok := got["2024-01-02"]; ok {
		t.Fatalf("row with numeric date must be skipped, got %+v", got["2024-01-02"])
	}
	if got["2024-01-03"].Clicks != 2 {
		t.Fatalf("expected rows after the bad one to survive, got %+v", got["2024-01-03"])
	}
}

func TestMetaAdapterIgnoresOffHostPagingLink(t *testing.T) {
	var foreignCalls atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignCalls.Add(1)
		w.Write([]byte(`{"data": [{"date_start": "2024-01-01", "clicks": "100"}]}`))
	}))
	defer foreign.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"date_start": "2024-01-01", "clicks": "1"}], "paging": {"next": "` + foreign.URL + `/page2"}}`))
	}))
	defer server.Close()

	got, err := newTestMetaAdapter(server.URL).Fetch(context.Background(), "2024-01-01", "2024-01-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if foreignCalls.Load() != 0 {
		t.Fatalf("expected no request to a foreign host, got %d", foreignCalls.Load())
	}
	if got["2024-01-01"].Clicks != 1 {
		t.Fatalf("expected first page data to be kept, got %+v", got["2024-01-01"])
	}
}
