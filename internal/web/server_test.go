package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rxops/orderlens/internal/database"
	"github.com/rxops/orderlens/internal/history"
	"github.com/rxops/orderlens/internal/report"
)

type fakePipeline struct {
	sites  []string
	result *report.Result
	err    error
}

func (f *fakePipeline) Sites(ctx context.Context) ([]string, error) {
	return f.sites, nil
}

func (f *fakePipeline) Run(ctx context.Context, site string) (*report.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeHistory struct {
	runs  []history.Run
	rows  []report.ComparisonRow
	saved int
}

func (f *fakeHistory) SaveResult(res *report.Result, triggeredBy string) (int64, error) {
	f.saved++
	return int64(f.saved), nil
}

func (f *fakeHistory) RecentRuns(limit int) ([]history.Run, error) { return f.runs, nil }

func (f *fakeHistory) RunRows(runID int64) ([]report.ComparisonRow, error) { return f.rows, nil }

func sampleResult() *report.Result {
	return &report.Result{
		Site:     "Akron",
		SiteCode: 42,
		RanAt:    time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC),
		Forecast: &database.Table{Columns: []string{"ProductName", "NDC", "OrderQty"}, Rows: [][]any{{"Drug A", "111", 5.0}}},
		Orders:   &database.Table{Columns: []string{"NDC", "DrugName", "Quantity"}, Rows: [][]any{{"111", "Drug A", 3.0}}},
		Comparison: []report.ComparisonRow{
			{ProductName: "Drug A", NDC: "111", ForecastedOrderQty: 5, OrderedQty: 3, Color: report.ColorYellow},
		},
	}
}

func TestIndexListsSites(t *testing.T) {
	srv := NewServer(&fakePipeline{sites: []string{"Akron", "Lorain"}}, &fakeHistory{}, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Akron") || !strings.Contains(body, "Lorain") {
		t.Fatalf("expected site options in body:\n%s", body)
	}
}

func TestCompareRendersColoredRows(t *testing.T) {
	store := &fakeHistory{}
	srv := NewServer(&fakePipeline{result: sampleResult()}, store, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compare?site=Akron", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `class="yellow"`) {
		t.Fatalf("expected yellow comparison row:\n%s", body)
	}
	if !strings.Contains(body, "Forecasted Orders") || !strings.Contains(body, "Actual Orders") {
		t.Fatal("expected forecast and order tables")
	}
	if store.saved != 1 {
		t.Fatalf("expected the run to be recorded once, got %d", store.saved)
	}
}

func TestCompareWithoutSiteRedirects(t *testing.T) {
	srv := NewServer(&fakePipeline{}, &fakeHistory{}, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compare", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
}

func TestCompareBlockedByOrderStatus(t *testing.T) {
	pipeline := &fakePipeline{err: &report.InvalidOrderStatusError{Statuses: []int64{6}}}
	store := &fakeHistory{}
	srv := NewServer(pipeline, store, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compare?site=Akron", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid status") {
		t.Fatalf("expected invalid-status banner:\n%s", rec.Body.String())
	}
	if store.saved != 0 {
		t.Fatal("blocked runs must not be recorded")
	}
}

func TestCompareErrorPageStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown site", report.ErrSiteNotFound, http.StatusNotFound},
		{"query failure", context.DeadlineExceeded, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&fakePipeline{err: tc.err}, &fakeHistory{}, 0, "")

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/compare?site=Akron", nil))

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAPICompareStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"blocked", &report.InvalidOrderStatusError{Statuses: []int64{1}}, http.StatusConflict},
		{"unknown site", report.ErrSiteNotFound, http.StatusNotFound},
		{"ok", nil, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&fakePipeline{result: sampleResult(), err: tc.err}, &fakeHistory{}, 0, "")

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compare?site=Akron", nil))

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestAPICompareBody(t *testing.T) {
	srv := NewServer(&fakePipeline{result: sampleResult()}, &fakeHistory{}, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compare?site=Akron", nil))

	var payload struct {
		Site       string                 `json:"site"`
		Comparison []report.ComparisonRow `json:"comparison"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Site != "Akron" || len(payload.Comparison) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Comparison[0].Color != report.ColorYellow {
		t.Fatalf("expected yellow classification, got %s", payload.Comparison[0].Color)
	}
}

func TestHistoryPage(t *testing.T) {
	store := &fakeHistory{runs: []history.Run{
		{ID: 1, Site: "Akron", RanAt: time.Now(), TriggeredBy: "manual", Matched: 2},
	}}
	srv := NewServer(&fakePipeline{}, store, 0, "")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Akron") {
		t.Fatal("expected run in history table")
	}
}
