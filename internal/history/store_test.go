package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rxops/orderlens/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestSaveResultRoundTrips(t *testing.T) {
	store := openTestStore(t)

	res := &report.Result{
		Site:     "Akron",
		SiteCode: 42,
		RanAt:    time.Now().UTC(),
		Comparison: []report.ComparisonRow{
			{ProductName: "Drug A", NDC: "111", ForecastedOrderQty: 5, OrderedQty: 5, Color: report.ColorGreen},
			{ProductName: "Drug B", NDC: "222", ForecastedOrderQty: 5, OrderedQty: 3, Color: report.ColorYellow},
			{ProductName: "Drug C", NDC: "333", ForecastedOrderQty: 5, OrderedQty: 0, Color: report.ColorRed},
		},
	}

	id, err := store.SaveResult(res, "manual")
	if err != nil {
		t.Fatalf("SaveResult returned error: %v", err)
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != id || run.Site != "Akron" || run.TriggeredBy != "manual" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Matched != 1 || run.Mismatched != 1 || run.Missing != 1 {
		t.Fatalf("unexpected color counts: %+v", run)
	}

	rows, err := store.RunRows(id)
	if err != nil {
		t.Fatalf("RunRows returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].NDC != "111" || rows[0].Color != report.ColorGreen {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
}

func TestRecentRunsOrdering(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().UTC()
	for i, site := range []string{"Akron", "Lorain", "Westlake"} {
		res := &report.Result{Site: site, SiteCode: int64(i), RanAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := store.SaveResult(res, "scheduled"); err != nil {
			t.Fatalf("SaveResult returned error: %v", err)
		}
	}

	runs, err := store.RecentRuns(2)
	if err != nil {
		t.Fatalf("RecentRuns returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Site != "Westlake" || runs[1].Site != "Lorain" {
		t.Fatalf("expected newest-first ordering, got %v then %v", runs[0].Site, runs[1].Site)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := openTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
}
