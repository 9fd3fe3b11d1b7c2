package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rxops/orderlens/internal/report"
)

// Run is one recorded reconciliation.
type Run struct {
	ID          int64
	Site        string
	SiteCode    int64
	TriggeredBy string // "manual" or "scheduled"
	RanAt       time.Time
	Matched     int
	Mismatched  int
	Missing     int
}

// SaveResult records a pipeline result and its comparison rows.
func (s *Store) SaveResult(res *report.Result, triggeredBy string) (int64, error) {
	run := Run{
		Site:        res.Site,
		SiteCode:    res.SiteCode,
		TriggeredBy: triggeredBy,
		RanAt:       res.RanAt,
	}
	for _, row := range res.Comparison {
		switch row.Color {
		case report.ColorGreen:
			run.Matched++
		case report.ColorYellow:
			run.Mismatched++
		default:
			run.Missing++
		}
	}

	err := s.Transaction(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO runs (site, site_code, triggered_by, ran_at, matched, mismatched, missing)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.Site, run.SiteCode, run.TriggeredBy, run.RanAt, run.Matched, run.Mismatched, run.Missing)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		run.ID, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get run id: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO run_rows (run_id, product_name, ndc, forecasted_order_qty, ordered_qty, color)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare row insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range res.Comparison {
			if _, err := stmt.Exec(run.ID, row.ProductName, row.NDC, row.ForecastedOrderQty, row.OrderedQty, string(row.Color)); err != nil {
				return fmt.Errorf("failed to insert run row: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return run.ID, nil
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.Query(`
		SELECT id, site, site_code, triggered_by, ran_at, matched, mismatched, missing
		FROM runs
		ORDER BY ran_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Site, &r.SiteCode, &r.TriggeredBy, &r.RanAt, &r.Matched, &r.Mismatched, &r.Missing); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunRows returns the comparison rows recorded for one run.
func (s *Store) RunRows(runID int64) ([]report.ComparisonRow, error) {
	rows, err := s.Query(`
		SELECT product_name, ndc, forecasted_order_qty, ordered_qty, color
		FROM run_rows
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run rows: %w", err)
	}
	defer rows.Close()

	var out []report.ComparisonRow
	for rows.Next() {
		var row report.ComparisonRow
		var color string
		if err := rows.Scan(&row.ProductName, &row.NDC, &row.ForecastedOrderQty, &row.OrderedQty, &color); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		row.Color = report.Color(color)
		out = append(out, row)
	}
	return out, rows.Err()
}
