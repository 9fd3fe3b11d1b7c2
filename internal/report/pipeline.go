// Package report runs the forecast-vs-orders reconciliation for one site:
// a fixed sequence of reads across the integration and order databases,
// an outer join on NDC, and a per-row color classification.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rxops/orderlens/internal/database"
	"github.com/rxops/orderlens/internal/queries"
)

// ErrSiteNotFound reports that the selected site has no site code.
var ErrSiteNotFound = errors.New("report: no site matches the selection")

// blockingStatuses are order states under which yesterday's orders are not
// final; comparing against them would be misleading.
var blockingStatuses = map[int64]bool{1: true, 6: true}

// InvalidOrderStatusError halts a run before the comparison when any of
// yesterday's orders carries a blocking status.
type InvalidOrderStatusError struct {
	Statuses []int64
}

func (e *InvalidOrderStatusError) Error() string {
	return fmt.Sprintf("report: orders with invalid status %v, comparison aborted", e.Statuses)
}

// Querier is the slice of the database layer the pipeline consumes.
type Querier interface {
	ReadQuery(ctx context.Context, query string, args ...any) (*database.Table, error)
}

// Pipeline reconciles forecasted order quantities against purchase orders.
type Pipeline struct {
	integ   Querier // site lookup + forecast
	orders  Querier // order status + line items
	queries *queries.Set
}

// New builds a pipeline over the two logical databases.
func New(integ, orders Querier, q *queries.Set) *Pipeline {
	return &Pipeline{integ: integ, orders: orders, queries: q}
}

// ComparisonRow is one NDC after the outer join, with absent quantities
// filled with zero.
type ComparisonRow struct {
	ProductName        string  `json:"product_name"`
	NDC                string  `json:"ndc"`
	ForecastedOrderQty float64 `json:"forecasted_order_qty"`
	OrderedQty         float64 `json:"ordered_qty"`
	Color              Color   `json:"color"`
}

// Result carries the three tables handed to the presentation layer.
type Result struct {
	Site       string
	SiteCode   int64
	Forecast   *database.Table
	Orders     *database.Table
	Comparison []ComparisonRow
	RanAt      time.Time
}

// Sites lists the site names available for selection.
func (p *Pipeline) Sites(ctx context.Context) ([]string, error) {
	table, err := p.integ.ReadQuery(ctx, p.queries.Get(queries.Sites))
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	idx := table.ColumnIndex("Name")
	if idx < 0 {
		return nil, fmt.Errorf("sites query returned no Name column (columns: %v)", table.Columns)
	}
	sites := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if name := toString(row[idx]); name != "" {
			sites = append(sites, name)
		}
	}
	return sites, nil
}

// Run produces the reconciliation for one site. It fails with
// ErrSiteNotFound when the site cannot be resolved and with
// *InvalidOrderStatusError when the guard check halts the run.
func (p *Pipeline) Run(ctx context.Context, site string) (*Result, error) {
	started := time.Now()

	siteCode, err := p.resolveSite(ctx, site)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("site", site).Int64("site_code", siteCode).Msg("Resolved site")

	forecast, err := p.integ.ReadQuery(ctx, p.queries.Get(queries.Forecast), siteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	if err := p.checkOrderStatus(ctx, siteCode); err != nil {
		return nil, err
	}

	orders, err := p.orders.ReadQuery(ctx, p.queries.Get(queries.OrderLines), siteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order lines: %w", err)
	}

	comparison, err := compare(forecast, orders)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("site", site).
		Int("forecast_rows", len(forecast.Rows)).
		Int("order_rows", len(orders.Rows)).
		Int("comparison_rows", len(comparison)).
		Dur("duration", time.Since(started)).
		Msg("Reconciliation complete")

	return &Result{
		Site:       site,
		SiteCode:   siteCode,
		Forecast:   forecast,
		Orders:     orders,
		Comparison: comparison,
		RanAt:      started,
	}, nil
}

func (p *Pipeline) resolveSite(ctx context.Context, site string) (int64, error) {
	table, err := p.integ.ReadQuery(ctx, p.queries.Get(queries.SiteCode), site)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve site %q: %w", site, err)
	}
	if table.Empty() {
		return 0, fmt.Errorf("%w: %q", ErrSiteNotFound, site)
	}
	if table.ColumnIndex("SiteCode") < 0 {
		return 0, fmt.Errorf("site-code query returned no SiteCode column (columns: %v)", table.Columns)
	}
	return toInt64(table.Value(0, "SiteCode")), nil
}

// checkOrderStatus is the guard: any latest order-detail row in a blocking
// state aborts the run before the comparison is attempted.
func (p *Pipeline) checkOrderStatus(ctx context.Context, siteCode int64) error {
	table, err := p.orders.ReadQuery(ctx, p.queries.Get(queries.OrderStatus), siteCode)
	if err != nil {
		return fmt.Errorf("failed to fetch order status: %w", err)
	}

	idx := table.ColumnIndex("OrderStatusId")
	if idx < 0 {
		if len(table.Rows) == 0 {
			return nil
		}
		return fmt.Errorf("order-status query returned no OrderStatusId column (columns: %v)", table.Columns)
	}
	var blocking []int64
	for _, row := range table.Rows {
		if status := toInt64(row[idx]); blockingStatuses[status] {
			blocking = append(blocking, status)
		}
	}
	if len(blocking) > 0 {
		return &InvalidOrderStatusError{Statuses: blocking}
	}
	return nil
}

// compare outer-joins forecast and orders on NDC and classifies each row.
// Forecast rows keep their order; order-only NDCs follow, sorted for
// deterministic output.
func compare(forecast, orders *database.Table) ([]ComparisonRow, error) {
	fProduct := forecast.ColumnIndex("ProductName")
	fNDC := forecast.ColumnIndex("NDC")
	fQty := forecast.ColumnIndex("OrderQty")
	if len(forecast.Rows) > 0 && (fProduct < 0 || fNDC < 0 || fQty < 0) {
		return nil, fmt.Errorf("forecast query is missing a ProductName, NDC, or OrderQty column (columns: %v)", forecast.Columns)
	}
	oNDC := orders.ColumnIndex("NDC")
	oName := orders.ColumnIndex("DrugName")
	oQty := orders.ColumnIndex("Quantity")
	if len(orders.Rows) > 0 && (oNDC < 0 || oQty < 0) {
		return nil, fmt.Errorf("order-lines query is missing an NDC or Quantity column (columns: %v)", orders.Columns)
	}

	ordered := make(map[string]float64, len(orders.Rows))
	orderNames := make(map[string]string, len(orders.Rows))
	for _, row := range orders.Rows {
		ndc := toString(row[oNDC])
		ordered[ndc] += toFloat(row[oQty])
		if oName >= 0 {
			orderNames[ndc] = toString(row[oName])
		}
	}

	var rows []ComparisonRow
	seen := make(map[string]bool, len(forecast.Rows))
	for _, row := range forecast.Rows {
		ndc := toString(row[fNDC])
		seen[ndc] = true
		fq := toFloat(row[fQty])
		oq := ordered[ndc]
		rows = append(rows, ComparisonRow{
			ProductName:        toString(row[fProduct]),
			NDC:                ndc,
			ForecastedOrderQty: fq,
			OrderedQty:         oq,
			Color:              Classify(fq, oq),
		})
	}

	var extra []string
	for ndc := range ordered {
		if !seen[ndc] {
			extra = append(extra, ndc)
		}
	}
	sort.Strings(extra)
	for _, ndc := range extra {
		oq := ordered[ndc]
		rows = append(rows, ComparisonRow{
			ProductName:        orderNames[ndc],
			NDC:                ndc,
			ForecastedOrderQty: 0,
			OrderedQty:         oq,
			Color:              Classify(0, oq),
		})
	}
	return rows, nil
}
