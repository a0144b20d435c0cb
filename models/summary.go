package models

import "github.com/shopspring/decimal"

// ProductAggregate is a derived per-product rollup for one period. Growth
// rate is period-over-period relative revenue change; products absent from
// the previous period carry a growth rate of 1.0 and IsNew set.
type ProductAggregate struct {
	ProductKey string          `json:"product_key"`
	Name       string          `json:"name"`
	Revenue    decimal.Decimal `json:"revenue"`
	Quantity   int64           `json:"quantity"`
	GrowthRate float64         `json:"growth_rate"`
	IsNew      bool            `json:"is_new,omitempty"`
}

// SummaryTotals holds the headline metrics for one period.
type SummaryTotals struct {
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalOrders       int             `json:"total_orders"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// Comparison holds period-over-period deltas. Every change is 0 when the
// previous period's value is 0, never infinity or an error.
type Comparison struct {
	SalesChange    float64         `json:"sales_change"`
	OrdersChange   float64         `json:"orders_change"`
	AOVChange      float64         `json:"aov_change"`
	PreviousSales  decimal.Decimal `json:"previous_sales"`
	PreviousOrders int             `json:"previous_orders"`
	PreviousAOV    decimal.Decimal `json:"previous_aov"`
}

// SalesSummary is the aggregation engine's output: totals, comparison
// deltas and the ranked/growth-classified product lists. Requested counts
// are carried alongside the lists because callers may ask for more
// products than exist.
type SalesSummary struct {
	Summary           SummaryTotals      `json:"summary"`
	Comparison        Comparison         `json:"comparison"`
	TopRequested      int                `json:"top_products_requested"`
	TopReturned       int                `json:"top_products_returned"`
	BottomRequested   int                `json:"bottom_products_requested"`
	BottomReturned    int                `json:"bottom_products_returned"`
	TopProducts       []ProductAggregate `json:"top_products"`
	BottomProducts    []ProductAggregate `json:"bottom_products"`
	GrowingProducts   []ProductAggregate `json:"growing_products"`
	DecliningProducts []ProductAggregate `json:"declining_products"`
}
