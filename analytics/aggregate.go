// Package analytics turns raw order sets into comparable summary, ranking
// and growth metrics. All computation is pure and in-memory; identical
// inputs produce identical output.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"shoppulse/logger"
	"shoppulse/models"
)

// revenueOverflowTolerance allows grouped line-item revenue to exceed order
// revenue by 10% before the rescale guard kicks in. Duplicate or partially
// refunded line items otherwise skew every ranking downstream.
var revenueOverflowTolerance = decimal.NewFromFloat(1.1)

type productAccum struct {
	key      string
	name     string
	revenue  decimal.Decimal
	quantity int64
}

// Aggregate computes a SalesSummary from the current period's orders and
// the immediately preceding equal-length period's orders. It returns
// ErrInvalidInput only for negative prices or quantities; sparse data
// degrades to empty lists and zero metrics.
func Aggregate(current, previous []models.Order, topN, bottomN int) (models.SalesSummary, error) {
	log := logger.GetLogger().WithComponent("analytics")

	if topN < 0 {
		topN = 0
	}
	if bottomN < 0 {
		bottomN = 0
	}

	for _, o := range current {
		if err := o.Validate(); err != nil {
			return models.SalesSummary{}, err
		}
	}
	for _, o := range previous {
		if err := o.Validate(); err != nil {
			return models.SalesSummary{}, err
		}
	}

	summary := totals(current)
	prevSummary := totals(previous)

	comparison := models.Comparison{
		SalesChange:    relativeChange(summary.TotalSales, prevSummary.TotalSales),
		OrdersChange:   relativeChangeInt(summary.TotalOrders, prevSummary.TotalOrders),
		AOVChange:      relativeChange(summary.AverageOrderValue, prevSummary.AverageOrderValue),
		PreviousSales:  prevSummary.TotalSales,
		PreviousOrders: prevSummary.TotalOrders,
		PreviousAOV:    prevSummary.AverageOrderValue,
	}

	products := rollup(current)
	prevProducts := rollup(previous)

	rescaleIfOverflowing(products, summary.TotalSales, log)

	aggregates := classifyGrowth(products, prevProducts)

	byRevenue := make([]models.ProductAggregate, len(aggregates))
	copy(byRevenue, aggregates)
	sort.SliceStable(byRevenue, func(i, j int) bool {
		if !byRevenue[i].Revenue.Equal(byRevenue[j].Revenue) {
			return byRevenue[i].Revenue.GreaterThan(byRevenue[j].Revenue)
		}
		return byRevenue[i].ProductKey < byRevenue[j].ProductKey
	})

	top := clone(byRevenue[:min(topN, len(byRevenue))])

	// Bottom takes the lowest-revenue N, worst performer first. Short
	// inputs come back whole, never an error.
	bottomStart := len(byRevenue) - bottomN
	if bottomStart < 0 {
		bottomStart = 0
	}
	bottom := clone(byRevenue[bottomStart:])
	reverse(bottom)

	growing := filterByGrowth(aggregates, func(rate float64) bool { return rate > 0 })
	sort.SliceStable(growing, func(i, j int) bool {
		if growing[i].GrowthRate != growing[j].GrowthRate {
			return growing[i].GrowthRate > growing[j].GrowthRate
		}
		return growing[i].ProductKey < growing[j].ProductKey
	})
	growing = growing[:min(topN, len(growing))]

	declining := filterByGrowth(aggregates, func(rate float64) bool { return rate < 0 })
	sort.SliceStable(declining, func(i, j int) bool {
		if declining[i].GrowthRate != declining[j].GrowthRate {
			return declining[i].GrowthRate < declining[j].GrowthRate
		}
		return declining[i].ProductKey < declining[j].ProductKey
	})
	declining = declining[:min(bottomN, len(declining))]

	return models.SalesSummary{
		Summary:           summary,
		Comparison:        comparison,
		TopRequested:      topN,
		TopReturned:       len(top),
		BottomRequested:   bottomN,
		BottomReturned:    len(bottom),
		TopProducts:       top,
		BottomProducts:    bottom,
		GrowingProducts:   growing,
		DecliningProducts: declining,
	}, nil
}

func totals(orders []models.Order) models.SummaryTotals {
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(o.TotalPrice)
	}
	aov := decimal.Zero
	if len(orders) > 0 {
		aov = sum.Div(decimal.NewFromInt(int64(len(orders))))
	}
	return models.SummaryTotals{
		TotalSales:        sum,
		TotalOrders:       len(orders),
		AverageOrderValue: aov,
	}
}

func relativeChange(current, previous decimal.Decimal) float64 {
	if !previous.IsPositive() {
		return 0
	}
	return current.Sub(previous).Div(previous).InexactFloat64()
}

func relativeChangeInt(current, previous int) float64 {
	if previous <= 0 {
		return 0
	}
	return float64(current-previous) / float64(previous)
}

// rollup groups line items by product key, summing revenue and quantity.
// The returned map keys line up between periods for growth calculation.
func rollup(orders []models.Order) map[string]*productAccum {
	grouped := make(map[string]*productAccum)
	for _, o := range orders {
		for _, li := range o.Items {
			key := li.ProductKey()
			acc, ok := grouped[key]
			if !ok {
				acc = &productAccum{key: key, name: li.Name, revenue: decimal.Zero}
				grouped[key] = acc
			}
			acc.revenue = acc.revenue.Add(li.Revenue())
			acc.quantity += li.Quantity
		}
	}
	return grouped
}

// rescaleIfOverflowing uniformly rescales per-product revenue when the
// grouped total materially exceeds the order total. Runs before any
// ranking so corrupted payloads cannot skew the lists.
func rescaleIfOverflowing(products map[string]*productAccum, totalSales decimal.Decimal, log *logger.Entry) {
	grouped := decimal.Zero
	for _, p := range products {
		grouped = grouped.Add(p.revenue)
	}
	if !grouped.IsPositive() || grouped.LessThanOrEqual(totalSales.Mul(revenueOverflowTolerance)) {
		return
	}

	scale := totalSales.Div(grouped)
	for _, p := range products {
		p.revenue = p.revenue.Mul(scale)
	}
	log.WithFields(logger.Fields{
		"grouped_revenue": grouped.String(),
		"total_sales":     totalSales.String(),
		"scale_factor":    scale.String(),
	}).Warn("grouped product revenue exceeds order revenue, rescaled")
}

// classifyGrowth attaches growth rates by comparing against the previous
// period's rollup. Products with no prior revenue are new: growth 1.0,
// growth-eligible but never ranked ahead of a larger finite rate by
// construction of the formula. Output order is deterministic.
func classifyGrowth(current, previous map[string]*productAccum) []models.ProductAggregate {
	keys := make([]string, 0, len(current))
	for k := range current {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.ProductAggregate, 0, len(keys))
	for _, k := range keys {
		p := current[k]
		agg := models.ProductAggregate{
			ProductKey: p.key,
			Name:       p.name,
			Revenue:    p.revenue,
			Quantity:   p.quantity,
		}
		if prev, ok := previous[k]; ok && prev.revenue.IsPositive() {
			agg.GrowthRate = p.revenue.Sub(prev.revenue).Div(prev.revenue).InexactFloat64()
		} else {
			agg.GrowthRate = 1.0
			agg.IsNew = true
		}
		out = append(out, agg)
	}
	return out
}

func filterByGrowth(products []models.ProductAggregate, keep func(float64) bool) []models.ProductAggregate {
	out := make([]models.ProductAggregate, 0)
	for _, p := range products {
		if keep(p.GrowthRate) {
			out = append(out, p)
		}
	}
	return out
}

func clone(products []models.ProductAggregate) []models.ProductAggregate {
	out := make([]models.ProductAggregate, len(products))
	copy(out, products)
	return out
}

func reverse(products []models.ProductAggregate) {
	for i, j := 0, len(products)-1; i < j; i, j = i+1, j-1 {
		products[i], products[j] = products[j], products[i]
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
