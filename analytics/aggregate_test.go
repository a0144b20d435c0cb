package analytics

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shoppulse/models"
)

func order(id string, total float64, items ...models.LineItem) models.Order {
	return models.Order{
		ID:         id,
		StoreID:    "store-1",
		TotalPrice: decimal.NewFromFloat(total),
		Currency:   "USD",
		OrderedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Items:      items,
	}
}

func item(productID string, price float64, qty int64) models.LineItem {
	return models.LineItem{
		ProductID:         productID,
		PlatformProductID: "plat-" + productID,
		Name:              "Product " + productID,
		Price:             decimal.NewFromFloat(price),
		Quantity:          qty,
	}
}

func TestAggregateSummaryAndComparison(t *testing.T) {
	current := []models.Order{
		order("o1", 100, item("a", 50, 2)),
		order("o2", 60, item("b", 30, 2)),
	}
	previous := []models.Order{
		order("p1", 80, item("a", 40, 2)),
	}

	s, err := Aggregate(current, previous, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if !s.Summary.TotalSales.Equal(decimal.NewFromInt(160)) {
		t.Errorf("total sales = %s, want 160", s.Summary.TotalSales)
	}
	if s.Summary.TotalOrders != 2 {
		t.Errorf("total orders = %d, want 2", s.Summary.TotalOrders)
	}
	if !s.Summary.AverageOrderValue.Equal(decimal.NewFromInt(80)) {
		t.Errorf("aov = %s, want 80", s.Summary.AverageOrderValue)
	}
	if got, want := s.Comparison.SalesChange, 1.0; got != want {
		t.Errorf("sales change = %v, want %v", got, want)
	}
	if got, want := s.Comparison.OrdersChange, 1.0; got != want {
		t.Errorf("orders change = %v, want %v", got, want)
	}
	if got, want := s.Comparison.AOVChange, 0.0; got != want {
		t.Errorf("aov change = %v, want %v", got, want)
	}
}

func TestAggregateEmptyInputNoDivisionFault(t *testing.T) {
	s, err := Aggregate(nil, nil, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !s.Summary.AverageOrderValue.IsZero() {
		t.Errorf("aov = %s, want 0", s.Summary.AverageOrderValue)
	}
	if s.Comparison.SalesChange != 0 || s.Comparison.OrdersChange != 0 || s.Comparison.AOVChange != 0 {
		t.Errorf("changes must be zero on empty previous period: %+v", s.Comparison)
	}
	if len(s.TopProducts) != 0 || len(s.BottomProducts) != 0 {
		t.Errorf("expected empty product lists")
	}
}

func TestAggregateRejectsNegativeValues(t *testing.T) {
	bad := []models.Order{order("o1", 10, item("a", -5, 1))}
	if _, err := Aggregate(bad, nil, 10, 10); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAggregateRevenueRescaleGuard(t *testing.T) {
	// Line items sum to 300 against an order total of 100; the uniform
	// rescale must run before ranking.
	current := []models.Order{
		order("o1", 100,
			item("a", 100, 2), // 200
			item("b", 50, 2),  // 100
		),
	}

	s, err := Aggregate(current, nil, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	grouped := decimal.Zero
	for _, p := range s.TopProducts {
		grouped = grouped.Add(p.Revenue)
	}
	limit := s.Summary.TotalSales.Mul(decimal.NewFromFloat(1.1))
	if grouped.GreaterThan(limit) {
		t.Errorf("grouped revenue %s exceeds %s after rescale", grouped, limit)
	}
	// Relative ranking survives the uniform rescale.
	if s.TopProducts[0].ProductKey != "a" {
		t.Errorf("top product = %s, want a", s.TopProducts[0].ProductKey)
	}
}

func TestAggregateBottomProductsShortInput(t *testing.T) {
	current := []models.Order{
		order("o1", 60, item("a", 30, 1), item("b", 20, 1), item("c", 10, 1)),
	}

	s, err := Aggregate(current, nil, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(s.BottomProducts) != 3 {
		t.Fatalf("bottom products = %d, want all 3", len(s.BottomProducts))
	}
	// Worst performer first.
	if s.BottomProducts[0].ProductKey != "c" || s.BottomProducts[2].ProductKey != "a" {
		t.Errorf("bottom order wrong: %s ... %s", s.BottomProducts[0].ProductKey, s.BottomProducts[2].ProductKey)
	}
	if s.BottomRequested != 10 || s.BottomReturned != 3 {
		t.Errorf("counts = requested %d returned %d, want 10/3", s.BottomRequested, s.BottomReturned)
	}
}

func TestAggregateGrowthClassification(t *testing.T) {
	current := []models.Order{
		order("o1", 150,
			item("up", 40, 2),    // 80, was 40
			item("down", 10, 2),  // 20, was 80
			item("fresh", 25, 2), // 50, new
		),
	}
	previous := []models.Order{
		order("p1", 120, item("up", 40, 1), item("down", 40, 2)),
	}

	s, err := Aggregate(current, previous, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(s.GrowingProducts) != 2 {
		t.Fatalf("growing = %d, want 2", len(s.GrowingProducts))
	}
	// up: (80-40)/40 = 1.0; fresh is new with growth 1.0 — ties broken on
	// key, never ranked ahead of a larger finite rate.
	for _, p := range s.GrowingProducts {
		if p.GrowthRate <= 0 {
			t.Errorf("growing product %s has rate %v", p.ProductKey, p.GrowthRate)
		}
	}
	var fresh *models.ProductAggregate
	for i := range s.GrowingProducts {
		if s.GrowingProducts[i].ProductKey == "fresh" {
			fresh = &s.GrowingProducts[i]
		}
	}
	if fresh == nil || !fresh.IsNew || fresh.GrowthRate != 1.0 {
		t.Errorf("fresh product not classified as new: %+v", fresh)
	}

	if len(s.DecliningProducts) != 1 {
		t.Fatalf("declining = %d, want 1", len(s.DecliningProducts))
	}
	d := s.DecliningProducts[0]
	if d.ProductKey != "down" {
		t.Errorf("declining product = %s, want down", d.ProductKey)
	}
	if want := (20.0 - 80.0) / 80.0; d.GrowthRate != want {
		t.Errorf("declining rate = %v, want %v", d.GrowthRate, want)
	}
}

func TestAggregateUnmatchedProductKey(t *testing.T) {
	li := models.LineItem{PlatformProductID: "777", Name: "Ghost", Price: decimal.NewFromInt(5), Quantity: 1}
	current := []models.Order{order("o1", 5, li)}

	s, err := Aggregate(current, nil, 10, 10)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(s.TopProducts) != 1 || s.TopProducts[0].ProductKey != "unknown_777" {
		t.Fatalf("unexpected products: %+v", s.TopProducts)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	current := []models.Order{
		order("o1", 100, item("a", 50, 1), item("b", 25, 2)),
		order("o2", 70, item("c", 35, 2)),
	}
	previous := []models.Order{
		order("p1", 50, item("a", 25, 2)),
	}

	first, err := Aggregate(current, previous, 2, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	second, err := Aggregate(current, previous, 2, 2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not deterministic:\n%+v\n%+v", first, second)
	}
}
