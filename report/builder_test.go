package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shoppulse/anomaly"
	"shoppulse/models"
	"shoppulse/store"
)

type stubGeoSource struct {
	nodes []models.GeoNode
	err   error
	calls int
}

func (s *stubGeoSource) GeoSummary(ctx context.Context, storeID string, period models.Period) ([]models.GeoNode, error) {
	s.calls++
	return s.nodes, s.err
}

func seedOrder(id string, at time.Time, total string, address map[string]interface{}) models.Order {
	order := models.Order{
		ID:         id,
		StoreID:    "store-a",
		TotalPrice: decimal.RequireFromString(total),
		Currency:   "PHP",
		OrderedAt:  at,
		Items: []models.LineItem{
			{ProductID: "p1", Name: "Shirt", Price: decimal.RequireFromString(total), Quantity: 1},
		},
	}
	if address != nil {
		order.Raw = map[string]interface{}{"shipping_address": address}
	}
	return order
}

func manilaAddress() map[string]interface{} {
	return map[string]interface{}{
		"country":  "Philippines",
		"province": "Metro Manila",
		"city":     "Quezon City",
	}
}

func seedStore(t *testing.T, now time.Time, withAddresses bool) *store.MemoryStore {
	t.Helper()

	s := store.NewMemoryStore()
	// 30 days of steady history: 2 orders per day at 50 each
	for day := 30; day >= 1; day-- {
		at := now.AddDate(0, 0, -day).Truncate(24 * time.Hour).Add(12 * time.Hour)
		var addr map[string]interface{}
		if withAddresses {
			addr = manilaAddress()
		}
		s.Add("store-a",
			seedOrder(fmt.Sprintf("d%d-1", day), at, "50", addr),
			seedOrder(fmt.Sprintf("d%d-2", day), at.Add(time.Minute), "50", addr),
		)
	}
	return s
}

func newTestBuilder(s *store.MemoryStore, geoSource GeoSource) *Builder {
	return NewBuilder(s, anomaly.NewDetector(anomaly.DefaultConfig()), geoSource, Options{
		TopProducts:    5,
		BottomProducts: 5,
		Timezone:       "UTC",
		LookbackDays:   30,
		IncludeGeo:     true,
	})
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, true)
	b := newTestBuilder(s, nil)

	report, err := b.Build(context.Background(), "store-a", "last_7_days", now)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	if report.StoreID != "store-a" {
		t.Errorf("unexpected store id %q", report.StoreID)
	}
	if report.Period.RangeType != "last_7_days" {
		t.Errorf("unexpected range type %q", report.Period.RangeType)
	}
	// 7 full days of history fall inside the period, 2 orders each
	if got := report.Summary.Summary.TotalOrders; got != 14 {
		t.Errorf("expected 14 orders in period, got %d", got)
	}
	if want := decimal.RequireFromString("700"); !report.Summary.Summary.TotalSales.Equal(want) {
		t.Errorf("expected total sales 700, got %s", report.Summary.Summary.TotalSales)
	}
	if len(report.Geography) != 1 || report.Geography[0].Name != "Philippines" {
		t.Errorf("expected Philippines geography, got %+v", report.Geography)
	}
	// steady history produces no anomalies but must not nil out the field
	if report.Anomalies == nil {
		t.Error("expected non-nil anomalies slice")
	}
}

func TestBuildDefaultRange(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, true)
	b := newTestBuilder(s, nil)

	report, err := b.Build(context.Background(), "store-a", "", now)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if report.Period.RangeType != "last_7_days" {
		t.Errorf("expected default range last_7_days, got %q", report.Period.RangeType)
	}
}

func TestBuildGeoFallback(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, false)
	src := &stubGeoSource{nodes: []models.GeoNode{{
		Name:  "Philippines",
		Level: models.GeoLevelCountry,
	}}}
	b := newTestBuilder(s, src)

	report, err := b.Build(context.Background(), "store-a", "last_7_days", now)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("expected 1 platform call, got %d", src.calls)
	}
	if len(report.Geography) != 1 || report.Geography[0].Name != "Philippines" {
		t.Errorf("expected fallback geography, got %+v", report.Geography)
	}
}

func TestBuildGeoFallbackUnavailable(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, false)
	src := &stubGeoSource{err: fmt.Errorf("fetch rollup: %w", models.ErrUpstreamUnavailable)}
	b := newTestBuilder(s, src)

	report, err := b.Build(context.Background(), "store-a", "last_7_days", now)
	if err != nil {
		t.Fatalf("Build should degrade, got error: %v", err)
	}
	if len(report.Geography) != 0 {
		t.Errorf("expected empty geography on fallback failure, got %+v", report.Geography)
	}
}

func TestBuildGeoNoFallbackWhenLocalDataExists(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, true)
	src := &stubGeoSource{}
	b := newTestBuilder(s, src)

	if _, err := b.Build(context.Background(), "store-a", "last_7_days", now); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if src.calls != 0 {
		t.Errorf("expected no platform calls when local addresses resolve, got %d", src.calls)
	}
}

func TestBuildEmptyStore(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	b := newTestBuilder(store.NewMemoryStore(), nil)

	report, err := b.Build(context.Background(), "empty-store", "last_7_days", now)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if report.Summary.Summary.TotalOrders != 0 {
		t.Errorf("expected zero orders, got %d", report.Summary.Summary.TotalOrders)
	}
	if !report.Summary.Summary.AverageOrderValue.IsZero() {
		t.Errorf("expected zero AOV, got %s", report.Summary.Summary.AverageOrderValue)
	}
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %d", len(report.Anomalies))
	}
}

func TestBuildAnomalySurfacing(t *testing.T) {
	now := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	s := seedStore(t, now, true)
	// yesterday spikes to 5x the usual daily take
	spikeAt := now.AddDate(0, 0, -1).Truncate(24 * time.Hour).Add(14 * time.Hour)
	s.Add("store-a", seedOrder("spike", spikeAt, "400", manilaAddress()))

	b := newTestBuilder(s, nil)
	report, err := b.Build(context.Background(), "store-a", "last_7_days", now)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	var highSales bool
	for _, a := range report.Anomalies {
		if a.Kind == models.AnomalyHighSales {
			highSales = true
		}
	}
	if !highSales {
		t.Errorf("expected a high sales anomaly, got %+v", report.Anomalies)
	}
}
