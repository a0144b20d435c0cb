package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shoppulse/models"
)

func testPeriod() models.Period {
	return models.Period{
		RangeType: "last_7_days",
		Start:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestGeoSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/stores/store-a/geo-summary" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("start") == "" || r.URL.Query().Get("end") == "" {
			t.Error("expected start and end query parameters")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"countries": [
				{
					"name": "Philippines",
					"orders": 10,
					"sales": 2500.50,
					"children": [
						{"name": "Metro Manila", "orders": 8, "sales": 2000.50},
						{"name": "Cebu", "orders": 2, "sales": 500}
					]
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 100})
	nodes, err := c.GeoSummary(context.Background(), "store-a", testPeriod())
	if err != nil {
		t.Fatalf("GeoSummary returned error: %v", err)
	}

	if len(nodes) != 1 {
		t.Fatalf("expected 1 country, got %d", len(nodes))
	}
	country := nodes[0]
	if country.Name != "Philippines" || country.Level != models.GeoLevelCountry {
		t.Errorf("unexpected country node: %+v", country)
	}
	if len(country.Children) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(country.Children))
	}
	if country.Children[0].Level != models.GeoLevelRegion {
		t.Errorf("expected region level child, got %q", country.Children[0].Level)
	}
}

func TestGeoSummaryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, RequestsPerSecond: 100})
	_, err := c.GeoSummary(context.Background(), "store-a", testPeriod())
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGeoSummaryUnreachable(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, RequestsPerSecond: 100})
	_, err := c.GeoSummary(context.Background(), "store-a", testPeriod())
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGeoSummaryHonoursContext(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://example.invalid", RequestsPerSecond: 1, BurstSize: 1})
	// drain the initial burst token so the next call must wait
	c.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.GeoSummary(ctx, "store-a", testPeriod())
	if err == nil {
		t.Fatal("expected error when context expires during rate limit wait")
	}
}
