package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shoppulse/analytics"
	"shoppulse/anomaly"
	"shoppulse/geo"
	"shoppulse/logger"
	"shoppulse/models"
	"shoppulse/store"
	"shoppulse/timerange"
)

var log = logger.GetLogger().WithComponent("report")

// GeoSource supplies a pre-aggregated geographic rollup when locally stored
// orders carry no usable address data. platform.Client implements it.
type GeoSource interface {
	GeoSummary(ctx context.Context, storeID string, period models.Period) ([]models.GeoNode, error)
}

// SalesReport is the complete analytics output for one store and period.
type SalesReport struct {
	StoreID     string                 `json:"store_id"`
	Period      models.Period          `json:"period"`
	Summary     models.SalesSummary    `json:"summary"`
	Geography   []models.GeoNode       `json:"geography,omitempty"`
	Anomalies   []models.AnomalyRecord `json:"anomalies"`
	GeneratedAt time.Time              `json:"generated_at"`
}

type Options struct {
	TopProducts    int
	BottomProducts int
	DefaultRange   string
	Timezone       string
	LookbackDays   int
	IncludeGeo     bool
}

// Builder assembles sales reports from stored orders. Aggregation and
// geographic extraction run concurrently; anomaly detection runs over a
// longer lookback than the reported period so baselines stay meaningful.
type Builder struct {
	store    store.OrderStore
	detector *anomaly.Detector
	geo      GeoSource
	opts     Options
}

// NewBuilder wires a report builder. geoSource may be nil, in which case no
// platform fallback is attempted for stores without address data.
func NewBuilder(orderStore store.OrderStore, detector *anomaly.Detector, geoSource GeoSource, opts Options) *Builder {
	if opts.TopProducts <= 0 {
		opts.TopProducts = 10
	}
	if opts.BottomProducts <= 0 {
		opts.BottomProducts = 10
	}
	if opts.DefaultRange == "" {
		opts.DefaultRange = timerange.DefaultRange
	}
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}

	return &Builder{
		store:    orderStore,
		detector: detector,
		geo:      geoSource,
		opts:     opts,
	}
}

// Build produces a sales report for one store. rangeSpec may be empty, in
// which case the configured default range applies. A store with no orders in
// the period still yields a report with zeroed totals.
func (b *Builder) Build(ctx context.Context, storeID, rangeSpec string, now time.Time) (*SalesReport, error) {
	started := time.Now()
	if rangeSpec == "" {
		rangeSpec = b.opts.DefaultRange
	}

	period := timerange.Resolve(rangeSpec, b.opts.Timezone, now)
	previous := period.Previous()

	current, err := b.store.FetchOrders(ctx, storeID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("fetch current period orders for store %s: %w", storeID, err)
	}
	prior, err := b.store.FetchOrders(ctx, storeID, previous.Start, previous.End)
	if err != nil {
		return nil, fmt.Errorf("fetch previous period orders for store %s: %w", storeID, err)
	}

	var (
		wg       sync.WaitGroup
		summary  models.SalesSummary
		aggErr   error
		geoNodes []models.GeoNode
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		summary, aggErr = analytics.Aggregate(current, prior, b.opts.TopProducts, b.opts.BottomProducts)
	}()

	if b.opts.IncludeGeo {
		wg.Add(1)
		go func() {
			defer wg.Done()
			geoNodes = geo.Extract(current)
		}()
	}

	wg.Wait()
	if aggErr != nil {
		return nil, fmt.Errorf("aggregate sales for store %s: %w", storeID, aggErr)
	}

	if b.opts.IncludeGeo && len(geoNodes) == 0 {
		geoNodes = b.fallbackGeo(ctx, storeID, period)
	}

	anomalies, err := b.detectAnomalies(ctx, storeID, now)
	if err != nil {
		return nil, err
	}

	logger.IncrementReportsBuilt()
	logger.LogPerformanceEntry(log, "report", "build", time.Since(started), logger.Fields{
		"store_id":   storeID,
		"range_type": period.RangeType,
		"orders":     len(current),
		"anomalies":  len(anomalies),
	})

	return &SalesReport{
		StoreID:     storeID,
		Period:      period,
		Summary:     summary,
		Geography:   geoNodes,
		Anomalies:   anomalies,
		GeneratedAt: now.UTC(),
	}, nil
}

// fallbackGeo asks the platform for a rollup. An unavailable platform
// degrades to an empty hierarchy rather than failing the report.
func (b *Builder) fallbackGeo(ctx context.Context, storeID string, period models.Period) []models.GeoNode {
	if b.geo == nil {
		return nil
	}

	nodes, err := b.geo.GeoSummary(ctx, storeID, period)
	if err != nil {
		if errors.Is(err, models.ErrUpstreamUnavailable) {
			log.WithError(err).WithFields(logger.Fields{
				"store_id": storeID,
			}).Warn("Platform geo fallback unavailable, omitting geography")
			return nil
		}
		log.WithError(err).WithFields(logger.Fields{
			"store_id": storeID,
		}).Warn("Platform geo fallback failed, omitting geography")
		return nil
	}
	return nodes
}

func (b *Builder) detectAnomalies(ctx context.Context, storeID string, now time.Time) ([]models.AnomalyRecord, error) {
	since := now.AddDate(0, 0, -b.opts.LookbackDays)
	tuples, err := b.store.FetchOrderTuples(ctx, storeID, since)
	if err != nil {
		return nil, fmt.Errorf("fetch order history for store %s: %w", storeID, err)
	}
	return b.detector.DetectTuples(tuples, b.opts.LookbackDays, now), nil
}
