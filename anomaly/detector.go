// Package anomaly flags statistically deviant days and hours in a store's
// order history using rolling baselines. Detection is read-only over its
// input; persisting results as durable insights is the caller's concern.
package anomaly

import (
	"sort"
	"time"

	"shoppulse/logger"
	"shoppulse/models"
)

// Config carries the detection thresholds. Zero values are replaced by the
// defaults below.
type Config struct {
	MinOrders       int     `yaml:"min_orders"`
	MinDistinctDays int     `yaml:"min_distinct_days"`
	DailyZThreshold float64 `yaml:"daily_z_threshold"`
	AOVZThreshold   float64 `yaml:"aov_z_threshold"`
	HourlyPValue    float64 `yaml:"hourly_p_value"`
}

// DefaultConfig returns the standard thresholds: the AOV bar is stricter
// than daily sales because AOV is more volatile on low order-count days.
func DefaultConfig() Config {
	return Config{
		MinOrders:       10,
		MinDistinctDays: 5,
		DailyZThreshold: 2,
		AOVZThreshold:   2.5,
		HourlyPValue:    0.05,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinOrders <= 0 {
		c.MinOrders = def.MinOrders
	}
	if c.MinDistinctDays <= 0 {
		c.MinDistinctDays = def.MinDistinctDays
	}
	if c.DailyZThreshold <= 0 {
		c.DailyZThreshold = def.DailyZThreshold
	}
	if c.AOVZThreshold <= 0 {
		c.AOVZThreshold = def.AOVZThreshold
	}
	if c.HourlyPValue <= 0 {
		c.HourlyPValue = def.HourlyPValue
	}
	return c
}

// Detector runs the three sub-detectors over a shared lookback window.
type Detector struct {
	cfg Config
	log *logger.Entry
}

func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg: cfg.withDefaults(),
		log: logger.GetLogger().WithComponent("anomaly"),
	}
}

// Detect reduces orders to their flat tuple form and runs detection.
func (d *Detector) Detect(orders []models.Order, lookbackDays int, now time.Time) []models.AnomalyRecord {
	return d.DetectTuples(models.Tuples(orders), lookbackDays, now)
}

// DetectTuples runs the daily-sales, hourly-order-rate and AOV detectors
// over the lookback window ending at now. Below the minimum data volume it
// returns an empty list: too little data is a normal outcome, not an
// error. Sub-detectors never deduplicate against each other; a day can
// carry both a sales and an AOV anomaly.
func (d *Detector) DetectTuples(tuples []models.OrderTuple, lookbackDays int, now time.Time) []models.AnomalyRecord {
	now = now.UTC()
	cutoff := now.AddDate(0, 0, -lookbackDays)

	window := make([]models.OrderTuple, 0, len(tuples))
	for _, t := range tuples {
		ts := t.Timestamp.UTC()
		if ts.Before(cutoff) || ts.After(now) {
			continue
		}
		window = append(window, t)
	}
	sort.SliceStable(window, func(i, j int) bool {
		return window[i].Timestamp.Before(window[j].Timestamp)
	})

	days := dailyStats(window)

	if len(window) < d.cfg.MinOrders || len(days) < d.cfg.MinDistinctDays {
		d.log.WithFields(logger.Fields{
			"orders":        len(window),
			"distinct_days": len(days),
		}).Warn("not enough order data for anomaly detection")
		return []models.AnomalyRecord{}
	}

	out := []models.AnomalyRecord{}
	out = append(out, d.dailySalesAnomalies(days, now)...)
	out = append(out, d.hourlyOrderAnomalies(window, now)...)
	out = append(out, d.aovAnomalies(days, now)...)

	d.log.LogMetric("anomaly", "anomalies_detected", len(out), "counter", logger.Fields{
		"orders": len(window),
		"days":   len(days),
	})
	logger.IncrementAnomaliesDetected(len(out))

	return out
}

// dayStat is one calendar day's totals, UTC.
type dayStat struct {
	date  time.Time
	sales float64
	count int
}

func (s dayStat) aov() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sales / float64(s.count)
}

// dailyStats groups tuples into per-day totals, ascending by date. Days
// with no orders are absent, not zero-filled.
func dailyStats(tuples []models.OrderTuple) []dayStat {
	grouped := make(map[time.Time]*dayStat)
	for _, t := range tuples {
		ts := t.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		s, ok := grouped[day]
		if !ok {
			s = &dayStat{date: day}
			grouped[day] = s
		}
		s.sales += t.TotalPrice.InexactFloat64()
		s.count++
	}

	out := make([]dayStat, 0, len(grouped))
	for _, s := range grouped {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

func severityFromZ(z float64) int {
	if z < 0 {
		z = -z
	}
	sev := int(z)
	if sev < 1 {
		sev = 1
	}
	if sev > 5 {
		sev = 5
	}
	return sev
}

func percentChange(value, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return (value - expected) / expected
}
