package anomaly

import (
	"fmt"
	"math"
	"sort"
	"time"

	"shoppulse/models"
)

// Hourly detection windows: buckets from the trailing 48 hours are scored,
// but only hits inside the trailing 12 hours are surfaced.
const (
	hourlyScoreWindow   = 48 * time.Hour
	hourlySurfaceWindow = 12 * time.Hour
	hourlyMinRecent     = 5
	// Poisson tails are noisy at very low expected counts; low-severity
	// hits must also show at least a 50% deviation to surface.
	hourlyMinDeviation = 0.5
)

type hourBucket struct {
	start time.Time
	count int
}

// hourlyOrderAnomalies scores trailing-48h hourly order counts against the
// store's historical (hour-of-day, day-of-week) distribution using a
// one-sided Poisson tail probability. Hourly counts are small and
// discrete, so a normal-approximation z-score would misbehave here.
func (d *Detector) hourlyOrderAnomalies(tuples []models.OrderTuple, now time.Time) []models.AnomalyRecord {
	recentCutoff := now.Add(-hourlyScoreWindow)

	buckets := make(map[time.Time]int)
	recentTotal := 0
	for _, t := range tuples {
		ts := t.Timestamp.UTC()
		if ts.Before(recentCutoff) {
			continue
		}
		bin := ts.Truncate(time.Hour)
		buckets[bin]++
		recentTotal++
	}
	if recentTotal < hourlyMinRecent {
		return nil
	}

	// Historical expected rate per (hour, weekday) bucket, normalized by
	// the number of observed weeks. The distinct-days/7 normalization is
	// the documented baseline even though uneven coverage can skew it.
	historical := make(map[[2]int]int)
	distinctDays := make(map[time.Time]struct{})
	for _, t := range tuples {
		ts := t.Timestamp.UTC()
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		distinctDays[day] = struct{}{}
		historical[[2]int{ts.Hour(), int(ts.Weekday())}]++
	}
	weeks := float64(len(distinctDays)) / 7.0

	meanRecent := float64(recentTotal) / float64(len(buckets))
	surfaceCutoff := now.Add(-hourlySurfaceWindow)

	bins := make([]time.Time, 0, len(buckets))
	for bin := range buckets {
		bins = append(bins, bin)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].Before(bins[j]) })

	var out []models.AnomalyRecord
	for _, bin := range bins {
		count := buckets[bin]

		expected := meanRecent
		if weeks > 0 {
			if hist := historical[[2]int{bin.Hour(), int(bin.Weekday())}]; hist > 0 {
				expected = float64(hist) / weeks
			}
		}

		var p float64
		if float64(count) > expected {
			p = 1 - poissonCDF(count, expected)
		} else {
			p = poissonCDF(count, expected)
		}
		if p >= d.cfg.HourlyPValue {
			continue
		}
		if bin.Before(surfaceCutoff) {
			continue
		}

		severity := hourlySeverity(p)
		pct := percentChange(float64(count), expected)
		if severity < 3 && math.Abs(pct) < hourlyMinDeviation {
			continue
		}

		kind := models.AnomalyHighOrders
		direction := "High"
		wording := "higher"
		if float64(count) <= expected {
			kind = models.AnomalyLowOrders
			direction = "Low"
			wording = "lower"
		}

		out = append(out, models.AnomalyRecord{
			Kind:          kind,
			BucketStart:   bin,
			Value:         float64(count),
			Expected:      expected,
			Score:         p,
			ScoreKind:     models.ScoreP,
			PercentChange: pct,
			Severity:      severity,
			Title:         fmt.Sprintf("%s Order Rate Anomaly", direction),
			Description: fmt.Sprintf("Order count for %s was %.1f%% %s than expected.",
				bin.Format("2006-01-02 15:00"), math.Abs(pct)*100, wording),
		})
	}
	return out
}

func hourlySeverity(p float64) int {
	switch {
	case p < 0.001:
		return 5
	case p < 0.01:
		return 4
	case p < 0.05:
		return 3
	default:
		return 2
	}
}
