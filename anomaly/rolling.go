package anomaly

import (
	"fmt"
	"math"
	"time"

	"shoppulse/models"
)

// Rolling-baseline parameters for daily metrics: a trailing 7-day window
// requiring at least 5 prior points, surfacing only hits from the trailing
// 7 days. Older deviations are historical noise, not actionable alerts.
const (
	rollingWindow    = 7
	rollingMinPoints = 5
	surfaceDays      = 7
)

// dailySalesAnomalies flags days whose sales deviate from the trailing
// rolling baseline by more than the z threshold.
func (d *Detector) dailySalesAnomalies(days []dayStat, now time.Time) []models.AnomalyRecord {
	return d.rollingAnomalies(days, now, dayStat.salesValue, d.cfg.DailyZThreshold, salesRecord)
}

// aovAnomalies applies the same rolling technique to average order value
// with the stricter threshold.
func (d *Detector) aovAnomalies(days []dayStat, now time.Time) []models.AnomalyRecord {
	return d.rollingAnomalies(days, now, dayStat.aov, d.cfg.AOVZThreshold, aovRecord)
}

func (s dayStat) salesValue() float64 { return s.sales }

// rollingAnomalies scores each day against the mean/std of up to seven
// preceding days, excluding the day being evaluated. A zero rolling std is
// replaced by 10% of the rolling mean, and failing that by the
// overall-period std, so a flat baseline never divides by zero.
func (d *Detector) rollingAnomalies(
	days []dayStat,
	now time.Time,
	value func(dayStat) float64,
	threshold float64,
	record func(day dayStat, v, mean, z float64) models.AnomalyRecord,
) []models.AnomalyRecord {
	if len(days) < rollingMinPoints {
		return nil
	}

	values := make([]float64, len(days))
	for i, s := range days {
		values[i] = value(s)
	}
	overallStd := sampleStd(values)

	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var out []models.AnomalyRecord
	for i, day := range days {
		lo := i - rollingWindow
		if lo < 0 {
			lo = 0
		}
		prior := values[lo:i]
		if len(prior) < rollingMinPoints {
			continue
		}

		mean := sampleMean(prior)
		std := sampleStd(prior)
		if std == 0 {
			std = mean * 0.1
		}
		if std == 0 {
			std = overallStd
		}
		if std == 0 {
			continue
		}

		z := (values[i] - mean) / std
		if math.Abs(z) <= threshold {
			continue
		}
		if nowDate.Sub(day.date) > surfaceDays*24*time.Hour {
			continue
		}

		out = append(out, record(day, values[i], mean, z))
	}
	return out
}

func salesRecord(day dayStat, v, mean, z float64) models.AnomalyRecord {
	kind := models.AnomalyHighSales
	direction := "High"
	wording := "higher"
	if z < 0 {
		kind = models.AnomalyLowSales
		direction = "Low"
		wording = "lower"
	}
	pct := percentChange(v, mean)
	return models.AnomalyRecord{
		Kind:          kind,
		BucketStart:   day.date,
		Value:         v,
		Expected:      mean,
		Score:         z,
		ScoreKind:     models.ScoreZ,
		PercentChange: pct,
		Severity:      severityFromZ(z),
		Title:         fmt.Sprintf("%s Sales Anomaly Detected", direction),
		Description: fmt.Sprintf("Sales on %s were %.1f%% %s than expected.",
			day.date.Format("2006-01-02"), math.Abs(pct)*100, wording),
	}
}

func aovRecord(day dayStat, v, mean, z float64) models.AnomalyRecord {
	kind := models.AnomalyHighAOV
	direction := "High"
	wording := "higher"
	if z < 0 {
		kind = models.AnomalyLowAOV
		direction = "Low"
		wording = "lower"
	}
	pct := percentChange(v, mean)
	return models.AnomalyRecord{
		Kind:          kind,
		BucketStart:   day.date,
		Value:         v,
		Expected:      mean,
		Score:         z,
		ScoreKind:     models.ScoreZ,
		PercentChange: pct,
		Severity:      severityFromZ(z),
		Title:         fmt.Sprintf("%s Average Order Value Anomaly", direction),
		Description: fmt.Sprintf("Average order value on %s was %.1f%% %s than expected ($%.2f vs $%.2f).",
			day.date.Format("2006-01-02"), math.Abs(pct)*100, wording, v, mean),
	}
}

func sampleMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd is the n-1 denominator standard deviation; a single point has
// no dispersion and yields 0.
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := sampleMean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
