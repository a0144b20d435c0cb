package models

import "time"

// AnomalyKind classifies a detected deviation.
type AnomalyKind string

const (
	AnomalyHighSales  AnomalyKind = "unusually_high_sales"
	AnomalyLowSales   AnomalyKind = "unusually_low_sales"
	AnomalyHighOrders AnomalyKind = "unusually_high_orders"
	AnomalyLowOrders  AnomalyKind = "unusually_low_orders"
	AnomalyHighAOV    AnomalyKind = "unusually_high_aov"
	AnomalyLowAOV     AnomalyKind = "unusually_low_aov"
)

// ScoreKind names the dispersion statistic carried by a record. Continuous
// daily metrics use z-scores; discrete hourly counts use a one-sided
// Poisson tail probability.
type ScoreKind string

const (
	ScoreZ ScoreKind = "z_score"
	ScoreP ScoreKind = "p_value"
)

// AnomalyRecord is one statistically deviant bucket. Records are computed
// on demand per detection run; the engine itself never persists them.
type AnomalyRecord struct {
	Kind          AnomalyKind `json:"type"`
	BucketStart   time.Time   `json:"bucket_start"`
	Value         float64     `json:"value"`
	Expected      float64     `json:"expected_value"`
	Score         float64     `json:"score"`
	ScoreKind     ScoreKind   `json:"score_kind"`
	PercentChange float64     `json:"percentage_change"`
	Severity      int         `json:"severity"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
}
