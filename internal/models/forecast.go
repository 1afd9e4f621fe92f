package models

import (
	"time"
)

// TrendDirection classifies the direction of a metric series over time.
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// MetricKind identifies which quality metric a series carries.
type MetricKind string

const (
	MetricCpk MetricKind = "cpk"
	MetricOee MetricKind = "oee"
)

// HistoricalDataPoint is one observation of a quality metric, ordered
// ascending by timestamp by the metric-history reader.
type HistoricalDataPoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Value     float64   `json:"value" db:"value"`
}

// TrendAnalysis summarizes the regression fit over a metric series.
// Recomputed on every forecast call; it has no independent lifecycle.
type TrendAnalysis struct {
	Trend      TrendDirection `json:"trend"`
	Slope      float64        `json:"slope"`
	RSquared   float64        `json:"r_squared"`
	Volatility float64        `json:"volatility"`
}

// PredictionResult is one forecast horizon step.
// Invariant: LowerBound <= PredictedValue <= UpperBound, and Confidence is
// non-increasing as the horizon step grows.
type PredictionResult struct {
	Date           time.Time `json:"date"`
	PredictedValue float64   `json:"predicted_value"`
	LowerBound     float64   `json:"lower_bound"`
	UpperBound     float64   `json:"upper_bound"`
	Confidence     float64   `json:"confidence"`
}

// RegressionFit holds ordinary-least-squares results over index-as-x.
type RegressionFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// MetricForecast is the full forecast pipeline output for one entity.
// SmoothedSeries is the EMA overlay of the historical values for chart
// rendering; it is empty when the history is shorter than the EMA period.
type MetricForecast struct {
	EntityKey      string                `json:"entity_key"`
	Metric         MetricKind            `json:"metric"`
	CurrentValue   float64               `json:"current_value"`
	HistoricalData []HistoricalDataPoint `json:"historical_data"`
	SmoothedSeries []float64             `json:"smoothed_series,omitempty"`
	Predictions    []PredictionResult    `json:"predictions"`
	Trend          TrendAnalysis         `json:"trend"`
	Recommendations []string             `json:"recommendations"`
	Confidence     float64               `json:"confidence"`
}

// ForecastAlert flags a threshold or trend condition on the dashboard view.
type ForecastAlert struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // "low", "medium", "high"
}

// ForecastSummary is the registry-wide dashboard view of recent trends.
type ForecastSummary struct {
	TotalObservations int             `json:"total_observations"`
	AvgConfidence     float64         `json:"avg_confidence"`
	CpkTrend          TrendDirection  `json:"cpk_trend"`
	OeeTrend          TrendDirection  `json:"oee_trend"`
	Alerts            []ForecastAlert `json:"alerts"`
}
