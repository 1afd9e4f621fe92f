package models

import (
	"time"
)

// ModelVersion is one deployed iteration of a model. Exactly one version per
// model is active at a time; promotion is a single atomic store operation.
type ModelVersion struct {
	VersionID     string     `json:"version_id" db:"version_id"`
	ModelID       string     `json:"model_id" db:"model_id"`
	VersionNumber int        `json:"version_number" db:"version_number"`
	Accuracy      float64    `json:"accuracy" db:"accuracy"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	DeployedAt    *time.Time `json:"deployed_at,omitempty" db:"deployed_at"`
}

// PredictionRecord is one persisted prediction-history row. Error fields are
// filled once ground truth is known and the row flips to "verified".
type PredictionRecord struct {
	ID                 string     `json:"id" db:"id"`
	ModelID            string     `json:"model_id" db:"model_id"`
	VersionID          string     `json:"version_id" db:"version_id"`
	PredictedAt        time.Time  `json:"predicted_at" db:"predicted_at"`
	PredictedValue     float64    `json:"predicted_value" db:"predicted_value"`
	ActualValue        *float64   `json:"actual_value,omitempty" db:"actual_value"`
	AbsoluteError      float64    `json:"absolute_error" db:"absolute_error"`
	SquaredError       float64    `json:"squared_error" db:"squared_error"`
	PercentError       float64    `json:"percent_error" db:"percent_error"`
	IsWithinConfidence bool       `json:"is_within_confidence" db:"is_within_confidence"`
	Status             string     `json:"status" db:"status"` // "pending" or "verified"
	VerifiedAt         *time.Time `json:"verified_at,omitempty" db:"verified_at"`
}

// DateRange bounds a prediction-history query. Nil ends are open.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// VersionAccuracyMetrics is derived from a version's verified prediction
// history. Not persisted; recomputed per query. When no verified rows exist
// the error metrics are zero but Accuracy keeps the version's stored value,
// so "no data yet" stays distinguishable from "bad model".
type VersionAccuracyMetrics struct {
	VersionID            string     `json:"version_id"`
	VersionNumber        int        `json:"version_number"`
	TotalPredictions     int        `json:"total_predictions"`
	VerifiedPredictions  int        `json:"verified_predictions"`
	MAE                  float64    `json:"mae"`
	RMSE                 float64    `json:"rmse"`
	MAPE                 float64    `json:"mape"`
	Accuracy             float64    `json:"accuracy"`
	WithinConfidenceRate float64    `json:"within_confidence_rate"`
	DeployedAt           *time.Time `json:"deployed_at,omitempty"`
	IsActive             bool       `json:"is_active"`
}

// ComparisonChart is chart-ready per-version series for downstream rendering.
type ComparisonChart struct {
	Labels   []string             `json:"labels"`
	Datasets []ComparisonDataset  `json:"datasets"`
}

// ComparisonDataset is one metric series across versions.
type ComparisonDataset struct {
	Label  string    `json:"label"`
	Metric string    `json:"metric"`
	Data   []float64 `json:"data"`
}

// BestVersion names the winning version of a comparison.
type BestVersion struct {
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
	Reason        string `json:"reason"`
}

// VersionComparison ranks every version of one model by realized accuracy.
type VersionComparison struct {
	ModelID               string                   `json:"model_id"`
	Versions              []VersionAccuracyMetrics `json:"versions"`
	BestVersion           *BestVersion             `json:"best_version,omitempty"`
	ImprovementPercent    float64                  `json:"improvement_percent"`
	SwitchRecommended     bool                     `json:"switch_recommended"`
	Chart                 ComparisonChart          `json:"chart"`
}

// OverallBest names the globally best (model, version) pair.
type OverallBest struct {
	ModelID       string  `json:"model_id"`
	VersionID     string  `json:"version_id"`
	VersionNumber int     `json:"version_number"`
	MAE           float64 `json:"mae"`
}

// MultiModelComparison runs the single-model comparison across many models.
type MultiModelComparison struct {
	Models      []VersionComparison `json:"models"`
	OverallBest *OverallBest        `json:"overall_best,omitempty"`
	Summary     ComparisonSummary   `json:"summary"`
}

// ComparisonSummary is aggregate MAE statistics across versions with data.
type ComparisonSummary struct {
	TotalModels   int     `json:"total_models"`
	TotalVersions int     `json:"total_versions"`
	AvgMAE        float64 `json:"avg_mae"`
	BestMAE       float64 `json:"best_mae"`
	WorstMAE      float64 `json:"worst_mae"`
}

// ModelAccuracySummary is one row of the registry-wide health view.
type ModelAccuracySummary struct {
	ModelID       string  `json:"model_id"`
	ActiveVersion string  `json:"active_version"`
	Accuracy      float64 `json:"accuracy"`
	TotalVersions int     `json:"total_versions"`
}

// VersionTrendPoint is one version's accuracy in the trajectory view.
type VersionTrendPoint struct {
	VersionID     string  `json:"version_id"`
	VersionNumber int     `json:"version_number"`
	Accuracy      float64 `json:"accuracy"`
	MAE           float64 `json:"mae"`
	IsActive      bool    `json:"is_active"`
}

// VersionTrend classifies a model's accuracy trajectory across versions.
type VersionTrend struct {
	ModelID         string              `json:"model_id"`
	Trend           []VersionTrendPoint `json:"trend"`
	Direction       string              `json:"direction"` // "improving", "declining", "stable"
	ImprovementRate float64             `json:"improvement_rate"`
}
