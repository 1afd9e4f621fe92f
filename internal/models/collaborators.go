package models

import (
	"context"
	"time"
)

// MetricHistoryReader reads historical metric series, ordered ascending by
// time. Implemented by the excluded data layer; consumed as a black box.
type MetricHistoryReader interface {
	GetHistory(ctx context.Context, entityKey string, lookbackDays int) ([]HistoricalDataPoint, error)
}

// TrainingCorpus is one batch of extracted feature vectors with labels.
type TrainingCorpus struct {
	Features [][]float64
	Labels   []float64
}

// TrainingCorpusReader supplies training rows. Feature extraction is the
// caller's responsibility; this engine only consumes vectors.
type TrainingCorpusReader interface {
	GetTrainingRows(ctx context.Context, since time.Time, maxRows int) (*TrainingCorpus, error)
}

// RecommendationGenerator turns a compact numeric summary into short
// human-readable suggestions. Optional: callers fall back to deterministic
// rule-based suggestions when it is absent or failing.
type RecommendationGenerator interface {
	Generate(ctx context.Context, summary ForecastNumericSummary) ([]string, error)
}

// ForecastNumericSummary is the compact input handed to the recommendation
// generator.
type ForecastNumericSummary struct {
	Metric           MetricKind     `json:"metric"`
	CurrentValue     float64        `json:"current_value"`
	AvgPredicted     float64        `json:"avg_predicted"`
	Trend            TrendDirection `json:"trend"`
	Volatility       float64        `json:"volatility"`
	RSquared         float64        `json:"r_squared"`
}

// NotificationSink receives fire-and-forget retrain notifications. Failures
// to notify must never fail the underlying job.
type NotificationSink interface {
	Notify(ctx context.Context, title, content string) error
}

// ModelStore persists the registry's model catalog.
type ModelStore interface {
	SaveEntry(ctx context.Context, entry *ModelRegistryEntry) error
	DeleteEntry(ctx context.Context, modelID string) error
}

// VersionStore persists model versions; Promote atomically flips the single
// is_active flag for a model.
type VersionStore interface {
	InsertVersion(ctx context.Context, v *ModelVersion) error
	Promote(ctx context.Context, modelID, versionID string) error
	ListVersions(ctx context.Context, modelID string) ([]ModelVersion, error)
	ActiveVersion(ctx context.Context, modelID string) (*ModelVersion, error)
	NextVersionNumber(ctx context.Context, modelID string) (int, error)
}

// PredictionHistoryStore persists the per-prediction log consumed by the
// version comparator.
type PredictionHistoryStore interface {
	Append(ctx context.Context, rec *PredictionRecord) error
	QueryByVersion(ctx context.Context, modelID, versionID string, dr *DateRange) ([]PredictionRecord, error)
}

// RetrainHistoryStore persists the append-only retrain job log.
type RetrainHistoryStore interface {
	AppendJob(ctx context.Context, job *RetrainJob) error
	UpdateJob(ctx context.Context, job *RetrainJob) error
	ListJobs(ctx context.Context, modelID string, limit int) ([]RetrainJob, error)
	ActiveJobs(ctx context.Context) ([]RetrainJob, error)
}
