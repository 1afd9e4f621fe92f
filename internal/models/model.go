package models

import (
	"time"
)

// Framework selects which predictor backend trains and serves a model.
type Framework string

const (
	FrameworkNeural      Framework = "neural"
	FrameworkStatistical Framework = "statistical"
)

// Statistical backend model types.
const (
	ModelTypeLinearRegression = "linear_regression"
	ModelTypeRandomForest     = "random_forest"
	ModelTypeGradientBoosting = "gradient_boosting"
)

// Neural backend model types.
const (
	ModelTypeRegression     = "regression"
	ModelTypeClassification = "classification"
)

// ModelConfig is the immutable training input for one model.
type ModelConfig struct {
	Framework       Framework          `json:"framework"`
	ModelType       string             `json:"model_type"`
	Hyperparameters map[string]float64 `json:"hyperparameters"`
}

// TrainingResult is the framework-agnostic output of a train call.
type TrainingResult struct {
	ModelID           string             `json:"model_id"`
	Framework         Framework          `json:"framework"`
	ModelType         string             `json:"model_type"`
	Metrics           map[string]float64 `json:"metrics"`
	TrainingTimeMs    int64              `json:"training_time_ms"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
	EpochHistory      *EpochHistory      `json:"epoch_history,omitempty"`
	CrossValidation   []float64          `json:"cross_validation_scores,omitempty"`
}

// EpochHistory retains per-epoch diagnostics from the neural backend.
type EpochHistory struct {
	Loss        []float64 `json:"loss"`
	Metric      []float64 `json:"metric"`
	ValLoss     []float64 `json:"val_loss,omitempty"`
	ValMetric   []float64 `json:"val_metric,omitempty"`
}

// PredictionOutput is the framework-agnostic result of a predict call.
type PredictionOutput struct {
	Predictions      []float64           `json:"predictions"`
	Confidence       []float64           `json:"confidence,omitempty"`
	Intervals        *PredictionInterval `json:"intervals,omitempty"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// PredictionInterval carries per-sample bounds from backends that report them.
type PredictionInterval struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// ModelRegistryEntry is the registry's running record for one trained model.
// Owned exclusively by the registry; counters mutate on every prediction.
type ModelRegistryEntry struct {
	ModelID          string             `json:"model_id" db:"model_id"`
	Framework        Framework          `json:"framework" db:"framework"`
	ModelType        string             `json:"model_type" db:"model_type"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	LastUsedAt       time.Time          `json:"last_used_at" db:"last_used_at"`
	TotalPredictions int64              `json:"total_predictions" db:"total_predictions"`
	TotalErrors      int64              `json:"total_errors" db:"total_errors"`
	Metrics          map[string]float64 `json:"metrics"`
}

// ErrorRate is totalErrors / max(totalPredictions, 1).
func (e *ModelRegistryEntry) ErrorRate() float64 {
	total := e.TotalPredictions
	if total < 1 {
		total = 1
	}
	return float64(e.TotalErrors) / float64(total)
}

// ModelComparison is the compareModels row for one model.
type ModelComparison struct {
	ModelID   string             `json:"model_id"`
	Framework Framework          `json:"framework"`
	ModelType string             `json:"model_type"`
	Metrics   map[string]float64 `json:"metrics"`
	ErrorRate float64            `json:"error_rate"`
}

// FrameworkRecommendation is the deterministic heuristic output of
// RecommendFramework.
type FrameworkRecommendation struct {
	Framework Framework `json:"framework"`
	ModelType string    `json:"model_type"`
	Reason    string    `json:"reason"`
}

// EnsembleMethod selects how member model outputs are combined.
type EnsembleMethod string

const (
	EnsembleAverage  EnsembleMethod = "average"
	EnsembleWeighted EnsembleMethod = "weighted"
	EnsembleVoting   EnsembleMethod = "voting"
)

// EnsemblePrediction is the combined output of an ensemble call.
type EnsemblePrediction struct {
	Predictions      []float64      `json:"predictions"`
	Confidence       float64        `json:"confidence"`
	Method           EnsembleMethod `json:"method"`
	ModelsUsed       []string       `json:"models_used"`
	ModelsFailed     []string       `json:"models_failed,omitempty"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}
