package models

import (
	"time"
)

// RetrainJobStatus is the retrain state machine:
// pending -> running -> {completed | failed}. Terminal states never change.
type RetrainJobStatus string

const (
	RetrainPending   RetrainJobStatus = "pending"
	RetrainRunning   RetrainJobStatus = "running"
	RetrainCompleted RetrainJobStatus = "completed"
	RetrainFailed    RetrainJobStatus = "failed"
)

// Terminal reports whether the status will never change again.
func (s RetrainJobStatus) Terminal() bool {
	return s == RetrainCompleted || s == RetrainFailed
}

// RetrainReasonCode is the structured trigger behind a retrain decision.
// Display strings are generated separately so trigger logic stays testable
// independent of wording.
type RetrainReasonCode string

const (
	ReasonLowAccuracy   RetrainReasonCode = "low_accuracy"
	ReasonHighErrorRate RetrainReasonCode = "high_error_rate"
	ReasonModelAge      RetrainReasonCode = "model_age"
	ReasonNewData       RetrainReasonCode = "new_data"
	ReasonManual        RetrainReasonCode = "manual"
)

// RetrainReason pairs a structured code with its display string.
type RetrainReason struct {
	Code    RetrainReasonCode `json:"code"`
	Message string            `json:"message"`
}

// RetrainConfig holds per-model retrain thresholds. Created lazily with
// framework-appropriate defaults, updatable afterwards.
type RetrainConfig struct {
	ModelID            string  `json:"model_id" db:"model_id"`
	AccuracyThreshold  float64 `json:"accuracy_threshold" db:"accuracy_threshold"`
	ErrorRateThreshold float64 `json:"error_rate_threshold" db:"error_rate_threshold"`
	MinNewDataPoints   int     `json:"min_new_data_points" db:"min_new_data_points"`
	MaxAgeDays         int     `json:"max_age_days" db:"max_age_days"`
	Enabled            bool    `json:"enabled" db:"enabled"`
}

// RetrainCheck is the outcome of evaluating one model's health.
type RetrainCheck struct {
	ModelID string          `json:"model_id"`
	Needed  bool            `json:"needed"`
	Reasons []RetrainReason `json:"reasons"`
}

// RetrainJob is one retrain attempt. Append-only once recorded.
type RetrainJob struct {
	ID               string           `json:"id" db:"id"`
	ModelID          string           `json:"model_id" db:"model_id"`
	NewModelID       string           `json:"new_model_id,omitempty" db:"new_model_id"`
	Status           RetrainJobStatus `json:"status" db:"status"`
	Reason           RetrainReason    `json:"reason"`
	StartedAt        time.Time        `json:"started_at" db:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	PreviousAccuracy float64          `json:"previous_accuracy" db:"previous_accuracy"`
	NewAccuracy      float64          `json:"new_accuracy" db:"new_accuracy"`
	Error            string           `json:"error,omitempty" db:"error"`
}

// RetrainResult is the caller-facing outcome of an executed retrain.
type RetrainResult struct {
	Job         *RetrainJob `json:"job"`
	NewModelID  string      `json:"new_model_id"`
	Improvement float64     `json:"improvement"`
	Significant bool        `json:"significant"`
}

// SweepOutcome records what happened to one model during a scheduled sweep.
type SweepOutcome struct {
	ModelID   string          `json:"model_id"`
	Checked   bool            `json:"checked"`
	Retrained bool            `json:"retrained"`
	Failed    bool            `json:"failed"`
	Reasons   []RetrainReason `json:"reasons,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// SweepResult aggregates one scheduled retrain sweep.
type SweepResult struct {
	Checked   int            `json:"checked"`
	Retrained int            `json:"retrained"`
	Failed    int            `json:"failed"`
	Outcomes  []SweepOutcome `json:"outcomes"`
}
