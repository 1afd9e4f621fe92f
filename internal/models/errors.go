package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. Forecasting degrades gracefully on sparse data; retrain
// hard-fails. Summary endpoints return zeroed defaults on store outages so
// dashboards keep rendering.
var (
	ErrModelNotFound    = errors.New("model not found")
	ErrInsufficientData = errors.New("insufficient data")
	ErrAllModelsFailed  = errors.New("all ensemble models failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// BackendTrainingError surfaces a numerical or framework-level training
// failure with its cause.
type BackendTrainingError struct {
	Framework Framework
	ModelType string
	Cause     error
}

func (e *BackendTrainingError) Error() string {
	return fmt.Sprintf("%s/%s training failed: %v", e.Framework, e.ModelType, e.Cause)
}

func (e *BackendTrainingError) Unwrap() error {
	return e.Cause
}
