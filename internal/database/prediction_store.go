package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// PredictionStore persists the per-prediction log in ai_prediction_history.
// Rows start "pending" and flip to "verified" once ground truth arrives.
type PredictionStore struct {
	pool DatabasePool
}

// NewPredictionStore creates a prediction-history repository.
func NewPredictionStore(pool DatabasePool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

// Append records one prediction row, allocating an id when absent.
func (s *PredictionStore) Append(ctx context.Context, rec *models.PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = "pending"
	}

	query := `
		INSERT INTO ai_prediction_history
			(id, model_id, version_id, predicted_at, predicted_value, actual_value,
			 absolute_error, squared_error, percent_error, is_within_confidence, status, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.ModelID, rec.VersionID, rec.PredictedAt, rec.PredictedValue, rec.ActualValue,
		rec.AbsoluteError, rec.SquaredError, rec.PercentError, rec.IsWithinConfidence, rec.Status, rec.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append prediction record: %w", err)
	}
	return nil
}

// Verify fills the actual value and error fields for one prediction and
// flips it to verified.
func (s *PredictionStore) Verify(ctx context.Context, id string, actual float64, withinConfidence bool) error {
	query := `
		UPDATE ai_prediction_history
		SET actual_value = $2,
			absolute_error = ABS(predicted_value - $2),
			squared_error = (predicted_value - $2) * (predicted_value - $2),
			percent_error = CASE WHEN $2 = 0 THEN 0 ELSE ABS(predicted_value - $2) / ABS($2) * 100 END,
			is_within_confidence = $3,
			status = 'verified',
			verified_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	result, err := s.pool.Exec(ctx, query, id, actual, withinConfidence)
	if err != nil {
		return fmt.Errorf("failed to verify prediction record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("prediction record %s not found", id)
	}
	return nil
}

// QueryByVersion returns one version's rows, optionally bounded by date.
func (s *PredictionStore) QueryByVersion(ctx context.Context, modelID, versionID string, dr *models.DateRange) ([]models.PredictionRecord, error) {
	query := `
		SELECT id, model_id, version_id, predicted_at, predicted_value, actual_value,
			absolute_error, squared_error, percent_error, is_within_confidence, status, verified_at
		FROM ai_prediction_history
		WHERE model_id = $1 AND version_id = $2
	`
	args := []interface{}{modelID, versionID}
	if dr != nil && dr.Start != nil {
		args = append(args, *dr.Start)
		query += fmt.Sprintf(" AND predicted_at >= $%d", len(args))
	}
	if dr != nil && dr.End != nil {
		args = append(args, *dr.End)
		query += fmt.Sprintf(" AND predicted_at <= $%d", len(args))
	}
	query += " ORDER BY predicted_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction history: %w", err)
	}
	defer rows.Close()

	var records []models.PredictionRecord
	for rows.Next() {
		var rec models.PredictionRecord
		if err := rows.Scan(
			&rec.ID, &rec.ModelID, &rec.VersionID, &rec.PredictedAt, &rec.PredictedValue, &rec.ActualValue,
			&rec.AbsoluteError, &rec.SquaredError, &rec.PercentError, &rec.IsWithinConfidence, &rec.Status, &rec.VerifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction history: %w", err)
	}
	return records, nil
}

var _ models.PredictionHistoryStore = (*PredictionStore)(nil)
