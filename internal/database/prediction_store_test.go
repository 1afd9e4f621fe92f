package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

func TestPredictionStore_AppendAllocatesID(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewPredictionStore(pool)

	rec := &models.PredictionRecord{
		ModelID:        "m1",
		VersionID:      "v1",
		PredictedAt:    time.Now(),
		PredictedValue: 1.21,
	}

	mock.ExpectExec(`INSERT INTO ai_prediction_history`).
		WithArgs(pgxmock.AnyArg(), "m1", "v1", rec.PredictedAt, 1.21, pgxmock.AnyArg(),
			0.0, 0.0, 0.0, false, "pending", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Append(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "pending", rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionStore_Verify(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewPredictionStore(pool)

	mock.ExpectExec(`UPDATE ai_prediction_history`).
		WithArgs("rec-1", 1.30, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Verify(context.Background(), "rec-1", 1.30, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPredictionStore_VerifyMissingRow(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewPredictionStore(pool)

	mock.ExpectExec(`UPDATE ai_prediction_history`).
		WithArgs("ghost", 1.30, false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Verify(context.Background(), "ghost", 1.30, false)
	assert.Error(t, err)
}

func TestPredictionStore_QueryByVersion(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewPredictionStore(pool)

	now := time.Now()
	actual := 1.25
	rows := pgxmock.NewRows([]string{
		"id", "model_id", "version_id", "predicted_at", "predicted_value", "actual_value",
		"absolute_error", "squared_error", "percent_error", "is_within_confidence", "status", "verified_at",
	}).AddRow("r1", "m1", "v1", now, 1.30, &actual, 0.05, 0.0025, 4.0, true, "verified", &now)

	mock.ExpectQuery(`FROM ai_prediction_history`).
		WithArgs("m1", "v1").
		WillReturnRows(rows)

	records, err := store.QueryByVersion(context.Background(), "m1", "v1", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "verified", records[0].Status)
	assert.InDelta(t, 0.05, records[0].AbsoluteError, 1e-9)
}

func TestPredictionStore_QueryByVersionDateRange(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewPredictionStore(pool)

	start := time.Now().AddDate(0, 0, -7)
	end := time.Now()

	mock.ExpectQuery(`predicted_at <= \$4`).
		WithArgs("m1", "v1", start, end).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "model_id", "version_id", "predicted_at", "predicted_value", "actual_value",
			"absolute_error", "squared_error", "percent_error", "is_within_confidence", "status", "verified_at",
		}))

	records, err := store.QueryByVersion(context.Background(), "m1", "v1", &models.DateRange{Start: &start, End: &end})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}
