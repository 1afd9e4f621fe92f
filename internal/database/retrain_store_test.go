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

func TestRetrainStore_AppendJob(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewRetrainStore(pool)

	started := time.Now()
	job := &models.RetrainJob{
		ID:      "job-1",
		ModelID: "m1",
		Status:  models.RetrainPending,
		Reason: models.RetrainReason{
			Code:    models.ReasonModelAge,
			Message: "model age 45.0 days exceeds maximum 30 days",
		},
		StartedAt:        started,
		PreviousAccuracy: 0.82,
	}

	mock.ExpectExec(`INSERT INTO ai_retrain_jobs`).
		WithArgs("job-1", "m1", "", "pending", "model_age", job.Reason.Message,
			started, pgxmock.AnyArg(), 0.82, 0.0, "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.AppendJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrainStore_UpdateJob(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewRetrainStore(pool)

	completed := time.Now()
	job := &models.RetrainJob{
		ID:          "job-1",
		ModelID:     "m1",
		NewModelID:  "m1-retrain-abc",
		Status:      models.RetrainCompleted,
		CompletedAt: &completed,
		NewAccuracy: 0.90,
	}

	mock.ExpectExec(`UPDATE ai_retrain_jobs`).
		WithArgs("job-1", "completed", "m1-retrain-abc", &completed, 0.90, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetrainStore_UpdateMissingJob(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewRetrainStore(pool)

	mock.ExpectExec(`UPDATE ai_retrain_jobs`).
		WithArgs("ghost", "failed", "", pgxmock.AnyArg(), 0.0, "boom").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateJob(context.Background(), &models.RetrainJob{
		ID: "ghost", Status: models.RetrainFailed, Error: "boom",
	})
	assert.Error(t, err)
}

func TestRetrainStore_ListJobs(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewRetrainStore(pool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "model_id", "new_model_id", "status", "reason_code", "reason_message",
		"started_at", "completed_at", "previous_accuracy", "new_accuracy", "error",
	}).
		AddRow("job-2", "m1", "m1-retrain-x", "completed", "low_accuracy", "accuracy below threshold", now, &now, 0.6, 0.8, "").
		AddRow("job-1", "m1", "", "failed", "manual", "manual trigger", now, &now, 0.6, 0.0, "insufficient data")

	mock.ExpectQuery(`FROM ai_retrain_jobs`).WithArgs("m1", 10).WillReturnRows(rows)

	jobs, err := store.ListJobs(context.Background(), "m1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.RetrainCompleted, jobs[0].Status)
	assert.Equal(t, models.ReasonLowAccuracy, jobs[0].Reason.Code)
	assert.Equal(t, "insufficient data", jobs[1].Error)
}

func TestRetrainStore_ActiveJobs(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewRetrainStore(pool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "model_id", "new_model_id", "status", "reason_code", "reason_message",
		"started_at", "completed_at", "previous_accuracy", "new_accuracy", "error",
	}).AddRow("job-3", "m2", "", "running", "new_data", "new data available", now, nil, 0.7, 0.0, "")

	mock.ExpectQuery(`status IN`).WillReturnRows(rows)

	jobs, err := store.ActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.RetrainRunning, jobs[0].Status)
	assert.False(t, jobs[0].Status.Terminal())
}
