package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool.
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func newMockPool(t *testing.T) (pgxmock.PgxPoolIface, DatabasePool) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewMockPoolAdapter(mock)
}

func TestModelStore_SaveEntry(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewModelStore(pool)

	now := time.Now()
	entry := &models.ModelRegistryEntry{
		ModelID:          "cpk-forecaster",
		Framework:        models.FrameworkStatistical,
		ModelType:        models.ModelTypeLinearRegression,
		CreatedAt:        now,
		LastUsedAt:       now,
		TotalPredictions: 42,
		TotalErrors:      1,
		Metrics:          map[string]float64{"r2_score": 0.91},
	}

	mock.ExpectExec(`INSERT INTO ai_models`).
		WithArgs(entry.ModelID, "statistical", entry.ModelType, now, now, int64(42), int64(1), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveEntry(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModelStore_GetEntry(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewModelStore(pool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"model_id", "framework", "model_type", "created_at", "last_used_at",
		"total_predictions", "total_errors", "metrics",
	}).AddRow("m1", "neural", "regression", now, now, int64(10), int64(0), []byte(`{"loss":0.12}`))

	mock.ExpectQuery(`FROM ai_models`).WithArgs("m1").WillReturnRows(rows)

	entry, err := store.GetEntry(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.FrameworkNeural, entry.Framework)
	assert.InDelta(t, 0.12, entry.Metrics["loss"], 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModelStore_GetEntryNotFound(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewModelStore(pool)

	mock.ExpectQuery(`FROM ai_models`).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	_, err := store.GetEntry(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestModelStore_DeleteEntryNotFound(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewModelStore(pool)

	mock.ExpectExec(`DELETE FROM ai_models`).WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.DeleteEntry(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestVersionStore_InsertAndPromote(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewVersionStore(pool)

	now := time.Now()
	version := &models.ModelVersion{
		VersionID:     "v-abc",
		ModelID:       "m1",
		VersionNumber: 3,
		Accuracy:      0.93,
		DeployedAt:    &now,
	}

	mock.ExpectExec(`INSERT INTO ai_model_versions`).
		WithArgs("v-abc", "m1", 3, 0.93, false, &now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.InsertVersion(context.Background(), version))

	mock.ExpectExec(`UPDATE ai_model_versions`).
		WithArgs("m1", "v-abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	require.NoError(t, store.Promote(context.Background(), "m1", "v-abc"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionStore_PromoteUnknownModel(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewVersionStore(pool)

	mock.ExpectExec(`UPDATE ai_model_versions`).
		WithArgs("ghost", "v1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Promote(context.Background(), "ghost", "v1")
	assert.ErrorIs(t, err, models.ErrModelNotFound)
}

func TestVersionStore_ListVersions(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewVersionStore(pool)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"version_id", "model_id", "version_number", "accuracy", "is_active", "deployed_at",
	}).
		AddRow("v1", "m1", 1, 0.85, false, &now).
		AddRow("v2", "m1", 2, 0.90, true, &now)

	mock.ExpectQuery(`FROM ai_model_versions`).WithArgs("m1").WillReturnRows(rows)

	versions, err := store.ListVersions(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.True(t, versions[1].IsActive)
}

func TestVersionStore_ActiveVersionNone(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewVersionStore(pool)

	mock.ExpectQuery(`FROM ai_model_versions`).WithArgs("m1").WillReturnError(pgx.ErrNoRows)

	active, err := store.ActiveVersion(context.Background(), "m1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestVersionStore_NextVersionNumber(t *testing.T) {
	mock, pool := newMockPool(t)
	store := NewVersionStore(pool)

	mock.ExpectQuery(`SELECT COALESCE`).WithArgs("m1").
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(4))

	next, err := store.NextVersionNumber(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 4, next)
}
