package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracedPoolExecPassesThrough(t *testing.T) {
	mock, pool := newMockPool(t)
	traced := NewTracedPool(pool)

	mock.ExpectExec(`DELETE FROM ai_models`).
		WithArgs("cpk-model").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	tag, err := traced.Exec(context.Background(), `DELETE FROM ai_models WHERE model_id = $1`, "cpk-model")
	require.NoError(t, err)
	assert.Equal(t, int64(1), tag.RowsAffected())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTracedPoolExecPropagatesError(t *testing.T) {
	mock, pool := newMockPool(t)
	traced := NewTracedPool(pool)

	mock.ExpectExec(`DELETE FROM ai_models`).
		WithArgs("ghost").
		WillReturnError(errors.New("connection reset"))

	_, err := traced.Exec(context.Background(), `DELETE FROM ai_models WHERE model_id = $1`, "ghost")
	assert.ErrorContains(t, err, "connection reset")
}

func TestTracedPoolQueryRow(t *testing.T) {
	mock, pool := newMockPool(t)
	traced := NewTracedPool(pool)

	mock.ExpectQuery(`SELECT COALESCE`).
		WithArgs("cpk-model").
		WillReturnRows(pgxmock.NewRows([]string{"next"}).AddRow(3))

	var next int
	err := traced.QueryRow(context.Background(),
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM ai_model_versions WHERE model_id = $1`,
		"cpk-model",
	).Scan(&next)
	require.NoError(t, err)
	assert.Equal(t, 3, next)
}

func TestTracedPoolQuery(t *testing.T) {
	mock, pool := newMockPool(t)
	traced := NewTracedPool(pool)

	mock.ExpectQuery(`FROM quality_metric_history`).
		WillReturnRows(pgxmock.NewRows([]string{"entity_key"}).AddRow("line-1"))

	rows, err := traced.Query(context.Background(), `SELECT entity_key FROM quality_metric_history`)
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var key string
	require.NoError(t, rows.Scan(&key))
	assert.Equal(t, "line-1", key)
}
