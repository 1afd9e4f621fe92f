package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// MetricStore reads historical quality metric series and training rows from
// the warehouse tables populated by the collection pipeline.
type MetricStore struct {
	pool DatabasePool
}

// NewMetricStore creates a metric history reader.
func NewMetricStore(pool DatabasePool) *MetricStore {
	return &MetricStore{pool: pool}
}

// GetHistory returns one entity's metric series ascending by time.
func (s *MetricStore) GetHistory(ctx context.Context, entityKey string, lookbackDays int) ([]models.HistoricalDataPoint, error) {
	query := `
		SELECT measured_at, value
		FROM quality_metric_history
		WHERE entity_key = $1 AND measured_at >= $2
		ORDER BY measured_at ASC
	`
	since := time.Now().AddDate(0, 0, -lookbackDays)

	rows, err := s.pool.Query(ctx, query, entityKey, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric history: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var series []models.HistoricalDataPoint
	for rows.Next() {
		var p models.HistoricalDataPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, fmt.Errorf("failed to scan metric point: %w", err)
		}
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric history: %w", err)
	}
	return series, nil
}

// GetTrainingRows returns precomputed feature vectors with labels. Feature
// extraction happens upstream; this reader only hands vectors over.
func (s *MetricStore) GetTrainingRows(ctx context.Context, since time.Time, maxRows int) (*models.TrainingCorpus, error) {
	query := `
		SELECT features, label
		FROM ai_training_rows
		WHERE created_at >= $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, since, maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query training rows: %w: %w", models.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	corpus := &models.TrainingCorpus{}
	for rows.Next() {
		var features []float64
		var label float64
		if err := rows.Scan(&features, &label); err != nil {
			return nil, fmt.Errorf("failed to scan training row: %w", err)
		}
		corpus.Features = append(corpus.Features, features)
		corpus.Labels = append(corpus.Labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating training rows: %w", err)
	}
	return corpus, nil
}

var (
	_ models.MetricHistoryReader  = (*MetricStore)(nil)
	_ models.TrainingCorpusReader = (*MetricStore)(nil)
)
