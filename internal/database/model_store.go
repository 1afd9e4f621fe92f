package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// ModelStore persists the registry catalog in the ai_models table. Metrics
// are stored as JSONB since the metric set differs per backend.
type ModelStore struct {
	pool DatabasePool
}

// NewModelStore creates a model catalog repository.
func NewModelStore(pool DatabasePool) *ModelStore {
	return &ModelStore{pool: pool}
}

// SaveEntry upserts one registry entry snapshot.
func (s *ModelStore) SaveEntry(ctx context.Context, entry *models.ModelRegistryEntry) error {
	metricsJSON, err := json.Marshal(entry.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal model metrics: %w", err)
	}

	query := `
		INSERT INTO ai_models (model_id, framework, model_type, created_at, last_used_at, total_predictions, total_errors, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (model_id)
		DO UPDATE SET
			last_used_at = EXCLUDED.last_used_at,
			total_predictions = EXCLUDED.total_predictions,
			total_errors = EXCLUDED.total_errors,
			metrics = EXCLUDED.metrics
	`

	_, err = s.pool.Exec(ctx, query,
		entry.ModelID, string(entry.Framework), entry.ModelType,
		entry.CreatedAt, entry.LastUsedAt,
		entry.TotalPredictions, entry.TotalErrors, metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save model entry: %w", err)
	}
	return nil
}

// GetEntry loads one registry entry snapshot.
func (s *ModelStore) GetEntry(ctx context.Context, modelID string) (*models.ModelRegistryEntry, error) {
	query := `
		SELECT model_id, framework, model_type, created_at, last_used_at, total_predictions, total_errors, metrics
		FROM ai_models
		WHERE model_id = $1
	`

	var entry models.ModelRegistryEntry
	var framework string
	var metricsJSON []byte
	err := s.pool.QueryRow(ctx, query, modelID).Scan(
		&entry.ModelID, &framework, &entry.ModelType,
		&entry.CreatedAt, &entry.LastUsedAt,
		&entry.TotalPredictions, &entry.TotalErrors, &metricsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrModelNotFound, modelID)
		}
		return nil, fmt.Errorf("failed to get model entry: %w", err)
	}
	entry.Framework = models.Framework(framework)

	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &entry.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal model metrics: %w", err)
		}
	}
	return &entry, nil
}

// DeleteEntry removes a model from the catalog.
func (s *ModelStore) DeleteEntry(ctx context.Context, modelID string) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM ai_models WHERE model_id = $1`, modelID)
	if err != nil {
		return fmt.Errorf("failed to delete model entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrModelNotFound, modelID)
	}
	return nil
}

var _ models.ModelStore = (*ModelStore)(nil)

// VersionStore persists model versions in ai_model_versions. Exactly one row
// per model carries is_active; Promote flips it in one statement.
type VersionStore struct {
	pool DatabasePool
}

// NewVersionStore creates a version repository.
func NewVersionStore(pool DatabasePool) *VersionStore {
	return &VersionStore{pool: pool}
}

// InsertVersion records one version row.
func (s *VersionStore) InsertVersion(ctx context.Context, v *models.ModelVersion) error {
	query := `
		INSERT INTO ai_model_versions (version_id, model_id, version_number, accuracy, is_active, deployed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		v.VersionID, v.ModelID, v.VersionNumber, v.Accuracy, v.IsActive, v.DeployedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert model version: %w", err)
	}
	return nil
}

// Promote atomically makes versionID the single active version of the model.
func (s *VersionStore) Promote(ctx context.Context, modelID, versionID string) error {
	query := `
		UPDATE ai_model_versions
		SET is_active = (version_id = $2)
		WHERE model_id = $1
	`
	result, err := s.pool.Exec(ctx, query, modelID, versionID)
	if err != nil {
		return fmt.Errorf("failed to promote model version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: no versions for model %s", models.ErrModelNotFound, modelID)
	}
	return nil
}

// ListVersions returns every version of a model ordered by version number.
func (s *VersionStore) ListVersions(ctx context.Context, modelID string) ([]models.ModelVersion, error) {
	query := `
		SELECT version_id, model_id, version_number, accuracy, is_active, deployed_at
		FROM ai_model_versions
		WHERE model_id = $1
		ORDER BY version_number ASC
	`
	rows, err := s.pool.Query(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	defer rows.Close()

	var versions []models.ModelVersion
	for rows.Next() {
		var v models.ModelVersion
		if err := rows.Scan(&v.VersionID, &v.ModelID, &v.VersionNumber, &v.Accuracy, &v.IsActive, &v.DeployedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating model versions: %w", err)
	}
	return versions, nil
}

// ActiveVersion returns the model's active version, or nil when none is set.
func (s *VersionStore) ActiveVersion(ctx context.Context, modelID string) (*models.ModelVersion, error) {
	query := `
		SELECT version_id, model_id, version_number, accuracy, is_active, deployed_at
		FROM ai_model_versions
		WHERE model_id = $1 AND is_active = true
	`
	var v models.ModelVersion
	err := s.pool.QueryRow(ctx, query, modelID).Scan(
		&v.VersionID, &v.ModelID, &v.VersionNumber, &v.Accuracy, &v.IsActive, &v.DeployedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active version: %w", err)
	}
	return &v, nil
}

// NextVersionNumber allocates the next monotonic version number.
func (s *VersionStore) NextVersionNumber(ctx context.Context, modelID string) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM ai_model_versions WHERE model_id = $1`,
		modelID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate version number: %w", err)
	}
	return next, nil
}

var _ models.VersionStore = (*VersionStore)(nil)
