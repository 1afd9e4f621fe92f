package database

import (
	"context"
	"fmt"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// RetrainStore persists the append-only retrain job log in ai_retrain_jobs.
type RetrainStore struct {
	pool DatabasePool
}

// NewRetrainStore creates a retrain job repository.
func NewRetrainStore(pool DatabasePool) *RetrainStore {
	return &RetrainStore{pool: pool}
}

// AppendJob records a freshly created job.
func (s *RetrainStore) AppendJob(ctx context.Context, job *models.RetrainJob) error {
	query := `
		INSERT INTO ai_retrain_jobs
			(id, model_id, new_model_id, status, reason_code, reason_message,
			 started_at, completed_at, previous_accuracy, new_accuracy, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.pool.Exec(ctx, query,
		job.ID, job.ModelID, job.NewModelID, string(job.Status),
		string(job.Reason.Code), job.Reason.Message,
		job.StartedAt, job.CompletedAt, job.PreviousAccuracy, job.NewAccuracy, job.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append retrain job: %w", err)
	}
	return nil
}

// UpdateJob writes a state transition. Job rows are otherwise immutable.
func (s *RetrainStore) UpdateJob(ctx context.Context, job *models.RetrainJob) error {
	query := `
		UPDATE ai_retrain_jobs
		SET status = $2, new_model_id = $3, completed_at = $4, new_accuracy = $5, error = $6
		WHERE id = $1
	`
	result, err := s.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.NewModelID, job.CompletedAt, job.NewAccuracy, job.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to update retrain job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("retrain job %s not found", job.ID)
	}
	return nil
}

// ListJobs returns the most recent jobs for a model, newest first.
func (s *RetrainStore) ListJobs(ctx context.Context, modelID string, limit int) ([]models.RetrainJob, error) {
	query := `
		SELECT id, model_id, new_model_id, status, reason_code, reason_message,
			started_at, completed_at, previous_accuracy, new_accuracy, error
		FROM ai_retrain_jobs
		WHERE model_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	return s.scanJobs(ctx, query, modelID, limit)
}

// ActiveJobs returns jobs still in a non-terminal state.
func (s *RetrainStore) ActiveJobs(ctx context.Context) ([]models.RetrainJob, error) {
	query := `
		SELECT id, model_id, new_model_id, status, reason_code, reason_message,
			started_at, completed_at, previous_accuracy, new_accuracy, error
		FROM ai_retrain_jobs
		WHERE status IN ('pending', 'running')
		ORDER BY started_at ASC
	`
	return s.scanJobs(ctx, query)
}

func (s *RetrainStore) scanJobs(ctx context.Context, query string, args ...interface{}) ([]models.RetrainJob, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query retrain jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.RetrainJob
	for rows.Next() {
		var job models.RetrainJob
		var status, reasonCode string
		if err := rows.Scan(
			&job.ID, &job.ModelID, &job.NewModelID, &status, &reasonCode, &job.Reason.Message,
			&job.StartedAt, &job.CompletedAt, &job.PreviousAccuracy, &job.NewAccuracy, &job.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan retrain job: %w", err)
		}
		job.Status = models.RetrainJobStatus(status)
		job.Reason.Code = models.RetrainReasonCode(reasonCode)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retrain jobs: %w", err)
	}
	return jobs, nil
}

var _ models.RetrainHistoryStore = (*RetrainStore)(nil)
