package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

const (
	// minRetrainRows is the floor below which a retrain fails fast instead
	// of fitting a model on a sliver of data.
	minRetrainRows = 100
	// maxRetrainRows bounds the training sample pulled per retrain.
	maxRetrainRows = 10000
	// significantImprovement is the accuracy gain worth announcing.
	significantImprovement = 0.05
)

// RetrainController watches registry models against per-model health
// thresholds and retrains the unhealthy ones through the registry. Each
// retrain produces a new model id; the source model is never overwritten,
// and the retrained artifact is recorded as the next version of its lineage.
type RetrainController struct {
	registry *ModelRegistry
	corpus   models.TrainingCorpusReader
	versions models.VersionStore
	history  models.RetrainHistoryStore
	notifier models.NotificationSink
	logger   *logrus.Logger
	tracer   trace.Tracer

	mu      sync.Mutex
	configs map[string]*models.RetrainConfig
}

// NewRetrainController wires the controller. versions, history and notifier
// may be nil; the controller degrades to in-process operation without them.
func NewRetrainController(registry *ModelRegistry, corpus models.TrainingCorpusReader, versions models.VersionStore, history models.RetrainHistoryStore, notifier models.NotificationSink, logger *logrus.Logger) *RetrainController {
	if logger == nil {
		logger = logrus.New()
	}
	return &RetrainController{
		registry: registry,
		corpus:   corpus,
		versions: versions,
		history:  history,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("retrain-controller"),
		configs:  make(map[string]*models.RetrainConfig),
	}
}

// defaultRetrainConfig picks framework-appropriate thresholds: tight for
// classification-style models that gate anomalies, loose for slow-drift
// capability regressors.
func defaultRetrainConfig(modelID, modelType string) *models.RetrainConfig {
	if modelType == models.ModelTypeClassification {
		return &models.RetrainConfig{
			ModelID:            modelID,
			AccuracyThreshold:  0.80,
			ErrorRateThreshold: 0.10,
			MinNewDataPoints:   50,
			MaxAgeDays:         7,
			Enabled:            true,
		}
	}
	return &models.RetrainConfig{
		ModelID:            modelID,
		AccuracyThreshold:  0.70,
		ErrorRateThreshold: 0.20,
		MinNewDataPoints:   200,
		MaxAgeDays:         30,
		Enabled:            true,
	}
}

// GetConfig returns the model's retrain config, lazily creating defaults.
func (c *RetrainController) GetConfig(modelID string) (*models.RetrainConfig, error) {
	entry, err := c.registry.GetModelInfo(modelID)
	if err != nil {
		return nil, err
	}
	return c.configFor(entry), nil
}

// SetConfig replaces the model's retrain config.
func (c *RetrainController) SetConfig(cfg *models.RetrainConfig) {
	c.mu.Lock()
	c.configs[cfg.ModelID] = cfg
	c.mu.Unlock()
}

func (c *RetrainController) configFor(entry *models.ModelRegistryEntry) *models.RetrainConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg, ok := c.configs[entry.ModelID]; ok {
		return cfg
	}
	cfg := defaultRetrainConfig(entry.ModelID, entry.ModelType)
	c.configs[entry.ModelID] = cfg
	return cfg
}

// CheckRetrainNeeded evaluates every health condition independently and
// reports all matching reasons, not just the first.
func (c *RetrainController) CheckRetrainNeeded(ctx context.Context, modelID string) (*models.RetrainCheck, error) {
	entry, err := c.registry.GetModelInfo(modelID)
	if err != nil {
		return nil, err
	}
	cfg := c.configFor(entry)

	check := &models.RetrainCheck{ModelID: modelID}
	if !cfg.Enabled {
		return check, nil
	}

	accuracy := primaryMetric(entry.Metrics)
	if accuracy < cfg.AccuracyThreshold {
		check.Reasons = append(check.Reasons, models.RetrainReason{
			Code:    models.ReasonLowAccuracy,
			Message: fmt.Sprintf("accuracy %.3f below threshold %.3f", accuracy, cfg.AccuracyThreshold),
		})
	}

	if errorRate := entry.ErrorRate(); errorRate > cfg.ErrorRateThreshold {
		check.Reasons = append(check.Reasons, models.RetrainReason{
			Code:    models.ReasonHighErrorRate,
			Message: fmt.Sprintf("error rate %.3f above threshold %.3f", errorRate, cfg.ErrorRateThreshold),
		})
	}

	ageDays := time.Since(entry.CreatedAt).Hours() / 24
	if ageDays > float64(cfg.MaxAgeDays) {
		check.Reasons = append(check.Reasons, models.RetrainReason{
			Code:    models.ReasonModelAge,
			Message: fmt.Sprintf("model age %.1f days exceeds maximum %d days", ageDays, cfg.MaxAgeDays),
		})
	}

	if c.corpus != nil && cfg.MinNewDataPoints > 0 {
		corpus, corpusErr := c.corpus.GetTrainingRows(ctx, entry.CreatedAt, cfg.MinNewDataPoints)
		if corpusErr != nil {
			c.logger.WithError(corpusErr).WithField("model_id", modelID).Warn("Failed to count new training data, skipping new-data check")
		} else if len(corpus.Features) >= cfg.MinNewDataPoints {
			check.Reasons = append(check.Reasons, models.RetrainReason{
				Code:    models.ReasonNewData,
				Message: fmt.Sprintf("%d new data points since model creation (minimum %d)", len(corpus.Features), cfg.MinNewDataPoints),
			})
		}
	}

	check.Needed = len(check.Reasons) > 0
	return check, nil
}

// ExecuteRetrain pulls a fresh bounded training sample and trains a new
// model id, recording the attempt as a retrain job. The source model stays
// registered so rollback and version comparison remain possible.
func (c *RetrainController) ExecuteRetrain(ctx context.Context, modelID string, reason models.RetrainReason) (*models.RetrainResult, error) {
	ctx, span := c.tracer.Start(ctx, "retrain.execute", trace.WithAttributes(
		attribute.String("model_id", modelID),
		attribute.String("reason", string(reason.Code)),
	))
	defer span.End()

	entry, err := c.registry.GetModelInfo(modelID)
	if err != nil {
		return nil, err
	}
	previousAccuracy := primaryMetric(entry.Metrics)

	job := &models.RetrainJob{
		ID:               uuid.New().String(),
		ModelID:          modelID,
		Status:           models.RetrainPending,
		Reason:           reason,
		StartedAt:        time.Now(),
		PreviousAccuracy: previousAccuracy,
	}
	c.appendJob(ctx, job)

	c.transitionJob(ctx, job, models.RetrainRunning)

	corpus, err := c.fetchCorpus(ctx, entry.CreatedAt)
	if err != nil {
		return nil, c.failJob(ctx, job, err)
	}

	newModelID := fmt.Sprintf("%s-retrain-%s", modelID, uuid.New().String()[:8])
	result, err := c.registry.Train(ctx, newModelID, models.ModelConfig{
		Framework: entry.Framework,
		ModelType: entry.ModelType,
	}, corpus.Features, corpus.Labels)
	if err != nil {
		return nil, c.failJob(ctx, job, err)
	}

	newAccuracy := primaryMetric(result.Metrics)
	improvement := newAccuracy - previousAccuracy
	significant := improvement > significantImprovement

	now := time.Now()
	job.Status = models.RetrainCompleted
	job.CompletedAt = &now
	job.NewModelID = newModelID
	job.NewAccuracy = newAccuracy
	c.updateJob(ctx, job)

	c.recordVersion(ctx, modelID, newModelID, newAccuracy, improvement > 0)

	if significant {
		c.notify(ctx, "model retraining completed",
			fmt.Sprintf("Model %s retrained as %s: accuracy %.3f -> %.3f (+%.3f)", modelID, newModelID, previousAccuracy, newAccuracy, improvement))
	}

	c.logger.WithFields(logrus.Fields{
		"model_id":     modelID,
		"new_model_id": newModelID,
		"improvement":  improvement,
		"significant":  significant,
	}).Info("Retrain completed")

	return &models.RetrainResult{
		Job:         job,
		NewModelID:  newModelID,
		Improvement: improvement,
		Significant: significant,
	}, nil
}

func (c *RetrainController) fetchCorpus(ctx context.Context, since time.Time) (*models.TrainingCorpus, error) {
	if c.corpus == nil {
		return nil, fmt.Errorf("no training corpus reader configured")
	}
	corpus, err := c.corpus.GetTrainingRows(ctx, since, maxRetrainRows)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch training data: %w", err)
	}
	if len(corpus.Features) < minRetrainRows {
		return nil, fmt.Errorf("%w: %d usable rows, need at least %d", models.ErrInsufficientData, len(corpus.Features), minRetrainRows)
	}
	return corpus, nil
}

// failJob marks the job failed, stores the error text and emits a failure
// notification. Returns the original error for the caller.
func (c *RetrainController) failJob(ctx context.Context, job *models.RetrainJob, cause error) error {
	now := time.Now()
	job.Status = models.RetrainFailed
	job.CompletedAt = &now
	job.Error = cause.Error()
	c.updateJob(ctx, job)

	c.notify(ctx, "model retraining failed",
		fmt.Sprintf("Model %s retrain failed: %s", job.ModelID, cause.Error()))

	c.logger.WithError(cause).WithFields(logrus.Fields{
		"model_id": job.ModelID,
		"job_id":   job.ID,
	}).Error("Retrain failed")
	return cause
}

// recordVersion appends the retrained artifact as the lineage model's next
// version and promotes it when it beat its predecessor.
func (c *RetrainController) recordVersion(ctx context.Context, modelID, versionID string, accuracy float64, promote bool) {
	if c.versions == nil {
		return
	}
	number, err := c.versions.NextVersionNumber(ctx, modelID)
	if err != nil {
		c.logger.WithError(err).WithField("model_id", modelID).Warn("Failed to allocate version number")
		return
	}
	now := time.Now()
	version := &models.ModelVersion{
		VersionID:     versionID,
		ModelID:       modelID,
		VersionNumber: number,
		Accuracy:      accuracy,
		DeployedAt:    &now,
	}
	if err := c.versions.InsertVersion(ctx, version); err != nil {
		c.logger.WithError(err).WithField("model_id", modelID).Warn("Failed to record model version")
		return
	}
	if promote {
		if err := c.versions.Promote(ctx, modelID, versionID); err != nil {
			c.logger.WithError(err).WithField("model_id", modelID).Warn("Failed to promote model version")
		}
	}
}

// RunScheduledRetrainCheck sweeps every registry model once, serially to
// bound resource use, and retrains those whose check fires.
func (c *RetrainController) RunScheduledRetrainCheck(ctx context.Context) *models.SweepResult {
	ctx, span := c.tracer.Start(ctx, "retrain.sweep")
	defer span.End()

	entries := c.registry.GetAllModels()
	result := &models.SweepResult{Outcomes: make([]models.SweepOutcome, 0, len(entries))}

	for _, entry := range entries {
		outcome := models.SweepOutcome{ModelID: entry.ModelID}

		check, err := c.CheckRetrainNeeded(ctx, entry.ModelID)
		if err != nil {
			outcome.Failed = true
			outcome.Error = err.Error()
			result.Failed++
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		outcome.Checked = true
		outcome.Reasons = check.Reasons
		result.Checked++

		if check.Needed {
			if _, err := c.ExecuteRetrain(ctx, entry.ModelID, check.Reasons[0]); err != nil {
				outcome.Failed = true
				outcome.Error = err.Error()
				result.Failed++
			} else {
				outcome.Retrained = true
				result.Retrained++
			}
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	fields := logrus.Fields{
		"checked":   result.Checked,
		"retrained": result.Retrained,
		"failed":    result.Failed,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields["mem_used_percent"] = fmt.Sprintf("%.1f", vm.UsedPercent)
	}
	c.logger.WithFields(fields).Info("Scheduled retrain sweep completed")

	return result
}

// History lists the most recent retrain jobs for a model.
func (c *RetrainController) History(ctx context.Context, modelID string, limit int) ([]models.RetrainJob, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.ListJobs(ctx, modelID, limit)
}

// ActiveJobs lists jobs still in a non-terminal state.
func (c *RetrainController) ActiveJobs(ctx context.Context) ([]models.RetrainJob, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.ActiveJobs(ctx)
}

func (c *RetrainController) appendJob(ctx context.Context, job *models.RetrainJob) {
	if c.history == nil {
		return
	}
	if err := c.history.AppendJob(ctx, job); err != nil {
		c.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to record retrain job")
	}
}

func (c *RetrainController) transitionJob(ctx context.Context, job *models.RetrainJob, status models.RetrainJobStatus) {
	job.Status = status
	c.updateJob(ctx, job)
}

func (c *RetrainController) updateJob(ctx context.Context, job *models.RetrainJob) {
	if c.history == nil {
		return
	}
	if err := c.history.UpdateJob(ctx, job); err != nil {
		c.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to update retrain job")
	}
}

// notify is fire-and-forget: sink failures never fail the job.
func (c *RetrainController) notify(ctx context.Context, title, content string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, title, content); err != nil {
		c.logger.WithError(err).Warn("Failed to send retrain notification")
	}
}
