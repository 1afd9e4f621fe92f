package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mfgsight/mfgsight-ai-go/internal/ml"
	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// RegistryConfig configures the model registry. Store is optional; when set,
// entries are snapshotted through it so a deployment can survive restarts.
// Seed fixes backend randomness for reproducible training (0 = time-based).
type RegistryConfig struct {
	Store models.ModelStore
	Seed  int64
}

// registryModel pairs a catalog entry with its live predictor. The per-model
// mutex makes counter updates single-writer per modelId.
type registryModel struct {
	mu        sync.Mutex
	entry     models.ModelRegistryEntry
	predictor ml.TrainablePredictor
}

// ModelRegistry owns the catalog of trained models and dispatches train and
// predict calls to the backend selected by each model's framework.
type ModelRegistry struct {
	config RegistryConfig
	logger *logrus.Logger
	tracer trace.Tracer

	mu      sync.RWMutex
	entries map[string]*registryModel
	order   []string // first-seen order, used for deterministic tie-breaks
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry(cfg RegistryConfig, logger *logrus.Logger) *ModelRegistry {
	if logger == nil {
		logger = logrus.New()
	}
	return &ModelRegistry{
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer("model-registry"),
		entries: make(map[string]*registryModel),
	}
}

func (r *ModelRegistry) newRNG() *rand.Rand {
	seed := r.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Train dispatches to the backend named by config.Framework and registers
// the trained model. Training an existing id replaces its predictor and
// resets its counters.
func (r *ModelRegistry) Train(ctx context.Context, modelID string, cfg models.ModelConfig, features [][]float64, labels []float64) (*models.TrainingResult, error) {
	ctx, span := r.tracer.Start(ctx, "registry.train", trace.WithAttributes(
		attribute.String("model_id", modelID),
		attribute.String("framework", string(cfg.Framework)),
		attribute.Int("samples", len(features)),
	))
	defer span.End()

	predictor, err := ml.NewPredictor(cfg, r.newRNG())
	if err != nil {
		return nil, err
	}

	result, err := predictor.Train(ctx, cfg, features, labels)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"model_id":  modelID,
			"framework": cfg.Framework,
		}).Error("Model training failed")
		return nil, &models.BackendTrainingError{Framework: cfg.Framework, ModelType: cfg.ModelType, Cause: err}
	}
	result.ModelID = modelID

	now := time.Now()
	entry := models.ModelRegistryEntry{
		ModelID:    modelID,
		Framework:  cfg.Framework,
		ModelType:  result.ModelType,
		CreatedAt:  now,
		LastUsedAt: now,
		Metrics:    result.Metrics,
	}

	r.mu.Lock()
	if _, seen := r.entries[modelID]; !seen {
		r.order = append(r.order, modelID)
	}
	r.entries[modelID] = &registryModel{entry: entry, predictor: predictor}
	r.mu.Unlock()

	if r.config.Store != nil {
		if err := r.config.Store.SaveEntry(ctx, &entry); err != nil {
			r.logger.WithError(err).WithField("model_id", modelID).Warn("Failed to persist registry entry")
		}
	}

	r.logger.WithFields(logrus.Fields{
		"model_id":         modelID,
		"framework":        cfg.Framework,
		"model_type":       result.ModelType,
		"training_time_ms": result.TrainingTimeMs,
	}).Info("Model trained and registered")

	return result, nil
}

// Predict serves a batch through the model's backend. Unknown ids fail with
// ErrModelNotFound. A backend failure increments the entry's error counter
// and is returned to the caller.
func (r *ModelRegistry) Predict(ctx context.Context, modelID string, features [][]float64) (*models.PredictionOutput, error) {
	ctx, span := r.tracer.Start(ctx, "registry.predict", trace.WithAttributes(
		attribute.String("model_id", modelID),
		attribute.Int("samples", len(features)),
	))
	defer span.End()

	r.mu.RLock()
	m, ok := r.entries[modelID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrModelNotFound, modelID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.predictor.Predict(ctx, features)
	m.entry.LastUsedAt = time.Now()
	if err != nil {
		m.entry.TotalErrors++
		return nil, fmt.Errorf("prediction failed for model %s: %w", modelID, err)
	}
	m.entry.TotalPredictions += int64(len(features))

	if r.config.Store != nil {
		if saveErr := r.config.Store.SaveEntry(ctx, &m.entry); saveErr != nil {
			r.logger.WithError(saveErr).WithField("model_id", modelID).Debug("Failed to persist counter update")
		}
	}
	return out, nil
}

// GetModelInfo returns a snapshot of one registry entry.
func (r *ModelRegistry) GetModelInfo(modelID string) (*models.ModelRegistryEntry, error) {
	r.mu.RLock()
	m, ok := r.entries[modelID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrModelNotFound, modelID)
	}

	m.mu.Lock()
	snapshot := m.entry
	m.mu.Unlock()
	return &snapshot, nil
}

// GetAllModels returns entry snapshots in first-seen order.
func (r *ModelRegistry) GetAllModels() []models.ModelRegistryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ModelRegistryEntry, 0, len(r.entries))
	for _, id := range r.order {
		m, ok := r.entries[id]
		if !ok {
			continue
		}
		m.mu.Lock()
		out = append(out, m.entry)
		m.mu.Unlock()
	}
	return out
}

// DeleteModel removes a model; subsequent predict calls on its id fail with
// ErrModelNotFound.
func (r *ModelRegistry) DeleteModel(ctx context.Context, modelID string) error {
	r.mu.Lock()
	_, ok := r.entries[modelID]
	if ok {
		delete(r.entries, modelID)
		for i, id := range r.order {
			if id == modelID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrModelNotFound, modelID)
	}

	if r.config.Store != nil {
		if err := r.config.Store.DeleteEntry(ctx, modelID); err != nil {
			r.logger.WithError(err).WithField("model_id", modelID).Warn("Failed to delete persisted entry")
		}
	}
	r.logger.WithField("model_id", modelID).Info("Model deleted from registry")
	return nil
}

// CompareModels returns per-model metrics plus the realized error rate for
// each requested id. Unknown ids are skipped.
func (r *ModelRegistry) CompareModels(modelIDs []string) []models.ModelComparison {
	out := make([]models.ModelComparison, 0, len(modelIDs))
	for _, id := range modelIDs {
		r.mu.RLock()
		m, ok := r.entries[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		m.mu.Lock()
		metrics := make(map[string]float64, len(m.entry.Metrics))
		for k, v := range m.entry.Metrics {
			metrics[k] = v
		}
		out = append(out, models.ModelComparison{
			ModelID:   m.entry.ModelID,
			Framework: m.entry.Framework,
			ModelType: m.entry.ModelType,
			Metrics:   metrics,
			ErrorRate: m.entry.ErrorRate(),
		})
		m.mu.Unlock()
	}
	return out
}

// RecommendFramework is the deterministic, table-driven sizing heuristic:
// large or wide datasets and any classification task go to the neural
// backend; small regression datasets get plain linear regression; the rest
// get the boosted statistical ensemble.
func RecommendFramework(dataSize, featureCount int, taskType string) models.FrameworkRecommendation {
	if taskType == "classification" {
		return models.FrameworkRecommendation{
			Framework: models.FrameworkNeural,
			ModelType: models.ModelTypeClassification,
			Reason:    "classification tasks use the neural backend",
		}
	}
	if dataSize > 10000 || featureCount > 50 {
		return models.FrameworkRecommendation{
			Framework: models.FrameworkNeural,
			ModelType: models.ModelTypeRegression,
			Reason:    "large or high-dimensional datasets favor the neural backend",
		}
	}
	if dataSize < 1000 {
		return models.FrameworkRecommendation{
			Framework: models.FrameworkStatistical,
			ModelType: models.ModelTypeLinearRegression,
			Reason:    "small regression datasets favor plain linear regression",
		}
	}
	return models.FrameworkRecommendation{
		Framework: models.FrameworkStatistical,
		ModelType: models.ModelTypeGradientBoosting,
		Reason:    "medium regression datasets favor the boosted statistical ensemble",
	}
}

// primaryMetric scores an entry by accuracy, else R2, else 1-loss.
func primaryMetric(metrics map[string]float64) float64 {
	if v, ok := metrics["accuracy"]; ok {
		return v
	}
	if v, ok := metrics["r2_score"]; ok {
		return v
	}
	if v, ok := metrics["loss"]; ok {
		return 1 - v
	}
	return 0
}

// GetBestModel returns the matching model with the highest primary metric
// minus a 0.1 error-rate penalty. Ties resolve to the earliest-seen model.
func (r *ModelRegistry) GetBestModel(modelType string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bestID := ""
	bestScore := 0.0
	for _, id := range r.order {
		m, ok := r.entries[id]
		if !ok {
			continue
		}
		m.mu.Lock()
		match := m.entry.ModelType == modelType
		score := primaryMetric(m.entry.Metrics) - 0.1*m.entry.ErrorRate()
		m.mu.Unlock()
		if !match {
			continue
		}
		if bestID == "" || score > bestScore {
			bestID = id
			bestScore = score
		}
	}

	if bestID == "" {
		return "", fmt.Errorf("%w: no model of type %s", models.ErrModelNotFound, modelType)
	}
	return bestID, nil
}
