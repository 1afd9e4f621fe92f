// Package ml implements the framework-agnostic predictor backends behind the
// model registry: a gradient-trained feed-forward neural network and a
// classical statistical/ensemble backend.
package ml

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// TrainablePredictor is the capability contract every backend satisfies.
// Train consumes feature vectors and labels; Predict serves batches against
// the trained state. Implementations are not safe for concurrent mutation;
// the registry serializes access per model.
type TrainablePredictor interface {
	Train(ctx context.Context, cfg models.ModelConfig, features [][]float64, labels []float64) (*models.TrainingResult, error)
	Predict(ctx context.Context, features [][]float64) (*models.PredictionOutput, error)
}

// NewPredictor builds an untrained backend for the given config. The rng
// seeds weight initialization and bootstrap sampling so training is
// reproducible when callers pass a fixed seed.
func NewPredictor(cfg models.ModelConfig, rng *rand.Rand) (TrainablePredictor, error) {
	switch cfg.Framework {
	case models.FrameworkNeural:
		return NewNeuralPredictor(rng), nil
	case models.FrameworkStatistical:
		return NewStatisticalPredictor(rng), nil
	default:
		return nil, fmt.Errorf("unknown framework %q", cfg.Framework)
	}
}

// hyperparameter reads a float hyperparameter with a default.
func hyperparameter(cfg models.ModelConfig, key string, def float64) float64 {
	if cfg.Hyperparameters == nil {
		return def
	}
	if v, ok := cfg.Hyperparameters[key]; ok {
		return v
	}
	return def
}
