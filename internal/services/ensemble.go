package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

const defaultEnsembleWeight = 0.5

// BatchPredictor is the slice of the registry the ensemble needs.
type BatchPredictor interface {
	Predict(ctx context.Context, modelID string, features [][]float64) (*models.PredictionOutput, error)
}

// EnsemblePredictor fans one feature batch out to several registered models
// and fuses the surviving outputs.
type EnsemblePredictor struct {
	predictor BatchPredictor
	logger    *logrus.Logger
}

// NewEnsemblePredictor wires the ensemble over a registry (or any predictor).
func NewEnsemblePredictor(predictor BatchPredictor, logger *logrus.Logger) *EnsemblePredictor {
	if logger == nil {
		logger = logrus.New()
	}
	return &EnsemblePredictor{predictor: predictor, logger: logger}
}

type memberOutput struct {
	modelID string
	output  *models.PredictionOutput
	err     error
}

// Predict issues the batch to every listed model concurrently. Individual
// model failures are dropped from the ensemble; the call fails only when
// every model fails.
func (e *EnsemblePredictor) Predict(ctx context.Context, modelIDs []string, features [][]float64, method models.EnsembleMethod) (*models.EnsemblePrediction, error) {
	start := time.Now()
	if len(modelIDs) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one model id")
	}

	results := make([]memberOutput, len(modelIDs))
	var wg sync.WaitGroup
	for i, id := range modelIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			out, err := e.predictor.Predict(ctx, id, features)
			results[i] = memberOutput{modelID: id, output: out, err: err}
		}(i, id)
	}
	wg.Wait()

	survivors := make([]memberOutput, 0, len(results))
	var failed []string
	for _, r := range results {
		if r.err != nil {
			e.logger.WithError(r.err).WithField("model_id", r.modelID).Warn("Ensemble member failed, dropping from ensemble")
			failed = append(failed, r.modelID)
			continue
		}
		if len(r.output.Predictions) != len(features) {
			e.logger.WithFields(logrus.Fields{
				"model_id": r.modelID,
				"got":      len(r.output.Predictions),
				"want":     len(features),
			}).Warn("Ensemble member returned wrong batch size, dropping from ensemble")
			failed = append(failed, r.modelID)
			continue
		}
		survivors = append(survivors, r)
	}

	if len(survivors) == 0 {
		return nil, fmt.Errorf("%w: %d models attempted", models.ErrAllModelsFailed, len(modelIDs))
	}

	var combined []float64
	switch method {
	case models.EnsembleAverage:
		combined = combineAverage(survivors, len(features))
	case models.EnsembleWeighted:
		combined = combineWeighted(survivors, len(features))
	case models.EnsembleVoting:
		combined = combineVoting(survivors, len(features))
	default:
		return nil, fmt.Errorf("unknown ensemble method %q", method)
	}

	used := make([]string, len(survivors))
	for i, s := range survivors {
		used[i] = s.modelID
	}

	return &models.EnsemblePrediction{
		Predictions:      combined,
		Confidence:       ensembleConfidence(survivors),
		Method:           method,
		ModelsUsed:       used,
		ModelsFailed:     failed,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// memberWeight is the model's per-sample confidence, defaulting when the
// backend reported none.
func memberWeight(m memberOutput, i int) float64 {
	if i < len(m.output.Confidence) {
		return m.output.Confidence[i]
	}
	return defaultEnsembleWeight
}

func combineAverage(members []memberOutput, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for _, m := range members {
			sum += m.output.Predictions[i]
		}
		out[i] = sum / float64(len(members))
	}
	return out
}

func combineWeighted(members []memberOutput, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum, totalWeight float64
		for _, m := range members {
			w := memberWeight(m, i)
			sum += w * m.output.Predictions[i]
			totalWeight += w
		}
		if totalWeight == 0 {
			totalWeight = 1
		}
		out[i] = sum / totalWeight
	}
	return out
}

// combineVoting rounds each member's prediction to its nearest integer class
// and takes the modal class per sample, ties resolved to the lowest class.
func combineVoting(members []memberOutput, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		votes := make(map[int]int)
		for _, m := range members {
			votes[int(math.Round(m.output.Predictions[i]))]++
		}
		bestClass, bestCount := 0, -1
		for class, count := range votes {
			if count > bestCount || (count == bestCount && class < bestClass) {
				bestClass, bestCount = class, count
			}
		}
		out[i] = float64(bestClass)
	}
	return out
}

// ensembleConfidence is the mean per-member confidence, each member reduced
// to the mean of its per-sample confidences (default when absent).
func ensembleConfidence(members []memberOutput) float64 {
	var sum float64
	for _, m := range members {
		if len(m.output.Confidence) == 0 {
			sum += defaultEnsembleWeight
			continue
		}
		var memberSum float64
		for _, c := range m.output.Confidence {
			memberSum += c
		}
		sum += memberSum / float64(len(m.output.Confidence))
	}
	return sum / float64(len(members))
}
