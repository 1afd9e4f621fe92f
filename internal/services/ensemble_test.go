package services

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// stubPredictor returns canned per-model outputs.
type stubPredictor struct {
	outputs map[string]*models.PredictionOutput
	errs    map[string]error
}

func (s *stubPredictor) Predict(_ context.Context, modelID string, _ [][]float64) (*models.PredictionOutput, error) {
	if err, ok := s.errs[modelID]; ok {
		return nil, err
	}
	out, ok := s.outputs[modelID]
	if !ok {
		return nil, models.ErrModelNotFound
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestEnsemblePredictor_Average(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{1.0, 2.0}},
		"b": {Predictions: []float64{3.0, 6.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"a", "b"}, [][]float64{{0}, {0}}, models.EnsembleAverage)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0, 4.0}, result.Predictions, 1e-9)
	assert.ElementsMatch(t, []string{"a", "b"}, result.ModelsUsed)
	assert.Empty(t, result.ModelsFailed)
}

func TestEnsemblePredictor_WeightedUsesConfidence(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"confident": {Predictions: []float64{10.0}, Confidence: []float64{1.0}},
		"unsure":    {Predictions: []float64{0.0}, Confidence: []float64{0.25}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"confident", "unsure"}, [][]float64{{0}}, models.EnsembleWeighted)
	require.NoError(t, err)
	// (1.0*10 + 0.25*0) / 1.25 = 8
	assert.InDelta(t, 8.0, result.Predictions[0], 1e-9)
}

func TestEnsemblePredictor_WeightedDefaultsMissingConfidence(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{4.0}},
		"b": {Predictions: []float64{8.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"a", "b"}, [][]float64{{0}}, models.EnsembleWeighted)
	require.NoError(t, err)
	// Both default to weight 0.5: plain mean.
	assert.InDelta(t, 6.0, result.Predictions[0], 1e-9)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
}

func TestEnsemblePredictor_VotingModalClass(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{1.1, 0.2}},
		"b": {Predictions: []float64{0.9, 1.8}},
		"c": {Predictions: []float64{2.4, 0.1}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"a", "b", "c"}, [][]float64{{0}, {0}}, models.EnsembleVoting)
	require.NoError(t, err)
	// Sample 0: classes 1,1,2 -> 1. Sample 1: classes 0,2,0 -> 0.
	assert.Equal(t, []float64{1.0, 0.0}, result.Predictions)
}

func TestEnsemblePredictor_VotingTieBreaksLowestClass(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{2.0}},
		"b": {Predictions: []float64{0.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"a", "b"}, [][]float64{{0}}, models.EnsembleVoting)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.0}, result.Predictions)
}

func TestEnsemblePredictor_PartialFailureTolerated(t *testing.T) {
	stub := &stubPredictor{
		outputs: map[string]*models.PredictionOutput{
			"healthy": {Predictions: []float64{5.0}},
		},
		errs: map[string]error{"broken": errors.New("backend exploded")},
	}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"healthy", "broken"}, [][]float64{{0}}, models.EnsembleAverage)
	require.NoError(t, err)
	assert.Equal(t, []float64{5.0}, result.Predictions)
	assert.Equal(t, []string{"healthy"}, result.ModelsUsed)
	assert.Equal(t, []string{"broken"}, result.ModelsFailed)
}

func TestEnsemblePredictor_AllModelsFailed(t *testing.T) {
	stub := &stubPredictor{errs: map[string]error{
		"a": errors.New("down"),
		"b": errors.New("down"),
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	_, err := ensemble.Predict(context.Background(), []string{"a", "b"}, [][]float64{{0}}, models.EnsembleAverage)
	assert.ErrorIs(t, err, models.ErrAllModelsFailed)
}

func TestEnsemblePredictor_UnknownMethod(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{1.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	_, err := ensemble.Predict(context.Background(), []string{"a"}, [][]float64{{0}}, models.EnsembleMethod("median"))
	assert.Error(t, err)
}

func TestEnsemblePredictor_ConfidenceMeansMemberConfidences(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{1.0, 1.0}, Confidence: []float64{0.8, 0.6}},
		"b": {Predictions: []float64{1.0, 1.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"a", "b"}, [][]float64{{0}, {0}}, models.EnsembleAverage)
	require.NoError(t, err)
	// (mean(0.8,0.6) + 0.5) / 2 = 0.6
	assert.InDelta(t, 0.6, result.Confidence, 1e-9)
}

func TestEnsemblePredictor_ModelsUsedOrderStable(t *testing.T) {
	stub := &stubPredictor{outputs: map[string]*models.PredictionOutput{
		"a": {Predictions: []float64{1.0}},
		"b": {Predictions: []float64{2.0}},
		"c": {Predictions: []float64{3.0}},
	}}
	ensemble := NewEnsemblePredictor(stub, quietLogger())

	result, err := ensemble.Predict(context.Background(), []string{"c", "a", "b"}, [][]float64{{0}}, models.EnsembleAverage)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, result.ModelsUsed)
}
