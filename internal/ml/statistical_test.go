package ml

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// linearDataset generates y = 3*x0 - 2*x1 + 5 with small uniform noise.
func linearDataset(rng *rand.Rand, n int) ([][]float64, []float64) {
	features := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := rng.Float64() * 10
		x1 := rng.Float64() * 10
		features[i] = []float64{x0, x1}
		labels[i] = 3*x0 - 2*x1 + 5 + (rng.Float64()-0.5)*0.2
	}
	return features, labels
}

func TestStatisticalPredictor_LinearRegression_FitsLinearData(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	features, labels := linearDataset(rng, 200)

	p := NewStatisticalPredictor(rng)
	result, err := p.Train(context.Background(), models.ModelConfig{
		Framework: models.FrameworkStatistical,
		ModelType: models.ModelTypeLinearRegression,
	}, features, labels)

	require.NoError(t, err)
	assert.Equal(t, models.FrameworkStatistical, result.Framework)
	assert.Greater(t, result.Metrics["r2_score"], 0.8, "linear data should be explained well")
	assert.Greater(t, result.Metrics["rmse"], 0.0)
	assert.GreaterOrEqual(t, result.TrainingTimeMs, int64(0))
	assert.Len(t, result.CrossValidation, 5)
}

func TestStatisticalPredictor_Predict_Intervals(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	features, labels := linearDataset(rng, 100)

	p := NewStatisticalPredictor(rng)
	_, err := p.Train(context.Background(), models.ModelConfig{
		Framework: models.FrameworkStatistical,
		ModelType: models.ModelTypeLinearRegression,
	}, features, labels)
	require.NoError(t, err)

	out, err := p.Predict(context.Background(), features[:10])
	require.NoError(t, err)
	require.Len(t, out.Predictions, 10)
	require.NotNil(t, out.Intervals)

	for i, pred := range out.Predictions {
		assert.LessOrEqual(t, out.Intervals.Lower[i], pred)
		assert.GreaterOrEqual(t, out.Intervals.Upper[i], pred)
	}
}

func TestStatisticalPredictor_RandomForest_Importance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	features, labels := linearDataset(rng, 150)

	p := NewStatisticalPredictor(rng)
	result, err := p.Train(context.Background(), models.ModelConfig{
		Framework:       models.FrameworkStatistical,
		ModelType:       models.ModelTypeRandomForest,
		Hyperparameters: map[string]float64{"n_estimators": 20},
	}, features, labels)

	require.NoError(t, err)
	assert.NotEmpty(t, result.FeatureImportance)

	var total float64
	for _, v := range result.FeatureImportance {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9, "split frequencies should sum to 1")
}

func TestStatisticalPredictor_GradientBoosting_Trains(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	features, labels := linearDataset(rng, 120)

	p := NewStatisticalPredictor(rng)
	result, err := p.Train(context.Background(), models.ModelConfig{
		Framework:       models.FrameworkStatistical,
		ModelType:       models.ModelTypeGradientBoosting,
		Hyperparameters: map[string]float64{"n_estimators": 5, "learning_rate": 0.3},
	}, features, labels)

	require.NoError(t, err)
	assert.Contains(t, result.Metrics, "r2_score")
	assert.Contains(t, result.Metrics, "mae")
	assert.Contains(t, result.Metrics, "mse")
	assert.Contains(t, result.Metrics, "rmse")
	assert.NotEmpty(t, result.FeatureImportance)
}

func TestStatisticalPredictor_Train_InsufficientData(t *testing.T) {
	p := NewStatisticalPredictor(rand.New(rand.NewSource(1)))
	_, err := p.Train(context.Background(), models.ModelConfig{
		Framework: models.FrameworkStatistical,
		ModelType: models.ModelTypeLinearRegression,
	}, [][]float64{{1.0}}, []float64{1.0})

	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestStatisticalPredictor_Predict_Untrained(t *testing.T) {
	p := NewStatisticalPredictor(rand.New(rand.NewSource(1)))
	_, err := p.Predict(context.Background(), [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestStatisticalPredictor_UnknownModelType(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	features, labels := linearDataset(rng, 20)

	p := NewStatisticalPredictor(rng)
	_, err := p.Train(context.Background(), models.ModelConfig{
		Framework: models.FrameworkStatistical,
		ModelType: "svm",
	}, features, labels)
	assert.Error(t, err)
}

func TestRegressionMetrics_PerfectFit(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	m := regressionMetrics(y, y)
	assert.Equal(t, 1.0, m["r2_score"])
	assert.Equal(t, 0.0, m["mae"])
	assert.Equal(t, 0.0, m["rmse"])
}

func TestRegressionMetrics_NoVariance(t *testing.T) {
	m := regressionMetrics([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, m["r2_score"])
}
