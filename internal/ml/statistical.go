package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// StatisticalPredictor is the classical backend: regularized linear
// regression trained by batch gradient descent, a bagged decision-stump
// ensemble, or a residual-fitting additive ensemble over linear learners.
// Every variant reports R2, MSE, MAE and RMSE plus 5-fold CV scores.
type StatisticalPredictor struct {
	rng *rand.Rand

	modelType string
	linear    *linearModel
	stumps    []decisionStump
	boosted   []*linearModel
	boostLR   float64
	rmse      float64
	nFeatures int
	trained   bool
}

type linearModel struct {
	weights []float64
	bias    float64
	means   []float64
	stds    []float64
}

type decisionStump struct {
	featureIndex int
	threshold    float64
	leftValue    float64
	rightValue   float64
}

// NewStatisticalPredictor returns an untrained statistical backend.
func NewStatisticalPredictor(rng *rand.Rand) *StatisticalPredictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StatisticalPredictor{rng: rng}
}

// Train fits the estimator selected by cfg.ModelType and evaluates it on the
// full training set, with a 5-fold cross-validated R2 list on the linear
// learner.
func (p *StatisticalPredictor) Train(ctx context.Context, cfg models.ModelConfig, features [][]float64, labels []float64) (*models.TrainingResult, error) {
	start := time.Now()

	if len(features) < 2 {
		return nil, fmt.Errorf("%w: statistical training needs at least 2 samples, got %d", models.ErrInsufficientData, len(features))
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("feature/label length mismatch: %d vs %d", len(features), len(labels))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.modelType = cfg.ModelType
	p.nFeatures = len(features[0])
	var featureImportance map[string]float64

	switch cfg.ModelType {
	case models.ModelTypeLinearRegression, "":
		p.modelType = models.ModelTypeLinearRegression
		p.linear = fitLinear(features, labels)
	case models.ModelTypeRandomForest:
		nTrees := int(hyperparameter(cfg, "n_estimators", 10))
		p.stumps = fitStumps(features, labels, nTrees, p.rng)
		featureImportance = stumpImportance(p.stumps)
	case models.ModelTypeGradientBoosting:
		nEstimators := int(hyperparameter(cfg, "n_estimators", 10))
		p.boostLR = hyperparameter(cfg, "learning_rate", 0.1)
		p.boosted = fitBoosted(features, labels, nEstimators, p.boostLR)
		featureImportance = boostedImportance(p.boosted)
	default:
		return nil, fmt.Errorf("unknown statistical model type %q", cfg.ModelType)
	}

	preds := p.predictRaw(features)
	metrics := regressionMetrics(labels, preds)
	p.rmse = metrics["rmse"]
	p.trained = true

	return &models.TrainingResult{
		Framework:         models.FrameworkStatistical,
		ModelType:         p.modelType,
		Metrics:           metrics,
		TrainingTimeMs:    time.Since(start).Milliseconds(),
		FeatureImportance: featureImportance,
		CrossValidation:   crossValidate(features, labels, 5),
	}, nil
}

// Predict serves a batch with 95% prediction intervals derived from the
// training RMSE.
func (p *StatisticalPredictor) Predict(ctx context.Context, features [][]float64) (*models.PredictionOutput, error) {
	start := time.Now()
	if !p.trained {
		return nil, fmt.Errorf("statistical predictor is not trained")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, row := range features {
		if len(row) != p.nFeatures {
			return nil, fmt.Errorf("sample %d has %d features, model expects %d", i, len(row), p.nFeatures)
		}
	}

	preds := p.predictRaw(features)
	lower := make([]float64, len(preds))
	upper := make([]float64, len(preds))
	for i, v := range preds {
		lower[i] = v - 1.96*p.rmse
		upper[i] = v + 1.96*p.rmse
	}

	return &models.PredictionOutput{
		Predictions:      preds,
		Intervals:        &models.PredictionInterval{Lower: lower, Upper: upper},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *StatisticalPredictor) predictRaw(features [][]float64) []float64 {
	switch p.modelType {
	case models.ModelTypeRandomForest:
		preds := make([]float64, len(features))
		for i, row := range features {
			var sum float64
			for _, s := range p.stumps {
				if row[s.featureIndex] <= s.threshold {
					sum += s.leftValue
				} else {
					sum += s.rightValue
				}
			}
			preds[i] = sum / float64(len(p.stumps))
		}
		return preds
	case models.ModelTypeGradientBoosting:
		preds := make([]float64, len(features))
		for i, row := range features {
			var sum float64
			for _, m := range p.boosted {
				sum += p.boostLR * m.predictOne(row)
			}
			preds[i] = sum
		}
		return preds
	default:
		preds := make([]float64, len(features))
		for i, row := range features {
			preds[i] = p.linear.predictOne(row)
		}
		return preds
	}
}

// fitLinear trains by batch gradient descent over standardized features,
// learning rate 0.01 for 1000 iterations.
func fitLinear(features [][]float64, labels []float64) *linearModel {
	n := len(features)
	m := len(features[0])
	means, stds := standardize(features)

	norm := make([][]float64, n)
	for i, row := range features {
		norm[i] = applyStandardization(row, means, stds)
	}

	model := &linearModel{
		weights: make([]float64, m),
		means:   means,
		stds:    stds,
	}

	const learningRate = 0.01
	const iterations = 1000

	errs := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		for i, row := range norm {
			pred := model.bias
			for j, v := range row {
				pred += v * model.weights[j]
			}
			errs[i] = pred - labels[i]
		}

		for j := 0; j < m; j++ {
			var gradient float64
			for i := range norm {
				gradient += errs[i] * norm[i][j]
			}
			model.weights[j] -= (learningRate / float64(n)) * gradient
		}
		var biasGradient float64
		for _, e := range errs {
			biasGradient += e
		}
		model.bias -= (learningRate / float64(n)) * biasGradient
	}
	return model
}

func (m *linearModel) predictOne(row []float64) float64 {
	pred := m.bias
	for j, v := range row {
		pred += ((v - m.means[j]) / m.stds[j]) * m.weights[j]
	}
	return pred
}

// fitStumps builds the bagged decision-stump ensemble: each stump picks a
// random feature and a random observed threshold, predicting the mean label
// of each side.
func fitStumps(features [][]float64, labels []float64, nTrees int, rng *rand.Rand) []decisionStump {
	if nTrees < 1 {
		nTrees = 10
	}
	n := len(features)
	m := len(features[0])
	stumps := make([]decisionStump, 0, nTrees)

	for t := 0; t < nTrees; t++ {
		fi := rng.Intn(m)
		threshold := features[rng.Intn(n)][fi]

		var leftSum, rightSum float64
		var leftCount, rightCount int
		for i, row := range features {
			if row[fi] <= threshold {
				leftSum += labels[i]
				leftCount++
			} else {
				rightSum += labels[i]
				rightCount++
			}
		}

		stump := decisionStump{featureIndex: fi, threshold: threshold}
		if leftCount > 0 {
			stump.leftValue = leftSum / float64(leftCount)
		}
		if rightCount > 0 {
			stump.rightValue = rightSum / float64(rightCount)
		}
		stumps = append(stumps, stump)
	}
	return stumps
}

// fitBoosted fits the residual chain: each linear learner is trained on the
// residual left by the scaled sum of its predecessors.
func fitBoosted(features [][]float64, labels []float64, nEstimators int, lr float64) []*linearModel {
	if nEstimators < 1 {
		nEstimators = 10
	}
	residuals := make([]float64, len(labels))
	copy(residuals, labels)

	estimators := make([]*linearModel, 0, nEstimators)
	for e := 0; e < nEstimators; e++ {
		model := fitLinear(features, residuals)
		estimators = append(estimators, model)
		for i, row := range features {
			residuals[i] -= lr * model.predictOne(row)
		}
	}
	return estimators
}

// stumpImportance approximates per-feature importance by split frequency.
func stumpImportance(stumps []decisionStump) map[string]float64 {
	counts := make(map[int]int)
	for _, s := range stumps {
		counts[s.featureIndex]++
	}
	importance := make(map[string]float64, len(counts))
	for idx, count := range counts {
		importance[fmt.Sprintf("feature_%d", idx)] = float64(count) / float64(len(stumps))
	}
	return importance
}

// boostedImportance aggregates absolute standardized weights across the
// estimator chain.
func boostedImportance(estimators []*linearModel) map[string]float64 {
	if len(estimators) == 0 {
		return nil
	}
	m := len(estimators[0].weights)
	totals := make([]float64, m)
	var grand float64
	for _, est := range estimators {
		for j, w := range est.weights {
			totals[j] += math.Abs(w)
			grand += math.Abs(w)
		}
	}
	if grand == 0 {
		grand = 1
	}
	importance := make(map[string]float64, m)
	for j, t := range totals {
		importance[fmt.Sprintf("feature_%d", j)] = t / grand
	}
	return importance
}

// crossValidate runs simplified k-fold CV with the linear learner and
// returns the per-fold R2 list.
func crossValidate(features [][]float64, labels []float64, k int) []float64 {
	foldSize := len(features) / k
	if foldSize == 0 {
		return nil
	}

	scores := make([]float64, 0, k)
	for i := 0; i < k; i++ {
		testStart := i * foldSize
		testEnd := testStart + foldSize

		trainX := make([][]float64, 0, len(features)-foldSize)
		trainY := make([]float64, 0, len(labels)-foldSize)
		trainX = append(trainX, features[:testStart]...)
		trainX = append(trainX, features[testEnd:]...)
		trainY = append(trainY, labels[:testStart]...)
		trainY = append(trainY, labels[testEnd:]...)

		model := fitLinear(trainX, trainY)
		preds := make([]float64, foldSize)
		for j, row := range features[testStart:testEnd] {
			preds[j] = model.predictOne(row)
		}
		scores = append(scores, regressionMetrics(labels[testStart:testEnd], preds)["r2_score"])
	}
	return scores
}
