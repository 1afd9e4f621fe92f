package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// NeuralPredictor is a multi-layer feed-forward network trained by
// mini-batch gradient descent. Regression uses a linear output with
// mean-squared-error loss; classification uses softmax with cross-entropy.
type NeuralPredictor struct {
	rng *rand.Rand

	// weights[l][i][j] connects node i of layer l to node j of layer l+1.
	weights [][][]float64
	biases  [][]float64

	layerSizes     []int
	classification bool
	numClasses     int
	inputDim       int
	trained        bool
}

// NewNeuralPredictor returns an untrained network. Architecture is fixed at
// Train time from the config and the data shape.
func NewNeuralPredictor(rng *rand.Rand) *NeuralPredictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &NeuralPredictor{rng: rng}
}

var defaultHiddenLayers = []int{64, 32, 16}

// Train fits the network on an 80/20 train/validation split and retains
// per-epoch loss history for diagnostics.
func (p *NeuralPredictor) Train(ctx context.Context, cfg models.ModelConfig, features [][]float64, labels []float64) (*models.TrainingResult, error) {
	start := time.Now()

	if len(features) < 10 {
		return nil, fmt.Errorf("%w: neural training needs at least 10 samples, got %d", models.ErrInsufficientData, len(features))
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("feature/label length mismatch: %d vs %d", len(features), len(labels))
	}

	p.inputDim = len(features[0])
	p.classification = cfg.ModelType == models.ModelTypeClassification

	outputDim := 1
	if p.classification {
		p.numClasses = 2
		for _, l := range labels {
			if c := int(l) + 1; c > p.numClasses {
				p.numClasses = c
			}
		}
		outputDim = p.numClasses
	}

	p.layerSizes = append(append([]int{p.inputDim}, defaultHiddenLayers...), outputDim)
	p.initWeights()

	epochs := int(hyperparameter(cfg, "epochs", 100))
	batchSize := int(hyperparameter(cfg, "batch_size", 32))
	lr := hyperparameter(cfg, "learning_rate", 0.001)
	if batchSize < 1 {
		batchSize = 1
	}

	// 80/20 train/validation split.
	split := len(features) * 8 / 10
	if split < 1 {
		split = 1
	}
	trainX, trainY := features[:split], labels[:split]
	valX, valY := features[split:], labels[split:]

	history := &models.EpochHistory{}
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
		}

		p.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for batchStart := 0; batchStart < len(order); batchStart += batchSize {
			end := batchStart + batchSize
			if end > len(order) {
				end = len(order)
			}
			p.updateBatch(trainX, trainY, order[batchStart:end], lr)
		}

		trainLoss, trainMetric := p.evaluate(trainX, trainY)
		history.Loss = append(history.Loss, trainLoss)
		history.Metric = append(history.Metric, trainMetric)
		if len(valX) > 0 {
			valLoss, valMetric := p.evaluate(valX, valY)
			history.ValLoss = append(history.ValLoss, valLoss)
			history.ValMetric = append(history.ValMetric, valMetric)
		}
	}

	evalX, evalY := valX, valY
	if len(evalX) == 0 {
		evalX, evalY = trainX, trainY
	}
	finalLoss, finalMetric := p.evaluate(evalX, evalY)

	metrics := map[string]float64{"loss": finalLoss}
	if p.classification {
		metrics["accuracy"] = finalMetric
	} else {
		preds := make([]float64, len(evalX))
		for i, row := range evalX {
			preds[i] = p.forward(row)[0]
		}
		for k, v := range regressionMetrics(evalY, preds) {
			metrics[k] = v
		}
	}

	p.trained = true
	return &models.TrainingResult{
		Framework:      models.FrameworkNeural,
		ModelType:      cfg.ModelType,
		Metrics:        metrics,
		TrainingTimeMs: time.Since(start).Milliseconds(),
		EpochHistory:   history,
	}, nil
}

// Predict serves a batch. Classification outputs the argmax class with its
// softmax probability as confidence; regression confidence shrinks with the
// distance of the prediction from the nominal capability target of 1.
func (p *NeuralPredictor) Predict(ctx context.Context, features [][]float64) (*models.PredictionOutput, error) {
	start := time.Now()
	if !p.trained {
		return nil, fmt.Errorf("neural predictor is not trained")
	}

	predictions := make([]float64, len(features))
	confidence := make([]float64, len(features))
	for i, row := range features {
		if len(row) != p.inputDim {
			return nil, fmt.Errorf("feature vector %d has %d values, model expects %d", i, len(row), p.inputDim)
		}
		out := p.forward(row)
		if p.classification {
			best, bestProb := 0, out[0]
			for c, prob := range out {
				if prob > bestProb {
					best, bestProb = c, prob
				}
			}
			predictions[i] = float64(best)
			confidence[i] = bestProb
		} else {
			predictions[i] = out[0]
			confidence[i] = math.Min(1, math.Max(0, 1-math.Abs(out[0]-1)/2))
		}
	}

	return &models.PredictionOutput{
		Predictions:      predictions,
		Confidence:       confidence,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

// initWeights applies He-normal initialization, matched to the ReLU hidden
// layers.
func (p *NeuralPredictor) initWeights() {
	layers := len(p.layerSizes) - 1
	p.weights = make([][][]float64, layers)
	p.biases = make([][]float64, layers)
	for l := 0; l < layers; l++ {
		in, out := p.layerSizes[l], p.layerSizes[l+1]
		scale := math.Sqrt(2.0 / float64(in))
		p.weights[l] = make([][]float64, in)
		for i := 0; i < in; i++ {
			p.weights[l][i] = make([]float64, out)
			for j := 0; j < out; j++ {
				p.weights[l][i][j] = p.rng.NormFloat64() * scale
			}
		}
		p.biases[l] = make([]float64, out)
	}
}

// forward runs one sample through the network and returns the output layer
// (softmax probabilities for classification, raw value for regression).
func (p *NeuralPredictor) forward(input []float64) []float64 {
	activations, _ := p.forwardAll(input)
	return activations[len(activations)-1]
}

// forwardAll returns activations per layer plus pre-activation sums, for
// backpropagation.
func (p *NeuralPredictor) forwardAll(input []float64) (activations [][]float64, sums [][]float64) {
	layers := len(p.weights)
	activations = make([][]float64, layers+1)
	sums = make([][]float64, layers)
	activations[0] = input

	for l := 0; l < layers; l++ {
		out := len(p.biases[l])
		z := make([]float64, out)
		for j := 0; j < out; j++ {
			sum := p.biases[l][j]
			for i, a := range activations[l] {
				sum += a * p.weights[l][i][j]
			}
			z[j] = sum
		}
		sums[l] = z

		a := make([]float64, out)
		if l < layers-1 {
			for j, v := range z {
				if v > 0 {
					a[j] = v
				}
			}
		} else if p.classification {
			copy(a, softmax(z))
		} else {
			copy(a, z)
		}
		activations[l+1] = a
	}
	return activations, sums
}

// updateBatch accumulates gradients over the batch and applies one step.
// The output delta is identical for linear+MSE and softmax+cross-entropy:
// prediction minus target.
func (p *NeuralPredictor) updateBatch(features [][]float64, labels []float64, batch []int, lr float64) {
	layers := len(p.weights)
	gradW := make([][][]float64, layers)
	gradB := make([][]float64, layers)
	for l := 0; l < layers; l++ {
		gradW[l] = make([][]float64, len(p.weights[l]))
		for i := range p.weights[l] {
			gradW[l][i] = make([]float64, len(p.weights[l][i]))
		}
		gradB[l] = make([]float64, len(p.biases[l]))
	}

	for _, idx := range batch {
		activations, sums := p.forwardAll(features[idx])
		output := activations[layers]

		delta := make([]float64, len(output))
		if p.classification {
			target := int(labels[idx])
			for j := range output {
				delta[j] = output[j]
				if j == target {
					delta[j] -= 1
				}
			}
		} else {
			delta[0] = output[0] - labels[idx]
		}

		for l := layers - 1; l >= 0; l-- {
			for i, a := range activations[l] {
				for j := range delta {
					gradW[l][i][j] += a * delta[j]
				}
			}
			for j := range delta {
				gradB[l][j] += delta[j]
			}

			if l > 0 {
				prev := make([]float64, len(activations[l]))
				for i := range prev {
					var sum float64
					for j := range delta {
						sum += p.weights[l][i][j] * delta[j]
					}
					if sums[l-1][i] > 0 {
						prev[i] = sum
					}
				}
				delta = prev
			}
		}
	}

	step := lr / float64(len(batch))
	for l := 0; l < layers; l++ {
		for i := range p.weights[l] {
			for j := range p.weights[l][i] {
				p.weights[l][i][j] -= step * gradW[l][i][j]
			}
		}
		for j := range p.biases[l] {
			p.biases[l][j] -= step * gradB[l][j]
		}
	}
}

// evaluate returns (loss, metric): MSE and R2-like fit for regression,
// cross-entropy and accuracy for classification.
func (p *NeuralPredictor) evaluate(features [][]float64, labels []float64) (loss, metric float64) {
	if len(features) == 0 {
		return 0, 0
	}
	n := float64(len(features))

	if p.classification {
		correct := 0.0
		for i, row := range features {
			out := p.forward(row)
			target := int(labels[i])
			prob := out[target]
			if prob < 1e-12 {
				prob = 1e-12
			}
			loss += -math.Log(prob)
			best, bestProb := 0, out[0]
			for c, pr := range out {
				if pr > bestProb {
					best, bestProb = c, pr
				}
			}
			if best == target {
				correct++
			}
		}
		return loss / n, correct / n
	}

	preds := make([]float64, len(features))
	for i, row := range features {
		preds[i] = p.forward(row)[0]
	}
	m := regressionMetrics(labels, preds)
	return m["mse"], m["r2_score"]
}

func softmax(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z {
		if v > maxZ {
			maxZ = v
		}
	}
	var sum float64
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
