package ml

import (
	"math"
)

// regressionMetrics computes R2, MSE, MAE and RMSE between actuals and
// predictions. R2 is 1 - ssRes/ssTot; when the actuals have no variance the
// fit explains nothing and R2 is 0.
func regressionMetrics(yTrue, yPred []float64) map[string]float64 {
	n := float64(len(yTrue))
	if n == 0 {
		return map[string]float64{"r2_score": 0, "mse": 0, "mae": 0, "rmse": 0}
	}

	var mse, mae, mean float64
	for i, y := range yTrue {
		diff := y - yPred[i]
		mse += diff * diff
		mae += math.Abs(diff)
		mean += y
	}
	mse /= n
	mae /= n
	mean /= n

	var ssRes, ssTot float64
	for i, y := range yTrue {
		ssRes += (y - yPred[i]) * (y - yPred[i])
		ssTot += (y - mean) * (y - mean)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}

	return map[string]float64{
		"r2_score": r2,
		"mse":      mse,
		"mae":      mae,
		"rmse":     math.Sqrt(mse),
	}
}

// standardize computes per-feature means and population standard deviations.
// Zero-variance features get std 1 so the division is a no-op.
func standardize(features [][]float64) (means, stds []float64) {
	if len(features) == 0 {
		return nil, nil
	}
	n := float64(len(features))
	m := len(features[0])
	means = make([]float64, m)
	stds = make([]float64, m)

	for j := 0; j < m; j++ {
		for i := range features {
			means[j] += features[i][j]
		}
		means[j] /= n
		for i := range features {
			d := features[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

// applyStandardization maps one feature vector into standardized space.
func applyStandardization(row, means, stds []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - means[j]) / stds[j]
	}
	return out
}
