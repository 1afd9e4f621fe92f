package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// versionTrendThreshold is the ±% improvement band outside which a version
// trajectory stops being "stable".
const versionTrendThreshold = 5.0

// VersionComparator ranks model versions by realized accuracy computed from
// the verified prediction-history log. Nothing here is persisted; every
// metric is recomputed per query.
type VersionComparator struct {
	versions    models.VersionStore
	predictions models.PredictionHistoryStore
	logger      *logrus.Logger
}

// NewVersionComparator wires the comparator over the persisted stores.
func NewVersionComparator(versions models.VersionStore, predictions models.PredictionHistoryStore, logger *logrus.Logger) *VersionComparator {
	if logger == nil {
		logger = logrus.New()
	}
	return &VersionComparator{versions: versions, predictions: predictions, logger: logger}
}

// GetVersionAccuracyMetrics computes MAE/RMSE/MAPE and the confidence
// hit-rate from a version's verified prediction rows. With zero verified
// rows the error metrics stay zero while the stored accuracy is kept, so
// "no data yet" is distinguishable from "bad model".
func (c *VersionComparator) GetVersionAccuracyMetrics(ctx context.Context, modelID, versionID string, dr *models.DateRange) (*models.VersionAccuracyMetrics, error) {
	version, err := c.findVersion(ctx, modelID, versionID)
	if err != nil {
		return nil, err
	}

	rows, err := c.predictions.QueryByVersion(ctx, modelID, versionID, dr)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction history: %w", err)
	}

	metrics := &models.VersionAccuracyMetrics{
		VersionID:        versionID,
		VersionNumber:    version.VersionNumber,
		TotalPredictions: len(rows),
		Accuracy:         version.Accuracy,
		DeployedAt:       version.DeployedAt,
		IsActive:         version.IsActive,
	}

	var sumAbs, sumSq, sumPct float64
	var verified, withinConfidence int
	for _, row := range rows {
		if row.Status != "verified" {
			continue
		}
		verified++
		sumAbs += row.AbsoluteError
		sumSq += row.SquaredError
		sumPct += row.PercentError
		if row.IsWithinConfidence {
			withinConfidence++
		}
	}
	metrics.VerifiedPredictions = verified
	if verified == 0 {
		return metrics, nil
	}

	n := float64(verified)
	metrics.MAE = sumAbs / n
	metrics.RMSE = math.Sqrt(sumSq / n)
	metrics.MAPE = sumPct / n
	metrics.WithinConfidenceRate = float64(withinConfidence) / n * 100
	return metrics, nil
}

func (c *VersionComparator) findVersion(ctx context.Context, modelID, versionID string) (*models.ModelVersion, error) {
	versions, err := c.versions.ListVersions(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	for i := range versions {
		if versions[i].VersionID == versionID {
			return &versions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: version %s of model %s", models.ErrModelNotFound, versionID, modelID)
}

// CompareModelVersions computes metrics for every version of a model, picks
// the lowest-MAE version among those with verified data as best, and reports
// the MAE improvement available when the active version is not the best.
func (c *VersionComparator) CompareModelVersions(ctx context.Context, modelID string, dr *models.DateRange) (*models.VersionComparison, error) {
	versions, err := c.versions.ListVersions(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: no versions for model %s", models.ErrModelNotFound, modelID)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNumber < versions[j].VersionNumber })

	// Preallocate so the best/active pointers below stay valid across appends.
	comparison := &models.VersionComparison{
		ModelID:  modelID,
		Versions: make([]models.VersionAccuracyMetrics, 0, len(versions)),
	}
	var best *models.VersionAccuracyMetrics
	var active *models.VersionAccuracyMetrics

	for _, v := range versions {
		metrics, err := c.GetVersionAccuracyMetrics(ctx, modelID, v.VersionID, dr)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"model_id":   modelID,
				"version_id": v.VersionID,
			}).Warn("Skipping version with unreadable metrics")
			continue
		}
		comparison.Versions = append(comparison.Versions, *metrics)

		idx := len(comparison.Versions) - 1
		if metrics.IsActive {
			active = &comparison.Versions[idx]
		}
		if metrics.VerifiedPredictions > 0 && (best == nil || metrics.MAE < best.MAE) {
			best = &comparison.Versions[idx]
		}
	}

	if best != nil {
		comparison.BestVersion = &models.BestVersion{
			VersionID:     best.VersionID,
			VersionNumber: best.VersionNumber,
			Reason:        "lowest mean absolute error among versions with verified data",
		}
		if active != nil && active.VersionID != best.VersionID && active.VerifiedPredictions > 0 && active.MAE > 0 {
			comparison.ImprovementPercent = (active.MAE - best.MAE) / active.MAE * 100
			comparison.SwitchRecommended = comparison.ImprovementPercent > 0
		}
	}

	comparison.Chart = buildComparisonChart(comparison.Versions)
	return comparison, nil
}

func buildComparisonChart(versions []models.VersionAccuracyMetrics) models.ComparisonChart {
	chart := models.ComparisonChart{
		Labels: make([]string, len(versions)),
		Datasets: []models.ComparisonDataset{
			{Label: "MAE", Metric: "mae", Data: make([]float64, len(versions))},
			{Label: "RMSE", Metric: "rmse", Data: make([]float64, len(versions))},
			{Label: "MAPE", Metric: "mape", Data: make([]float64, len(versions))},
			{Label: "Within Confidence %", Metric: "within_confidence_rate", Data: make([]float64, len(versions))},
		},
	}
	for i, v := range versions {
		chart.Labels[i] = fmt.Sprintf("v%d", v.VersionNumber)
		chart.Datasets[0].Data[i] = v.MAE
		chart.Datasets[1].Data[i] = v.RMSE
		chart.Datasets[2].Data[i] = v.MAPE
		chart.Datasets[3].Data[i] = v.WithinConfidenceRate
	}
	return chart
}

// CompareMultipleModels runs the single-model comparison per id and finds
// the globally best (model, version) pair by lowest MAE.
func (c *VersionComparator) CompareMultipleModels(ctx context.Context, modelIDs []string, dr *models.DateRange) (*models.MultiModelComparison, error) {
	result := &models.MultiModelComparison{}
	var maes []float64

	for _, id := range modelIDs {
		comparison, err := c.CompareModelVersions(ctx, id, dr)
		if err != nil {
			c.logger.WithError(err).WithField("model_id", id).Warn("Skipping model in multi-model comparison")
			continue
		}
		result.Models = append(result.Models, *comparison)

		for _, v := range comparison.Versions {
			if v.VerifiedPredictions == 0 {
				continue
			}
			maes = append(maes, v.MAE)
			if result.OverallBest == nil || v.MAE < result.OverallBest.MAE {
				result.OverallBest = &models.OverallBest{
					ModelID:       id,
					VersionID:     v.VersionID,
					VersionNumber: v.VersionNumber,
					MAE:           v.MAE,
				}
			}
		}
	}

	result.Summary = summarizeMAEs(len(result.Models), maes)
	return result, nil
}

func summarizeMAEs(totalModels int, maes []float64) models.ComparisonSummary {
	summary := models.ComparisonSummary{
		TotalModels:   totalModels,
		TotalVersions: len(maes),
	}
	if len(maes) == 0 {
		return summary
	}
	summary.BestMAE = maes[0]
	summary.WorstMAE = maes[0]
	var sum float64
	for _, m := range maes {
		sum += m
		if m < summary.BestMAE {
			summary.BestMAE = m
		}
		if m > summary.WorstMAE {
			summary.WorstMAE = m
		}
	}
	summary.AvgMAE = sum / float64(len(maes))
	return summary
}

// GetAllModelsAccuracySummary is the registry-wide health view: one row per
// model with its active version's stored accuracy and version count.
func (c *VersionComparator) GetAllModelsAccuracySummary(ctx context.Context, modelIDs []string) ([]models.ModelAccuracySummary, error) {
	out := make([]models.ModelAccuracySummary, 0, len(modelIDs))
	for _, id := range modelIDs {
		versions, err := c.versions.ListVersions(ctx, id)
		if err != nil {
			c.logger.WithError(err).WithField("model_id", id).Warn("Skipping model in accuracy summary")
			continue
		}
		row := models.ModelAccuracySummary{ModelID: id, TotalVersions: len(versions)}
		for _, v := range versions {
			if v.IsActive {
				row.ActiveVersion = v.VersionID
				row.Accuracy = v.Accuracy
				break
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// GetVersionAccuracyTrend orders versions by number and classifies the
// trajectory by the MAE improvement rate between the first and last version
// with verified data.
func (c *VersionComparator) GetVersionAccuracyTrend(ctx context.Context, modelID string, limit int) (*models.VersionTrend, error) {
	versions, err := c.versions.ListVersions(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: no versions for model %s", models.ErrModelNotFound, modelID)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNumber < versions[j].VersionNumber })
	if limit > 0 && len(versions) > limit {
		versions = versions[len(versions)-limit:]
	}

	trend := &models.VersionTrend{ModelID: modelID, Direction: "stable"}
	var withData []models.VersionTrendPoint
	for _, v := range versions {
		metrics, err := c.GetVersionAccuracyMetrics(ctx, modelID, v.VersionID, nil)
		if err != nil {
			return nil, err
		}
		point := models.VersionTrendPoint{
			VersionID:     v.VersionID,
			VersionNumber: v.VersionNumber,
			Accuracy:      metrics.Accuracy,
			MAE:           metrics.MAE,
			IsActive:      v.IsActive,
		}
		trend.Trend = append(trend.Trend, point)
		if metrics.VerifiedPredictions > 0 {
			withData = append(withData, point)
		}
	}

	if len(withData) >= 2 {
		firstMae := withData[0].MAE
		lastMae := withData[len(withData)-1].MAE
		if firstMae != 0 {
			trend.ImprovementRate = (firstMae - lastMae) / firstMae * 100
		}
		switch {
		case trend.ImprovementRate > versionTrendThreshold:
			trend.Direction = "improving"
		case trend.ImprovementRate < -versionTrendThreshold:
			trend.Direction = "declining"
		}
	}
	return trend, nil
}
