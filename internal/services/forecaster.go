package services

import (
	"context"
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/cache"
	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// Trend classification thresholds per metric scale: Cpk moves in hundredths,
// OEE is percentage-scale.
const (
	CpkTrendThreshold = 0.01
	OeeTrendThreshold = 0.5
)

const (
	// DefaultSmoothingFactor is the exponential smoothing alpha.
	DefaultSmoothingFactor = 0.3
	// MaxForecastHorizonDays bounds caller-supplied horizons.
	MaxForecastHorizonDays = 30

	forecastLookbackDays = 60
	summaryLookbackDays  = 30

	// chartEmaPeriod is the EMA window for the smoothed chart overlay.
	chartEmaPeriod = 7
)

// LinearRegression fits ordinary least squares over index-as-x. Fewer than
// two points yields a degenerate zero-slope fit rather than an error.
func LinearRegression(series []models.HistoricalDataPoint) models.RegressionFit {
	n := len(series)
	if n < 2 {
		fit := models.RegressionFit{}
		if n == 1 {
			fit.Intercept = series[0].Value
		}
		return fit
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range series {
		x := float64(i)
		sumX += x
		sumY += p.Value
		sumXY += x * p.Value
		sumXX += x * x
	}

	fn := float64(n)
	slope := (fn*sumXY - sumX*sumY) / (fn*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssTotal, ssResidual float64
	for i, p := range series {
		ssTotal += (p.Value - meanY) * (p.Value - meanY)
		residual := p.Value - (slope*float64(i) + intercept)
		ssResidual += residual * residual
	}
	rSquared := 0.0
	if ssTotal > 0 {
		rSquared = 1 - ssResidual/ssTotal
	}

	return models.RegressionFit{Slope: slope, Intercept: intercept, RSquared: rSquared}
}

// Volatility is the population standard deviation of the raw values.
func Volatility(series []models.HistoricalDataPoint) float64 {
	if len(series) < 2 {
		return 0
	}
	var mean float64
	for _, p := range series {
		mean += p.Value
	}
	mean /= float64(len(series))

	var variance float64
	for _, p := range series {
		variance += (p.Value - mean) * (p.Value - mean)
	}
	return math.Sqrt(variance / float64(len(series)))
}

// Forecast applies exponential smoothing across the full series, adds the
// regression trend term per step, and widens the confidence half-width as
// 1.96 * volatility * sqrt(step). Confidence decreases linearly per step,
// floored at 0.5. Metric values are non-negative so predictions and lower
// bounds are floored at 0. An empty series yields no predictions.
func Forecast(series []models.HistoricalDataPoint, alpha float64, horizonDays int) []models.PredictionResult {
	if len(series) == 0 {
		return nil
	}
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothingFactor
	}
	if horizonDays < 1 {
		horizonDays = 1
	}
	if horizonDays > MaxForecastHorizonDays {
		horizonDays = MaxForecastHorizonDays
	}

	smoothed := series[0].Value
	for _, p := range series[1:] {
		smoothed = alpha*p.Value + (1-alpha)*smoothed
	}

	regression := LinearRegression(series)
	volatility := Volatility(series)
	lastDate := series[len(series)-1].Timestamp

	predictions := make([]models.PredictionResult, 0, horizonDays)
	for i := 1; i <= horizonDays; i++ {
		predicted := smoothed + regression.Slope*float64(i)
		halfWidth := 1.96 * volatility * math.Sqrt(float64(i))

		predictions = append(predictions, models.PredictionResult{
			Date:           lastDate.AddDate(0, 0, i),
			PredictedValue: math.Max(0, predicted),
			LowerBound:     math.Max(0, predicted-halfWidth),
			UpperBound:     math.Max(0, predicted) + halfWidth,
			Confidence:     math.Max(0.5, 1-float64(i)*0.05),
		})
	}
	return predictions
}

// ClassifyTrend maps a regression slope to a direction. Thresholds differ by
// metric scale, so callers supply the one appropriate to their metric.
func ClassifyTrend(slope, upThreshold, downThreshold float64) models.TrendDirection {
	switch {
	case slope > upThreshold:
		return models.TrendUp
	case slope < downThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

// SmoothedChartSeries computes an EMA overlay of the raw values for chart
// rendering alongside forecasts.
func SmoothedChartSeries(values []float64, period int) []float64 {
	if len(values) < period || period < 1 {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
}

// Forecaster runs the full forecast pipeline: cached history read, smoothing
// forecast, trend classification and recommendations.
type Forecaster struct {
	history     models.MetricHistoryReader
	cache       *cache.ForecastCache
	recommender models.RecommendationGenerator
	logger      *logrus.Logger
}

// NewForecaster wires the pipeline. cache and recommender may be nil: the
// forecaster recomputes uncached and falls back to rule-based suggestions.
func NewForecaster(history models.MetricHistoryReader, fc *cache.ForecastCache, recommender models.RecommendationGenerator, logger *logrus.Logger) *Forecaster {
	if logger == nil {
		logger = logrus.New()
	}
	return &Forecaster{
		history:     history,
		cache:       fc,
		recommender: recommender,
		logger:      logger,
	}
}

// trendThreshold returns the classification threshold for a metric kind.
func trendThreshold(metric models.MetricKind) float64 {
	if metric == models.MetricOee {
		return OeeTrendThreshold
	}
	return CpkTrendThreshold
}

// PredictMetricTrend forecasts one entity's metric trajectory. Sparse or
// missing history degrades to a zeroed stable result; forecasting never
// hard-fails on thin data.
func (f *Forecaster) PredictMetricTrend(ctx context.Context, metric models.MetricKind, entityKey string, horizonDays int) (*models.MetricForecast, error) {
	if horizonDays < 1 {
		horizonDays = 7
	}
	if horizonDays > MaxForecastHorizonDays {
		horizonDays = MaxForecastHorizonDays
	}

	if f.cache != nil {
		if cached, ok := f.cache.GetForecast(ctx, entityKey, forecastLookbackDays, horizonDays); ok {
			return cached, nil
		}
	}

	series, err := f.readHistory(ctx, entityKey, forecastLookbackDays)
	if err != nil {
		f.logger.WithError(err).WithField("entity_key", entityKey).Warn("History read failed, returning degenerate forecast")
		series = nil
	}

	if len(series) == 0 {
		return &models.MetricForecast{
			EntityKey: entityKey,
			Metric:    metric,
			Trend:     models.TrendAnalysis{Trend: models.TrendStable},
			Recommendations: []string{
				"No historical data available for forecasting; collect more data first",
			},
		}, nil
	}

	current := series[len(series)-1].Value
	predictions := Forecast(series, DefaultSmoothingFactor, horizonDays)
	regression := LinearRegression(series)
	volatility := Volatility(series)

	threshold := trendThreshold(metric)
	analysis := models.TrendAnalysis{
		Trend:      ClassifyTrend(regression.Slope, threshold, -threshold),
		Slope:      regression.Slope,
		RSquared:   regression.RSquared,
		Volatility: volatility,
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}

	forecast := &models.MetricForecast{
		EntityKey:       entityKey,
		Metric:          metric,
		CurrentValue:    current,
		HistoricalData:  series,
		SmoothedSeries:  SmoothedChartSeries(values, chartEmaPeriod),
		Predictions:     predictions,
		Trend:           analysis,
		Recommendations: f.recommendations(ctx, metric, current, analysis, predictions),
		Confidence:      math.Min(0.95, regression.RSquared+0.3),
	}

	if f.cache != nil {
		f.cache.SetForecast(ctx, entityKey, forecastLookbackDays, horizonDays, forecast)
	}
	return forecast, nil
}

// RefreshMetricTrend drops any memoized forecast and history window for the
// entity before recomputing, so callers get a forecast built from the
// current store contents.
func (f *Forecaster) RefreshMetricTrend(ctx context.Context, metric models.MetricKind, entityKey string, horizonDays int) (*models.MetricForecast, error) {
	if horizonDays < 1 {
		horizonDays = 7
	}
	if horizonDays > MaxForecastHorizonDays {
		horizonDays = MaxForecastHorizonDays
	}
	if f.cache != nil {
		f.cache.Invalidate(ctx, entityKey, forecastLookbackDays, horizonDays)
	}
	return f.PredictMetricTrend(ctx, metric, entityKey, horizonDays)
}

// readHistory memoizes history reads through the cache when configured.
func (f *Forecaster) readHistory(ctx context.Context, entityKey string, lookbackDays int) ([]models.HistoricalDataPoint, error) {
	if f.cache != nil {
		if series, ok := f.cache.GetHistory(ctx, entityKey, lookbackDays); ok {
			return series, nil
		}
	}
	series, err := f.history.GetHistory(ctx, entityKey, lookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to read metric history: %w", err)
	}
	if f.cache != nil {
		f.cache.SetHistory(ctx, entityKey, lookbackDays, series)
	}
	return series, nil
}

// recommendations asks the external generator, falling back to deterministic
// rule-based suggestions when it is absent or failing.
func (f *Forecaster) recommendations(ctx context.Context, metric models.MetricKind, current float64, analysis models.TrendAnalysis, predictions []models.PredictionResult) []string {
	avgPredicted := current
	if len(predictions) > 0 {
		var sum float64
		for _, p := range predictions {
			sum += p.PredictedValue
		}
		avgPredicted = sum / float64(len(predictions))
	}

	if f.recommender != nil {
		suggestions, err := f.recommender.Generate(ctx, models.ForecastNumericSummary{
			Metric:       metric,
			CurrentValue: current,
			AvgPredicted: avgPredicted,
			Trend:        analysis.Trend,
			Volatility:   analysis.Volatility,
			RSquared:     analysis.RSquared,
		})
		if err == nil && len(suggestions) > 0 {
			return suggestions
		}
		if err != nil {
			f.logger.WithError(err).Debug("Recommendation generator unavailable, using rule-based fallback")
		}
	}

	return RuleBasedRecommendations(metric, current, analysis)
}

// PredictionSummary is the dashboard view: recent Cpk and OEE trends,
// average confidence and threshold alerts. Store outages degrade to zeroed
// defaults so dashboards keep rendering.
func (f *Forecaster) PredictionSummary(ctx context.Context) (*models.ForecastSummary, error) {
	cpkSeries, cpkErr := f.readHistory(ctx, string(models.MetricCpk), summaryLookbackDays)
	oeeSeries, oeeErr := f.readHistory(ctx, string(models.MetricOee), summaryLookbackDays)
	if cpkErr != nil && oeeErr != nil {
		f.logger.WithFields(logrus.Fields{
			"cpk_error": cpkErr,
			"oee_error": oeeErr,
		}).Warn("Metric history unavailable, returning empty summary")
		return &models.ForecastSummary{
			CpkTrend: models.TrendStable,
			OeeTrend: models.TrendStable,
			Alerts:   []models.ForecastAlert{},
		}, nil
	}

	cpkFit := LinearRegression(cpkSeries)
	oeeFit := LinearRegression(oeeSeries)
	cpkTrend := ClassifyTrend(cpkFit.Slope, CpkTrendThreshold, -CpkTrendThreshold)
	oeeTrend := ClassifyTrend(oeeFit.Slope, OeeTrendThreshold, -OeeTrendThreshold)

	alerts := make([]models.ForecastAlert, 0, 4)
	if avg, ok := seriesAverage(cpkSeries); ok {
		if avg < 1.0 {
			alerts = append(alerts, models.ForecastAlert{Type: "cpk", Message: "Average Cpk below 1.0 - process improvement required", Severity: "high"})
		} else if avg < 1.33 {
			alerts = append(alerts, models.ForecastAlert{Type: "cpk", Message: "Average Cpk below 1.33 - monitor closely", Severity: "medium"})
		}
	}
	if avg, ok := seriesAverage(oeeSeries); ok {
		if avg < 60 {
			alerts = append(alerts, models.ForecastAlert{Type: "oee", Message: "Average OEE below 60% - significant improvement needed", Severity: "high"})
		} else if avg < 85 {
			alerts = append(alerts, models.ForecastAlert{Type: "oee", Message: "Average OEE below 85% - improvement opportunity", Severity: "medium"})
		}
	}
	if cpkTrend == models.TrendDown {
		alerts = append(alerts, models.ForecastAlert{Type: "trend", Message: "Cpk trend is declining", Severity: "medium"})
	}
	if oeeTrend == models.TrendDown {
		alerts = append(alerts, models.ForecastAlert{Type: "trend", Message: "OEE trend is declining", Severity: "medium"})
	}

	return &models.ForecastSummary{
		TotalObservations: len(cpkSeries) + len(oeeSeries),
		AvgConfidence:     math.Min(0.9, (cpkFit.RSquared+oeeFit.RSquared)/2+0.3),
		CpkTrend:          cpkTrend,
		OeeTrend:          oeeTrend,
		Alerts:            alerts,
	}, nil
}

func seriesAverage(series []models.HistoricalDataPoint) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range series {
		sum += p.Value
	}
	return sum / float64(len(series)), true
}
