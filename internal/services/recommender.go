package services

import (
	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// RuleBasedRecommendations is the deterministic fallback used whenever the
// external recommendation generator is absent or failing. The engine must
// stay fully functional without that collaborator.
func RuleBasedRecommendations(metric models.MetricKind, current float64, analysis models.TrendAnalysis) []string {
	if metric == models.MetricOee {
		return oeeRecommendations(current, analysis)
	}
	return cpkRecommendations(current, analysis)
}

func cpkRecommendations(current float64, analysis models.TrendAnalysis) []string {
	recommendations := make([]string, 0, 4)
	if current < 1.0 {
		recommendations = append(recommendations, "Cpk below 1.0: process does not meet requirements, improve immediately")
	} else if current < 1.33 {
		recommendations = append(recommendations, "Cpk below 1.33: monitor and improve the process")
	}
	if analysis.Trend == models.TrendDown {
		recommendations = append(recommendations, "Downward trend: investigate root cause and apply corrective action")
	}
	if analysis.Volatility > 0.2 {
		recommendations = append(recommendations, "High volatility: stabilize the production process")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Maintain the current process and continue monitoring")
	}
	return recommendations
}

func oeeRecommendations(current float64, analysis models.TrendAnalysis) []string {
	recommendations := make([]string, 0, 4)
	if current < 60 {
		recommendations = append(recommendations, "OEE below 60%: equipment effectiveness needs significant improvement")
	} else if current < 85 {
		recommendations = append(recommendations, "OEE below 85%: improvement opportunity, analyze availability/performance/quality factors")
	}
	if analysis.Trend == models.TrendDown {
		recommendations = append(recommendations, "Downward trend: investigate root cause and apply corrective action")
	}
	if analysis.Volatility > 5 {
		recommendations = append(recommendations, "High volatility: stabilize line operation")
	}
	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Maintain current performance and continue monitoring")
	}
	return recommendations
}
