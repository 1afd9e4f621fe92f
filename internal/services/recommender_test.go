package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

func TestRuleBasedRecommendations_Cpk(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		analysis models.TrendAnalysis
		want     int
		contains string
	}{
		{"critical capability", 0.9, models.TrendAnalysis{Trend: models.TrendStable}, 1, "below 1.0"},
		{"marginal capability", 1.2, models.TrendAnalysis{Trend: models.TrendStable}, 1, "below 1.33"},
		{"declining and volatile", 1.5, models.TrendAnalysis{Trend: models.TrendDown, Volatility: 0.3}, 2, "Downward trend"},
		{"healthy process", 1.8, models.TrendAnalysis{Trend: models.TrendUp}, 1, "Maintain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := RuleBasedRecommendations(models.MetricCpk, tt.current, tt.analysis)
			require.Len(t, recs, tt.want)

			found := false
			for _, r := range recs {
				if strings.Contains(r, tt.contains) {
					found = true
				}
			}
			assert.True(t, found, "expected a recommendation mentioning %q", tt.contains)
		})
	}
}

func TestRuleBasedRecommendations_Oee(t *testing.T) {
	recs := RuleBasedRecommendations(models.MetricOee, 55, models.TrendAnalysis{Trend: models.TrendDown, Volatility: 8})
	assert.Len(t, recs, 3)

	recs = RuleBasedRecommendations(models.MetricOee, 92, models.TrendAnalysis{Trend: models.TrendStable})
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "Maintain")
}
