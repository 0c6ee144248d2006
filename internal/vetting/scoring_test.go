package vetting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Tenure:  config.TenureThresholds{PassYears: 3, ReviewYears: 1},
		Revenue: config.RevenueThresholds{Floor: 25000, ReviewFloor: 50000, PassMin: 100000, PassMax: 10000000, ReviewMax: 50000000},
		Ratio:   config.RatioThresholds{PassMin: 0.65, PassMax: 1.1, ReviewMin: 0.4, ReviewMax: 1.5},
		Recency: config.RecencyThresholds{PassMaxYears: 2, ReviewMaxYears: 4},
		Weights: config.CheckWeights{Tenure: 20, Revenue: 30, Ratio: 25, Recency: 25},

		PassCutoff:   75,
		ReviewCutoff: 50,
	}
}

var scoringNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func healthyProfile() *model.OrganizationProfile {
	tenure := 12.0
	ratio := 0.9
	return &model.OrganizationProfile{
		EIN:         "131234567",
		Name:        "Community Food Bank",
		TenureYears: &tenure,
		Latest990: &model.FilingSummary{
			TaxPeriod:     202512,
			TotalRevenue:  500000,
			OverheadRatio: &ratio,
		},
		FilingCount: 5,
	}
}

func findCheck(t *testing.T, checks []model.ScoredCheck, name string) model.ScoredCheck {
	t.Helper()
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return model.ScoredCheck{}
}

func TestScoringHealthyProfileFullMarks(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	score, checks := engine.Evaluate(healthyProfile(), scoringNow)

	assert.InDelta(t, 100, score, 0.001)
	require.Len(t, checks, 4)
	for _, c := range checks {
		assert.Equal(t, model.OutcomePass, c.Outcome, c.Name)
		assert.InDelta(t, c.Weight, c.Points, 0.001, c.Name)
	}
	assert.Equal(t, model.RecommendPass, engine.Recommend(score))
}

func TestScoringWeightsAndBounds(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	profiles := []*model.OrganizationProfile{
		healthyProfile(),
		{EIN: "1", Name: "Empty"},
		{EIN: "2", Name: "Partial", Latest990: &model.FilingSummary{TaxPeriod: 201912, TotalRevenue: 30000}},
	}
	for _, p := range profiles {
		score, checks := engine.Evaluate(p, scoringNow)

		var weightSum float64
		for _, c := range checks {
			weightSum += c.Weight
		}
		assert.InDelta(t, 100, weightSum, 0.001)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 100.0)
	}
}

func TestScoringTenure(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	tests := []struct {
		name   string
		tenure *float64
		want   model.CheckOutcome
	}{
		{"established", f(10), model.OutcomePass},
		{"at pass threshold", f(3), model.OutcomePass},
		{"young", f(2), model.OutcomeReview},
		{"brand new", f(0.5), model.OutcomeFail},
		{"unknown tenure fails", nil, model.OutcomeFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := healthyProfile()
			profile.TenureYears = tt.tenure
			_, checks := engine.Evaluate(profile, scoringNow)
			assert.Equal(t, tt.want, findCheck(t, checks, CheckTenure).Outcome)
		})
	}
}

func TestScoringRevenue(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	tests := []struct {
		name    string
		revenue float64
		want    model.CheckOutcome
	}{
		{"below absolute floor", 10000, model.OutcomeFail},
		{"small org review band", 60000, model.OutcomeReview},
		{"healthy", 500000, model.OutcomePass},
		{"at pass min", 100000, model.OutcomePass},
		{"at pass max", 10000000, model.OutcomePass},
		{"large org review not fail", 48000000, model.OutcomeReview},
		{"beyond review max", 60000000, model.OutcomeFail},
		{"dead zone between floors", 30000, model.OutcomeFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := healthyProfile()
			profile.Latest990.TotalRevenue = tt.revenue
			_, checks := engine.Evaluate(profile, scoringNow)
			assert.Equal(t, tt.want, findCheck(t, checks, CheckRevenue).Outcome)
		})
	}
}

func TestScoringRevenueNoFiling(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	profile := healthyProfile()
	profile.Latest990 = nil
	_, checks := engine.Evaluate(profile, scoringNow)
	assert.Equal(t, model.OutcomeFail, findCheck(t, checks, CheckRevenue).Outcome)
}

func TestScoringRatio(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	tests := []struct {
		name  string
		ratio *float64
		want  model.CheckOutcome
	}{
		{"healthy band", f(0.9), model.OutcomePass},
		{"low review band", f(0.5), model.OutcomeReview},
		{"high review band", f(1.3), model.OutcomeReview},
		{"hoarding", f(0.2), model.OutcomeFail},
		{"burning reserves", f(2.0), model.OutcomeFail},
		{"unknown ratio is review not fail", nil, model.OutcomeReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := healthyProfile()
			profile.Latest990.OverheadRatio = tt.ratio
			_, checks := engine.Evaluate(profile, scoringNow)
			assert.Equal(t, tt.want, findCheck(t, checks, CheckRatio).Outcome)
		})
	}
}

func TestScoringRecency(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	tests := []struct {
		name      string
		taxPeriod int
		want      model.CheckOutcome
	}{
		{"current", 202512, model.OutcomePass},
		{"two years old", 202412, model.OutcomePass},
		{"three years old", 202312, model.OutcomeReview},
		{"five years old", 202112, model.OutcomeFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := healthyProfile()
			profile.Latest990.TaxPeriod = tt.taxPeriod
			_, checks := engine.Evaluate(profile, scoringNow)
			assert.Equal(t, tt.want, findCheck(t, checks, CheckRecency).Outcome)
		})
	}
}

func TestRecommendCutoffs(t *testing.T) {
	engine := NewScoringEngine(testScoringConfig())

	assert.Equal(t, model.RecommendPass, engine.Recommend(75))
	assert.Equal(t, model.RecommendReview, engine.Recommend(74.9))
	assert.Equal(t, model.RecommendReview, engine.Recommend(50))
	assert.Equal(t, model.RecommendReject, engine.Recommend(49.9))
}

func f(v float64) *float64 { return &v }
