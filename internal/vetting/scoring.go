package vetting

import (
	"fmt"
	"time"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

// Check names, in evaluation order.
const (
	CheckTenure  = "tenure"
	CheckRevenue = "revenue_range"
	CheckRatio   = "operating_ratio"
	CheckRecency = "filing_recency"
)

// ScoringEngine grades the four weighted financial checks. It only runs
// for organizations that cleared every gate. All thresholds come from
// configuration; nothing is hardcoded here.
type ScoringEngine struct {
	cfg config.ScoringConfig
}

func NewScoringEngine(cfg config.ScoringConfig) *ScoringEngine {
	return &ScoringEngine{cfg: cfg}
}

// Evaluate returns the four scored checks and the total score. PASS earns
// the full weight, REVIEW half, FAIL nothing.
func (s *ScoringEngine) Evaluate(profile *model.OrganizationProfile, now time.Time) (float64, []model.ScoredCheck) {
	checks := []model.ScoredCheck{
		s.scoreTenure(profile),
		s.scoreRevenue(profile),
		s.scoreRatio(profile),
		s.scoreRecency(profile, now),
	}

	var total float64
	for i := range checks {
		checks[i].Points = points(checks[i].Outcome, checks[i].Weight)
		total += checks[i].Points
	}
	return total, checks
}

// Recommend maps a score to a recommendation using the configured cutoffs.
func (s *ScoringEngine) Recommend(score float64) model.Recommendation {
	switch {
	case score >= s.cfg.PassCutoff:
		return model.RecommendPass
	case score >= s.cfg.ReviewCutoff:
		return model.RecommendReview
	default:
		return model.RecommendReject
	}
}

func points(outcome model.CheckOutcome, weight float64) float64 {
	switch outcome {
	case model.OutcomePass:
		return weight
	case model.OutcomeReview:
		return weight * 0.5
	default:
		return 0
	}
}

// scoreTenure grades years of operation. Unknown tenure (no ruling date)
// fails: an organization without a determination date has no verifiable
// track record.
func (s *ScoringEngine) scoreTenure(profile *model.OrganizationProfile) model.ScoredCheck {
	check := model.ScoredCheck{Name: CheckTenure, Weight: s.cfg.Weights.Tenure}
	t := s.cfg.Tenure

	if profile.TenureYears == nil {
		check.Outcome = model.OutcomeFail
		check.Detail = "tenure unknown, no ruling date"
		return check
	}

	years := *profile.TenureYears
	switch {
	case years >= t.PassYears:
		check.Outcome = model.OutcomePass
		check.Detail = fmt.Sprintf("%.1f years operating", years)
	case years >= t.ReviewYears:
		check.Outcome = model.OutcomeReview
		check.Detail = fmt.Sprintf("%.1f years operating, below %.0f-year threshold", years, t.PassYears)
	default:
		check.Outcome = model.OutcomeFail
		check.Detail = fmt.Sprintf("only %.1f years operating", years)
	}
	return check
}

// scoreRevenue grades annual revenue against the configured bands. Very
// large organizations land in REVIEW rather than FAIL: scale alone is
// not disqualifying, but it warrants a closer look.
func (s *ScoringEngine) scoreRevenue(profile *model.OrganizationProfile) model.ScoredCheck {
	check := model.ScoredCheck{Name: CheckRevenue, Weight: s.cfg.Weights.Revenue}
	r := s.cfg.Revenue

	if profile.Latest990 == nil {
		check.Outcome = model.OutcomeFail
		check.Detail = "no financial extract on record"
		return check
	}

	rev := profile.Latest990.TotalRevenue
	switch {
	case rev < r.Floor:
		check.Outcome = model.OutcomeFail
		check.Detail = fmt.Sprintf("revenue $%.0f below absolute floor $%.0f", rev, r.Floor)
	case rev >= r.PassMin && rev <= r.PassMax:
		check.Outcome = model.OutcomePass
		check.Detail = fmt.Sprintf("revenue $%.0f within healthy range", rev)
	case rev > r.PassMax && rev <= r.ReviewMax:
		check.Outcome = model.OutcomeReview
		check.Detail = fmt.Sprintf("revenue $%.0f exceeds $%.0f, large-organization review", rev, r.PassMax)
	case rev >= r.ReviewFloor && rev < r.PassMin:
		check.Outcome = model.OutcomeReview
		check.Detail = fmt.Sprintf("revenue $%.0f below $%.0f, small-organization review", rev, r.PassMin)
	default:
		check.Outcome = model.OutcomeFail
		check.Detail = fmt.Sprintf("revenue $%.0f outside all configured bands", rev)
	}
	return check
}

// scoreRatio grades the overhead ratio. A missing ratio is REVIEW, not
// FAIL: insufficient data is not proof of a problem.
func (s *ScoringEngine) scoreRatio(profile *model.OrganizationProfile) model.ScoredCheck {
	check := model.ScoredCheck{Name: CheckRatio, Weight: s.cfg.Weights.Ratio}
	r := s.cfg.Ratio

	if profile.Latest990 == nil || profile.Latest990.OverheadRatio == nil {
		check.Outcome = model.OutcomeReview
		check.Detail = "overhead ratio unavailable"
		return check
	}

	ratio := *profile.Latest990.OverheadRatio
	switch {
	case ratio >= r.PassMin && ratio <= r.PassMax:
		check.Outcome = model.OutcomePass
		check.Detail = fmt.Sprintf("overhead ratio %.2f within healthy band", ratio)
	case (ratio >= r.ReviewMin && ratio < r.PassMin) || (ratio > r.PassMax && ratio <= r.ReviewMax):
		check.Outcome = model.OutcomeReview
		check.Detail = fmt.Sprintf("overhead ratio %.2f outside healthy band", ratio)
	default:
		check.Outcome = model.OutcomeFail
		check.Detail = fmt.Sprintf("overhead ratio %.2f outside all configured bands", ratio)
	}
	return check
}

// scoreRecency grades how old the latest filing is, in tax years.
func (s *ScoringEngine) scoreRecency(profile *model.OrganizationProfile, now time.Time) model.ScoredCheck {
	check := model.ScoredCheck{Name: CheckRecency, Weight: s.cfg.Weights.Recency}
	r := s.cfg.Recency

	if profile.Latest990 == nil {
		check.Outcome = model.OutcomeFail
		check.Detail = "no filing on record"
		return check
	}

	age := now.Year() - profile.Latest990.TaxYear()
	switch {
	case age <= r.PassMaxYears:
		check.Outcome = model.OutcomePass
		check.Detail = fmt.Sprintf("latest filing is %d tax year(s) old", age)
	case age <= r.ReviewMaxYears:
		check.Outcome = model.OutcomeReview
		check.Detail = fmt.Sprintf("latest filing is %d tax year(s) old", age)
	default:
		check.Outcome = model.OutcomeFail
		check.Detail = fmt.Sprintf("latest filing is %d tax year(s) old", age)
	}
	return check
}
