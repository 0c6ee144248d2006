package vetting

import (
	"fmt"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// buildSummary renders the human-readable summary attached to every
// result: a headline, a one-line justification, the signed factor list,
// and suggested next steps for the reviewer.
func buildSummary(result *model.VettingResult) model.Summary {
	summary := model.Summary{
		Headline:      headline(result),
		Justification: justification(result),
	}

	for _, gate := range result.Gates.Gates {
		summary.Factors = append(summary.Factors, model.SummaryFactor{
			Positive: gate.Passed,
			Text:     gate.Detail,
		})
	}
	for _, check := range result.Checks {
		summary.Factors = append(summary.Factors, model.SummaryFactor{
			Positive: check.Outcome == model.OutcomePass,
			Text:     check.Detail,
		})
	}
	for _, flag := range result.RedFlags {
		summary.Factors = append(summary.Factors, model.SummaryFactor{
			Positive: false,
			Text:     flag.Detail,
		})
	}

	summary.NextSteps = nextSteps(result)
	return summary
}

func headline(result *model.VettingResult) string {
	switch result.Recommendation {
	case model.RecommendPass:
		return fmt.Sprintf("%s cleared automated vetting", result.Name)
	case model.RecommendReview:
		return fmt.Sprintf("%s needs manual review", result.Name)
	default:
		return fmt.Sprintf("%s did not clear automated vetting", result.Name)
	}
}

func justification(result *model.VettingResult) string {
	if result.GateBlocked {
		return fmt.Sprintf("failed eligibility gate %q", result.Gates.BlockingGate)
	}
	score := 0.0
	if result.Score != nil {
		score = *result.Score
	}
	if len(result.RedFlags) > 0 {
		return fmt.Sprintf("scored %.0f/100 with %d red flag(s)", score, len(result.RedFlags))
	}
	return fmt.Sprintf("scored %.0f/100 with no red flags", score)
}

func nextSteps(result *model.VettingResult) []string {
	var steps []string

	if result.GateBlocked {
		switch result.Gates.BlockingGate {
		case GateVerified501c3:
			steps = append(steps, "confirm tax-exempt status directly with the IRS exempt organizations database")
		case GateSanctions:
			steps = append(steps, "escalate to compliance: exact sanctions list match requires manual clearance")
		case GateFiling:
			steps = append(steps, "request the organization's most recent Form 990 directly")
		case GatePortfolio:
			steps = append(steps, "review portfolio policy scope or add the EIN to the inclusion list")
		}
	}

	for _, flag := range result.RedFlags {
		if flag.Severity == model.SeverityHigh {
			steps = append(steps, fmt.Sprintf("investigate %s finding before funding", flag.Category))
		}
	}

	if len(steps) == 0 && result.Recommendation == model.RecommendReview {
		steps = append(steps, "manual review of borderline financial checks")
	}
	return steps
}
