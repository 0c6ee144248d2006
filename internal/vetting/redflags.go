package vetting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

// CourtRecordsLookup searches dockets for litigation naming the
// organization. It is an optional collaborator: a nil lookup disables
// the court-records rule.
type CourtRecordsLookup interface {
	Check(ctx context.Context, name string) (*model.CourtRecordsResult, error)
}

// RedFlagDetector runs every advisory rule against the profile and
// filing history. It always executes, independent of gate outcome, and
// never short-circuits: each rule is evaluated on its own.
type RedFlagDetector struct {
	cfg       config.RedFlagConfig
	sanctions SanctionsMatcher
	courts    CourtRecordsLookup
}

// NewRedFlagDetector wires the detector. courts may be nil.
func NewRedFlagDetector(cfg config.RedFlagConfig, sanctions SanctionsMatcher, courts CourtRecordsLookup) *RedFlagDetector {
	return &RedFlagDetector{cfg: cfg, sanctions: sanctions, courts: courts}
}

// Detect returns every flag the rules raise, in rule order.
func (d *RedFlagDetector) Detect(ctx context.Context, profile *model.OrganizationProfile, filings []model.FilingSummary, now time.Time) []model.RedFlag {
	var flags []model.RedFlag
	appendFlag := func(f *model.RedFlag) {
		if f != nil {
			flags = append(flags, *f)
		}
	}

	appendFlag(d.staleFiling(profile, now))
	appendFlag(d.overheadRatio(profile))
	appendFlag(d.lowRevenue(profile))
	appendFlag(d.revenueDecline(filings))
	appendFlag(d.tooNew(profile))
	appendFlag(d.officerComp(profile))
	appendFlag(d.courtRecords(ctx, profile))
	appendFlag(d.sanctionsNearMatch(profile))

	return flags
}

func (d *RedFlagDetector) staleFiling(profile *model.OrganizationProfile, now time.Time) *model.RedFlag {
	if profile.Latest990 == nil {
		return nil
	}
	age := now.Year() - profile.Latest990.TaxYear()
	if age <= d.cfg.StaleFilingYears {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityHigh,
		Category: model.FlagStaleFiling,
		Detail:   fmt.Sprintf("latest filing is %d tax years old (tax year %d)", age, profile.Latest990.TaxYear()),
	}
}

// overheadRatio flags both extremes: spending far beyond revenue, and
// deploying too little of it.
func (d *RedFlagDetector) overheadRatio(profile *model.OrganizationProfile) *model.RedFlag {
	if profile.Latest990 == nil || profile.Latest990.OverheadRatio == nil {
		return nil
	}
	ratio := *profile.Latest990.OverheadRatio
	if ratio > d.cfg.OverheadCeiling {
		return &model.RedFlag{
			Severity: model.SeverityHigh,
			Category: model.FlagExcessiveOverhead,
			Detail:   fmt.Sprintf("expenses are %.0f%% of revenue", ratio*100),
		}
	}
	if ratio < d.cfg.DeploymentFloor {
		return &model.RedFlag{
			Severity: model.SeverityMedium,
			Category: model.FlagLowDeployment,
			Detail:   fmt.Sprintf("only %.0f%% of revenue deployed as expenses", ratio*100),
		}
	}
	return nil
}

func (d *RedFlagDetector) lowRevenue(profile *model.OrganizationProfile) *model.RedFlag {
	if profile.Latest990 == nil || profile.Latest990.TotalRevenue >= d.cfg.RevenueFloor {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityMedium,
		Category: model.FlagVeryLowRevenue,
		Detail:   fmt.Sprintf("annual revenue $%.0f below $%.0f", profile.Latest990.TotalRevenue, d.cfg.RevenueFloor),
	}
}

// revenueDecline compares the two most recent filings by tax period.
func (d *RedFlagDetector) revenueDecline(filings []model.FilingSummary) *model.RedFlag {
	if len(filings) < 2 {
		return nil
	}

	sorted := make([]model.FilingSummary, len(filings))
	copy(sorted, filings)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TaxPeriod > sorted[j].TaxPeriod
	})

	recent, prior := sorted[0], sorted[1]
	if prior.TotalRevenue <= 0 {
		return nil
	}
	decline := (prior.TotalRevenue - recent.TotalRevenue) / prior.TotalRevenue
	if decline <= d.cfg.DeclineThreshold {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityMedium,
		Category: model.FlagRevenueDecline,
		Detail: fmt.Sprintf("revenue fell %.0f%% between tax years %d and %d ($%.0f to $%.0f)",
			decline*100, prior.TaxYear(), recent.TaxYear(), prior.TotalRevenue, recent.TotalRevenue),
	}
}

func (d *RedFlagDetector) tooNew(profile *model.OrganizationProfile) *model.RedFlag {
	if profile.TenureYears == nil || *profile.TenureYears >= d.cfg.MinAgeYears {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityMedium,
		Category: model.FlagTooNew,
		Detail:   fmt.Sprintf("organization is %.1f years old, under the %.0f-year floor", *profile.TenureYears, d.cfg.MinAgeYears),
	}
}

// officerComp only runs when the ratio is known; an unknown ratio is not
// evidence of a problem.
func (d *RedFlagDetector) officerComp(profile *model.OrganizationProfile) *model.RedFlag {
	if profile.Latest990 == nil || profile.Latest990.OfficerCompRatio == nil {
		return nil
	}
	ratio := *profile.Latest990.OfficerCompRatio
	switch {
	case ratio > d.cfg.OfficerCompHigh:
		return &model.RedFlag{
			Severity: model.SeverityHigh,
			Category: model.FlagHighOfficerComp,
			Detail:   fmt.Sprintf("officer compensation is %.0f%% of expenses", ratio*100),
		}
	case ratio > d.cfg.OfficerCompModerate:
		return &model.RedFlag{
			Severity: model.SeverityMedium,
			Category: model.FlagHighOfficerComp,
			Detail:   fmt.Sprintf("officer compensation is %.0f%% of expenses", ratio*100),
		}
	default:
		return nil
	}
}

// courtRecords degrades gracefully: a failed or absent docket lookup
// skips the rule rather than failing the run.
func (d *RedFlagDetector) courtRecords(ctx context.Context, profile *model.OrganizationProfile) *model.RedFlag {
	if d.courts == nil {
		return nil
	}

	result, err := d.courts.Check(ctx, profile.Name)
	if err != nil {
		zap.L().Warn("redflags: court records lookup failed",
			zap.String("ein", profile.EIN),
			zap.Error(err),
		)
		return nil
	}
	if result == nil || result.CaseCount == 0 {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityHigh,
		Category: model.FlagCourtRecords,
		Detail:   fmt.Sprintf("%d court case(s) naming the organization", result.CaseCount),
		Cases:    result.Cases,
	}
}

// sanctionsNearMatch surfaces fuzzy hits below the exact-match bar as a
// flag rather than a rejection; approximate matches carry false-positive
// risk. Perfect-similarity hits are omitted since the sanctions gate
// already fails them.
func (d *RedFlagDetector) sanctionsNearMatch(profile *model.OrganizationProfile) *model.RedFlag {
	matches, err := d.sanctions.FuzzyLookup(profile.Name, d.cfg.FuzzyMatchThreshold)
	if err != nil {
		zap.L().Warn("redflags: fuzzy sanctions lookup failed",
			zap.String("ein", profile.EIN),
			zap.Error(err),
		)
		return nil
	}

	var near []string
	for _, m := range matches {
		if m.Similarity >= 1.0 {
			continue
		}
		near = append(near, fmt.Sprintf("#%d %s (%.0f%%)", m.EntityNumber, m.Name, m.Similarity*100))
	}
	if len(near) == 0 {
		return nil
	}
	return &model.RedFlag{
		Severity: model.SeverityHigh,
		Category: model.FlagSanctionsNearMatch,
		Detail:   "possible sanctions list match: " + strings.Join(near, "; "),
	}
}
