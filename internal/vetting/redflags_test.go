package vetting

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

type fakeCourts struct {
	result *model.CourtRecordsResult
	err    error
}

func (f *fakeCourts) Check(context.Context, string) (*model.CourtRecordsResult, error) {
	return f.result, f.err
}

func testFlagConfig() config.RedFlagConfig {
	return config.RedFlagConfig{
		StaleFilingYears:    3,
		OverheadCeiling:     1.5,
		DeploymentFloor:     0.5,
		RevenueFloor:        50000,
		DeclineThreshold:    0.20,
		MinAgeYears:         2,
		OfficerCompHigh:     0.30,
		OfficerCompModerate: 0.15,
		FuzzyMatchThreshold: 0.85,
	}
}

var flagNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func newDetector(courts CourtRecordsLookup) *RedFlagDetector {
	return NewRedFlagDetector(testFlagConfig(), sanctionsMatcher(), courts)
}

func findFlag(flags []model.RedFlag, category model.FlagCategory) *model.RedFlag {
	for i := range flags {
		if flags[i].Category == category {
			return &flags[i]
		}
	}
	return nil
}

func TestDetectCleanProfile(t *testing.T) {
	detector := newDetector(nil)

	flags := detector.Detect(context.Background(), healthyProfile(), nil, flagNow)
	assert.Empty(t, flags)
}

func TestDetectStaleFiling(t *testing.T) {
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.Latest990.TaxPeriod = 202112

	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	flag := findFlag(flags, model.FlagStaleFiling)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityHigh, flag.Severity)
}

func TestDetectOverheadExtremes(t *testing.T) {
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.Latest990.OverheadRatio = f(1.8)
	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	flag := findFlag(flags, model.FlagExcessiveOverhead)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityHigh, flag.Severity)

	profile.Latest990.OverheadRatio = f(0.3)
	flags = detector.Detect(context.Background(), profile, nil, flagNow)
	flag = findFlag(flags, model.FlagLowDeployment)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityMedium, flag.Severity)

	profile.Latest990.OverheadRatio = nil
	flags = detector.Detect(context.Background(), profile, nil, flagNow)
	assert.Nil(t, findFlag(flags, model.FlagExcessiveOverhead))
	assert.Nil(t, findFlag(flags, model.FlagLowDeployment))
}

func TestDetectVeryLowRevenue(t *testing.T) {
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.Latest990.TotalRevenue = 30000

	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	require.NotNil(t, findFlag(flags, model.FlagVeryLowRevenue))
}

func TestDetectRevenueDecline(t *testing.T) {
	detector := newDetector(nil)
	profile := healthyProfile()

	// 65k vs 150k prior is a 56% decline, past the 20% threshold.
	filings := []model.FilingSummary{
		{TaxPeriod: 202412, TotalRevenue: 150000},
		{TaxPeriod: 202512, TotalRevenue: 65000},
	}
	flags := detector.Detect(context.Background(), profile, filings, flagNow)
	flag := findFlag(flags, model.FlagRevenueDecline)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityMedium, flag.Severity)
	assert.Contains(t, flag.Detail, "57%")
}

func TestDetectRevenueDeclineNotRaised(t *testing.T) {
	detector := newDetector(nil)
	profile := healthyProfile()

	tests := []struct {
		name    string
		filings []model.FilingSummary
	}{
		{"single filing", []model.FilingSummary{{TaxPeriod: 202512, TotalRevenue: 65000}}},
		{"mild decline", []model.FilingSummary{
			{TaxPeriod: 202512, TotalRevenue: 90000},
			{TaxPeriod: 202412, TotalRevenue: 100000},
		}},
		{"growth", []model.FilingSummary{
			{TaxPeriod: 202512, TotalRevenue: 200000},
			{TaxPeriod: 202412, TotalRevenue: 100000},
		}},
		{"zero prior revenue", []model.FilingSummary{
			{TaxPeriod: 202512, TotalRevenue: 100},
			{TaxPeriod: 202412, TotalRevenue: 0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := detector.Detect(context.Background(), profile, tt.filings, flagNow)
			assert.Nil(t, findFlag(flags, model.FlagRevenueDecline))
		})
	}
}

func TestDetectTooNew(t *testing.T) {
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.TenureYears = f(1.2)

	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	require.NotNil(t, findFlag(flags, model.FlagTooNew))

	profile.TenureYears = nil
	flags = detector.Detect(context.Background(), profile, nil, flagNow)
	assert.Nil(t, findFlag(flags, model.FlagTooNew))
}

func TestDetectOfficerComp(t *testing.T) {
	detector := newDetector(nil)

	tests := []struct {
		name  string
		ratio *float64
		want  *model.Severity
	}{
		{"high", f(0.4), sev(model.SeverityHigh)},
		{"moderate", f(0.2), sev(model.SeverityMedium)},
		{"normal", f(0.1), nil},
		{"unknown skipped", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := healthyProfile()
			profile.Latest990.OfficerCompRatio = tt.ratio

			flags := detector.Detect(context.Background(), profile, nil, flagNow)
			flag := findFlag(flags, model.FlagHighOfficerComp)
			if tt.want == nil {
				assert.Nil(t, flag)
			} else {
				require.NotNil(t, flag)
				assert.Equal(t, *tt.want, flag.Severity)
			}
		})
	}
}

func TestDetectCourtRecords(t *testing.T) {
	courts := &fakeCourts{result: &model.CourtRecordsResult{
		Found:     true,
		CaseCount: 2,
		Cases: []model.CourtCase{
			{CaseName: "Doe v. Community Food Bank", Court: "S.D.N.Y."},
			{CaseName: "State v. Community Food Bank", Court: "N.Y. Sup. Ct."},
		},
	}}
	detector := newDetector(courts)

	flags := detector.Detect(context.Background(), healthyProfile(), nil, flagNow)
	flag := findFlag(flags, model.FlagCourtRecords)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityHigh, flag.Severity)
	assert.Len(t, flag.Cases, 2)
}

func TestDetectCourtRecordsDegradesOnError(t *testing.T) {
	detector := newDetector(&fakeCourts{err: eris.New("service unavailable")})

	flags := detector.Detect(context.Background(), healthyProfile(), nil, flagNow)
	assert.Nil(t, findFlag(flags, model.FlagCourtRecords))
}

func TestDetectSanctionsNearMatch(t *testing.T) {
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.Name = "Global Reliefs" // near miss against entity #101

	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	flag := findFlag(flags, model.FlagSanctionsNearMatch)
	require.NotNil(t, flag)
	assert.Equal(t, model.SeverityHigh, flag.Severity)
	assert.Contains(t, flag.Detail, "#101")
}

func TestDetectSanctionsExactMatchNotDuplicated(t *testing.T) {
	// A perfect-similarity hit already fails the sanctions gate; the
	// near-match rule stays quiet about it.
	detector := newDetector(nil)

	profile := healthyProfile()
	profile.Name = "Global Relief Foundation"

	flags := detector.Detect(context.Background(), profile, nil, flagNow)
	assert.Nil(t, findFlag(flags, model.FlagSanctionsNearMatch))
}

func sev(s model.Severity) *model.Severity { return &s }
