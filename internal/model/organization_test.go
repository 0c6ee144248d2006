package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasFiling(t *testing.T) {
	assert.False(t, (&OrganizationProfile{}).HasFiling())
	assert.True(t, (&OrganizationProfile{FilingCount: 3}).HasFiling())
	assert.True(t, (&OrganizationProfile{Latest990: &FilingSummary{TaxPeriod: 202312}}).HasFiling())
}

func TestFilingSummaryTaxYear(t *testing.T) {
	f := FilingSummary{TaxPeriod: 202306}
	assert.Equal(t, 2023, f.TaxYear())
}
