package profile

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantbridge/vetting-cli/internal/vetting"
	"github.com/grantbridge/vetting-cli/pkg/propublica"
)

type fakeRegistry struct {
	resp *propublica.OrganizationResponse
	err  error
	eins []string
}

func (f *fakeRegistry) GetOrganization(_ context.Context, ein string) (*propublica.OrganizationResponse, error) {
	f.eins = append(f.eins, ein)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func registryResponse() *propublica.OrganizationResponse {
	return &propublica.OrganizationResponse{
		Organization: propublica.Organization{
			EIN:            131234567,
			Name:           "Community Food Bank",
			City:           "Albany",
			State:          "NY",
			SubsectionCode: 3,
			NTEECode:       "K31",
			RulingDate:     "2010-06-01",
		},
		Filings: []propublica.Filing{
			{TaxPeriod: 202412, FormType: 0, TotalRevenue: 480000, TotalExpenses: 430000, OfficerComp: 58000},
			{TaxPeriod: 202512, FormType: 0, TotalRevenue: 500000, TotalExpenses: 450000, OfficerComp: 60000},
		},
	}
}

func newTestBuilder(registry *fakeRegistry) *Builder {
	b := NewBuilder(registry)
	b.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	return b
}

func TestBuild(t *testing.T) {
	registry := &fakeRegistry{resp: registryResponse()}
	b := newTestBuilder(registry)

	profile, filings, err := b.Build(context.Background(), "13-1234567")
	require.NoError(t, err)

	assert.Equal(t, "131234567", profile.EIN)
	assert.Equal(t, []string{"131234567"}, registry.eins) // normalized before the API call
	assert.Equal(t, "Community Food Bank", profile.Name)
	assert.Equal(t, "03", profile.Subsection)
	assert.Equal(t, "K31", profile.NTEECode)

	require.NotNil(t, profile.RulingDate)
	assert.Equal(t, 2010, profile.RulingDate.Year())
	require.NotNil(t, profile.TenureYears)
	assert.InDelta(t, 16.2, *profile.TenureYears, 0.1)

	// Newest filing first, regardless of API order.
	require.Len(t, filings, 2)
	assert.Equal(t, 202512, filings[0].TaxPeriod)
	assert.Equal(t, 202412, filings[1].TaxPeriod)
	require.NotNil(t, profile.Latest990)
	assert.Equal(t, 202512, profile.Latest990.TaxPeriod)
	assert.Equal(t, 2, profile.FilingCount)

	require.NotNil(t, profile.Latest990.OverheadRatio)
	assert.InDelta(t, 0.9, *profile.Latest990.OverheadRatio, 0.001)
	require.NotNil(t, profile.Latest990.OfficerCompRatio)
	assert.InDelta(t, 60000.0/450000.0, *profile.Latest990.OfficerCompRatio, 0.001)
}

func TestBuildZeroRevenueRatioIsNil(t *testing.T) {
	resp := registryResponse()
	resp.Filings = []propublica.Filing{
		{TaxPeriod: 202512, TotalRevenue: 0, TotalExpenses: 450000, OfficerComp: 0},
	}
	b := newTestBuilder(&fakeRegistry{resp: resp})

	profile, _, err := b.Build(context.Background(), "131234567")
	require.NoError(t, err)
	assert.Nil(t, profile.Latest990.OverheadRatio)
	require.NotNil(t, profile.Latest990.OfficerCompRatio)
}

func TestBuildMissingRulingDate(t *testing.T) {
	resp := registryResponse()
	resp.Organization.RulingDate = ""
	b := newTestBuilder(&fakeRegistry{resp: resp})

	profile, _, err := b.Build(context.Background(), "131234567")
	require.NoError(t, err)
	assert.Nil(t, profile.RulingDate)
	assert.Nil(t, profile.TenureYears)
}

func TestBuildNoFilings(t *testing.T) {
	resp := registryResponse()
	resp.Filings = nil
	b := newTestBuilder(&fakeRegistry{resp: resp})

	profile, filings, err := b.Build(context.Background(), "131234567")
	require.NoError(t, err)
	assert.Nil(t, profile.Latest990)
	assert.Zero(t, profile.FilingCount)
	assert.Empty(t, filings)
}

func TestBuildInvalidEIN(t *testing.T) {
	b := newTestBuilder(&fakeRegistry{resp: registryResponse()})

	_, _, err := b.Build(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, eris.Is(err, vetting.ErrInvalidArgument))
}

func TestBuildNotFound(t *testing.T) {
	b := newTestBuilder(&fakeRegistry{err: propublica.ErrOrganizationNotFound})

	_, _, err := b.Build(context.Background(), "131234567")
	require.Error(t, err)
	assert.True(t, eris.Is(err, vetting.ErrNotFound))
}

func TestBuildUpstreamFailure(t *testing.T) {
	b := newTestBuilder(&fakeRegistry{err: eris.New("http 503")})

	_, _, err := b.Build(context.Background(), "131234567")
	require.Error(t, err)
	assert.True(t, eris.Is(err, vetting.ErrUpstreamUnavailable))
}
