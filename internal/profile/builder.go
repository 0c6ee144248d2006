// Package profile builds organization snapshots from the nonprofit
// registry API for the decision engine.
package profile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/model"
	"github.com/grantbridge/vetting-cli/internal/vetting"
	"github.com/grantbridge/vetting-cli/pkg/propublica"
)

const hoursPerYear = 24 * 365.25

// Builder assembles an OrganizationProfile and its filing history from
// the registry API. It implements the pipeline's profile source.
type Builder struct {
	client propublica.Client
	now    func() time.Time
}

// NewBuilder creates a profile builder over the registry client.
func NewBuilder(client propublica.Client) *Builder {
	return &Builder{client: client, now: time.Now}
}

// Build fetches the organization record and converts it into the
// immutable snapshot one vetting run consumes. Filings come back sorted
// by tax period, newest first.
func (b *Builder) Build(ctx context.Context, ein string) (*model.OrganizationProfile, []model.FilingSummary, error) {
	normalized, err := vetting.NormalizeEIN(ein)
	if err != nil {
		return nil, nil, err
	}

	resp, err := b.client.GetOrganization(ctx, normalized)
	if err != nil {
		if eris.Is(err, propublica.ErrOrganizationNotFound) {
			return nil, nil, eris.Wrapf(vetting.ErrNotFound, "ein %s", normalized)
		}
		return nil, nil, eris.Wrapf(vetting.ErrUpstreamUnavailable, "registry lookup for %s: %v", normalized, err)
	}

	profile := &model.OrganizationProfile{
		EIN:        fmt.Sprintf("%09d", resp.Organization.EIN),
		Name:       resp.Organization.Name,
		City:       resp.Organization.City,
		State:      resp.Organization.State,
		Subsection: fmt.Sprintf("%02d", resp.Organization.SubsectionCode),
		NTEECode:   resp.Organization.NTEECode,
	}

	if ruling, err := time.Parse("2006-01-02", resp.Organization.RulingDate); err == nil {
		profile.RulingDate = &ruling
		tenure := b.now().Sub(ruling).Hours() / hoursPerYear
		if tenure >= 0 {
			profile.TenureYears = &tenure
		}
	}

	filings := convertFilings(resp.Filings)
	profile.FilingCount = len(filings)
	if len(filings) > 0 {
		profile.Latest990 = &filings[0]
	}

	return profile, filings, nil
}

func convertFilings(raw []propublica.Filing) []model.FilingSummary {
	filings := make([]model.FilingSummary, 0, len(raw))
	for _, f := range raw {
		filings = append(filings, model.FilingSummary{
			TaxPeriod:        f.TaxPeriod,
			FormType:         f.FormTypeName(),
			TotalRevenue:     f.TotalRevenue,
			TotalExpenses:    f.TotalExpenses,
			TotalAssets:      f.TotalAssets,
			TotalLiabilities: f.TotalLiabilities,
			OverheadRatio:    safeRatio(f.TotalExpenses, f.TotalRevenue),
			OfficerCompRatio: safeRatio(f.OfficerComp, f.TotalExpenses),
		})
	}
	sort.Slice(filings, func(i, j int) bool {
		return filings[i].TaxPeriod > filings[j].TaxPeriod
	})
	return filings
}

// safeRatio returns numerator/denominator, or nil when the denominator
// is zero or the result is not finite. Unknown is distinct from bad.
func safeRatio(numerator, denominator float64) *float64 {
	if denominator == 0 {
		return nil
	}
	ratio := numerator / denominator
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil
	}
	return &ratio
}
