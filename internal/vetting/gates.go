package vetting

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/config"
	"github.com/grantbridge/vetting-cli/internal/model"
)

// Gate names, in evaluation order.
const (
	GateVerified501c3 = "verified_501c3"
	GateSanctions     = "sanctions_screen"
	GateFiling        = "filing_exists"
	GatePortfolio     = "portfolio_fit"
)

// RevocationLookup answers whether an EIN is on the IRS auto-revocation
// list. Absence from the list means not revoked.
type RevocationLookup interface {
	CheckRevocation(ctx context.Context, ein string) (*model.RevocationCheck, error)
}

// SanctionsMatcher is the name-matching contract the gates and red-flag
// rules consume.
type SanctionsMatcher interface {
	ExactLookup(name string) []model.SanctionsMatch
	FuzzyLookup(name string, threshold float64) ([]model.SanctionsMatch, error)
}

// GateEngine evaluates the four hard eligibility gates. All four gates
// always run so a rejected organization's full trace stays inspectable;
// only the blocking-gate report stops at the first failure.
type GateEngine struct {
	screening   config.ScreeningConfig
	revocations RevocationLookup
	sanctions   SanctionsMatcher
	policy      *PortfolioPolicy
	policyOn    bool
}

// NewGateEngine wires the gate layer. policy may be nil when the
// portfolio gate is disabled.
func NewGateEngine(screening config.ScreeningConfig, revocations RevocationLookup, sanctions SanctionsMatcher, policy *PortfolioPolicy, policyEnabled bool) *GateEngine {
	return &GateEngine{
		screening:   screening,
		revocations: revocations,
		sanctions:   sanctions,
		policy:      policy,
		policyOn:    policyEnabled && policy != nil,
	}
}

// Evaluate runs every gate against the profile. It fails only when a
// mandatory collaborator (the revocation lookup) is unreachable; an
// ineligible organization is a result, not an error.
func (g *GateEngine) Evaluate(ctx context.Context, profile *model.OrganizationProfile) (*model.GateLayerResult, error) {
	statusGate, err := g.verifiedStatus(ctx, profile)
	if err != nil {
		return nil, err
	}

	gates := []model.GateResult{
		*statusGate,
		g.sanctionsScreen(profile),
		g.filingExists(profile),
		g.portfolioFit(profile),
	}

	layer := &model.GateLayerResult{Gates: gates, AllPassed: true}
	for _, gate := range gates {
		if !gate.Passed {
			layer.AllPassed = false
			layer.BlockingGate = gate.Name
			break
		}
	}
	return layer, nil
}

// verifiedStatus is gate 1: confirmed public-charity status. Three
// sub-checks, all required.
func (g *GateEngine) verifiedStatus(ctx context.Context, profile *model.OrganizationProfile) (*model.GateResult, error) {
	subsectionOK := profile.Subsection == g.screening.CharitySubsection
	subsection := model.SubCheck{
		Name:   "subsection",
		Passed: subsectionOK,
		Detail: fmt.Sprintf("subsection %q, expected %q", profile.Subsection, g.screening.CharitySubsection),
	}
	if subsectionOK {
		subsection.Detail = fmt.Sprintf("501(c)(%s) public charity", strings.TrimLeft(profile.Subsection, "0"))
	}

	check, err := g.revocations.CheckRevocation(ctx, profile.EIN)
	if err != nil {
		// Cannot gate without the revocation list; silently passing
		// would defeat the screen.
		return nil, eris.Wrapf(ErrUpstreamUnavailable, "revocation lookup for %s: %v", profile.EIN, err)
	}
	notRevoked := model.SubCheck{
		Name:   "not_revoked",
		Passed: !check.Revoked,
		Detail: check.Detail,
	}

	rulingDate := model.SubCheck{
		Name:   "ruling_date",
		Passed: profile.RulingDate != nil,
	}
	if profile.RulingDate != nil {
		rulingDate.Detail = "determination ruling " + profile.RulingDate.Format("2006-01-02")
	} else {
		rulingDate.Detail = "no determination ruling date on record"
	}

	gate := &model.GateResult{
		Name:      GateVerified501c3,
		SubChecks: []model.SubCheck{subsection, notRevoked, rulingDate},
	}

	var failed []string
	for _, sc := range gate.SubChecks {
		if !sc.Passed {
			failed = append(failed, sc.Name)
		}
	}
	if len(failed) == 0 {
		gate.Passed = true
		gate.Detail = "verified 501(c)(3) public charity in good standing"
	} else {
		gate.Detail = "failed sub-checks: " + strings.Join(failed, ", ")
	}
	return gate, nil
}

// sanctionsScreen is gate 2: an exact normalized-name hit on the
// sanctions list fails the organization outright.
func (g *GateEngine) sanctionsScreen(profile *model.OrganizationProfile) model.GateResult {
	matches := g.sanctions.ExactLookup(profile.Name)
	if len(matches) == 0 {
		return model.GateResult{
			Name:   GateSanctions,
			Passed: true,
			Detail: "no sanctions list match",
		}
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("#%d %s (%s, %s)", m.EntityNumber, m.Name, m.Basis, m.Program)
	}
	return model.GateResult{
		Name:   GateSanctions,
		Detail: "sanctions list match: " + strings.Join(parts, "; "),
	}
}

// filingExists is gate 3: any filing on record satisfies it.
func (g *GateEngine) filingExists(profile *model.OrganizationProfile) model.GateResult {
	if profile.HasFiling() {
		return model.GateResult{
			Name:   GateFiling,
			Passed: true,
			Detail: fmt.Sprintf("%d filing(s) on record", max(profile.FilingCount, 1)),
		}
	}
	return model.GateResult{
		Name:   GateFiling,
		Detail: "no Form 990 filings on record",
	}
}

// portfolioFit is gate 4: the configurable policy gate. The exclusion
// list is checked first, so it wins over inclusion.
func (g *GateEngine) portfolioFit(profile *model.OrganizationProfile) model.GateResult {
	if !g.policyOn {
		return model.GateResult{
			Name:   GatePortfolio,
			Passed: true,
			Detail: "portfolio policy disabled",
		}
	}

	switch {
	case g.policy.Excluded(profile.EIN):
		return model.GateResult{
			Name:   GatePortfolio,
			Detail: "EIN is on the portfolio exclusion list",
		}
	case g.policy.Included(profile.EIN):
		return model.GateResult{
			Name:   GatePortfolio,
			Passed: true,
			Detail: "EIN is on the portfolio inclusion list",
		}
	case g.policy.AllowsCategory(profile.NTEECode):
		return model.GateResult{
			Name:   GatePortfolio,
			Passed: true,
			Detail: fmt.Sprintf("NTEE category %s is within portfolio scope", profile.NTEECode),
		}
	case profile.NTEECode == "":
		return model.GateResult{
			Name:   GatePortfolio,
			Detail: "no NTEE category on record and EIN not explicitly included",
		}
	default:
		return model.GateResult{
			Name:   GatePortfolio,
			Detail: fmt.Sprintf("NTEE category %s is outside portfolio scope", profile.NTEECode),
		}
	}
}
