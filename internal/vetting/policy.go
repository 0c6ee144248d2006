package vetting

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PortfolioPolicy is the configurable allow/deny policy behind the
// portfolio-fit gate. The exclusion list is checked before the inclusion
// list, so an EIN on both is denied.
type PortfolioPolicy struct {
	ExcludedEINs          []string `yaml:"excluded_eins"`
	IncludedEINs          []string `yaml:"included_eins"`
	AllowedNTEECategories []string `yaml:"allowed_ntee_categories"`
}

// LoadPolicy reads a portfolio policy from a YAML file.
func LoadPolicy(path string) (*PortfolioPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "vetting: read policy %s", path)
	}

	var policy PortfolioPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, eris.Wrapf(err, "vetting: parse policy %s", path)
	}
	return &policy, nil
}

// Excluded reports whether the EIN is on the hard deny-list.
func (p *PortfolioPolicy) Excluded(ein string) bool {
	return containsEIN(p.ExcludedEINs, ein)
}

// Included reports whether the EIN is on the hard allow-list, which
// bypasses the category check.
func (p *PortfolioPolicy) Included(ein string) bool {
	return containsEIN(p.IncludedEINs, ein)
}

// AllowsCategory prefix-matches the organization's NTEE code against the
// allowed categories. An empty allowed list accepts any non-empty code;
// organizations with no code at all never match.
func (p *PortfolioPolicy) AllowsCategory(nteeCode string) bool {
	code := strings.ToUpper(strings.TrimSpace(nteeCode))
	if code == "" {
		return false
	}
	if len(p.AllowedNTEECategories) == 0 {
		return true
	}
	for _, prefix := range p.AllowedNTEECategories {
		if strings.HasPrefix(code, strings.ToUpper(strings.TrimSpace(prefix))) {
			return true
		}
	}
	return false
}

func containsEIN(list []string, ein string) bool {
	for _, raw := range list {
		if normalized, err := NormalizeEIN(raw); err == nil && normalized == ein {
			return true
		}
	}
	return false
}
