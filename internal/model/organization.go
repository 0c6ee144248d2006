// Package model defines the domain types shared across the vetting pipeline.
package model

import "time"

// OrganizationProfile is an immutable snapshot of a nonprofit used for a
// single vetting run. Ratios and tenure are pointers: nil means the
// underlying data was missing or the denominator was zero/invalid, which
// several rules treat differently from a bad value.
type OrganizationProfile struct {
	EIN         string         `json:"ein"`
	Name        string         `json:"name"`
	City        string         `json:"city,omitempty"`
	State       string         `json:"state,omitempty"`
	Subsection  string         `json:"subsection,omitempty"` // zero-padded 501(c) code, e.g. "03"
	NTEECode    string         `json:"ntee_code,omitempty"`
	RulingDate  *time.Time     `json:"ruling_date,omitempty"`
	TenureYears *float64       `json:"tenure_years,omitempty"` // derived from RulingDate
	Latest990   *FilingSummary `json:"latest_990,omitempty"`
	FilingCount int            `json:"filing_count"`
}

// HasFiling reports whether the organization has at least one filing on
// record, from either the latest extract or the filing index count.
func (p *OrganizationProfile) HasFiling() bool {
	return p.Latest990 != nil || p.FilingCount > 0
}

// FilingSummary holds the financial extract of a single Form 990 filing.
type FilingSummary struct {
	TaxPeriod        int      `json:"tax_period"` // YYYYMM, e.g. 202312
	FormType         string   `json:"form_type"`  // "990", "990EZ", "990PF"
	TotalRevenue     float64  `json:"total_revenue"`
	TotalExpenses    float64  `json:"total_expenses"`
	TotalAssets      float64  `json:"total_assets"`
	TotalLiabilities float64  `json:"total_liabilities"`
	OverheadRatio    *float64 `json:"overhead_ratio,omitempty"`
	OfficerCompRatio *float64 `json:"officer_comp_ratio,omitempty"`
}

// TaxYear returns the calendar year of the filing's tax period.
func (f FilingSummary) TaxYear() int {
	return f.TaxPeriod / 100
}

// RevocationRecord is one row of the IRS auto-revocation list.
type RevocationRecord struct {
	EIN               string     `json:"ein"`
	LegalName         string     `json:"legal_name"`
	City              string     `json:"city,omitempty"`
	State             string     `json:"state,omitempty"`
	RevocationDate    *time.Time `json:"revocation_date,omitempty"`
	ReinstatementDate *time.Time `json:"reinstatement_date,omitempty"`
}

// RevocationCheck is the outcome of a revocation-list lookup for one EIN.
type RevocationCheck struct {
	Found          bool       `json:"found"`
	Revoked        bool       `json:"revoked"`
	Detail         string     `json:"detail"`
	RevocationDate *time.Time `json:"revocation_date,omitempty"`
	LegalName      string     `json:"legal_name,omitempty"`
}

// SanctionsRecord is one entity from the sanctions list with its
// registered aliases.
type SanctionsRecord struct {
	EntityNumber int      `json:"entity_number"`
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"` // "Entity" or "Individual"
	Program      string   `json:"program,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
}

// CourtCase is a single court record returned by the docket search.
type CourtCase struct {
	CaseName  string `json:"case_name"`
	Court     string `json:"court,omitempty"`
	DateFiled string `json:"date_filed,omitempty"`
	URL       string `json:"url,omitempty"`
}

// CourtRecordsResult is the outcome of a court-records search for a name.
type CourtRecordsResult struct {
	Found     bool        `json:"found"`
	CaseCount int         `json:"case_count"`
	Cases     []CourtCase `json:"cases,omitempty"`
}
