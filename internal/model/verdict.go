package model

import "time"

// CheckOutcome is the categorical result of a single weighted check.
type CheckOutcome string

const (
	OutcomePass   CheckOutcome = "PASS"
	OutcomeReview CheckOutcome = "REVIEW"
	OutcomeFail   CheckOutcome = "FAIL"
)

// Recommendation is the terminal verdict of a vetting run.
type Recommendation string

const (
	RecommendPass   Recommendation = "PASS"
	RecommendReview Recommendation = "REVIEW"
	RecommendReject Recommendation = "REJECT"
)

// Severity grades a red flag.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// FlagCategory identifies the rule that raised a red flag.
type FlagCategory string

const (
	FlagStaleFiling        FlagCategory = "stale_filing"
	FlagLowDeployment      FlagCategory = "low_fund_deployment"
	FlagExcessiveOverhead  FlagCategory = "excessive_overhead"
	FlagVeryLowRevenue     FlagCategory = "very_low_revenue"
	FlagRevenueDecline     FlagCategory = "revenue_decline"
	FlagTooNew             FlagCategory = "too_new_organization"
	FlagHighOfficerComp    FlagCategory = "high_officer_compensation"
	FlagCourtRecords       FlagCategory = "court_records"
	FlagSanctionsNearMatch FlagCategory = "sanctions_near_match"
)

// SubCheck is one named sub-check inside a gate, kept for auditability.
type SubCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// GateResult is the outcome of a single eligibility gate.
type GateResult struct {
	Name      string     `json:"name"`
	Passed    bool       `json:"passed"`
	Detail    string     `json:"detail"`
	SubChecks []SubCheck `json:"sub_checks,omitempty"`
}

// GateLayerResult aggregates the four eligibility gates. BlockingGate
// names the first gate (in evaluation order) that failed; empty when all
// gates passed. Every gate is always evaluated regardless of earlier
// failures.
type GateLayerResult struct {
	Gates        []GateResult `json:"gates"`
	AllPassed    bool         `json:"all_passed"`
	BlockingGate string       `json:"blocking_gate,omitempty"`
}

// ScoredCheck is one weighted financial/operational check. Points is the
// full weight on PASS, half on REVIEW, zero on FAIL.
type ScoredCheck struct {
	Name    string       `json:"name"`
	Outcome CheckOutcome `json:"outcome"`
	Weight  float64      `json:"weight"`
	Points  float64      `json:"points"`
	Detail  string       `json:"detail"`
}

// RedFlag is an advisory finding attached to a result regardless of the
// recommendation.
type RedFlag struct {
	Severity Severity     `json:"severity"`
	Category FlagCategory `json:"category"`
	Detail   string       `json:"detail"`
	Cases    []CourtCase  `json:"cases,omitempty"`
}

// MatchBasis describes how a sanctions match was established.
type MatchBasis string

const (
	MatchExact MatchBasis = "exact"
	MatchAlias MatchBasis = "alias"
	MatchFuzzy MatchBasis = "fuzzy"
)

// SanctionsMatch is a single sanctions-list hit. Similarity is populated
// for fuzzy matches only.
type SanctionsMatch struct {
	EntityNumber int        `json:"entity_number"`
	Name         string     `json:"name"`
	EntityType   string     `json:"entity_type"`
	Program      string     `json:"program,omitempty"`
	Basis        MatchBasis `json:"basis"`
	Similarity   float64    `json:"similarity,omitempty"`
}

// SummaryFactor is one signed line of the generated summary.
type SummaryFactor struct {
	Positive bool   `json:"positive"`
	Text     string `json:"text"`
}

// Summary is the human-readable rendering of a vetting result.
type Summary struct {
	Headline      string          `json:"headline"`
	Justification string          `json:"justification"`
	Factors       []SummaryFactor `json:"factors,omitempty"`
	NextSteps     []string        `json:"next_steps,omitempty"`
}

// VettingResult is the terminal artifact of one vetting run. Score and
// Checks are nil exactly when GateBlocked is true; RedFlags is populated
// either way.
type VettingResult struct {
	EIN            string          `json:"ein"`
	Name           string          `json:"name"`
	Gates          GateLayerResult `json:"gates"`
	GateBlocked    bool            `json:"gate_blocked"`
	Score          *float64        `json:"score,omitempty"`
	Checks         []ScoredCheck   `json:"checks,omitempty"`
	RedFlags       []RedFlag       `json:"red_flags"`
	Recommendation Recommendation  `json:"recommendation"`
	Summary        Summary         `json:"summary"`
}

// CachedResult wraps a persisted VettingResult with its provenance.
type CachedResult struct {
	Result      VettingResult `json:"result"`
	VettedAt    time.Time     `json:"vetted_at"`
	Attribution string        `json:"attribution"`
}
