// Package vetting implements the compliance decision engine: hard
// eligibility gates, weighted scoring, advisory red flags, and the
// pipeline that orchestrates them around the result cache.
package vetting

import "github.com/rotisserie/eris"

// Sentinel errors callers can test with eris.Is. Batch callers rely on
// ErrNotFound being distinguishable so they can continue past missing
// organizations.
var (
	ErrNotFound            = eris.New("vetting: organization not found")
	ErrInvalidArgument     = eris.New("vetting: invalid argument")
	ErrUpstreamUnavailable = eris.New("vetting: upstream unavailable")
)
