// Package store persists vetting results and the ingested government lists.
package store

import (
	"context"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// ResultCache persists vetting results keyed by EIN. Later runs supersede
// earlier ones; nothing is mutated in place.
type ResultCache interface {
	// GetLatest returns the most recent stored result for the EIN, or
	// (nil, nil) when none exists.
	GetLatest(ctx context.Context, ein string) (*model.CachedResult, error)
	Save(ctx context.Context, result model.VettingResult, attribution string) error
}

// RevocationStore reads and replaces the IRS auto-revocation list.
type RevocationStore interface {
	// CheckRevocation reports whether the EIN appears on the revocation
	// list. Absence from the list means not revoked.
	CheckRevocation(ctx context.Context, ein string) (*model.RevocationCheck, error)
	ReplaceRevocations(ctx context.Context, records []model.RevocationRecord) (int, error)
}

// SanctionsStore reads and replaces the sanctions list snapshot the name
// matcher indexes.
type SanctionsStore interface {
	AllSanctions(ctx context.Context) ([]model.SanctionsRecord, error)
	ReplaceSanctions(ctx context.Context, records []model.SanctionsRecord) (int, error)
}

// Store is the combined persistence interface the CLI wires up.
type Store interface {
	ResultCache
	RevocationStore
	SanctionsStore

	Migrate(ctx context.Context) error
	Close() error
}
