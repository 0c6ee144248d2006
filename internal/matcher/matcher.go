package matcher

import (
	"sort"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/model"
)

// ErrInvalidThreshold is returned by FuzzyLookup for thresholds outside [0,1].
var ErrInvalidThreshold = eris.New("matcher: threshold must be in [0,1]")

// entityTypeOrg is the only entity type returned by fuzzy search; the
// screen targets organizations, not individuals.
const entityTypeOrg = "Entity"

// entry is one normalized name (primary or alias) pointing back at its record.
type entry struct {
	norm    string
	isAlias bool
	rec     *model.SanctionsRecord
}

// Matcher indexes a sanctions list snapshot for exact and fuzzy name
// lookups. It is immutable after construction and safe for concurrent use.
type Matcher struct {
	byNorm  map[string][]entry
	entries []entry
}

// New builds a Matcher from the sanctions records, indexing both primary
// names and registered aliases under their normalized forms.
func New(records []model.SanctionsRecord) *Matcher {
	m := &Matcher{byNorm: make(map[string][]entry)}
	for i := range records {
		rec := &records[i]
		m.add(entry{norm: Normalize(rec.Name), rec: rec})
		for _, alias := range rec.Aliases {
			m.add(entry{norm: Normalize(alias), isAlias: true, rec: rec})
		}
	}
	return m
}

func (m *Matcher) add(e entry) {
	if e.norm == "" {
		return
	}
	m.byNorm[e.norm] = append(m.byNorm[e.norm], e)
	m.entries = append(m.entries, e)
}

// Size returns the number of indexed name forms.
func (m *Matcher) Size() int {
	return len(m.entries)
}

// ExactLookup returns every list entry whose normalized primary name or
// alias equals the normalized candidate. An empty result means clean.
func (m *Matcher) ExactLookup(name string) []model.SanctionsMatch {
	var matches []model.SanctionsMatch
	for _, e := range m.byNorm[Normalize(name)] {
		basis := model.MatchExact
		if e.isAlias {
			basis = model.MatchAlias
		}
		matches = append(matches, model.SanctionsMatch{
			EntityNumber: e.rec.EntityNumber,
			Name:         e.rec.Name,
			EntityType:   e.rec.EntityType,
			Program:      e.rec.Program,
			Basis:        basis,
		})
	}
	sortMatches(matches)
	return matches
}

// FuzzyLookup scores the normalized candidate against every indexed name
// form and returns organization-type entries with similarity >= threshold,
// sorted by descending similarity with entity-number ascending tiebreak.
// A record is reported once, at its best-scoring form.
func (m *Matcher) FuzzyLookup(name string, threshold float64) ([]model.SanctionsMatch, error) {
	if threshold < 0 || threshold > 1 {
		return nil, eris.Wrapf(ErrInvalidThreshold, "got %v", threshold)
	}

	cand := Normalize(name)
	best := make(map[int]model.SanctionsMatch)
	for _, e := range m.entries {
		if e.rec.EntityType != entityTypeOrg {
			continue
		}
		sim := levenshtein.Similarity(cand, e.norm, nil)
		if sim < threshold {
			continue
		}
		prev, seen := best[e.rec.EntityNumber]
		if seen && prev.Similarity >= sim {
			continue
		}
		best[e.rec.EntityNumber] = model.SanctionsMatch{
			EntityNumber: e.rec.EntityNumber,
			Name:         e.rec.Name,
			EntityType:   e.rec.EntityType,
			Program:      e.rec.Program,
			Basis:        model.MatchFuzzy,
			Similarity:   sim,
		}
	}

	matches := make([]model.SanctionsMatch, 0, len(best))
	for _, match := range best {
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].EntityNumber < matches[j].EntityNumber
	})
	return matches, nil
}

// sortMatches orders exact matches by entity number for determinism.
func sortMatches(matches []model.SanctionsMatch) {
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].EntityNumber < matches[j].EntityNumber
	})
}
