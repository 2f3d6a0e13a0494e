// Package strategy ranks feasible, already-evaluated candidates. Every
// function here is deterministic: input order is the candidate insertion
// order, sorts are stable, and ties resolve the same way on every run.
package strategy

import (
	"sort"

	"github.com/soilhub/fieldopt/internal/optimization"
)

// WeightedSum scalarizes each candidate's objective vector under the
// normalized weights and returns the set ordered by descending score.
// Equal scores keep their insertion order.
func WeightedSum(cands []optimization.ScoredCandidate, w optimization.Weights) []optimization.ScoredCandidate {
	ranked := make([]optimization.ScoredCandidate, len(cands))
	for i, c := range cands {
		c.Score = w.Dot(c.Objectives)
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// FeasibleSet returns every feasible candidate in identity (insertion)
// order, unranked by objectives. Used when the caller wants all viable
// options rather than a preference ordering; Score is left zero.
func FeasibleSet(cands []optimization.ScoredCandidate) []optimization.ScoredCandidate {
	out := make([]optimization.ScoredCandidate, len(cands))
	copy(out, cands)
	return out
}
