package strategy

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/soilhub/fieldopt/internal/optimization"
)

// Dominates reports whether a dominates b: a is at least as good on every
// axis and strictly better on at least one, under the larger-is-better
// orientation every vector carries.
func Dominates(a, b optimization.Vector) bool {
	strict := false
	for i := range a {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			strict = true
		}
	}
	return strict
}

// ParetoFront computes the non-dominated subset of the feasible candidates
// and ranks it by diversity. The dominance pass is O(n²·k); candidate counts
// in this domain are tens, not thousands, so a faster front algorithm buys
// nothing.
//
// Output ordering is descending crowding distance, so a caller taking the
// top N gets spread-out recommendations instead of an arbitrary cutoff.
// Crowding ties resolve by the uniform-weight scalarized score, then by
// insertion order. A singleton front carries the maximal crowding distance.
func ParetoFront(cands []optimization.ScoredCandidate) []optimization.ParetoEntry {
	var front []optimization.ParetoEntry
	for i := range cands {
		dominated := false
		for j := range cands {
			if i == j {
				continue
			}
			if Dominates(cands[j].Objectives, cands[i].Objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, optimization.ParetoEntry{
				Candidate:  cands[i].Candidate,
				Objectives: cands[i].Objectives,
			})
		}
	}

	crowdingDistance(front)

	uniform := optimization.Uniform()
	sort.SliceStable(front, func(i, j int) bool {
		if front[i].Crowding != front[j].Crowding {
			return front[i].Crowding > front[j].Crowding
		}
		return uniform.Dot(front[i].Objectives) > uniform.Dot(front[j].Objectives)
	})

	return front
}

// crowdingMax marks boundary front members. The usual formulation uses +Inf,
// but results cross a JSON boundary and encoding/json rejects infinities, so
// the largest finite float stands in; it sorts ahead of every accumulated
// interior distance all the same.
const crowdingMax = math.MaxFloat64

// crowdingDistance assigns each front member the NSGA-II crowding distance:
// per axis, members are sorted by value, boundary members get the maximal
// distance to bias selection toward extremes, and interior members
// accumulate the normalized gap between their neighbors.
func crowdingDistance(front []optimization.ParetoEntry) {
	n := len(front)
	if n == 0 {
		return
	}
	if n == 1 {
		front[0].Crowding = crowdingMax
		return
	}

	order := make([]int, n)
	axisVals := make([]float64, n)

	for axis := 0; axis < int(optimization.NumAxes); axis++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return front[order[i]].Objectives[axis] < front[order[j]].Objectives[axis]
		})

		for i := range front {
			axisVals[i] = front[i].Objectives[axis]
		}
		span := floats.Max(axisVals) - floats.Min(axisVals)

		front[order[0]].Crowding = crowdingMax
		front[order[n-1]].Crowding = crowdingMax
		if span == 0 {
			continue
		}

		for i := 1; i < n-1; i++ {
			lo := front[order[i-1]].Objectives[axis]
			hi := front[order[i+1]].Objectives[axis]
			front[order[i]].Crowding += (hi - lo) / span
		}
	}
}
