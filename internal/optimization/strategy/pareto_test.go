package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilhub/fieldopt/internal/optimization"
)

func TestDominates(t *testing.T) {
	tests := []struct {
		name string
		a, b optimization.Vector
		want bool
	}{
		{
			name: "strictly better on one axis, equal elsewhere",
			a:    optimization.Vector{0.9, -0.2, -0.1, 0, 0},
			b:    optimization.Vector{0.9, -0.5, -0.1, 0, 0},
			want: true,
		},
		{
			name: "worse on any axis blocks dominance",
			a:    optimization.Vector{0.9, -0.2, -0.1, 0, 0},
			b:    optimization.Vector{0.6, -0.1, -0.3, 0, 0},
			want: false,
		},
		{
			name: "identical vectors do not dominate",
			a:    optimization.Vector{0.5, -0.3, -0.2, -0.1, 0.4},
			b:    optimization.Vector{0.5, -0.3, -0.2, -0.1, 0.4},
			want: false,
		},
		{
			name: "better everywhere",
			a:    optimization.Vector{1, 0, 0, 0, 1},
			b:    optimization.Vector{0.5, -0.5, -0.5, -0.5, 0.5},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dominates(tt.a, tt.b))
		})
	}
}

func TestParetoFrontDropsDominated(t *testing.T) {
	// c is dominated by a (same yield and environment, worse cost); a and b
	// trade yield against environment, so both survive.
	front := ParetoFront([]optimization.ScoredCandidate{
		scored("a", optimization.Vector{0.9, -0.2, -0.1, 0, 0}),
		scored("b", optimization.Vector{0.6, -0.1, -0.3, 0, 0}),
		scored("c", optimization.Vector{0.9, -0.5, -0.1, 0, 0}),
	})

	require.Len(t, front, 2)
	ids := []string{front[0].Candidate.ID, front[1].Candidate.ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	// Both members sit on the boundary of a two-point front, so both carry
	// maximal crowding; the uniform scalarization breaks the tie.
	assert.Equal(t, math.MaxFloat64, front[0].Crowding)
	assert.Equal(t, math.MaxFloat64, front[1].Crowding)
	assert.Equal(t, "a", front[0].Candidate.ID)
}

func TestParetoFrontCrowdingInterior(t *testing.T) {
	front := ParetoFront([]optimization.ScoredCandidate{
		scored("hi-yield", optimization.Vector{1.0, -1.0, 0, 0, 0}),
		scored("mid", optimization.Vector{0.5, -0.5, 0, 0, 0}),
		scored("lo-cost", optimization.Vector{0.0, 0.0, 0, 0, 0}),
	})

	require.Len(t, front, 3)

	byID := map[string]optimization.ParetoEntry{}
	for _, e := range front {
		byID[e.Candidate.ID] = e
	}
	assert.Equal(t, math.MaxFloat64, byID["hi-yield"].Crowding)
	assert.Equal(t, math.MaxFloat64, byID["lo-cost"].Crowding)
	// Interior member: full-span gap on yield plus full-span gap on cost.
	assert.InDelta(t, 2.0, byID["mid"].Crowding, 1e-12)

	assert.Equal(t, "mid", front[2].Candidate.ID, "finite crowding sorts after the extremes")
}

func TestParetoFrontSingleton(t *testing.T) {
	front := ParetoFront([]optimization.ScoredCandidate{
		scored("only", optimization.Vector{0.7, -0.3, -0.2, -0.1, 0.5}),
	})

	require.Len(t, front, 1)
	assert.Equal(t, math.MaxFloat64, front[0].Crowding)
}

func TestParetoFrontEmpty(t *testing.T) {
	assert.Empty(t, ParetoFront(nil))
}

func TestParetoFrontIsDeterministic(t *testing.T) {
	cands := []optimization.ScoredCandidate{
		scored("a", optimization.Vector{0.8, -0.4, -0.1, -0.2, 0.6}),
		scored("b", optimization.Vector{0.6, -0.2, -0.3, -0.1, 0.7}),
		scored("c", optimization.Vector{0.9, -0.6, -0.2, -0.3, 0.5}),
		scored("d", optimization.Vector{0.7, -0.3, -0.15, -0.25, 0.65}),
	}

	first := ParetoFront(cands)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ParetoFront(cands))
	}
}
