package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
)

func testField() agronomy.FieldConditions {
	return agronomy.FieldConditions{
		SizeHa:       40,
		Soil:         agronomy.Loam,
		Drainage:     agronomy.WellDrained,
		SlopePercent: 2,
		Irrigated:    true,
	}
}

func testCrop() agronomy.CropRequirements {
	return agronomy.CropRequirements{
		Crop:        "corn",
		GrowthStage: agronomy.EarlySeason,
		TargetYield: 11,
		Needs:       map[agronomy.Nutrient]float64{agronomy.Nitrogen: 180},
	}
}

func urea() agronomy.Treatment {
	return agronomy.Treatment{
		Name:       "urea",
		Nutrients:  map[agronomy.Nutrient]float64{agronomy.Nitrogen: 0.46},
		PricePerKg: 0.55,
	}
}

func testCandidate(id string, method agronomy.MethodType, rate float64) agronomy.Candidate {
	return agronomy.Candidate{
		ID:        id,
		Method:    method,
		RateKgHa:  rate,
		Timing:    agronomy.EarlySeason,
		Treatment: urea(),
	}
}

func testRequest(strategy optimization.StrategyKind) optimization.Request {
	return optimization.Request{
		Field: testField(),
		Crop:  testCrop(),
		Candidates: []agronomy.Candidate{
			testCandidate("broadcast-350", agronomy.Broadcast, 350),
			testCandidate("band-350", agronomy.Band, 350),
			testCandidate("injection-350", agronomy.Injection, 350),
		},
		Strategy: strategy,
	}
}

func TestOptimizeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*optimization.Request)
	}{
		{
			name:   "missing strategy",
			mutate: func(r *optimization.Request) { r.Strategy = "" },
		},
		{
			name:   "unknown strategy",
			mutate: func(r *optimization.Request) { r.Strategy = "simulated_annealing" },
		},
		{
			name:   "nonpositive field size",
			mutate: func(r *optimization.Request) { r.Field.SizeHa = 0 },
		},
		{
			name:   "empty candidate set",
			mutate: func(r *optimization.Request) { r.Candidates = nil },
		},
		{
			name:   "unknown goal axis",
			mutate: func(r *optimization.Request) { r.GoalWeights = map[string]float64{"flavor": 0.5} },
		},
		{
			name:   "weight above one",
			mutate: func(r *optimization.Request) { r.GoalWeights = map[string]float64{"yield": 1.5} },
		},
		{
			name:   "negative weight",
			mutate: func(r *optimization.Request) { r.GoalWeights = map[string]float64{"cost": -0.1} },
		},
		{
			name: "evolutionary without domain bounds",
			mutate: func(r *optimization.Request) {
				r.Strategy = optimization.StrategyEvolutionary
				r.Evolve = nil
			},
		},
		{
			name: "unknown method in search domain",
			mutate: func(r *optimization.Request) {
				*r = evolveRequest(1)
				r.Evolve.Methods = []agronomy.MethodType{"catapult"}
			},
		},
		{
			name: "unknown timing in search domain",
			mutate: func(r *optimization.Request) {
				*r = evolveRequest(1)
				r.Evolve.Timings = []agronomy.TimingSlot{"harvest_eve"}
			},
		},
		{
			name: "negative treatment price in search domain",
			mutate: func(r *optimization.Request) {
				*r = evolveRequest(1)
				r.Evolve.Treatment.PricePerKg = -0.10
			},
		},
	}

	d := New(Config{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(optimization.StrategyWeightedSum)
			tt.mutate(&req)

			_, err := d.Optimize(context.Background(), req)
			require.Error(t, err)
			assert.True(t, optimization.IsValidation(err))
		})
	}
}

func TestResolveWeights(t *testing.T) {
	tests := []struct {
		name string
		goal map[string]float64
		want optimization.Weights
	}{
		{
			name: "nil map is uniform",
			goal: nil,
			want: optimization.Uniform(),
		},
		{
			name: "all-zero weights are uniform",
			goal: map[string]float64{"yield": 0, "cost": 0},
			want: optimization.Uniform(),
		},
		{
			name: "named weights renormalize",
			goal: map[string]float64{"yield": 0.6, "cost": 0.2, "environment": 0.2},
			want: optimization.Weights{0.6, 0.2, 0.2, 0, 0},
		},
		{
			name: "partial weights scale up",
			goal: map[string]float64{"yield": 0.25, "nutrient_use": 0.25},
			want: optimization.Weights{0.5, 0, 0, 0, 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveWeights(tt.goal)
			require.NoError(t, err)
			for axis := range tt.want {
				assert.InDelta(t, tt.want[axis], got[axis], 1e-12)
			}
		})
	}
}

func TestOptimizeWeightedSum(t *testing.T) {
	d := New(Config{}, nil)
	req := testRequest(optimization.StrategyWeightedSum)
	req.GoalWeights = map[string]float64{"yield": 1}

	res, err := d.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Feasible)
	assert.Equal(t, optimization.StrategyWeightedSum, res.Strategy)
	assert.Positive(t, res.Elapsed)
	require.Len(t, res.Ranked, 3)

	// Under a pure yield goal the ranking follows method uptake.
	assert.Equal(t, "injection-350", res.Ranked[0].Candidate.ID)
	assert.Equal(t, "band-350", res.Ranked[1].Candidate.ID)
	assert.Equal(t, "broadcast-350", res.Ranked[2].Candidate.ID)

	require.Len(t, res.Achievement, int(optimization.NumAxes))
	for name, a := range res.Achievement {
		assert.GreaterOrEqual(t, a, 0.0, name)
		assert.LessOrEqual(t, a, 1.0, name)
	}
}

func TestOptimizePareto(t *testing.T) {
	d := New(Config{}, nil)
	res, err := d.Optimize(context.Background(), testRequest(optimization.StrategyPareto))
	require.NoError(t, err)

	assert.True(t, res.Feasible)
	assert.NotEmpty(t, res.Front)
	assert.Empty(t, res.Ranked)
	// Injection trades labor and cost against yield, so broadcast and
	// injection cannot dominate each other.
	assert.GreaterOrEqual(t, len(res.Front), 2)
}

func TestOptimizeConstraintSatisfaction(t *testing.T) {
	d := New(Config{}, nil)
	req := testRequest(optimization.StrategyConstraintSat)
	req.Constraints = []optimization.Constraint{
		{Kind: optimization.ConstraintRegulatory, Op: optimization.OpIn, Allowed: []string{"broadcast", "band"}},
	}

	res, err := d.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Feasible)
	require.Len(t, res.Ranked, 2)
	assert.Equal(t, "broadcast-350", res.Ranked[0].Candidate.ID, "identity order, unranked")
	assert.Equal(t, "band-350", res.Ranked[1].Candidate.ID)
	assert.Zero(t, res.Ranked[0].Score)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "injection-350", res.Rejected[0].CandidateID)
}

func TestConstraintSatisfactionAchievementUsesBestEntry(t *testing.T) {
	// Ranked keeps identity order for this strategy, so the achievement
	// summary must come from the best-scoring feasible entry, not from
	// whichever candidate was listed first.
	d := New(Config{}, nil)
	req := testRequest(optimization.StrategyConstraintSat)
	req.GoalWeights = map[string]float64{"yield": 1}

	res, err := d.Optimize(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 3)

	assert.Equal(t, "broadcast-350", res.Ranked[0].Candidate.ID)

	// Injection delivers the highest yield; on the yield axis the achievement
	// fraction equals the stored score since the bounds are [0, 1].
	var injectionYield float64
	for _, s := range res.Ranked {
		if s.Candidate.ID == "injection-350" {
			injectionYield = s.Objectives[optimization.AxisYield]
		}
	}
	assert.InDelta(t, injectionYield, res.Achievement["yield"], 1e-12)
	assert.Greater(t, injectionYield, res.Ranked[0].Objectives[optimization.AxisYield])
}

func TestOptimizeNoFeasibleCandidates(t *testing.T) {
	d := New(Config{}, nil)
	req := optimization.Request{
		Field: testField(),
		Crop:  testCrop(),
		Candidates: []agronomy.Candidate{
			testCandidate("broadcast-200", agronomy.Broadcast, 200),
			testCandidate("band-300", agronomy.Band, 300),
			testCandidate("injection-350", agronomy.Injection, 350),
		},
		Constraints: []optimization.Constraint{
			{Kind: optimization.ConstraintTiming, Op: optimization.OpIn, Allowed: []string{"pre_plant"}},
			{Kind: optimization.ConstraintRegulatory, Op: optimization.OpLE, Limit: 250},
		},
		Strategy: optimization.StrategyWeightedSum,
	}

	res, err := d.Optimize(context.Background(), req)
	require.NoError(t, err, "an empty feasible set is a structured result, not an error")

	assert.False(t, res.Feasible)
	assert.Empty(t, res.Ranked)
	assert.Len(t, res.Rejected, 3)

	// Timing rejects all three candidates, the rate cap only two; hints are
	// ordered by violation frequency.
	require.Len(t, res.RelaxationHints, 2)
	assert.Equal(t, "relax timing constraints (violated by 3 of 3 candidates)", res.RelaxationHints[0])
	assert.Equal(t, "relax regulatory constraints (violated by 2 of 3 candidates)", res.RelaxationHints[1])
}

func TestOptimizeParallelMatchesSequential(t *testing.T) {
	run := func(workers int) *optimization.Result {
		d := New(Config{Workers: workers}, nil)
		res, err := d.Optimize(context.Background(), testRequest(optimization.StrategyWeightedSum))
		require.NoError(t, err)
		return res
	}

	sequential := run(1)
	parallel := run(4)

	assert.Equal(t, sequential.Ranked, parallel.Ranked)
	assert.Equal(t, sequential.Achievement, parallel.Achievement)
}

func evolveRequest(seed int64) optimization.Request {
	return optimization.Request{
		Field:    testField(),
		Crop:     testCrop(),
		Strategy: optimization.StrategyEvolutionary,
		Evolve: &optimization.EvolveParams{
			Methods:        []agronomy.MethodType{agronomy.Band, agronomy.Injection},
			RateMin:        100,
			RateMax:        350,
			Timings:        []agronomy.TimingSlot{agronomy.EarlySeason, agronomy.MidSeason},
			Treatment:      urea(),
			PopulationSize: 40,
			MaxGenerations: 30,
			Seed:           seed,
		},
	}
}

func TestOptimizeEvolutionary(t *testing.T) {
	d := New(Config{}, nil)
	res, err := d.Optimize(context.Background(), evolveRequest(42))
	require.NoError(t, err)

	assert.True(t, res.Feasible)
	assert.NotEmpty(t, res.Ranked)
	require.NotNil(t, res.Convergence)
	assert.Equal(t, 40, res.Convergence.PopulationSize)
	assert.NotEmpty(t, res.Convergence.BestHistory)
	for i := 1; i < len(res.Convergence.BestHistory); i++ {
		assert.GreaterOrEqual(t, res.Convergence.BestHistory[i], res.Convergence.BestHistory[i-1])
	}

	// Ranking is descending and every solution stays inside the domain.
	for i := 1; i < len(res.Ranked); i++ {
		assert.GreaterOrEqual(t, res.Ranked[i-1].Score, res.Ranked[i].Score)
	}
	for _, s := range res.Ranked {
		assert.Contains(t, []agronomy.MethodType{agronomy.Band, agronomy.Injection}, s.Candidate.Method)
		assert.GreaterOrEqual(t, s.Candidate.RateKgHa, 100.0)
		assert.LessOrEqual(t, s.Candidate.RateKgHa, 350.0)
	}
}

func TestOptimizeEvolutionarySameSeedReproduces(t *testing.T) {
	d := New(Config{}, nil)

	first, err := d.Optimize(context.Background(), evolveRequest(7))
	require.NoError(t, err)
	second, err := d.Optimize(context.Background(), evolveRequest(7))
	require.NoError(t, err)

	assert.Equal(t, first.Ranked, second.Ranked)
	assert.Equal(t, first.Convergence.BestHistory, second.Convergence.BestHistory)
	assert.Equal(t, first.Convergence.Generations, second.Convergence.Generations)
}

func TestOptimizeErrorKindAgreesAcrossStrategies(t *testing.T) {
	// A malformed constraint is the caller's fault no matter which strategy
	// interprets it, so both paths must classify it as a validation error.
	d := New(Config{}, nil)
	bad := optimization.Constraint{Kind: "phase_of_moon"}

	listReq := testRequest(optimization.StrategyWeightedSum)
	listReq.Constraints = []optimization.Constraint{bad}
	_, err := d.Optimize(context.Background(), listReq)
	require.Error(t, err)
	assert.True(t, optimization.IsValidation(err))

	evoReq := evolveRequest(1)
	evoReq.Constraints = []optimization.Constraint{bad}
	_, err = d.Optimize(context.Background(), evoReq)
	require.Error(t, err)
	assert.True(t, optimization.IsValidation(err))
	assert.False(t, optimization.IsComputation(err))
}

func TestOptimizeEvolutionaryAllInfeasible(t *testing.T) {
	d := New(Config{}, nil)
	req := evolveRequest(3)
	req.Constraints = []optimization.Constraint{
		{Kind: optimization.ConstraintTiming, Op: optimization.OpIn, Allowed: []string{"pre_plant"}},
	}

	res, err := d.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, res.Feasible)
	assert.Empty(t, res.Ranked)
	assert.NotEmpty(t, res.Rejected)
	assert.NotEmpty(t, res.RelaxationHints)
	assert.NotNil(t, res.Convergence, "search telemetry survives an infeasible outcome")
}
