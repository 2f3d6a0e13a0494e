// Package optimization defines the shared contract between the optimization
// driver and its strategies: objective axes, score vectors, goal weights,
// declarative constraints and the request/result envelope. The algorithmic
// pieces live in the subpackages (objective, constraint, strategy, evolve,
// driver).
package optimization

import (
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/soilhub/fieldopt/internal/agronomy"
)

// Axis is one dimension of merit. The order is fixed and every Vector and
// Weights value is indexed by it.
type Axis int

const (
	AxisYield Axis = iota
	AxisCost
	AxisEnvironment
	AxisLabor
	AxisNutrientUse

	// NumAxes is the fixed length of Vector and Weights.
	NumAxes
)

var axisNames = [NumAxes]string{"yield", "cost", "environment", "labor", "nutrient_use"}

// String returns the stable identifier for the axis.
func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return "unknown"
	}
	return axisNames[a]
}

// ParseAxis resolves an axis identifier such as "yield" or "cost".
func ParseAxis(name string) (Axis, bool) {
	for i, n := range axisNames {
		if n == name {
			return Axis(i), true
		}
	}
	return 0, false
}

// Axes returns all axes in their fixed order.
func Axes() []Axis {
	out := make([]Axis, NumAxes)
	for i := range out {
		out[i] = Axis(i)
	}
	return out
}

// Vector is a candidate's score on every axis. Every entry is oriented so
// that larger is better: cost, environmental impact and labor burden are
// negated before storage. All strategies depend on this orientation.
type Vector [NumAxes]float64

// Weights maps each axis to a non-negative goal weight. A Weights value is
// only meaningful after Normalize or Uniform: entries sum to 1.
type Weights [NumAxes]float64

// Uniform returns equal weight on every axis.
func Uniform() Weights {
	var w Weights
	for i := range w {
		w[i] = 1.0 / float64(NumAxes)
	}
	return w
}

// Normalize scales w so its entries sum to 1. An all-zero input yields
// uniform weights; this is the one documented case where supplied weights
// are rewritten rather than rejected.
func (w Weights) Normalize() Weights {
	sum := floats.Sum(w[:])
	if sum == 0 {
		return Uniform()
	}
	var out Weights
	for i, v := range w {
		out[i] = v / sum
	}
	return out
}

// Dot returns the scalarized score of v under w.
func (w Weights) Dot(v Vector) float64 {
	return floats.Dot(w[:], v[:])
}

// StrategyKind selects the search strategy the driver runs.
type StrategyKind string

const (
	StrategyWeightedSum   StrategyKind = "weighted_sum"
	StrategyPareto        StrategyKind = "pareto"
	StrategyConstraintSat StrategyKind = "constraint_satisfaction"
	StrategyEvolutionary  StrategyKind = "evolutionary"
)

// StrategyKinds lists every selectable strategy.
func StrategyKinds() []StrategyKind {
	return []StrategyKind{StrategyWeightedSum, StrategyPareto, StrategyConstraintSat, StrategyEvolutionary}
}

// EvolveParams tunes the evolutionary strategy and describes the parametric
// configuration space it searches. Zero-valued tuning fields fall back to the
// driver's configured defaults.
type EvolveParams struct {
	// Search domain: method-type x continuous rate x timing slot.
	Methods []agronomy.MethodType `json:"methods,omitempty"`
	RateMin float64               `json:"rate_min"`
	RateMax float64               `json:"rate_max"`
	Timings []agronomy.TimingSlot `json:"timings,omitempty"`

	// Treatment applied to every synthesized candidate, and the equipment
	// tag each method requires (missing entries mean no requirement).
	Treatment agronomy.Treatment             `json:"treatment"`
	Equipment map[agronomy.MethodType]string `json:"equipment,omitempty"`

	// Known-good candidates used to seed part of the initial population.
	SeedCandidates []agronomy.Candidate `json:"seed_candidates,omitempty"`

	PopulationSize int     `json:"population_size,omitempty"`
	MaxGenerations int     `json:"max_generations,omitempty"`
	TournamentSize int     `json:"tournament_size,omitempty"`
	CrossoverProb  float64 `json:"crossover_prob,omitempty"`
	MutationProb   float64 `json:"mutation_prob,omitempty"`
	EliteCount     int     `json:"elite_count,omitempty"`
	PlateauWindow  int     `json:"plateau_window,omitempty"`
	PlateauEpsilon float64 `json:"plateau_epsilon,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
}

// Request bundles everything one optimization call needs. Requests are
// self-contained; nothing is shared across calls.
type Request struct {
	Field agronomy.FieldConditions  `json:"field"`
	Crop  agronomy.CropRequirements `json:"crop"`

	// Candidates to rank. Required for every strategy except evolutionary,
	// which searches the parametric space in Evolve instead.
	Candidates []agronomy.Candidate `json:"candidates,omitempty"`

	// Equipment tags the farm has available. Consulted by equipment
	// constraints; an empty inventory means no equipment restriction.
	Inventory []string `json:"inventory,omitempty"`

	Constraints []Constraint `json:"constraints,omitempty"`

	// GoalWeights maps axis identifiers to non-negative weights. Omitted or
	// all-zero weights become uniform; any other set is renormalized to 1.
	GoalWeights map[string]float64 `json:"goal_weights,omitempty"`

	Strategy StrategyKind  `json:"strategy"`
	Evolve   *EvolveParams `json:"evolve,omitempty"`

	// Workers caps parallelism for objective evaluation. Zero means the
	// driver's configured default; 1 forces the sequential path, which
	// produces identical results.
	Workers int `json:"workers,omitempty"`
}

// ScoredCandidate is a feasible candidate with its objective vector and,
// for scalarizing strategies, its weighted score.
type ScoredCandidate struct {
	Candidate  agronomy.Candidate `json:"candidate"`
	Objectives Vector             `json:"objectives"`
	Score      float64            `json:"score"`
}

// ParetoEntry is a member of the non-dominated front. Crowding is the
// NSGA-II crowding distance; the maximal float marks boundary members and
// singleton fronts.
type ParetoEntry struct {
	Candidate  agronomy.Candidate `json:"candidate"`
	Objectives Vector             `json:"objectives"`
	Crowding   float64            `json:"crowding"`
}

// Rejection records why a candidate failed the feasibility filter.
type Rejection struct {
	CandidateID string   `json:"candidate_id"`
	Violations  []string `json:"violations"`
}

// Convergence reports how an evolutionary run terminated.
type Convergence struct {
	Generations    int       `json:"generations"`
	PopulationSize int       `json:"population_size"`
	BestHistory    []float64 `json:"best_history"`
	Plateaued      bool      `json:"plateaued"`
}

// Result is the envelope returned by the driver. When Feasible is false no
// candidate survived constraint filtering and RelaxationHints carries the
// most frequently violated constraints instead of a ranking.
type Result struct {
	Strategy StrategyKind `json:"strategy"`
	Feasible bool         `json:"feasible"`

	Ranked []ScoredCandidate `json:"ranked,omitempty"`
	Front  []ParetoEntry     `json:"front,omitempty"`

	// Achievement is the best solution's normalized attainment per axis,
	// mapped onto [0, 1] using the evaluator's fixed bounds. For ranking
	// strategies that is the top-ranked entry; for constraint satisfaction,
	// where Ranked keeps identity order, it is the best-scoring feasible
	// entry under the resolved weights.
	Achievement map[string]float64 `json:"achievement,omitempty"`

	Rejected        []Rejection `json:"rejected,omitempty"`
	RelaxationHints []string    `json:"relaxation_hints,omitempty"`

	Elapsed     time.Duration `json:"elapsed_ns"`
	Convergence *Convergence  `json:"convergence,omitempty"`
}
