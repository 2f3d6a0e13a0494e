// Package driver orchestrates an optimization request end to end: input
// validation, goal-weight normalization, the up-front feasibility filter,
// strategy dispatch and result assembly.
package driver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
	"github.com/soilhub/fieldopt/internal/optimization/constraint"
	"github.com/soilhub/fieldopt/internal/optimization/objective"
	"github.com/soilhub/fieldopt/internal/optimization/strategy"
)

// penaltyFloor is the fitness assigned to infeasible genomes in the
// evolutionary strategy. Feasible scalarized scores live in [-1, 1], so any
// feasible genome outranks every infeasible one; the violation count is
// subtracted so less-violating genomes still pull the pool toward
// feasibility.
const penaltyFloor = -1e3

// Config carries the tuning defaults applied to requests that leave the
// corresponding fields zero. It is passed in at construction, never read
// from mutable package state, so concurrent requests with different tuning
// cannot interfere.
type Config struct {
	Workers        int
	PopulationSize int
	MaxGenerations int
	PlateauWindow  int
}

// Driver runs optimization requests. It holds no per-request state and is
// safe for concurrent use.
type Driver struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a driver. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Driver{cfg: cfg, logger: logger}
}

// handler runs one strategy over a validated request with normalized
// weights. New strategies are added by extending this table, not by growing
// a conditional chain.
type handler func(d *Driver, ctx context.Context, req optimization.Request, w optimization.Weights) (*optimization.Result, error)

var handlers = map[optimization.StrategyKind]handler{
	optimization.StrategyWeightedSum:   (*Driver).runWeightedSum,
	optimization.StrategyPareto:        (*Driver).runPareto,
	optimization.StrategyConstraintSat: (*Driver).runConstraintSat,
	optimization.StrategyEvolutionary:  (*Driver).runEvolutionary,
}

// Optimize validates the request, resolves goal weights and dispatches the
// selected strategy. An empty feasible set is a structured result, not an
// error; only malformed requests and internal model failures return errors.
func (d *Driver) Optimize(ctx context.Context, req optimization.Request) (*optimization.Result, error) {
	start := time.Now()

	if err := validate(req); err != nil {
		return nil, err
	}
	weights, err := resolveWeights(req.GoalWeights)
	if err != nil {
		return nil, err
	}

	run, ok := handlers[req.Strategy]
	if !ok {
		return nil, optimization.NewValidationError("unknown strategy %q", req.Strategy).WithComponent("driver")
	}

	result, err := run(d, ctx, req, weights)
	if err != nil {
		return nil, err
	}

	result.Strategy = req.Strategy
	result.Elapsed = time.Since(start)

	d.logger.Info("optimization completed",
		zap.String("strategy", string(req.Strategy)),
		zap.Bool("feasible", result.Feasible),
		zap.Int("ranked", len(result.Ranked)),
		zap.Int("front", len(result.Front)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// validate fails fast on malformed input shape and ranges. Per-candidate
// domain checks happen inside the objective evaluator.
func validate(req optimization.Request) error {
	if req.Strategy == "" {
		return optimization.NewValidationError("strategy selector is required").WithComponent("driver")
	}
	if req.Field.SizeHa <= 0 {
		return optimization.NewValidationError("field size must be positive, got %.2f ha", req.Field.SizeHa).WithComponent("driver")
	}
	if req.Strategy == optimization.StrategyEvolutionary {
		if req.Evolve == nil {
			return optimization.NewValidationError("evolutionary strategy requires parametric domain bounds").WithComponent("driver")
		}
		// The search domain and treatment feed every synthesized candidate;
		// rejecting them here beats failing thousands of fitness evaluations
		// deep inside the engine.
		for _, m := range req.Evolve.Methods {
			if !m.Valid() {
				return optimization.NewValidationError("unknown application method %q in search domain", m).WithComponent("driver")
			}
		}
		for _, slot := range req.Evolve.Timings {
			if !slot.Valid() {
				return optimization.NewValidationError("unknown timing slot %q in search domain", slot).WithComponent("driver")
			}
		}
		if req.Evolve.Treatment.PricePerKg < 0 {
			return optimization.NewValidationError("negative treatment price %.2f $/kg", req.Evolve.Treatment.PricePerKg).WithComponent("driver")
		}
	} else if len(req.Candidates) == 0 {
		return optimization.NewValidationError("candidate set is empty").WithComponent("driver")
	}
	return nil
}

// resolveWeights maps named goal weights onto the axis vector and
// renormalizes. Missing or all-zero weights become uniform; that rewrite is
// documented driver behavior, not error suppression.
func resolveWeights(goal map[string]float64) (optimization.Weights, error) {
	if len(goal) == 0 {
		return optimization.Uniform(), nil
	}
	var w optimization.Weights
	for name, value := range goal {
		axis, ok := optimization.ParseAxis(name)
		if !ok {
			return w, optimization.NewValidationError("unknown objective axis %q", name).WithComponent("driver")
		}
		if value < 0 || value > 1 {
			return w, optimization.NewValidationError("weight for %q must be in [0, 1], got %.3f", name, value).WithComponent("driver")
		}
		w[axis] = value
	}
	return w.Normalize(), nil
}

// evaluateFeasible runs the constraint filter across all candidates, then
// evaluates objectives for the survivors. Evaluation fans out across the
// configured workers; results land by candidate index, so the parallel and
// sequential paths are bit-identical.
func (d *Driver) evaluateFeasible(req optimization.Request) ([]optimization.ScoredCandidate, []optimization.Rejection, error) {
	env := constraint.Context{Field: req.Field, Crop: req.Crop, Inventory: req.Inventory}

	var feasible []agronomy.Candidate
	var rejected []optimization.Rejection
	for _, c := range req.Candidates {
		verdict, err := constraint.Check(c, req.Constraints, env)
		if err != nil {
			return nil, nil, err
		}
		if verdict.Feasible {
			feasible = append(feasible, c)
		} else {
			rejected = append(rejected, optimization.Rejection{CandidateID: c.ID, Violations: verdict.Violations})
		}
	}

	workers := req.Workers
	if workers < 1 {
		workers = d.cfg.Workers
	}
	scored, err := evaluateAll(feasible, req.Field, req.Crop, workers)
	if err != nil {
		return nil, nil, err
	}
	return scored, rejected, nil
}

func (d *Driver) runWeightedSum(ctx context.Context, req optimization.Request, w optimization.Weights) (*optimization.Result, error) {
	scored, rejected, err := d.evaluateFeasible(req)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return noFeasibleResult(rejected), nil
	}
	ranked := strategy.WeightedSum(scored, w)
	return &optimization.Result{
		Feasible:    true,
		Ranked:      ranked,
		Achievement: achievement(ranked[0].Objectives),
		Rejected:    rejected,
	}, nil
}

func (d *Driver) runPareto(ctx context.Context, req optimization.Request, w optimization.Weights) (*optimization.Result, error) {
	scored, rejected, err := d.evaluateFeasible(req)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return noFeasibleResult(rejected), nil
	}
	front := strategy.ParetoFront(scored)
	return &optimization.Result{
		Feasible:    true,
		Front:       front,
		Achievement: achievement(front[0].Objectives),
		Rejected:    rejected,
	}, nil
}

func (d *Driver) runConstraintSat(ctx context.Context, req optimization.Request, w optimization.Weights) (*optimization.Result, error) {
	scored, rejected, err := d.evaluateFeasible(req)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return noFeasibleResult(rejected), nil
	}
	ranked := strategy.FeasibleSet(scored)
	// Ranked keeps identity order here, so the achievement summary is based
	// on the best-scoring feasible entry under the resolved weights rather
	// than whichever candidate happened to come first.
	best := ranked[0].Objectives
	bestScore := w.Dot(best)
	for _, c := range ranked[1:] {
		if score := w.Dot(c.Objectives); score > bestScore {
			best, bestScore = c.Objectives, score
		}
	}
	return &optimization.Result{
		Feasible:    true,
		Ranked:      ranked,
		Achievement: achievement(best),
		Rejected:    rejected,
	}, nil
}

// noFeasibleResult reports that every candidate was rejected, with the most
// frequently violated constraint kinds surfaced as relaxation hints.
func noFeasibleResult(rejected []optimization.Rejection) *optimization.Result {
	return &optimization.Result{
		Feasible:        false,
		Rejected:        rejected,
		RelaxationHints: relaxationHints(rejected),
	}
}

// relaxationHints ranks constraint kinds by how many candidates they
// rejected, most frequent first, ties alphabetical.
func relaxationHints(rejected []optimization.Rejection) []string {
	counts := map[string]int{}
	for _, r := range rejected {
		seen := map[string]bool{}
		for _, v := range r.Violations {
			kind := constraint.Kind(v)
			if !seen[kind] {
				seen[kind] = true
				counts[kind]++
			}
		}
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if counts[kinds[i]] != counts[kinds[j]] {
			return counts[kinds[i]] > counts[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})

	hints := make([]string, len(kinds))
	for i, k := range kinds {
		hints[i] = fmt.Sprintf("relax %s constraints (violated by %d of %d candidates)", k, counts[k], len(rejected))
	}
	return hints
}

// achievement maps the best solution's vector onto per-axis 0-1 attainment
// using the evaluator's fixed bounds.
func achievement(v optimization.Vector) map[string]float64 {
	out := make(map[string]float64, optimization.NumAxes)
	for _, axis := range optimization.Axes() {
		min, max := objective.AxisBounds(axis)
		out[axis.String()] = (v[axis] - min) / (max - min)
	}
	return out
}
