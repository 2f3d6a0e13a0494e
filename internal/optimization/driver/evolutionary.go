package driver

import (
	"context"
	"fmt"
	"sort"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
	"github.com/soilhub/fieldopt/internal/optimization/constraint"
	"github.com/soilhub/fieldopt/internal/optimization/evolve"
	"github.com/soilhub/fieldopt/internal/optimization/objective"
)

// runEvolutionary searches the parametric method x rate x timing space with
// the genetic engine, then ranks the unique feasible genomes of the final
// population the same way the weighted-sum strategy would.
func (d *Driver) runEvolutionary(ctx context.Context, req optimization.Request, w optimization.Weights) (*optimization.Result, error) {
	p := req.Evolve

	domain := evolve.Domain{
		Methods: p.Methods,
		RateMin: p.RateMin,
		RateMax: p.RateMax,
		Timings: p.Timings,
	}
	if len(domain.Methods) == 0 {
		domain.Methods = agronomy.MethodTypes()
	}
	if len(domain.Timings) == 0 {
		domain.Timings = agronomy.TimingSlots()
	}

	env := constraint.Context{Field: req.Field, Crop: req.Crop, Inventory: req.Inventory}

	// Fitness evaluation errors abort the whole run: a wrong numeric score
	// is worse than an explicit failure. Infeasibility is not an error; it
	// maps to the penalty floor so the pool can still recover.
	fitness := func(g evolve.Genome) (float64, error) {
		cand := d.synthesize(g, *p)
		verdict, err := constraint.Check(cand, req.Constraints, env)
		if err != nil {
			return 0, err
		}
		if !verdict.Feasible {
			return penaltyFloor - float64(len(verdict.Violations)), nil
		}
		vec, err := objective.Evaluate(cand, req.Field, req.Crop)
		if err != nil {
			return 0, err
		}
		return w.Dot(vec), nil
	}

	workers := req.Workers
	if workers < 1 {
		workers = d.cfg.Workers
	}
	params := evolve.Params{
		PopulationSize: pickInt(p.PopulationSize, d.cfg.PopulationSize),
		MaxGenerations: pickInt(p.MaxGenerations, d.cfg.MaxGenerations),
		TournamentSize: p.TournamentSize,
		CrossoverProb:  p.CrossoverProb,
		MutationProb:   p.MutationProb,
		EliteCount:     p.EliteCount,
		PlateauWindow:  pickInt(p.PlateauWindow, d.cfg.PlateauWindow),
		PlateauEpsilon: p.PlateauEpsilon,
		Seed:           p.Seed,
		Workers:        workers,
		SeedGenomes:    seedGenomes(p.SeedCandidates),
	}

	engine, err := evolve.New(params, domain, fitness)
	if err != nil {
		return nil, err
	}
	outcome, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	ranked, rejected, err := d.rankFinalPopulation(outcome.Population, req, *p, w, env)
	if err != nil {
		return nil, err
	}

	conv := &optimization.Convergence{
		Generations:    outcome.Generations,
		PopulationSize: params.PopulationSize,
		BestHistory:    outcome.BestHistory,
		Plateaued:      outcome.Plateaued,
	}

	if len(ranked) == 0 {
		res := noFeasibleResult(rejected)
		res.Convergence = conv
		return res, nil
	}
	return &optimization.Result{
		Feasible:    true,
		Ranked:      ranked,
		Achievement: achievement(ranked[0].Objectives),
		Convergence: conv,
	}, nil
}

// synthesize maps a genome one-to-one onto an evaluable candidate, carrying
// the treatment specification and per-method equipment requirement from the
// request.
func (d *Driver) synthesize(g evolve.Genome, p optimization.EvolveParams) agronomy.Candidate {
	return agronomy.Candidate{
		ID:        fmt.Sprintf("%s@%.2fkg:%s", g.Method, g.Rate, g.Timing),
		Method:    g.Method,
		RateKgHa:  g.Rate,
		Timing:    g.Timing,
		Equipment: p.Equipment[g.Method],
		Treatment: p.Treatment,
	}
}

// rankFinalPopulation deduplicates the final population, keeps the feasible
// genomes and returns them scalarized and sorted. Elitism guarantees the
// best genome ever observed is still in the final population.
func (d *Driver) rankFinalPopulation(pop []evolve.Genome, req optimization.Request, p optimization.EvolveParams, w optimization.Weights, env constraint.Context) ([]optimization.ScoredCandidate, []optimization.Rejection, error) {
	seen := map[evolve.Genome]bool{}
	var ranked []optimization.ScoredCandidate
	var rejected []optimization.Rejection

	for _, g := range pop {
		if seen[g] {
			continue
		}
		seen[g] = true

		cand := d.synthesize(g, p)
		verdict, err := constraint.Check(cand, req.Constraints, env)
		if err != nil {
			return nil, nil, err
		}
		if !verdict.Feasible {
			rejected = append(rejected, optimization.Rejection{CandidateID: cand.ID, Violations: verdict.Violations})
			continue
		}
		vec, err := objective.Evaluate(cand, req.Field, req.Crop)
		if err != nil {
			return nil, nil, err
		}
		ranked = append(ranked, optimization.ScoredCandidate{
			Candidate:  cand,
			Objectives: vec,
			Score:      w.Dot(vec),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, rejected, nil
}

// seedGenomes projects known-good candidates onto genome tuples.
func seedGenomes(cands []agronomy.Candidate) []evolve.Genome {
	if len(cands) == 0 {
		return nil
	}
	out := make([]evolve.Genome, len(cands))
	for i, c := range cands {
		out[i] = evolve.Genome{Method: c.Method, Rate: c.RateKgHa, Timing: c.Timing}
	}
	return out
}

func pickInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
