// Package evolve searches the parametric configuration space (method-type x
// rate x timing-slot) with a genetic algorithm. It is used when the caller
// has domain bounds rather than a small enumerable candidate list.
//
// The engine owns a single seedable random source; identical seed, domain
// and fitness function reproduce the run exactly, including under parallel
// fitness evaluation (the RNG is only touched from the generation loop).
package evolve

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
)

// Genome encodes one synthesizable candidate as a tuple of tunable genes.
type Genome struct {
	Method agronomy.MethodType
	Rate   float64
	Timing agronomy.TimingSlot
}

// Domain bounds each gene. Rate is continuous in [RateMin, RateMax]; method
// and timing are drawn from their listed values.
type Domain struct {
	Methods []agronomy.MethodType
	RateMin float64
	RateMax float64
	Timings []agronomy.TimingSlot
}

// Fitness scores a genome. Higher is better. Implementations penalize
// infeasible genomes with a floor far below any feasible score instead of
// returning an error, so the gene pool can recover feasible descendants;
// errors are reserved for genuine evaluation failures and abort the run.
type Fitness func(Genome) (float64, error)

// Params tunes the search. Zero values fall back to the documented defaults.
type Params struct {
	PopulationSize int     // default 200
	MaxGenerations int     // default 120
	TournamentSize int     // default 3
	CrossoverProb  float64 // default 0.9
	MutationProb   float64 // default 0.15, applied per gene
	RateSigma      float64 // Gaussian rate perturbation as a fraction of the rate span, default 0.1
	EliteCount     int     // default 2
	PlateauWindow  int     // default 15 consecutive non-improving generations
	PlateauEpsilon float64 // default 1e-6
	Seed           int64   // 0 means seed from the clock
	Workers        int     // parallel fitness evaluation, <=1 is sequential

	// SeedGenomes are known-good starting points injected into the initial
	// population ahead of random sampling.
	SeedGenomes []Genome
}

// Outcome is the terminal state of a run.
type Outcome struct {
	Best        Genome
	BestFitness float64
	Population  []Genome
	Generations int
	// BestHistory holds the best fitness observed after each generation,
	// including the initial population as entry zero. Elitism makes it
	// non-decreasing.
	BestHistory []float64
	Plateaued   bool
}

// Engine runs the genetic search.
type Engine struct {
	params  Params
	domain  Domain
	fitness Fitness
	rng     *rand.Rand
}

// New validates the domain, applies parameter defaults and seeds the random
// source.
func New(params Params, domain Domain, fitness Fitness) (*Engine, error) {
	if fitness == nil {
		return nil, optimization.NewValidationError("fitness function is required").WithComponent("evolve")
	}
	if len(domain.Methods) == 0 {
		return nil, optimization.NewValidationError("domain has no method types").WithComponent("evolve")
	}
	if len(domain.Timings) == 0 {
		return nil, optimization.NewValidationError("domain has no timing slots").WithComponent("evolve")
	}
	if domain.RateMin < 0 || domain.RateMax <= domain.RateMin {
		return nil, optimization.NewValidationError("invalid rate bounds [%.2f, %.2f]", domain.RateMin, domain.RateMax).WithComponent("evolve")
	}

	if params.PopulationSize < 1 {
		params.PopulationSize = 200
	}
	if params.MaxGenerations < 1 {
		params.MaxGenerations = 120
	}
	if params.TournamentSize < 2 {
		params.TournamentSize = 3
	}
	if params.CrossoverProb <= 0 {
		params.CrossoverProb = 0.9
	}
	if params.MutationProb <= 0 {
		params.MutationProb = 0.15
	}
	if params.RateSigma <= 0 {
		params.RateSigma = 0.1
	}
	if params.EliteCount < 1 {
		params.EliteCount = 2
	}
	if params.EliteCount > params.PopulationSize {
		params.EliteCount = params.PopulationSize
	}
	if params.PlateauWindow < 1 {
		params.PlateauWindow = 15
	}
	if params.PlateauEpsilon <= 0 {
		params.PlateauEpsilon = 1e-6
	}

	seed := params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		params:  params,
		domain:  domain,
		fitness: fitness,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Run evolves the population until the generation cap or a fitness plateau.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	pop := e.initialPopulation()
	fits, err := e.evaluate(pop)
	if err != nil {
		return nil, err
	}

	best, bestFit := e.fittest(pop, fits)
	history := []float64{bestFit}
	sinceImproved := 0
	plateaued := false

	gen := 0
	for ; gen < e.params.MaxGenerations; gen++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pop = e.nextGeneration(pop, fits)
		fits, err = e.evaluate(pop)
		if err != nil {
			return nil, err
		}

		genBest, genFit := e.fittest(pop, fits)
		if genFit > bestFit+e.params.PlateauEpsilon {
			best, bestFit = genBest, genFit
			sinceImproved = 0
		} else {
			// Elites carry over unchanged, so the best never regresses.
			if genFit > bestFit {
				best, bestFit = genBest, genFit
			}
			sinceImproved++
		}
		history = append(history, bestFit)

		if sinceImproved >= e.params.PlateauWindow {
			plateaued = true
			gen++
			break
		}
	}

	return &Outcome{
		Best:        best,
		BestFitness: bestFit,
		Population:  pop,
		Generations: gen,
		BestHistory: history,
		Plateaued:   plateaued,
	}, nil
}

// initialPopulation seeds known-good genomes first (clipped into the
// domain), then fills the rest by uniform sampling within each gene's range.
func (e *Engine) initialPopulation() []Genome {
	pop := make([]Genome, 0, e.params.PopulationSize)
	for _, g := range e.params.SeedGenomes {
		if len(pop) == e.params.PopulationSize {
			break
		}
		pop = append(pop, e.clip(g))
	}
	for len(pop) < e.params.PopulationSize {
		pop = append(pop, e.randomGenome())
	}
	return pop
}

func (e *Engine) randomGenome() Genome {
	return Genome{
		Method: e.domain.Methods[e.rng.Intn(len(e.domain.Methods))],
		Rate:   e.domain.RateMin + e.rng.Float64()*(e.domain.RateMax-e.domain.RateMin),
		Timing: e.domain.Timings[e.rng.Intn(len(e.domain.Timings))],
	}
}

// clip forces a genome inside the domain. Seed candidates may reference
// methods or timings the search is not allowed to use; those genes are
// resampled rather than dropped.
func (e *Engine) clip(g Genome) Genome {
	if !contains(e.domain.Methods, g.Method) {
		g.Method = e.domain.Methods[e.rng.Intn(len(e.domain.Methods))]
	}
	if !containsSlot(e.domain.Timings, g.Timing) {
		g.Timing = e.domain.Timings[e.rng.Intn(len(e.domain.Timings))]
	}
	g.Rate = math.Max(e.domain.RateMin, math.Min(e.domain.RateMax, g.Rate))
	return g
}

// nextGeneration applies elitism, tournament selection, uniform crossover
// and per-gene mutation.
func (e *Engine) nextGeneration(pop []Genome, fits []float64) []Genome {
	next := make([]Genome, 0, e.params.PopulationSize)

	for _, idx := range e.eliteIndices(fits) {
		next = append(next, pop[idx])
	}

	for len(next) < e.params.PopulationSize {
		p1 := pop[e.tournament(fits)]
		p2 := pop[e.tournament(fits)]
		child := e.crossover(p1, p2)
		child = e.mutate(child)
		next = append(next, child)
	}
	return next
}

// eliteIndices returns the EliteCount fittest population indices, ties
// broken by position so runs stay reproducible.
func (e *Engine) eliteIndices(fits []float64) []int {
	order := make([]int, len(fits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return fits[order[i]] > fits[order[j]]
	})
	return order[:e.params.EliteCount]
}

// tournament draws TournamentSize genomes at random and returns the index
// of the fittest. Chosen over roulette selection to stay robust to
// fitness-scale differences across objective axes.
func (e *Engine) tournament(fits []float64) int {
	best := e.rng.Intn(len(fits))
	for i := 1; i < e.params.TournamentSize; i++ {
		c := e.rng.Intn(len(fits))
		if fits[c] > fits[best] {
			best = c
		}
	}
	return best
}

// crossover inherits each gene independently from one of the two parents.
func (e *Engine) crossover(p1, p2 Genome) Genome {
	if e.rng.Float64() >= e.params.CrossoverProb {
		return p1
	}
	child := p1
	if e.rng.Float64() < 0.5 {
		child.Method = p2.Method
	}
	if e.rng.Float64() < 0.5 {
		child.Rate = p2.Rate
	}
	if e.rng.Float64() < 0.5 {
		child.Timing = p2.Timing
	}
	return child
}

// mutate perturbs each gene with MutationProb: the rate by a bounded
// Gaussian step clipped to its domain, method and timing by uniform
// resampling.
func (e *Engine) mutate(g Genome) Genome {
	if e.rng.Float64() < e.params.MutationProb {
		g.Method = e.domain.Methods[e.rng.Intn(len(e.domain.Methods))]
	}
	if e.rng.Float64() < e.params.MutationProb {
		span := e.domain.RateMax - e.domain.RateMin
		g.Rate += e.rng.NormFloat64() * e.params.RateSigma * span
		g.Rate = math.Max(e.domain.RateMin, math.Min(e.domain.RateMax, g.Rate))
	}
	if e.rng.Float64() < e.params.MutationProb {
		g.Timing = e.domain.Timings[e.rng.Intn(len(e.domain.Timings))]
	}
	return g
}

// evaluate scores the whole population. With Workers > 1 the population is
// split into index ranges evaluated concurrently; results land by index, so
// the outcome is identical to the sequential path.
func (e *Engine) evaluate(pop []Genome) ([]float64, error) {
	fits := make([]float64, len(pop))
	errs := make([]error, len(pop))

	workers := e.params.Workers
	if workers <= 1 || len(pop) < 2 {
		for i, g := range pop {
			fits[i], errs[i] = e.fitness(g)
		}
	} else {
		if workers > len(pop) {
			workers = len(pop)
		}
		var wg sync.WaitGroup
		chunk := (len(pop) + workers - 1) / workers
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := lo + chunk
			if hi > len(pop) {
				hi = len(pop)
			}
			if lo >= hi {
				break
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					fits[i], errs[i] = e.fitness(pop[i])
				}
			}(lo, hi)
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			// Classified errors keep their kind: a validation failure inside
			// the fitness closure is still the caller's malformed input, not
			// an engine fault.
			var oerr *optimization.Error
			if errors.As(err, &oerr) {
				return nil, err
			}
			return nil, optimization.WrapComputation(err, "fitness evaluation failed").WithComponent("evolve")
		}
	}
	return fits, nil
}

// fittest returns the best genome and fitness, ties broken by index.
func (e *Engine) fittest(pop []Genome, fits []float64) (Genome, float64) {
	best := 0
	for i := 1; i < len(fits); i++ {
		if fits[i] > fits[best] {
			best = i
		}
	}
	return pop[best], fits[best]
}

func contains(set []agronomy.MethodType, v agronomy.MethodType) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsSlot(set []agronomy.TimingSlot, v agronomy.TimingSlot) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
