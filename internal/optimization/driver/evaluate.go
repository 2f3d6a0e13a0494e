package driver

import (
	"sync"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
	"github.com/soilhub/fieldopt/internal/optimization/objective"
)

// evaluateAll scores each candidate's objective vector. Evaluation is a pure
// function per candidate, so the work is split into index ranges across
// workers; with workers <= 1 it runs sequentially with the same output.
// The first failing candidate (by index) determines the returned error.
func evaluateAll(cands []agronomy.Candidate, field agronomy.FieldConditions, crop agronomy.CropRequirements, workers int) ([]optimization.ScoredCandidate, error) {
	if len(cands) == 0 {
		return nil, nil
	}

	scored := make([]optimization.ScoredCandidate, len(cands))
	errs := make([]error, len(cands))

	eval := func(i int) {
		vec, err := objective.Evaluate(cands[i], field, crop)
		if err != nil {
			errs[i] = err
			return
		}
		scored[i] = optimization.ScoredCandidate{Candidate: cands[i], Objectives: vec}
	}

	if workers <= 1 || len(cands) < 2 {
		for i := range cands {
			eval(i)
		}
	} else {
		if workers > len(cands) {
			workers = len(cands)
		}
		var wg sync.WaitGroup
		chunk := (len(cands) + workers - 1) / workers
		for w := 0; w < workers; w++ {
			lo := w * chunk
			hi := lo + chunk
			if hi > len(cands) {
				hi = len(cands)
			}
			if lo >= hi {
				break
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					eval(i)
				}
			}(lo, hi)
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return scored, nil
}
