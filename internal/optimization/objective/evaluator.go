// Package objective scores candidates on the five objective axes. Evaluate
// is a pure function: identical inputs produce identical vectors, which is
// what allows the driver to fan evaluation out across workers and still get
// bit-identical results.
//
// Raw domain quantities are mapped onto comparable scales using fixed,
// domain-wide bounds (MaxCostPerHa, MaxLaborHoursPerHa) rather than min-max
// over the candidate set, so scores are reproducible across requests with
// different candidate sets. Yield and nutrient-use efficiency land in [0, 1];
// cost, environment and labor are normalized into [0, 1] and negated, keeping
// every axis oriented larger-is-better.
package objective

import (
	"math"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
)

// Fixed normalization bounds. Candidates costlier or more labor-intensive
// than these saturate at the worst score instead of stretching the scale.
const (
	// MaxCostPerHa is the cost ceiling in $/ha used to normalize the cost axis.
	MaxCostPerHa = 400.0
	// MaxLaborHoursPerHa is the labor ceiling in h/ha used to normalize the labor axis.
	MaxLaborHoursPerHa = 2.5
)

// methodProfile captures the per-method coefficients the axis models share.
type methodProfile struct {
	// uptake is the fraction of applied nutrient the crop can actually use.
	uptake float64
	// applicationCostHa is the machinery and operation cost in $/ha,
	// independent of product.
	applicationCostHa float64
	// laborHoursHa is operator time in h/ha.
	laborHoursHa float64
	// runoffRisk is the base environmental loss risk on flat, well-drained
	// ground, in [0, 1].
	runoffRisk float64
}

var profiles = map[agronomy.MethodType]methodProfile{
	agronomy.Broadcast: {uptake: 0.60, applicationCostHa: 8, laborHoursHa: 0.15, runoffRisk: 0.55},
	agronomy.Band:      {uptake: 0.80, applicationCostHa: 14, laborHoursHa: 0.30, runoffRisk: 0.30},
	agronomy.Injection: {uptake: 0.90, applicationCostHa: 22, laborHoursHa: 0.45, runoffRisk: 0.10},
	agronomy.Foliar:    {uptake: 0.70, applicationCostHa: 16, laborHoursHa: 0.35, runoffRisk: 0.20},
	agronomy.Drip:      {uptake: 0.85, applicationCostHa: 12, laborHoursHa: 0.20, runoffRisk: 0.12},
}

var slotIndex = map[agronomy.TimingSlot]int{
	agronomy.PrePlant:    0,
	agronomy.AtPlanting:  1,
	agronomy.EarlySeason: 2,
	agronomy.MidSeason:   3,
}

// Evaluate computes the candidate's objective vector for the given field and
// crop. Missing or out-of-domain inputs fail with a validation error rather
// than scoring zero, since zero is a meaningful score.
func Evaluate(c agronomy.Candidate, field agronomy.FieldConditions, crop agronomy.CropRequirements) (optimization.Vector, error) {
	var v optimization.Vector

	prof, ok := profiles[c.Method]
	if !ok {
		return v, optimization.NewValidationError("unknown application method %q", c.Method).WithComponent("objective")
	}
	if _, ok := slotIndex[c.Timing]; !ok {
		return v, optimization.NewValidationError("unknown timing slot %q", c.Timing).WithComponent("objective")
	}
	if c.RateKgHa < 0 {
		return v, optimization.NewValidationError("negative application rate %.2f kg/ha", c.RateKgHa).WithComponent("objective")
	}
	if c.Treatment.PricePerKg < 0 {
		return v, optimization.NewValidationError("negative treatment price %.2f $/kg", c.Treatment.PricePerKg).WithComponent("objective")
	}
	if field.SizeHa <= 0 {
		return v, optimization.NewValidationError("field size must be positive, got %.2f ha", field.SizeHa).WithComponent("objective")
	}
	if !field.Soil.Valid() {
		return v, optimization.NewValidationError("unknown soil type %q", field.Soil).WithComponent("objective")
	}
	if !field.Drainage.Valid() {
		return v, optimization.NewValidationError("unknown drainage class %q", field.Drainage).WithComponent("objective")
	}
	if len(crop.Needs) == 0 {
		return v, optimization.NewValidationError("crop requirements carry no nutrient needs").WithComponent("objective")
	}
	for n, need := range crop.Needs {
		if need < 0 {
			return v, optimization.NewValidationError("negative requirement %.2f kg/ha for nutrient %q", need, n).WithComponent("objective")
		}
	}

	supply, over := nutrientBalance(c, crop, prof)

	v[optimization.AxisYield] = yieldScore(c, field, crop, supply)
	v[optimization.AxisCost] = -clamp01(CostPerHectare(c) / MaxCostPerHa)
	v[optimization.AxisEnvironment] = -environmentRisk(c, field, prof, over)
	v[optimization.AxisLabor] = -clamp01(LaborHoursPerHectare(c, field) / MaxLaborHoursPerHa)
	v[optimization.AxisNutrientUse] = nutrientUseScore(prof, supply, over)

	return v, nil
}

// CostPerHectare is the candidate's total application cost in $/ha: product
// at the planned rate plus the method's operation cost.
func CostPerHectare(c agronomy.Candidate) float64 {
	prof := profiles[c.Method]
	return c.RateKgHa*c.Treatment.PricePerKg + prof.applicationCostHa
}

// LaborHoursPerHectare is operator time in h/ha for the candidate on the
// given field. Steep ground slows every method down.
func LaborHoursPerHectare(c agronomy.Candidate, field agronomy.FieldConditions) float64 {
	hours := profiles[c.Method].laborHoursHa
	if field.SlopePercent > 8 {
		hours *= 1.15
	}
	return hours
}

// AxisBounds returns the fixed [min, max] range of stored values on an axis,
// used to map scores onto 0-1 goal achievement.
func AxisBounds(a optimization.Axis) (min, max float64) {
	switch a {
	case optimization.AxisYield, optimization.AxisNutrientUse:
		return 0, 1
	default:
		return -1, 0
	}
}

// nutrientBalance returns the mean supply ratio (usable nutrient delivered
// over crop need, capped at 1) and the mean over-application beyond need,
// across the nutrients the crop actually requires.
func nutrientBalance(c agronomy.Candidate, crop agronomy.CropRequirements, prof methodProfile) (supply, over float64) {
	n := 0
	for nutrient, need := range crop.Needs {
		if need == 0 {
			continue
		}
		supplied := c.RateKgHa * c.Treatment.Nutrients[nutrient] * prof.uptake
		ratio := supplied / need
		supply += math.Min(ratio, 1)
		over += math.Max(ratio-1, 0)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return supply / float64(n), over / float64(n)
}

// yieldScore models the yield contribution of the application: nutrient
// supply discounted by timing misalignment and field handicaps.
func yieldScore(c agronomy.Candidate, field agronomy.FieldConditions, crop agronomy.CropRequirements, supply float64) float64 {
	timing := 1.0
	if stage, ok := slotIndex[crop.GrowthStage]; ok {
		misalign := math.Abs(float64(slotIndex[c.Timing] - stage))
		timing = 1 - 0.1*misalign
	}

	fieldFactor := 1.0
	if !field.Irrigated {
		fieldFactor *= 0.92
	}
	if field.Drainage == agronomy.PoorlyDrained {
		fieldFactor *= 0.90
	}
	if field.Soil == agronomy.Sand {
		// Sandy ground leaches; part of the supplied nutrient never reaches
		// the crop.
		fieldFactor *= 0.95
	}

	return clamp01(supply * timing * fieldFactor)
}

// environmentRisk models nutrient-loss risk in [0, 1]: the method's base
// runoff risk amplified by slope and drainage, plus an over-application term.
func environmentRisk(c agronomy.Candidate, field agronomy.FieldConditions, prof methodProfile, over float64) float64 {
	slopeFactor := 1 + math.Min(field.SlopePercent/20, 0.5)
	drainFactor := 1.0
	switch field.Drainage {
	case agronomy.PoorlyDrained:
		drainFactor = 1.3
	case agronomy.Moderate:
		drainFactor = 1.1
	}
	risk := prof.runoffRisk * slopeFactor * drainFactor
	risk += 0.3 * math.Min(over, 1)
	return clamp01(risk)
}

// nutrientUseScore is uptake efficiency discounted by how far the applied
// amount misses the crop's need in either direction.
func nutrientUseScore(prof methodProfile, supply, over float64) float64 {
	match := supply - 0.5*math.Min(over, 1)
	return clamp01(prof.uptake * clamp01(match))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
