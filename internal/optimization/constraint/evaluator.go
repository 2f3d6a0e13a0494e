// Package constraint decides candidate feasibility. Each constraint kind has
// one check function resolved through a dispatch table, so new kinds are
// registered, not wired into existing code. Checks never short-circuit: a
// verdict carries every violated constraint, which is what downstream
// "why was this rejected" explanations are built from.
package constraint

import (
	"fmt"
	"math"

	"github.com/soilhub/fieldopt/internal/agronomy"
	"github.com/soilhub/fieldopt/internal/optimization"
	"github.com/soilhub/fieldopt/internal/optimization/objective"
)

// Context is the request-scoped data checks evaluate against.
type Context struct {
	Field     agronomy.FieldConditions
	Crop      agronomy.CropRequirements
	Inventory []string
}

// CheckFunc implements one constraint kind. It returns ok=false with a
// human-readable reason when the candidate violates the rule.
type CheckFunc func(c agronomy.Candidate, rule optimization.Constraint, env Context) (ok bool, reason string, err error)

var checks = map[optimization.ConstraintKind]CheckFunc{
	optimization.ConstraintEquipment:  checkEquipment,
	optimization.ConstraintFieldSize:  checkFieldSize,
	optimization.ConstraintBudget:     checkBudget,
	optimization.ConstraintLabor:      checkLabor,
	optimization.ConstraintRegulatory: checkRegulatory,
	optimization.ConstraintTiming:     checkTiming,
}

// Register installs a check function for a constraint kind, replacing any
// existing one. Call it during package initialization; the table is read
// concurrently once optimization requests are being served.
func Register(kind optimization.ConstraintKind, fn CheckFunc) {
	checks[kind] = fn
}

// Check runs every supplied constraint against the candidate and collects
// all violations. An unknown kind or operator is a validation error: a rule
// we cannot interpret must not pass silently.
func Check(c agronomy.Candidate, rules []optimization.Constraint, env Context) (optimization.Verdict, error) {
	verdict := optimization.Verdict{Feasible: true}

	for _, rule := range rules {
		fn, ok := checks[rule.Kind]
		if !ok {
			return optimization.Verdict{}, optimization.NewValidationError("unknown constraint kind %q", rule.Kind).WithComponent("constraint")
		}
		ok, reason, err := fn(c, rule, env)
		if err != nil {
			return optimization.Verdict{}, err
		}
		if !ok {
			verdict.Feasible = false
			verdict.Violations = append(verdict.Violations, fmt.Sprintf("%s: %s", rule.Kind, reason))
		}
	}

	return verdict, nil
}

// Kind extracts the constraint kind prefix from a violation reason produced
// by Check. Used to aggregate violation frequencies into relaxation hints.
func Kind(violation string) string {
	for i := 0; i < len(violation); i++ {
		if violation[i] == ':' {
			return violation[:i]
		}
	}
	return violation
}

// compare applies a numeric operator. Equality is checked within a small
// absolute tolerance since both sides are derived floats.
func compare(value float64, op optimization.Operator, limit float64) (bool, error) {
	switch op {
	case optimization.OpLE:
		return value <= limit, nil
	case optimization.OpGE:
		return value >= limit, nil
	case optimization.OpEQ:
		return math.Abs(value-limit) < 1e-9, nil
	default:
		return false, optimization.NewValidationError("operator %q is not valid for numeric constraints", op).WithComponent("constraint")
	}
}

func inSet(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// checkEquipment verifies the candidate's required equipment is on hand. The
// reference set is the rule's Allowed list when given, otherwise the farm
// inventory from the request. Candidates with no equipment requirement pass.
func checkEquipment(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	if c.Equipment == "" {
		return true, "", nil
	}
	allowed := rule.Allowed
	if len(allowed) == 0 {
		allowed = env.Inventory
	}
	if inSet(c.Equipment, allowed) {
		return true, "", nil
	}
	return false, fmt.Sprintf("required equipment %q not available", c.Equipment), nil
}

func checkFieldSize(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	ok, err := compare(env.Field.SizeHa, rule.Op, rule.Limit)
	if err != nil || ok {
		return ok, "", err
	}
	return false, fmt.Sprintf("field size %.1f ha fails %s %.1f ha", env.Field.SizeHa, rule.Op, rule.Limit), nil
}

// checkBudget compares the candidate's whole-field cost against the limit in
// dollars.
func checkBudget(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	total := objective.CostPerHectare(c) * env.Field.SizeHa
	ok, err := compare(total, rule.Op, rule.Limit)
	if err != nil || ok {
		return ok, "", err
	}
	return false, fmt.Sprintf("total cost $%.2f fails %s $%.2f", total, rule.Op, rule.Limit), nil
}

// checkLabor compares the candidate's whole-field labor against the limit in
// hours.
func checkLabor(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	total := objective.LaborHoursPerHectare(c, env.Field) * env.Field.SizeHa
	ok, err := compare(total, rule.Op, rule.Limit)
	if err != nil || ok {
		return ok, "", err
	}
	return false, fmt.Sprintf("labor %.1f h fails %s %.1f h", total, rule.Op, rule.Limit), nil
}

// checkRegulatory caps the application rate (numeric operators, kg/ha) or
// restricts the method to a permitted set (in-set operator).
func checkRegulatory(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	if rule.Op == optimization.OpIn {
		if inSet(string(c.Method), rule.Allowed) {
			return true, "", nil
		}
		return false, fmt.Sprintf("method %q is not permitted here", c.Method), nil
	}
	ok, err := compare(c.RateKgHa, rule.Op, rule.Limit)
	if err != nil || ok {
		return ok, "", err
	}
	return false, fmt.Sprintf("rate %.1f kg/ha fails %s %.1f kg/ha", c.RateKgHa, rule.Op, rule.Limit), nil
}

func checkTiming(c agronomy.Candidate, rule optimization.Constraint, env Context) (bool, string, error) {
	if rule.Op != optimization.OpIn {
		return false, "", optimization.NewValidationError("timing constraints require the in-set operator, got %q", rule.Op).WithComponent("constraint")
	}
	if inSet(string(c.Timing), rule.Allowed) {
		return true, "", nil
	}
	return false, fmt.Sprintf("timing %q is outside the allowed windows", c.Timing), nil
}
