package optimization

// ConstraintKind discriminates how a constraint is checked. Each kind has a
// dedicated check function registered in the constraint package's dispatch
// table; adding a kind means registering one function there.
type ConstraintKind string

const (
	ConstraintEquipment  ConstraintKind = "equipment"
	ConstraintFieldSize  ConstraintKind = "field_size"
	ConstraintBudget     ConstraintKind = "budget"
	ConstraintLabor      ConstraintKind = "labor"
	ConstraintRegulatory ConstraintKind = "regulatory"
	ConstraintTiming     ConstraintKind = "timing"
)

// Operator compares a candidate-derived quantity against a constraint's
// reference value.
type Operator string

const (
	OpLE Operator = "<="
	OpGE Operator = ">="
	OpEQ Operator = "="
	OpIn Operator = "in"
)

// Constraint is declarative data, not code: a kind, an operator and either a
// numeric limit or an allowed set, interpreted generically by the constraint
// evaluator.
type Constraint struct {
	Kind ConstraintKind `json:"kind"`
	Op   Operator       `json:"op"`

	// Limit is the numeric reference for <=, >= and = comparisons. Units
	// depend on the kind: total dollars for budget, total hours for labor,
	// hectares for field size, kg/ha for regulatory rate caps.
	Limit float64 `json:"limit,omitempty"`

	// Allowed is the reference set for in-set comparisons (equipment tags,
	// timing slots, method names).
	Allowed []string `json:"allowed,omitempty"`
}

// Verdict is the feasibility outcome for one candidate. Violations lists
// every failed constraint; checks never short-circuit so callers can report
// all reasons a candidate was rejected.
type Verdict struct {
	Feasible   bool     `json:"feasible"`
	Violations []string `json:"violations,omitempty"`
}
