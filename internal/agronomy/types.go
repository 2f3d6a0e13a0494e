// Package agronomy defines the field, crop and treatment input types the
// optimization engine consumes. All values are supplied by the caller and
// treated as read-only; nothing in this package persists across requests.
package agronomy

// MethodType identifies how a treatment is applied to the field.
type MethodType string

const (
	Broadcast MethodType = "broadcast"
	Band      MethodType = "band"
	Injection MethodType = "injection"
	Foliar    MethodType = "foliar"
	Drip      MethodType = "drip"
)

// MethodTypes lists every known application method in a fixed order.
func MethodTypes() []MethodType {
	return []MethodType{Broadcast, Band, Injection, Foliar, Drip}
}

// Valid reports whether m is a known application method.
func (m MethodType) Valid() bool {
	switch m {
	case Broadcast, Band, Injection, Foliar, Drip:
		return true
	}
	return false
}

// TimingSlot identifies the window in the season an application lands in.
type TimingSlot string

const (
	PrePlant    TimingSlot = "pre_plant"
	AtPlanting  TimingSlot = "at_planting"
	EarlySeason TimingSlot = "early_season"
	MidSeason   TimingSlot = "mid_season"
)

// TimingSlots lists every known timing slot in seasonal order.
func TimingSlots() []TimingSlot {
	return []TimingSlot{PrePlant, AtPlanting, EarlySeason, MidSeason}
}

// Valid reports whether t is a known timing slot.
func (t TimingSlot) Valid() bool {
	switch t {
	case PrePlant, AtPlanting, EarlySeason, MidSeason:
		return true
	}
	return false
}

// Nutrient is a plant macronutrient symbol.
type Nutrient string

const (
	Nitrogen   Nutrient = "N"
	Phosphorus Nutrient = "P"
	Potassium  Nutrient = "K"
)

// Treatment describes the product a candidate applies: nutrient content as a
// mass fraction of the product, and the product's unit price.
type Treatment struct {
	Name       string               `json:"name"`
	Nutrients  map[Nutrient]float64 `json:"nutrients"`
	PricePerKg float64              `json:"price_per_kg"`
}

// Candidate is one evaluable application-method configuration. Candidates are
// immutable once constructed; the evolutionary strategy synthesizes new ones
// from genome tuples rather than mutating existing instances.
type Candidate struct {
	ID        string     `json:"id"`
	Method    MethodType `json:"method"`
	RateKgHa  float64    `json:"rate_kg_ha"`
	Timing    TimingSlot `json:"timing"`
	Equipment string     `json:"equipment,omitempty"`
	Treatment Treatment  `json:"treatment"`
}

// SoilType is a coarse soil texture class.
type SoilType string

const (
	Sand SoilType = "sand"
	Loam SoilType = "loam"
	Clay SoilType = "clay"
	Silt SoilType = "silt"
)

// Valid reports whether s is a known soil class.
func (s SoilType) Valid() bool {
	switch s {
	case Sand, Loam, Clay, Silt:
		return true
	}
	return false
}

// DrainageClass describes how freely the field sheds water.
type DrainageClass string

const (
	PoorlyDrained DrainageClass = "poor"
	Moderate      DrainageClass = "moderate"
	WellDrained   DrainageClass = "well"
)

// Valid reports whether d is a known drainage class.
func (d DrainageClass) Valid() bool {
	switch d {
	case PoorlyDrained, Moderate, WellDrained:
		return true
	}
	return false
}

// FieldConditions captures the physical state of the field being treated.
type FieldConditions struct {
	SizeHa       float64       `json:"size_ha"`
	Soil         SoilType      `json:"soil"`
	Drainage     DrainageClass `json:"drainage"`
	SlopePercent float64       `json:"slope_percent"`
	Irrigated    bool          `json:"irrigated"`
}

// CropRequirements captures what the crop needs from the treatment plan.
// Needs are per-nutrient application targets in kg/ha for the season.
type CropRequirements struct {
	Crop        string               `json:"crop"`
	GrowthStage TimingSlot           `json:"growth_stage"`
	TargetYield float64              `json:"target_yield_t_ha"`
	Needs       map[Nutrient]float64 `json:"needs"`
}
