package model

// Gender selects the mortality table.
type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "w"
)

// Horizon methods for the dynamic flex planning horizon.
const (
	HorizonMean             = "mean"
	HorizonSurvivalQuantile = "survival_quantile"
)

// Pension indexing modes.
const (
	PensionIndexInflation = "inflation"
	PensionIndexWage      = "wage"
	PensionIndexFixed     = "fixed"
	PensionIndexNone      = "none"
)

// Household is the static plan of a retiree: needs, income and strategy knobs.
// Floor, Flex and Pension are annual amounts in today's money.
type Household struct {
	Age     int     `yaml:"age" json:"age"`
	Gender  Gender  `yaml:"gender" json:"gender"`
	Floor   float64 `yaml:"floor" json:"floor"`
	Flex    float64 `yaml:"flex" json:"flex"`
	Pension float64 `yaml:"pension" json:"pension"`

	PensionIndex    string  `yaml:"pension_index" json:"pension_index"`
	PensionIndexPct float64 `yaml:"pension_index_pct" json:"pension_index_pct"`

	RunwayMinMonths    float64 `yaml:"runway_min_months" json:"runway_min_months"`
	RunwayTargetMonths float64 `yaml:"runway_target_months" json:"runway_target_months"`

	TargetEquityPct      float64 `yaml:"target_eq" json:"target_eq"`
	RebalBandPct         float64 `yaml:"rebal_band" json:"rebal_band"`
	MaxSkimPctOfEq       float64 `yaml:"max_skim_pct_of_eq" json:"max_skim_pct_of_eq"`
	MaxBearRefillPctOfEq float64 `yaml:"max_bear_refill_pct_of_eq" json:"max_bear_refill_pct_of_eq"`
	FlexBudgetYears      float64 `yaml:"flex_budget_years" json:"flex_budget_years"`

	GoldActive    bool    `yaml:"gold_active" json:"gold_active"`
	GoldTargetPct float64 `yaml:"gold_target_pct" json:"gold_target_pct"`
	GoldFloorPct  float64 `yaml:"gold_floor_pct" json:"gold_floor_pct"`
	GoldTaxFree   bool    `yaml:"gold_tax_free" json:"gold_tax_free"`

	ChurchTaxRate  float64 `yaml:"church_tax_rate" json:"church_tax_rate"`
	SaverAllowance float64 `yaml:"saver_allowance" json:"saver_allowance"`

	DynamicFlex DynamicFlexSettings `yaml:"dynamic_flex" json:"dynamic_flex"`
}

// DynamicFlexSettings configures the VPW spending mode.
type DynamicFlexSettings struct {
	Enabled          bool    `yaml:"enabled" json:"enabled"`
	HorizonMethod    string  `yaml:"horizon_method" json:"horizon_method"`
	HorizonYears     float64 `yaml:"horizon_years" json:"horizon_years"`
	SurvivalQuantile float64 `yaml:"survival_quantile" json:"survival_quantile"`
	GoGoActive       bool    `yaml:"go_go_active" json:"go_go_active"`
	GoGoMultiplier   float64 `yaml:"go_go_multiplier" json:"go_go_multiplier"`
}

// PensionSurplus is the part of the pension exceeding the floor.
func (h Household) PensionSurplus() float64 {
	if h.Pension > h.Floor {
		return h.Pension - h.Floor
	}
	return 0
}

// NetFloor is the floor left after the pension.
func (h Household) NetFloor() float64 {
	if h.Floor > h.Pension {
		return h.Floor - h.Pension
	}
	return 0
}

// NetFlex is the flex left after the pension surplus.
func (h Household) NetFlex() float64 {
	if s := h.PensionSurplus(); h.Flex > s {
		return h.Flex - s
	}
	return 0
}
