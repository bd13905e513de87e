package model

// SpendingState is carried from one year to the next by the caller.
type SpendingState struct {
	FlexRate                  float64   `json:"flex_rate"`
	PeakRealWealth            float64   `json:"peak_real_wealth"`
	CumulativeInflationFactor float64   `json:"cumulative_inflation_factor"`
	AlarmActive               bool      `json:"alarm_active"`
	LastRegime                RegimeKey `json:"last_regime"`
	LastInflation             float64   `json:"last_inflation"`
	LastTotalBudget           float64   `json:"last_total_budget"`
	Years                     int       `json:"years"`

	VPWExpectedReturn   float64 `json:"vpw_expected_return"`
	VPWSafetyStage      int     `json:"vpw_safety_stage"`
	VPWBadStreak        int     `json:"vpw_bad_streak"`
	VPWGoodStreak       int     `json:"vpw_good_streak"`
	VPWReentryRemaining int     `json:"vpw_reentry_remaining"`
	VPWPrevDynamicFlex  float64 `json:"vpw_prev_dynamic_flex"`
}

// Cut sources explain which rule set the final flex rate.
const (
	CutSourceProfile          = "profile"
	CutSourceDeepBear         = "deep_bear"
	CutSourceSmoothingUp      = "smoothing_up"
	CutSourceSmoothingDown    = "smoothing_down"
	CutSourceGuardrailAlarm   = "guardrail_alarm"
	CutSourceGuardrailCaution = "guardrail_caution"
	CutSourceInflationCap     = "inflation_cap"
	CutSourceBudgetFloor      = "budget_floor"
)

// SpendingDetails are the diagnostics of one planning step.
type SpendingDetails struct {
	WithdrawalRate float64
	RealDrawdown   float64
	ATHGapPct      float64
	RunwayMonths   float64
	InflationCap   float64
	Cautious       bool
	AlarmNew       bool
}

// SpendingResult is this year's withdrawal decision. Amounts exclude the pension.
type SpendingResult struct {
	Floor             float64
	Flex              float64
	AnnualWithdrawal  float64
	MonthlyWithdrawal float64
	FlexRate          float64
	CutPct            float64
	CutSource         string
	AlarmActive       bool
	Details           SpendingDetails
	VPW               *VPWResult
}

// VPW statuses.
const (
	VPWStatusDisabled         = "disabled"
	VPWStatusActive           = "active"
	VPWStatusSafetyStaticFlex = "safety_static_flex"
)

// VPWResult describes the dynamic flex computation.
type VPWResult struct {
	Enabled               bool
	Status                string
	TotalWealth           float64
	ExpectedRealReturn    float64
	TargetRealReturn      float64
	HorizonYears          float64
	Rate                  float64
	Total                 float64
	RawDynamicFlex        float64
	DynamicFlex           float64
	GoGoMultiplier        float64
	GoGoActive            bool
	GoGoSuppressed        bool
	DynamicFlexSuppressed bool
	ReentryApplied        bool
	SafetyStage           int
	BadScore              int
}
