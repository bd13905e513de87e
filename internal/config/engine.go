package config

import (
	"errors"
	"fmt"
	"math"
)

// RegimeThresholds drive the market classifier. Values are percent.
type RegimeThresholds struct {
	PeakHotPerf1Y      float64 `yaml:"peak_hot_perf_1y"`
	BearDeepGap        float64 `yaml:"bear_deep_gap"`
	RecoveryGap        float64 `yaml:"recovery_gap"`
	RecoveryPerf1Y     float64 `yaml:"recovery_perf_1y"`
	RecoveryMonths     float64 `yaml:"recovery_months"`
	CorrectionGap      float64 `yaml:"correction_gap"`
	CorrectionMonths   float64 `yaml:"correction_months"`
	RallyPerf1Y        float64 `yaml:"rally_perf_1y"`
	RallyFromLow       float64 `yaml:"rally_from_low"`
	RallyMinGap        float64 `yaml:"rally_min_gap"`
	StagflationInflPct float64 `yaml:"stagflation_inflation"`
}

// Valuation maps CAPE levels to expected nominal equity returns.
type Valuation struct {
	DefaultCape       float64 `yaml:"default_cape"`
	UndervaluedCape   float64 `yaml:"undervalued_cape"`
	OvervaluedCape    float64 `yaml:"overvalued_cape"`
	ExtremeCape       float64 `yaml:"extreme_cape"`
	ReturnUndervalued float64 `yaml:"return_undervalued"`
	ReturnFair        float64 `yaml:"return_fair"`
	ReturnOvervalued  float64 `yaml:"return_overvalued"`
	ReturnExtreme     float64 `yaml:"return_extreme"`
}

// Guardrails holds the alarm and caution thresholds of the spending planner.
type Guardrails struct {
	AlarmWithdrawalRate   float64 `yaml:"alarm_withdrawal_rate"`
	AlarmRealDrawdown     float64 `yaml:"alarm_real_drawdown"`
	AlarmRunwayMonths     float64 `yaml:"alarm_runway_months"`
	AlarmMinFlexRate      float64 `yaml:"alarm_min_flex_rate"`
	PeakExitDrawdown      float64 `yaml:"peak_exit_drawdown"`
	RecoveryExitDrawdown  float64 `yaml:"recovery_exit_drawdown"`
	CautionWithdrawalRate float64 `yaml:"caution_withdrawal_rate"`
	CautionInflationCap   float64 `yaml:"caution_inflation_cap"`
	RecoveryCurbs         []Curb  `yaml:"recovery_curbs"`
	RecoveryThinRunway    float64 `yaml:"recovery_thin_runway"`
	RecoveryThinCurb      float64 `yaml:"recovery_thin_curb"`
}

// Curb cuts the flex rate by Percent when the ATH gap exceeds MinGap.
type Curb struct {
	MinGap  float64 `yaml:"min_gap"`
	Percent float64 `yaml:"percent"`
}

// SpendingModel holds the flex-rate smoothing parameters.
type SpendingModel struct {
	SmoothingAlpha  float64 `yaml:"smoothing_alpha"`
	MaxUpPP         float64 `yaml:"max_up_pp"`
	AgileUpPP       float64 `yaml:"agile_up_pp"`
	MaxDownPP       float64 `yaml:"max_down_pp"`
	MaxDownInBearPP float64 `yaml:"max_down_in_bear_pp"`
	BearBaseCut     float64 `yaml:"bear_base_cut"`
}

// DynamicFlex holds the VPW constants.
type DynamicFlex struct {
	SafeAssetRealReturn float64 `yaml:"safe_asset_real_return"`
	FallbackRealReturn  float64 `yaml:"fallback_real_return"`
	MinHorizonYears     float64 `yaml:"min_horizon_years"`
	MaxHorizonYears     float64 `yaml:"max_horizon_years"`
	MinRealReturn       float64 `yaml:"min_real_return"`
	MaxRealReturn       float64 `yaml:"max_real_return"`
	SmoothingAlpha      float64 `yaml:"smoothing_alpha"`
	MaxGoGoMultiplier   float64 `yaml:"max_go_go_multiplier"`
}

// Safety holds the VPW safety staging constants.
type Safety struct {
	Enabled                    bool    `yaml:"enabled"`
	MaxStage                   int     `yaml:"max_stage"`
	BadScoreThreshold          int     `yaml:"bad_score_threshold"`
	SevereScoreThreshold       int     `yaml:"severe_score_threshold"`
	EscalateStreakYears        int     `yaml:"escalate_streak_years"`
	DeescalateStreakYears      int     `yaml:"deescalate_streak_years"`
	HardCutPct                 float64 `yaml:"hard_cut_pct"`
	GoodWithdrawalRate         float64 `yaml:"good_withdrawal_rate"`
	GoodDrawdown               float64 `yaml:"good_drawdown"`
	GoodCutPct                 float64 `yaml:"good_cut_pct"`
	RunwayHeadroomMonths       float64 `yaml:"runway_headroom_months"`
	ReentryRampYears           int     `yaml:"reentry_ramp_years"`
	Stage2RequireCritical      bool    `yaml:"stage2_require_critical"`
	Stage2MinFlexOfFloor       float64 `yaml:"stage2_min_flex_of_floor"`
	Stage2MinFlexOfPrevDynamic float64 `yaml:"stage2_min_flex_of_prev_dynamic"`
}

// Strategy holds the transaction thresholds.
type Strategy struct {
	MinCashBufferMonths    float64 `yaml:"min_cash_buffer_months"`
	MinRefillAmount        float64 `yaml:"min_refill_amount"`
	MinTradeAmountStatic   float64 `yaml:"min_trade_amount_static"`
	MinTradeDynamicFactor  float64 `yaml:"min_trade_dynamic_factor"`
	CashRebalanceThreshold float64 `yaml:"cash_rebalance_threshold"`
	AbsoluteMinLiquidity   float64 `yaml:"absolute_min_liquidity"`
	GuardrailActivationPct float64 `yaml:"guardrail_activation_pct"`
	CoverageMinPct         float64 `yaml:"coverage_min_pct"`
	CriticalRefillFloorPct float64 `yaml:"critical_refill_floor_pct"`
	SurplusRiskyGapPct     float64 `yaml:"surplus_risky_gap_pct"`
	OpportunisticATHFloor  float64 `yaml:"opportunistic_ath_floor"`
	DefaultRebalBandPct    float64 `yaml:"default_rebal_band_pct"`
	EmergencyFloorMonths   float64 `yaml:"emergency_floor_months"`
	EmergencyBufferMinimum float64 `yaml:"emergency_buffer_minimum"`
	SurplusInvestMinimum   float64 `yaml:"surplus_invest_minimum"`
	BearNeedFlexShare      float64 `yaml:"bear_need_flex_share"`
	PeakCriticalCoverage   float64 `yaml:"peak_critical_coverage"`
	RiskyGoldSaleShare     float64 `yaml:"risky_gold_sale_share"`
}

// Profile is the runway profile: months of liquidity per regime profile.
type Profile struct {
	Dynamic         bool               `yaml:"dynamic"`
	MinRunwayMonths float64            `yaml:"min_runway_months"`
	Runway          map[string]float64 `yaml:"runway"`
}

// Tax holds the German flat-rate capital gains tax constants.
type Tax struct {
	BaseRate   float64 `yaml:"base_rate"`
	Solidarity float64 `yaml:"solidarity"`

	// EquityTaxFreeQuota is the partial exemption of newly bought equity fund lots.
	EquityTaxFreeQuota float64 `yaml:"equity_tax_free_quota"`
}

// Tier is one anti-pseudo-accuracy rounding step; Limit is exclusive.
type Tier struct {
	Limit float64 `yaml:"limit"`
	Step  float64 `yaml:"step"`
}

// Quantization rounds trade amounts to human-sized steps.
type Quantization struct {
	Enabled          bool    `yaml:"enabled"`
	HysteresisRefill float64 `yaml:"hysteresis_refill"`
	Tiers            []Tier  `yaml:"tiers"`
	MonthlyTiers     []Tier  `yaml:"monthly_tiers"`
}

// Engine bundles every constant the decision engine uses.
type Engine struct {
	Regime       RegimeThresholds `yaml:"regime"`
	Valuation    Valuation        `yaml:"valuation"`
	Guardrails   Guardrails       `yaml:"guardrails"`
	Spending     SpendingModel    `yaml:"spending"`
	DynamicFlex  DynamicFlex      `yaml:"dynamic_flex"`
	Safety       Safety           `yaml:"safety"`
	Strategy     Strategy         `yaml:"strategy"`
	Profile      Profile          `yaml:"profile"`
	Tax          Tax              `yaml:"tax"`
	Quantization Quantization     `yaml:"quantization"`
}

// DefaultEngine returns the production constants.
func DefaultEngine() Engine {
	return Engine{
		Regime: RegimeThresholds{
			PeakHotPerf1Y:      10,
			BearDeepGap:        20,
			RecoveryGap:        10,
			RecoveryPerf1Y:     10,
			RecoveryMonths:     6,
			CorrectionGap:      15,
			CorrectionMonths:   6,
			RallyPerf1Y:        15,
			RallyFromLow:       30,
			RallyMinGap:        15,
			StagflationInflPct: 4,
		},
		Valuation: Valuation{
			DefaultCape:       20,
			UndervaluedCape:   15,
			OvervaluedCape:    30,
			ExtremeCape:       35,
			ReturnUndervalued: 0.08,
			ReturnFair:        0.07,
			ReturnOvervalued:  0.05,
			ReturnExtreme:     0.04,
		},
		Guardrails: Guardrails{
			AlarmWithdrawalRate:   0.055,
			AlarmRealDrawdown:     0.25,
			AlarmRunwayMonths:     24,
			AlarmMinFlexRate:      35,
			PeakExitDrawdown:      0.15,
			RecoveryExitDrawdown:  0.20,
			CautionWithdrawalRate: 0.045,
			CautionInflationCap:   3,
			RecoveryCurbs: []Curb{
				{MinGap: 25, Percent: 25},
				{MinGap: 15, Percent: 20},
				{MinGap: 10, Percent: 15},
				{MinGap: 0, Percent: 10},
			},
			RecoveryThinRunway: 30,
			RecoveryThinCurb:   20,
		},
		Spending: SpendingModel{
			SmoothingAlpha:  0.35,
			MaxUpPP:         2.5,
			AgileUpPP:       4.5,
			MaxDownPP:       3.5,
			MaxDownInBearPP: 6.0,
			BearBaseCut:     50,
		},
		DynamicFlex: DynamicFlex{
			SafeAssetRealReturn: 0.005,
			FallbackRealReturn:  0.03,
			MinHorizonYears:     1,
			MaxHorizonYears:     60,
			MinRealReturn:       0,
			MaxRealReturn:       0.05,
			SmoothingAlpha:      0.35,
			MaxGoGoMultiplier:   1.5,
		},
		Safety: Safety{
			Enabled:                    true,
			MaxStage:                   2,
			BadScoreThreshold:          2,
			SevereScoreThreshold:       5,
			EscalateStreakYears:        2,
			DeescalateStreakYears:      2,
			HardCutPct:                 35,
			GoodWithdrawalRate:         0.05,
			GoodDrawdown:               0.25,
			GoodCutPct:                 45,
			RunwayHeadroomMonths:       3,
			ReentryRampYears:           3,
			Stage2RequireCritical:      true,
			Stage2MinFlexOfFloor:       0.25,
			Stage2MinFlexOfPrevDynamic: 0.20,
		},
		Strategy: Strategy{
			MinCashBufferMonths:    2,
			MinRefillAmount:        10000,
			MinTradeAmountStatic:   25000,
			MinTradeDynamicFactor:  0.005,
			CashRebalanceThreshold: 2500,
			AbsoluteMinLiquidity:   10000,
			GuardrailActivationPct: 0.69,
			CoverageMinPct:         0.75,
			CriticalRefillFloorPct: 10,
			SurplusRiskyGapPct:     15,
			OpportunisticATHFloor:  0.8,
			DefaultRebalBandPct:    35,
			EmergencyFloorMonths:   1,
			EmergencyBufferMinimum: 10000,
			SurplusInvestMinimum:   500,
			BearNeedFlexShare:      0.5,
			PeakCriticalCoverage:   0.25,
			RiskyGoldSaleShare:     0.8,
		},
		Profile: Profile{
			Dynamic:         true,
			MinRunwayMonths: 24,
			Runway: map[string]float64{
				"peak":             48,
				"hot_neutral":      36,
				"bear":             60,
				"stagflation":      60,
				"recovery_in_bear": 48,
				"recovery":         48,
			},
		},
		Tax: Tax{
			BaseRate:           0.25,
			Solidarity:         0.055,
			EquityTaxFreeQuota: 0.3,
		},
		Quantization: Quantization{
			Enabled:          true,
			HysteresisRefill: 2000,
			Tiers: []Tier{
				{Limit: 10000, Step: 1000},
				{Limit: 50000, Step: 5000},
				{Limit: 200000, Step: 10000},
				{Limit: math.Inf(1), Step: 25000},
			},
			MonthlyTiers: []Tier{
				{Limit: 2000, Step: 50},
				{Limit: 5000, Step: 100},
				{Limit: math.Inf(1), Step: 250},
			},
		},
	}
}

// ErrInvalidEngine marks an engine configuration that cannot be used.
var ErrInvalidEngine = errors.New("invalid engine configuration")

// Validate checks the engine constants once at startup.
func (e Engine) Validate() error {
	switch {
	case e.Regime.BearDeepGap <= 0:
		return fmt.Errorf("%w: regime.bear_deep_gap must be positive", ErrInvalidEngine)
	case e.Spending.SmoothingAlpha <= 0 || e.Spending.SmoothingAlpha > 1:
		return fmt.Errorf("%w: spending.smoothing_alpha must be in (0, 1]", ErrInvalidEngine)
	case e.DynamicFlex.SmoothingAlpha <= 0 || e.DynamicFlex.SmoothingAlpha > 1:
		return fmt.Errorf("%w: dynamic_flex.smoothing_alpha must be in (0, 1]", ErrInvalidEngine)
	case e.DynamicFlex.MinHorizonYears < 1 || e.DynamicFlex.MaxHorizonYears < e.DynamicFlex.MinHorizonYears:
		return fmt.Errorf("%w: dynamic_flex horizon bounds are inconsistent", ErrInvalidEngine)
	case e.DynamicFlex.MaxRealReturn < e.DynamicFlex.MinRealReturn:
		return fmt.Errorf("%w: dynamic_flex real return bounds are inconsistent", ErrInvalidEngine)
	case e.DynamicFlex.MaxGoGoMultiplier < 1:
		return fmt.Errorf("%w: dynamic_flex.max_go_go_multiplier must be at least 1", ErrInvalidEngine)
	case e.Profile.MinRunwayMonths <= 0:
		return fmt.Errorf("%w: profile.min_runway_months must be positive", ErrInvalidEngine)
	case len(e.Profile.Runway) == 0:
		return fmt.Errorf("%w: profile.runway is required", ErrInvalidEngine)
	case e.Tax.BaseRate <= 0 || e.Tax.BaseRate >= 1:
		return fmt.Errorf("%w: tax.base_rate must be in (0, 1)", ErrInvalidEngine)
	case e.Safety.MaxStage < 0 || e.Safety.MaxStage > 2:
		return fmt.Errorf("%w: safety.max_stage must be 0, 1 or 2", ErrInvalidEngine)
	}
	if e.Quantization.Enabled {
		if len(e.Quantization.Tiers) == 0 {
			return fmt.Errorf("%w: quantization.tiers is required when enabled", ErrInvalidEngine)
		}
		prev := 0.0
		for i, t := range e.Quantization.Tiers {
			if t.Step <= 0 {
				return fmt.Errorf("%w: quantization tier %d has non-positive step", ErrInvalidEngine, i)
			}
			if t.Limit <= prev {
				return fmt.Errorf("%w: quantization tiers must have ascending limits", ErrInvalidEngine)
			}
			prev = t.Limit
		}
	}
	return nil
}

// KeSt is the effective capital gains tax rate including solidarity and church tax.
func (e Engine) KeSt(churchRate float64) float64 {
	if churchRate < 0 || math.IsNaN(churchRate) || math.IsInf(churchRate, 0) {
		churchRate = 0
	}
	return e.Tax.BaseRate * (1 + e.Tax.Solidarity + churchRate)
}

// RunwayMonths returns the profile runway for a profile key, falling back to hot_neutral.
func (e Engine) RunwayMonths(profile string) float64 {
	if v, ok := e.Profile.Runway[profile]; ok {
		return v
	}
	return e.Profile.Runway["hot_neutral"]
}

// Step returns the rounding step for a trade amount.
func (q Quantization) Step(amount float64) float64 {
	return tierStep(q.Tiers, amount, 25000)
}

// MonthlyStep returns the rounding step for a monthly withdrawal.
func (q Quantization) MonthlyStep(amount float64) float64 {
	return tierStep(q.MonthlyTiers, amount, 250)
}

func tierStep(tiers []Tier, amount, fallback float64) float64 {
	for _, t := range tiers {
		if amount < t.Limit {
			return t.Step
		}
	}
	return fallback
}
