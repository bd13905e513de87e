package engine

import (
	"fmt"
	"math"

	"RetireSentinel/internal/model"
)

// Validate checks an input for plausibility. It returns nil or a
// *ValidationError listing every rejected field.
func (e *Engine) Validate(in Input) error {
	ve := &ValidationError{}
	h := in.Household

	rangeCheck := func(field string, v, lo, hi float64) {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			ve.add(field, "must be a valid number", nil)
		case v < lo || v > hi:
			ve.add(field, fmt.Sprintf("must be between %g and %g", lo, hi), nil)
		}
	}
	nonNegative := func(field string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			ve.add(field, "must be a valid non-negative number", nil)
		}
	}

	rangeCheck("age", float64(h.Age), 18, 120)
	rangeCheck("inflation", in.Market.Inflation, -10, 50)

	nonNegative("cash", in.Portfolio.Cash)
	nonNegative("money_market", in.Portfolio.MoneyMarket)
	nonNegative("floor", h.Floor)
	nonNegative("flex", h.Flex)
	nonNegative("pension", h.Pension)
	nonNegative("saver_allowance", h.SaverAllowance)
	nonNegative("loss_carry", in.Tax.LossCarry)
	lots := func(name string, ts []model.Tranche) {
		for i, t := range ts {
			nonNegative(fmt.Sprintf("%s[%d].market_value", name, i), t.MarketValue)
			nonNegative(fmt.Sprintf("%s[%d].cost_basis", name, i), t.CostBasis)
			rangeCheck(fmt.Sprintf("%s[%d].tax_free_quota", name, i), t.TaxFreeQuota, 0, 1)
		}
	}
	lots("equity", in.Portfolio.Equity)
	lots("gold", in.Portfolio.Gold)

	m := in.Market
	nonNegative("ende_vj", m.EndeVJ)
	nonNegative("ende_vj_1", m.EndeVJ1)
	nonNegative("ende_vj_2", m.EndeVJ2)
	nonNegative("ende_vj_3", m.EndeVJ3)
	nonNegative("ath", m.ATH)
	nonNegative("years_since_ath", m.YearsSinceATH)
	rangeCheck("interest_rate", m.InterestRate, -10, 50)

	rangeCheck("church_tax_rate", h.ChurchTaxRate, 0, 0.1)
	if h.PensionIndex == model.PensionIndexFixed {
		rangeCheck("pension_index_pct", h.PensionIndexPct, -10, 20)
	}

	if h.GoldActive {
		rangeCheck("gold_target_pct", h.GoldTargetPct, 0.01, 50)
		rangeCheck("gold_floor_pct", h.GoldFloorPct, 0, 20)
	}

	rangeCheck("runway_min_months", h.RunwayMinMonths, 12, 60)
	rangeCheck("runway_target_months", h.RunwayTargetMonths, 18, 72)
	if h.RunwayTargetMonths < h.RunwayMinMonths {
		ve.add("runway_target_months", "must not be below the minimum", nil)
	}
	rangeCheck("target_eq", h.TargetEquityPct, 20, 90)
	if h.RebalBandPct != 0 {
		rangeCheck("rebal_band", h.RebalBandPct, 1, 20)
	}
	rangeCheck("flex_budget_years", h.FlexBudgetYears, 0, 10)
	rangeCheck("max_skim_pct_of_eq", h.MaxSkimPctOfEq, 0, 50)
	rangeCheck("max_bear_refill_pct_of_eq", h.MaxBearRefillPctOfEq, 0, 70)

	switch h.PensionIndex {
	case "", model.PensionIndexNone, model.PensionIndexInflation, model.PensionIndexWage, model.PensionIndexFixed:
	default:
		ve.add("pension_index", "must be none, inflation, wage or fixed", nil)
	}

	df := h.DynamicFlex
	switch df.HorizonMethod {
	case "", model.HorizonMean, model.HorizonSurvivalQuantile:
	default:
		ve.add("horizon_method", "must be 'mean' or 'survival_quantile'", nil)
	}
	if df.Enabled {
		if df.HorizonYears != 0 {
			rangeCheck("horizon_years", df.HorizonYears, 1, 60)
		}
		if df.SurvivalQuantile != 0 {
			rangeCheck("survival_quantile", df.SurvivalQuantile, 0.5, 0.99)
		}
		if df.GoGoMultiplier != 0 {
			maxGoGo := e.cfg.DynamicFlex.MaxGoGoMultiplier
			v := df.GoGoMultiplier
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 || v > maxGoGo {
				ve.add("go_go_multiplier", fmt.Sprintf("must be between 1.0 and %.1f", maxGoGo), ErrConfiguration)
			}
		}
	}

	rangeCheck("cape_ratio", m.CapeRatio, 0, 100)
	rangeCheck("market_cape_ratio", m.MarketCapeRatio, 0, 100)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
