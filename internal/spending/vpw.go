package spending

import (
	"fmt"
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/model"
)

// ExpectedRealReturn blends the CAPE-implied real equity return with the
// safe asset return by equity weight, clamped to the configured bounds.
func (p Planner) ExpectedRealReturn(regime model.MarketRegime, targetEquityPct, inflationPct float64) float64 {
	df := p.cfg.DynamicFlex
	if regime.ExpectedReturnCape <= 0 {
		return calculator.Clamp(df.FallbackRealReturn, df.MinRealReturn, df.MaxRealReturn)
	}
	eq := calculator.Clamp(targetEquityPct/100, 0, 1)
	r := eq*(regime.ExpectedReturnCape-inflationPct/100) + (1-eq)*df.SafeAssetRealReturn
	return calculator.Clamp(r, df.MinRealReturn, df.MaxRealReturn)
}

// VPWRate is the variable percentage withdrawal rate for horizon years.
func (p Planner) VPWRate(realReturn, horizonYears float64) float64 {
	df := p.cfg.DynamicFlex
	n := calculator.Clamp(horizonYears, df.MinHorizonYears, df.MaxHorizonYears)
	rate, err := calculator.AnnuityRate(realReturn, n)
	if err != nil {
		return 1 / n
	}
	return rate
}

// dynamicFlex derives the flex need from total wealth. The safety stage
// carried in state decides whether Go-Go is suppressed or the static flex is used.
func (p Planner) dynamicFlex(in Input, state model.SpendingState, fresh bool) (model.VPWResult, error) {
	df := p.cfg.DynamicFlex
	set := in.DynamicFlex

	multiplier := 1.0
	if set.GoGoActive {
		multiplier = set.GoGoMultiplier
		if multiplier == 0 {
			multiplier = 1
		}
		if multiplier < 1 || multiplier > df.MaxGoGoMultiplier || !isFinite(multiplier) {
			return model.VPWResult{}, fmt.Errorf("%w: go-go multiplier %.2f outside [1, %.2f]",
				ErrConfiguration, multiplier, df.MaxGoGoMultiplier)
		}
	}

	target := p.ExpectedRealReturn(in.Regime, in.TargetEquityPct, in.Inflation)
	expected := target
	if !fresh && state.Years > 0 {
		expected = state.VPWExpectedReturn + df.SmoothingAlpha*(target-state.VPWExpectedReturn)
		expected = calculator.Clamp(expected, df.MinRealReturn, df.MaxRealReturn)
	}

	horizon := calculator.Clamp(in.HorizonYears, df.MinHorizonYears, df.MaxHorizonYears)
	rate := p.VPWRate(expected, horizon)

	stage := 0
	if p.cfg.Safety.Enabled {
		stage = state.VPWSafetyStage
	}

	res := model.VPWResult{
		Enabled:            true,
		Status:             model.VPWStatusActive,
		TotalWealth:        in.TotalWealth,
		ExpectedRealReturn: expected,
		TargetRealReturn:   target,
		HorizonYears:       horizon,
		Rate:               rate,
		GoGoMultiplier:     1,
		SafetyStage:        stage,
	}
	if set.GoGoActive {
		if stage >= 1 {
			res.GoGoSuppressed = true
		} else {
			res.GoGoActive = true
			res.GoGoMultiplier = multiplier
		}
	}

	res.Total = math.Max(0, in.TotalWealth) * rate * res.GoGoMultiplier
	res.RawDynamicFlex = math.Max(0, res.Total-in.Floor)
	res.DynamicFlex = res.RawDynamicFlex

	if stage >= 2 {
		s := p.cfg.Safety
		minFlex := math.Max(s.Stage2MinFlexOfFloor*in.Floor, s.Stage2MinFlexOfPrevDynamic*state.VPWPrevDynamicFlex)
		res.Enabled = false
		res.Status = model.VPWStatusSafetyStaticFlex
		res.DynamicFlexSuppressed = true
		res.DynamicFlex = math.Max(in.Flex, minFlex)
		return res, nil
	}

	if state.VPWReentryRemaining > 0 && res.RawDynamicFlex > state.VPWPrevDynamicFlex {
		ramp := float64(p.cfg.Safety.ReentryRampYears)
		step := ramp - float64(state.VPWReentryRemaining) + 1
		factor := calculator.Clamp(step/(ramp+1), 0, 1)
		prev := state.VPWPrevDynamicFlex
		res.DynamicFlex = prev + (res.RawDynamicFlex-prev)*factor
		res.ReentryApplied = true
	}
	return res, nil
}
