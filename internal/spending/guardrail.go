package spending

import (
	"math"

	"RetireSentinel/internal/model"
)

// evaluateAlarm de-escalates a running alarm when the market allows it and
// raises a new one in a deep bear with a critical withdrawal rate or drawdown.
func (p Planner) evaluateAlarm(in Input, state model.SpendingState, kp keyParams) (active, newlyTriggered bool) {
	g := p.cfg.Guardrails
	key := in.Regime.Key
	was := state.AlarmActive

	if was && key.IsPeak() {
		if kp.withdrawalRate <= g.AlarmWithdrawalRate || kp.drawdown <= g.PeakExitDrawdown {
			was = false
		}
	} else if was && key == model.RegimeRecoveryInBear {
		okRunway := in.RunwayMonths >= in.MinRunwayMonths+6
		okDrawdown := kp.drawdown <= g.RecoveryExitDrawdown
		if (kp.withdrawalRate <= g.AlarmWithdrawalRate || okRunway || okDrawdown) && noNewLows(in.Market) {
			was = false
		}
	}

	critical := (kp.withdrawalRate > g.AlarmWithdrawalRate && in.RunwayMonths < g.AlarmRunwayMonths) ||
		kp.drawdown > g.AlarmRealDrawdown
	newlyTriggered = !was && key == model.RegimeBearDeep && critical
	return newlyTriggered || was, newlyTriggered
}

// flexRate computes the smoothed flex rate, or the alarm rate when an alarm is active.
func (p Planner) flexRate(in Input, state model.SpendingState, alarm, alarmNew bool) (float64, string) {
	g := p.cfg.Guardrails
	sm := p.cfg.Spending
	prev := state.FlexRate

	if alarm {
		if alarmNew {
			shortfall := 0.0
			if in.MinRunwayMonths > 0 {
				shortfall = math.Max(0, (in.MinRunwayMonths-in.RunwayMonths)/in.MinRunwayMonths)
			}
			cut := math.Min(10, math.Round(10+20*shortfall))
			return math.Max(g.AlarmMinFlexRate, prev-cut), model.CutSourceGuardrailAlarm
		}
		return math.Max(g.AlarmMinFlexRate, prev), model.CutSourceGuardrailAlarm
	}

	source := model.CutSourceProfile
	rawCut := 0.0
	if in.Regime.Key == model.RegimeBearDeep {
		rawCut = sm.BearBaseCut + math.Max(0, in.Regime.ATHGapPct-p.cfg.Regime.BearDeepGap)
		source = model.CutSourceDeepBear
	}
	smoothed := sm.SmoothingAlpha*(100-rawCut) + (1-sm.SmoothingAlpha)*prev

	maxUp := sm.MaxUpPP
	switch in.Regime.Profile {
	case model.ProfilePeak, model.ProfileHotNeutral, model.ProfileRecoveryInBear:
		maxUp = sm.AgileUpPP
	}
	maxDown := sm.MaxDownPP
	if in.Regime.Key == model.RegimeBearDeep {
		maxDown = sm.MaxDownInBearPP
	}

	delta := smoothed - prev
	if delta > maxUp {
		smoothed = prev + maxUp
		source = model.CutSourceSmoothingUp
	} else if delta < -maxDown {
		smoothed = prev - maxDown
		source = model.CutSourceSmoothingDown
	}
	return smoothed, source
}

// applyGuardrails curbs the flex rate during recoveries, caps the inflation
// adjustment at high withdrawal rates and protects last year's real budget.
func (p Planner) applyGuardrails(in Input, kp keyParams, rate float64, source string, d *model.SpendingDetails) (float64, string) {
	g := p.cfg.Guardrails
	key := in.Regime.Key
	gap := in.Regime.ATHGapPct

	recoveryContext := key == model.RegimeRecoveryInBear || (key == model.RegimeRecovery && gap >= 15)
	cautionContext := kp.withdrawalRate >= g.CautionWithdrawalRate
	cautious := false

	if key == model.RegimeRecoveryInBear {
		curb := p.recoveryCurb(gap)
		if in.RunwayMonths < g.RecoveryThinRunway {
			curb = math.Max(curb, g.RecoveryThinCurb)
		}
		if maxRate := 100 - curb; rate > maxRate {
			rate = maxRate
			source = model.CutSourceGuardrailCaution
			cautious = true
		}
	}

	inflationCap := in.Inflation
	if cautionContext {
		capped := math.Min(in.Inflation, g.CautionInflationCap)
		if capped < in.Inflation {
			source = model.CutSourceInflationCap
		}
		inflationCap = capped
		cautious = true
	}
	d.InflationCap = inflationCap
	d.Cautious = cautious

	weak := source == model.CutSourceProfile ||
		source == model.CutSourceSmoothingUp ||
		source == model.CutSourceSmoothingDown
	if (recoveryContext || cautionContext) && cautious && weak {
		source = model.CutSourceGuardrailCaution
	}

	factor := 1 + math.Max(0, inflationCap)/100
	minBudget := in.Floor/factor + in.Flex/factor + in.Pension
	budget := in.Floor + in.Flex*clampRate(rate)/100 + in.Pension

	allowed := key != model.RegimeBearDeep && key != model.RegimeRecoveryInBear
	if !allowed {
		allowed = gap <= 10 && noNewLows(in.Market) &&
			in.RunwayMonths >= math.Max(30, in.MinRunwayMonths+6)
	}
	if allowed && !cautious && budget+1 < minBudget && in.Flex > 0 {
		need := math.Max(0, minBudget-in.Pension)
		needRate := clampRate((need - in.Floor) / in.Flex * 100)
		if needRate > rate {
			rate = needRate
			source = model.CutSourceBudgetFloor
		}
	}
	return rate, source
}

// recoveryCurb returns the flex cut for the ATH gap; curbs are ordered by descending gap.
func (p Planner) recoveryCurb(gap float64) float64 {
	curbs := p.cfg.Guardrails.RecoveryCurbs
	for _, c := range curbs {
		if gap > c.MinGap {
			return c.Percent
		}
	}
	if len(curbs) > 0 {
		return curbs[len(curbs)-1].Percent
	}
	return 0
}

// noNewLows reports whether the last close is above the lower of the two before.
func noNewLows(m model.MarketSnapshot) bool {
	return m.EndeVJ > math.Min(m.EndeVJ1, m.EndeVJ2)
}
