package spending

import (
	"errors"
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

// ErrConfiguration marks household settings the planner cannot honour.
var ErrConfiguration = errors.New("spending configuration")

// Input is everything the planner needs for one year. Floor and Flex are
// this year's inflated needs after the pension has been netted in.
type Input struct {
	Regime model.MarketRegime
	Market model.MarketSnapshot

	Floor   float64
	Flex    float64
	Pension float64

	DepotValue  float64
	TotalWealth float64

	RunwayMonths    float64
	MinRunwayMonths float64
	Inflation       float64

	TargetEquityPct float64
	DynamicFlex     model.DynamicFlexSettings
	// HorizonYears is the resolved planning horizon for dynamic flex.
	HorizonYears float64
}

// Planner decides the yearly withdrawal. It is a pure value.
type Planner struct {
	cfg config.Engine
}

// NewPlanner builds a planner from the engine configuration.
func NewPlanner(cfg config.Engine) Planner {
	return Planner{cfg: cfg}
}

// keyParams are the wealth ratios the alarm and guardrails look at.
type keyParams struct {
	realWealth     float64
	peakRealWealth float64
	drawdown       float64
	withdrawalRate float64
}

// Plan computes this year's withdrawal and the state carried into next year.
// prior == nil starts a fresh plan at a 100% flex rate. The only error is a
// dynamic flex setting outside the engine contract.
func (p Planner) Plan(in Input, prior *model.SpendingState) (model.SpendingResult, model.SpendingState, error) {
	state := p.initState(in, prior)
	fresh := prior == nil

	var vpw *model.VPWResult
	if in.DynamicFlex.Enabled {
		res, err := p.dynamicFlex(in, state, fresh)
		if err != nil {
			return model.SpendingResult{}, state, err
		}
		vpw = &res
		in.Flex = res.DynamicFlex
	} else {
		vpw = &model.VPWResult{Status: model.VPWStatusDisabled}
	}

	kp := p.keyParams(in, state)
	alarm, alarmNew := p.evaluateAlarm(in, state, kp)

	rate, source := p.flexRate(in, state, alarm, alarmNew)
	details := model.SpendingDetails{
		WithdrawalRate: kp.withdrawalRate,
		RealDrawdown:   kp.drawdown,
		ATHGapPct:      in.Regime.ATHGapPct,
		RunwayMonths:   in.RunwayMonths,
		InflationCap:   in.Inflation,
		AlarmNew:       alarmNew,
	}
	if !alarm {
		rate, source = p.applyGuardrails(in, kp, rate, source, &details)
	}

	withdrawal := p.quantizeAnnual(in.Floor+in.Flex*clampRate(rate)/100, in.Floor)
	flexRate := 0.0
	if in.Flex > 0 {
		flexRate = clampRate(math.Max(0, withdrawal-in.Floor) / in.Flex * 100)
	}
	cut := 100 - flexRate

	next := state
	next.FlexRate = flexRate
	next.LastRegime = in.Regime.Key
	next.LastTotalBudget = withdrawal + in.Pension
	next.LastInflation = in.Inflation
	next.PeakRealWealth = math.Max(kp.peakRealWealth, kp.realWealth)
	next.AlarmActive = alarm
	next.Years = state.Years + 1

	if in.DynamicFlex.Enabled {
		p.advanceSafety(&next, vpw, safetySignals{
			withdrawalRate: safeDiv(withdrawal, in.DepotValue),
			drawdown:       kp.drawdown,
			cutPct:         cut,
			runwayMonths:   in.RunwayMonths,
			minRunway:      in.MinRunwayMonths,
			alarm:          alarm,
		})
	}

	result := model.SpendingResult{
		Floor:             in.Floor,
		Flex:              in.Flex,
		AnnualWithdrawal:  withdrawal,
		MonthlyWithdrawal: withdrawal / 12,
		FlexRate:          flexRate,
		CutPct:            cut,
		CutSource:         source,
		AlarmActive:       alarm,
		Details:           details,
		VPW:               vpw,
	}
	return result, next, nil
}

func (p Planner) initState(in Input, prior *model.SpendingState) model.SpendingState {
	if prior == nil {
		return model.SpendingState{
			FlexRate:                  100,
			PeakRealWealth:            in.TotalWealth,
			CumulativeInflationFactor: 1,
			LastRegime:                in.Regime.Key,
			LastTotalBudget:           in.Floor + in.Flex + in.Pension,
		}
	}
	s := *prior
	if s.CumulativeInflationFactor <= 0 || !isFinite(s.CumulativeInflationFactor) {
		s.CumulativeInflationFactor = 1
	}
	if !isFinite(s.FlexRate) {
		s.FlexRate = 100
	}
	return s
}

func (p Planner) keyParams(in Input, state model.SpendingState) keyParams {
	kp := keyParams{realWealth: in.TotalWealth / state.CumulativeInflationFactor}
	kp.peakRealWealth = state.PeakRealWealth
	if kp.peakRealWealth <= 0 {
		kp.peakRealWealth = kp.realWealth
	}
	if kp.peakRealWealth > 0 {
		kp.drawdown = (kp.peakRealWealth - kp.realWealth) / kp.peakRealWealth
	}
	provisional := in.Floor + in.Flex*state.FlexRate/100
	kp.withdrawalRate = safeDiv(provisional, in.DepotValue)
	return kp
}

// quantizeAnnual rounds the monthly payout down to the tier step and never
// below the monthly floor.
func (p Planner) quantizeAnnual(annual, floor float64) float64 {
	q := p.cfg.Quantization
	if !q.Enabled || annual <= 0 {
		return annual
	}
	monthly := annual / 12
	monthly = calculator.RoundDown(monthly, q.MonthlyStep(monthly))
	monthly = math.Max(monthly, floor/12)
	return monthly * 12
}

func clampRate(r float64) float64 {
	return math.Max(0, math.Min(100, r))
}

func safeDiv(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
