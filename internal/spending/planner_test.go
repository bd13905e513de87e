package spending

import (
	"errors"
	"math"
	"testing"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/regime"
)

var flat = model.MarketSnapshot{EndeVJ: 100, EndeVJ1: 100, EndeVJ2: 100, EndeVJ3: 100, ATH: 100, Inflation: 2}

var bear = model.MarketSnapshot{
	EndeVJ: 60, EndeVJ1: 80, EndeVJ2: 100, EndeVJ3: 110,
	ATH: 120, YearsSinceATH: 3, CapeRatio: 32, Inflation: 2,
}

func input(m model.MarketSnapshot, floor, flex, depot, liquidity float64) Input {
	cfg := config.DefaultEngine()
	r := regime.NewClassifier(cfg).Classify(m)
	return Input{
		Regime:          r,
		Market:          m,
		Floor:           floor,
		Flex:            flex,
		DepotValue:      depot,
		TotalWealth:     depot + liquidity,
		RunwayMonths:    liquidity / ((floor + flex) / 12),
		MinRunwayMonths: 24,
		Inflation:       m.Inflation,
		TargetEquityPct: 60,
		HorizonYears:    20,
	}
}

func TestPlan_FreshStartFullFlex(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	res, next, err := p.Plan(input(flat, 24000, 12000, 800000, 100000), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.FlexRate != 100 {
		t.Errorf("expected flex rate 100, got %.2f", res.FlexRate)
	}
	if res.AnnualWithdrawal != 36000 {
		t.Errorf("expected 36000, got %.2f", res.AnnualWithdrawal)
	}
	if math.Abs(res.MonthlyWithdrawal-3000) > 1e-9 {
		t.Errorf("expected monthly 3000, got %.2f", res.MonthlyWithdrawal)
	}
	if next.Years != 1 || next.PeakRealWealth != 900000 {
		t.Errorf("unexpected state %+v", next)
	}
	if res.VPW == nil || res.VPW.Status != model.VPWStatusDisabled {
		t.Errorf("expected disabled VPW contract, got %+v", res.VPW)
	}
}

func TestPlan_BearCutKeepsFloor(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	in := input(bear, 24000, 12000, 400000, 80000)
	if in.Regime.Key != model.RegimeBearDeep {
		t.Fatalf("expected bear_deep, got %s", in.Regime.Key)
	}
	res, _, err := p.Plan(in, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CutPct <= 0 {
		t.Errorf("expected a flex cut, got %.2f", res.CutPct)
	}
	if res.AnnualWithdrawal < 24000 {
		t.Errorf("floor violated: %.2f", res.AnnualWithdrawal)
	}
	if res.CutSource != model.CutSourceGuardrailCaution {
		t.Errorf("expected guardrail_caution at a 9%% withdrawal rate, got %s", res.CutSource)
	}
}

func TestPlan_FloorNeverCut(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	state := &model.SpendingState{FlexRate: 40, PeakRealWealth: 2e6, CumulativeInflationFactor: 1, Years: 5}
	for i, m := range []model.MarketSnapshot{flat, bear} {
		res, _, err := p.Plan(input(m, 30000, 20000, 150000, 5000), state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.AnnualWithdrawal < 30000 {
			t.Errorf("floor violated in case %d: %.2f", i, res.AnnualWithdrawal)
		}
	}
}

func TestPlan_AlarmInDeepBear(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	state := &model.SpendingState{FlexRate: 100, PeakRealWealth: 600000, CumulativeInflationFactor: 1, Years: 3}
	res, next, err := p.Plan(input(bear, 24000, 12000, 300000, 20000), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AlarmActive || !next.AlarmActive {
		t.Fatal("expected alarm to trigger")
	}
	if res.CutSource != model.CutSourceGuardrailAlarm {
		t.Errorf("expected guardrail_alarm, got %s", res.CutSource)
	}
	if math.Abs(res.FlexRate-90) > 1e-9 {
		t.Errorf("expected flex rate 90, got %.2f", res.FlexRate)
	}

	peak := model.MarketSnapshot{EndeVJ: 130, EndeVJ1: 110, EndeVJ2: 100, EndeVJ3: 90, ATH: 125, Inflation: 2}
	res, next, _ = p.Plan(input(peak, 24000, 12000, 900000, 100000), &next)
	if res.AlarmActive || next.AlarmActive {
		t.Error("expected alarm to clear at a new peak")
	}
}

func TestPlan_RecoveryCurb(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	m := model.MarketSnapshot{EndeVJ: 80, EndeVJ1: 65, EndeVJ2: 60, EndeVJ3: 90, ATH: 100, YearsSinceATH: 3, Inflation: 2}
	in := input(m, 24000, 12000, 1200000, 200000)
	if in.Regime.Key != model.RegimeRecoveryInBear {
		t.Fatalf("expected recovery_in_bear, got %s", in.Regime.Key)
	}
	state := &model.SpendingState{FlexRate: 100, PeakRealWealth: 1400000, CumulativeInflationFactor: 1, Years: 2}
	res, _, _ := p.Plan(in, state)
	if res.FlexRate > 80+1e-9 {
		t.Errorf("expected curb to cap flex rate at 80, got %.2f", res.FlexRate)
	}
	if res.CutSource != model.CutSourceGuardrailCaution {
		t.Errorf("expected guardrail_caution, got %s", res.CutSource)
	}
}

func TestPlan_InflationCap(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	m := flat
	m.Inflation = 6
	res, _, _ := p.Plan(input(m, 24000, 12000, 500000, 100000), nil)
	if !res.Details.Cautious || res.Details.InflationCap != 3 {
		t.Errorf("expected inflation cap 3, got %+v", res.Details)
	}
	if res.CutSource != model.CutSourceInflationCap {
		t.Errorf("expected inflation_cap, got %s", res.CutSource)
	}
}

func TestPlan_BudgetFloorRaisesRate(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	state := &model.SpendingState{FlexRate: 50, PeakRealWealth: 3e6, CumulativeInflationFactor: 1, Years: 4}
	res, _, _ := p.Plan(input(flat, 24000, 12000, 3000000, 200000), state)
	if res.CutSource != model.CutSourceBudgetFloor {
		t.Errorf("expected budget_floor, got %s", res.CutSource)
	}
	if res.FlexRate <= 54.5 {
		t.Errorf("expected budget floor above smoothing step, got %.2f", res.FlexRate)
	}
}

func vpwRate(r, n float64) float64 {
	if math.Abs(r) < 0.001 {
		return 1 / n
	}
	return r / (1 - math.Pow(1+r, -n))
}

func dynamicInput(cape, targetEq, inflation, horizon float64) Input {
	m := flat
	m.CapeRatio = cape
	m.Inflation = inflation
	in := input(m, 1000, 6000, 100000, 10000)
	in.TargetEquityPct = targetEq
	in.HorizonYears = horizon
	in.DynamicFlex = model.DynamicFlexSettings{Enabled: true}
	return in
}

func TestDynamicFlex_Formula(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	res, _, err := p.Plan(dynamicInput(30, 60, 2, 20), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := res.VPW
	wantReturn := 0.02
	wantRate := vpwRate(wantReturn, 20)
	wantTotal := 110000 * wantRate
	if v.Status != model.VPWStatusActive {
		t.Errorf("expected active, got %s", v.Status)
	}
	if v.TotalWealth != 110000 {
		t.Errorf("expected total wealth 110000, got %.2f", v.TotalWealth)
	}
	if math.Abs(v.ExpectedRealReturn-wantReturn) > 1e-9 {
		t.Errorf("expected return %.4f, got %.6f", wantReturn, v.ExpectedRealReturn)
	}
	if math.Abs(v.Rate-wantRate) > 1e-9 {
		t.Errorf("expected rate %.6f, got %.6f", wantRate, v.Rate)
	}
	if math.Abs(v.DynamicFlex-(wantTotal-1000)) > 1e-6 {
		t.Errorf("expected flex %.2f, got %.2f", wantTotal-1000, v.DynamicFlex)
	}
	// amortisation: wealth withdrawn at the rate each year is exhausted after n years
	w := 1.0
	for i := 0; i < 20; i++ {
		w = w*(1+wantReturn) - vpwRate(wantReturn, float64(20-i))*w
	}
	if math.Abs(w) > 1e-9 {
		t.Errorf("expected full amortisation, residual %.12f", w)
	}
}

func TestDynamicFlex_Clamps(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	low, _, _ := p.Plan(dynamicInput(35, 90, 50, 15), nil)
	if low.VPW.ExpectedRealReturn != 0 {
		t.Errorf("expected lower clamp 0, got %.4f", low.VPW.ExpectedRealReturn)
	}
	high, _, _ := p.Plan(dynamicInput(15, 90, -10, 15), nil)
	if high.VPW.ExpectedRealReturn != 0.05 {
		t.Errorf("expected upper clamp 0.05, got %.4f", high.VPW.ExpectedRealReturn)
	}
}

func TestDynamicFlex_SmoothingAndHorizon(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	_, s1, _ := p.Plan(dynamicInput(35, 60, 2, 20), nil)
	y2, s2, _ := p.Plan(dynamicInput(15, 60, 2, 19), &s1)
	y3, _, _ := p.Plan(dynamicInput(15, 60, 2, 18), &s2)
	if y2.VPW.ExpectedRealReturn <= s1.VPWExpectedReturn || y2.VPW.ExpectedRealReturn >= 0.038 {
		t.Errorf("expected smoothed return between years, got %.4f", y2.VPW.ExpectedRealReturn)
	}
	if y3.VPW.ExpectedRealReturn < y2.VPW.ExpectedRealReturn {
		t.Errorf("expected continued move towards target, got %.4f", y3.VPW.ExpectedRealReturn)
	}

	long, _, _ := p.Plan(dynamicInput(30, 60, 2, 35), nil)
	short, _, _ := p.Plan(dynamicInput(30, 60, 2, 20), nil)
	if short.VPW.Rate <= long.VPW.Rate {
		t.Errorf("expected shorter horizon to raise rate: %.4f vs %.4f", short.VPW.Rate, long.VPW.Rate)
	}
}

func TestDynamicFlex_GoGo(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	off := dynamicInput(30, 60, 2, 22)
	off.DynamicFlex.GoGoMultiplier = 1.2
	on := off
	on.DynamicFlex.GoGoActive = true

	a, _, _ := p.Plan(off, nil)
	b, _, _ := p.Plan(on, nil)
	if b.VPW.Total <= a.VPW.Total {
		t.Errorf("expected go-go to raise total: %.2f vs %.2f", b.VPW.Total, a.VPW.Total)
	}

	on.DynamicFlex.GoGoMultiplier = 2
	if _, _, err := p.Plan(on, nil); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func stressInput() Input {
	in := input(bear, 24000, 12000, 250000, 5000)
	in.DynamicFlex = model.DynamicFlexSettings{Enabled: true, GoGoActive: true, GoGoMultiplier: 1.2}
	in.HorizonYears = 25
	return in
}

func TestSafety_EscalatesToStaticFlex(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	state := &model.SpendingState{FlexRate: 100, PeakRealWealth: 300000, CumulativeInflationFactor: 1, Years: 1}

	var stages []int
	var results []model.SpendingResult
	for i := 0; i < 8; i++ {
		res, next, err := p.Plan(stressInput(), state)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		results = append(results, res)
		stages = append(stages, next.VPWSafetyStage)
		state = &next
	}

	suppressed, static := false, false
	for i := 1; i < len(results); i++ {
		if stages[i-1] >= 1 && results[i].VPW.GoGoSuppressed && !results[i].VPW.GoGoActive {
			suppressed = true
		}
		if stages[i-1] >= 2 && results[i].VPW.Status == model.VPWStatusSafetyStaticFlex {
			static = true
			if results[i].VPW.Enabled || !results[i].VPW.DynamicFlexSuppressed {
				t.Errorf("stage 2 should disable dynamic flex: %+v", results[i].VPW)
			}
		}
	}
	if !suppressed {
		t.Errorf("expected go-go suppression after stage 1, stages %v", stages)
	}
	if !static {
		t.Errorf("expected static flex after stage 2, stages %v", stages)
	}
}

func TestSafety_ReentryIsDamped(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	m := model.MarketSnapshot{EndeVJ: 110, EndeVJ1: 105, EndeVJ2: 100, EndeVJ3: 95, ATH: 110, CapeRatio: 24, Inflation: 2}
	in := input(m, 24000, 12000, 4000000, 400000)
	in.DynamicFlex = model.DynamicFlexSettings{Enabled: true, GoGoActive: true, GoGoMultiplier: 1.1}
	in.HorizonYears = 24
	state := &model.SpendingState{
		FlexRate: 100, PeakRealWealth: 300000, CumulativeInflationFactor: 1, Years: 5,
		VPWSafetyStage: 1, VPWReentryRemaining: 3, VPWPrevDynamicFlex: 12000,
	}
	res, next, err := p.Plan(in, state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.VPW.Status != model.VPWStatusActive || !res.VPW.ReentryApplied {
		t.Fatalf("expected damped active VPW, got %+v", res.VPW)
	}
	if res.VPW.DynamicFlex >= res.VPW.RawDynamicFlex {
		t.Errorf("expected damped flex below raw: %.2f vs %.2f", res.VPW.DynamicFlex, res.VPW.RawDynamicFlex)
	}
	if next.VPWReentryRemaining != 2 {
		t.Errorf("expected 2 ramp years left, got %d", next.VPWReentryRemaining)
	}
}
