package engine

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(config.DefaultEngine())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func household() model.Household {
	return model.Household{
		Age:                  65,
		Gender:               model.GenderMale,
		Floor:                30000,
		Flex:                 12000,
		RunwayMinMonths:      24,
		RunwayTargetMonths:   36,
		TargetEquityPct:      60,
		RebalBandPct:         20,
		MaxSkimPctOfEq:       5,
		MaxBearRefillPctOfEq: 5,
	}
}

func athMarket() model.MarketSnapshot {
	return model.MarketSnapshot{
		EndeVJ:    100,
		EndeVJ1:   95,
		EndeVJ2:   90,
		EndeVJ3:   85,
		ATH:       100,
		CapeRatio: 25,
		Inflation: 2,
	}
}

func portfolio(equity, cash float64) model.Portfolio {
	return model.Portfolio{
		Equity: []model.Tranche{{ID: "old", Kind: model.KindEquityOld, MarketValue: equity, CostBasis: equity * 0.4, TaxFreeQuota: 0.3}},
		Cash:   cash,
	}
}

func input(equity, cash float64) Input {
	return Input{Household: household(), Portfolio: portfolio(equity, cash), Market: athMarket()}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.Tax.BaseRate = 0
	if _, err := New(cfg); !errors.Is(err, config.ErrInvalidEngine) {
		t.Errorf("expected ErrInvalidEngine, got %v", err)
	}
}

func TestValidate_AcceptsPlausibleInput(t *testing.T) {
	if err := newEngine(t).Validate(input(800000, 130000)); err != nil {
		t.Errorf("expected valid input, got %v", err)
	}
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	in := input(800000, 130000)
	in.Household.Age = 12
	in.Household.RunwayMinMonths = 30
	in.Household.RunwayTargetMonths = 24
	in.Household.TargetEquityPct = 95
	in.Household.GoldActive = true
	in.Household.GoldTargetPct = 0
	in.Portfolio.Cash = -1
	in.Market.Inflation = math.NaN()
	in.Market.MarketCapeRatio = 120
	in.Household.DynamicFlex = model.DynamicFlexSettings{HorizonMethod: "median"}
	in.Household.ChurchTaxRate = 10
	in.Household.PensionIndex = model.PensionIndexFixed
	in.Household.PensionIndexPct = math.Inf(1)
	in.Market.YearsSinceATH = math.NaN()
	in.Market.InterestRate = math.Inf(1)

	err := newEngine(t).Validate(in)
	ve, ok := AsValidation(err)
	if !ok {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, f := range []string{"age", "runway_target_months", "target_eq", "gold_target_pct", "cash", "inflation", "market_cape_ratio", "horizon_method",
		"church_tax_rate", "pension_index_pct", "years_since_ath", "interest_rate"} {
		if !ve.Has(f) {
			t.Errorf("expected %s to be rejected, got %v", f, ve)
		}
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("plain range errors should not match ErrConfiguration")
	}
}

func TestSimulateSingleYear_RejectsNonFiniteChurchTax(t *testing.T) {
	for _, rate := range []float64{math.Inf(1), 10, -0.01} {
		in := input(500000, 1000)
		in.Household.ChurchTaxRate = rate

		_, err := newEngine(t).SimulateSingleYear(in, nil)
		ve, ok := AsValidation(err)
		if !ok || !ve.Has("church_tax_rate") {
			t.Errorf("rate %v: expected church_tax_rate field error, got %v", rate, err)
		}
	}

	in := input(500000, 1000)
	in.Household.ChurchTaxRate = 0.09
	if err := newEngine(t).Validate(in); err != nil {
		t.Errorf("expected 9%% church tax to validate, got %v", err)
	}
}

func TestValidate_GoGoMultiplierIsConfigurationError(t *testing.T) {
	in := input(800000, 130000)
	in.Household.DynamicFlex = model.DynamicFlexSettings{Enabled: true, GoGoActive: true, GoGoMultiplier: 2}

	_, err := newEngine(t).SimulateSingleYear(in, nil)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if ve, _ := AsValidation(err); ve == nil || !ve.Has("go_go_multiplier") {
		t.Errorf("expected go_go_multiplier field error, got %v", err)
	}
}

func TestSimulateSingleYear_LiquiditySufficient(t *testing.T) {
	res, err := newEngine(t).SimulateSingleYear(input(800000, 130000), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ui := res.UI
	if ui.Action.Type != model.ActionNone {
		t.Errorf("expected no action, got %s", ui.Action.Title)
	}
	if ui.TargetLiquidity != 126000 {
		t.Errorf("expected target 126000, got %.0f", ui.TargetLiquidity)
	}
	if ui.Runway.Status != RunwayOK {
		t.Errorf("expected runway ok, got %s (%.1f months)", ui.Runway.Status, ui.Runway.Months)
	}
	wantCov := 130000.0 / 126000 * 100
	if math.Abs(ui.Coverage.Before-wantCov) > 1e-9 || math.Abs(ui.Coverage.After-wantCov) > 1e-9 {
		t.Errorf("expected coverage %.2f, got %.2f/%.2f", wantCov, ui.Coverage.Before, ui.Coverage.After)
	}
	if ui.Spending.AnnualWithdrawal < 30000 {
		t.Errorf("floor must be paid, got %.0f", ui.Spending.AnnualWithdrawal)
	}
	if res.NewState.Years != 1 {
		t.Errorf("expected state year 1, got %d", res.NewState.Years)
	}
}

func TestSimulateSingleYear_RefillImprovesCoverage(t *testing.T) {
	res, err := newEngine(t).SimulateSingleYear(input(800000, 100000), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ui := res.UI
	if ui.Action.Type != model.ActionTransaction {
		t.Fatalf("expected a refill, got %s (%s)", ui.Action.Type, ui.Action.Diagnostics.BlockReason)
	}
	if ui.Coverage.After <= ui.Coverage.Before {
		t.Errorf("expected coverage to rise, got %.1f -> %.1f", ui.Coverage.Before, ui.Coverage.After)
	}
	if ui.Runway.Status != RunwayOK {
		t.Errorf("expected runway ok after refill, got %s", ui.Runway.Status)
	}
}

func TestSimulateSingleYear_DoesNotMutateInput(t *testing.T) {
	in := input(800000, 100000)
	in.Household.GoldActive = true
	in.Household.GoldTargetPct = 10
	in.Household.GoldFloorPct = 2
	in.Portfolio.Gold = []model.Tranche{{ID: "g", Kind: model.KindGold, MarketValue: 20000, CostBasis: 15000}}
	before := Input{Household: in.Household, Portfolio: in.Portfolio.Clone(), Market: in.Market}
	prior := &model.SpendingState{FlexRate: 80, PeakRealWealth: 1000000, CumulativeInflationFactor: 1, Years: 2}
	priorCopy := *prior

	if _, err := newEngine(t).SimulateSingleYear(in, prior); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(in, before) {
		t.Error("input was modified")
	}
	if *prior != priorCopy {
		t.Error("prior state was modified")
	}
}

func TestSimulateSingleYear_CapeAliasEquivalence(t *testing.T) {
	e := newEngine(t)
	a := input(800000, 130000)
	a.Market.CapeRatio = 33
	b := a
	b.Market.CapeRatio = 0
	b.Market.MarketCapeRatio = 33

	ra, err := e.SimulateSingleYear(a, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rb, err := e.SimulateSingleYear(b, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ra.UI.Market, rb.UI.Market) {
		t.Errorf("expected identical regimes, got %+v vs %+v", ra.UI.Market, rb.UI.Market)
	}
	if !reflect.DeepEqual(ra.UI.Spending, rb.UI.Spending) || !reflect.DeepEqual(ra.NewState, rb.NewState) {
		t.Error("expected identical spending for both CAPE fields")
	}
}

func TestSimulateSingleYear_BearGuardrailCutKeepsFloor(t *testing.T) {
	in := input(560000, 100000)
	in.Household.Floor = 24000
	in.Household.Flex = 12000
	in.Market = model.MarketSnapshot{EndeVJ: 65, EndeVJ1: 90, EndeVJ2: 95, EndeVJ3: 100, ATH: 100, YearsSinceATH: 1, Inflation: 2}
	prior := &model.SpendingState{
		FlexRate:                  100,
		PeakRealWealth:            1000000,
		CumulativeInflationFactor: 1,
		LastRegime:                model.RegimePeakStable,
		Years:                     3,
	}

	res, err := newEngine(t).SimulateSingleYear(in, prior)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sp := res.UI.Spending
	if res.UI.Market.Key != model.RegimeBearDeep {
		t.Fatalf("expected bear_deep, got %s", res.UI.Market.Key)
	}
	if sp.CutPct <= 0 {
		t.Errorf("expected a flex cut, got %.1f%%", sp.CutPct)
	}
	if sp.AnnualWithdrawal < 24000 {
		t.Errorf("floor violated: withdrawal %.0f", sp.AnnualWithdrawal)
	}
	if !res.NewState.AlarmActive {
		t.Error("expected the alarm to be active")
	}
}

func TestSimulateSingleYear_PensionNetting(t *testing.T) {
	in := input(800000, 130000)
	in.Household.Pension = 36000
	res, err := newEngine(t).SimulateSingleYear(in, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the pension covers the floor and 6000 of the flex
	if res.UI.Spending.Floor != 0 || res.UI.Spending.Flex != 6000 {
		t.Errorf("expected net floor 0 and flex 6000, got %.0f/%.0f", res.UI.Spending.Floor, res.UI.Spending.Flex)
	}
}
