package action

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

var (
	peak = model.MarketRegime{Key: model.RegimePeakStable, Profile: model.ProfilePeak, SeiATH: 1, Label: "Peak"}
	bear = model.MarketRegime{Key: model.RegimeBearDeep, Profile: model.ProfileBear, SeiATH: 0.6, ATHGapPct: 40, Label: "Deep bear"}
)

func household() model.Household {
	return model.Household{
		RunwayMinMonths:      24,
		RunwayTargetMonths:   36,
		TargetEquityPct:      60,
		RebalBandPct:         20,
		MaxSkimPctOfEq:       5,
		MaxBearRefillPctOfEq: 5,
	}
}

func newInput(r model.MarketRegime, p model.Portfolio) Input {
	return Input{
		Regime:    r,
		Portfolio: p,
		Household: household(),
		Floor:     30000,
		Flex:      12000,
	}
}

func equityOnly(old, cash float64) model.Portfolio {
	return model.Portfolio{
		Equity: []model.Tranche{{ID: "old", Kind: model.KindEquityOld, MarketValue: old, CostBasis: old * 0.4, TaxFreeQuota: 0.3}},
		Cash:   cash,
	}
}

func withGold(p model.Portfolio) model.Portfolio {
	p.Gold = []model.Tranche{{ID: "gold", Kind: model.KindGold, MarketValue: 50000, CostBasis: 40000, TaxFreeQuota: 1}}
	return p
}

func TestTargetLiquidity(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())

	cases := []struct {
		name    string
		regime  model.MarketRegime
		pension float64
		want    float64
	}{
		{"peak at high", peak, 0, 126000},
		{"above high", model.MarketRegime{Profile: model.ProfilePeak, SeiATH: 1.1}, 0, 147000},
		{"deep bear", bear, 0, 72000},
		{"pension covers floor", peak, 36000, 18000},
	}
	for _, c := range cases {
		in := newInput(c.regime, model.Portfolio{})
		in.Pension = c.pension
		if got := p.TargetLiquidity(in); math.Abs(got-c.want) > 1e-6 {
			t.Errorf("%s: expected %.0f, got %.0f", c.name, c.want, got)
		}
	}

	cfg := config.DefaultEngine()
	cfg.Profile.Dynamic = false
	if got := NewPlanner(cfg).TargetLiquidity(newInput(peak, model.Portfolio{})); got != 84000 {
		t.Errorf("expected static target 84000, got %.0f", got)
	}
}

func TestMinTradeGate(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())

	gate, relaxed := p.MinTradeGate(1000000, 8000, 8000)
	if gate != 10000 || !relaxed {
		t.Errorf("expected relaxed gate 10000, got %.0f (relaxed %v)", gate, relaxed)
	}
	gate, relaxed = p.MinTradeGate(10000000, 60000, 60000)
	if gate != 50000 || relaxed {
		t.Errorf("expected dynamic gate 50000, got %.0f (relaxed %v)", gate, relaxed)
	}
	gate, _ = p.MinTradeGate(1000000, 0, 8000)
	if gate != 25000 {
		t.Errorf("expected static gate 25000 without liquidity need, got %.0f", gate)
	}
}

func TestCappedRefill(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())
	h := household()

	r := p.cappedRefill(true, 30000, 400000, h, false)
	if r.need != 20000 || !r.capped {
		t.Errorf("expected capped refill of 20000, got %+v", r)
	}
	r = p.cappedRefill(true, 30000, 400000, h, true)
	if r.need != 30000 || r.capped {
		t.Errorf("expected critical refill of 30000, got %+v", r)
	}
	r = p.cappedRefill(true, 30000, 100000, h, false)
	if r.need != 0 || !r.suppressed {
		t.Errorf("expected suppressed refill, got %+v", r)
	}
}

func TestDetermine_LiquiditySufficient(t *testing.T) {
	act := NewPlanner(config.DefaultEngine()).Determine(newInput(peak, equityOnly(800000, 130000)))
	if act.Type != model.ActionNone {
		t.Fatalf("expected no action, got %s (%s)", act.Type, act.Title)
	}
	if act.Diagnostics.BlockReason != model.BlockLiquiditySufficient {
		t.Errorf("expected liquidity_sufficient, got %s", act.Diagnostics.BlockReason)
	}
	if act.Diagnostics.TargetLiquidity != 126000 {
		t.Errorf("expected target 126000, got %.0f", act.Diagnostics.TargetLiquidity)
	}
}

func TestDetermine_SurplusInvestsUpToBand(t *testing.T) {
	act := NewPlanner(config.DefaultEngine()).Determine(newInput(peak, equityOnly(500000, 300000)))
	if act.Type != model.ActionTransaction {
		t.Fatalf("expected a transaction, got %s", act.Type)
	}
	if act.FromLiquidity != 70000 || act.Uses.Equity != 70000 || act.Uses.Gold != 0 {
		t.Errorf("expected 70000 into equity, got from=%.0f uses=%+v", act.FromLiquidity, act.Uses)
	}
	if len(act.Sources) != 0 {
		t.Errorf("surplus investment should not sell, got %d sources", len(act.Sources))
	}
}

func TestDetermine_OpportunisticRefill(t *testing.T) {
	port := model.Portfolio{
		Equity: []model.Tranche{
			{ID: "old", Kind: model.KindEquityOld, MarketValue: 600000, CostBasis: 200000, TaxFreeQuota: 0.3},
			{ID: "new", Kind: model.KindEquityNew, MarketValue: 400000, CostBasis: 380000, TaxFreeQuota: 0.3},
		},
		Cash: 100000,
	}
	in := newInput(peak, port)
	act := NewPlanner(config.DefaultEngine()).Determine(in)

	if act.Type != model.ActionTransaction {
		t.Fatalf("expected a transaction, got %s (%s)", act.Type, act.Diagnostics.BlockReason)
	}
	if act.Need != 30000 {
		t.Errorf("expected need 30000, got %.0f", act.Need)
	}
	if act.TotalGross != 35000 {
		t.Errorf("expected rounded gross 35000, got %.2f", act.TotalGross)
	}
	if act.Sources[0].TrancheID != "new" {
		t.Errorf("expected the low-gain lot first, got %s", act.Sources[0].TrancheID)
	}
	if math.Abs(act.Uses.Liquidity-act.TotalNet) > 1e-9 {
		t.Errorf("all proceeds should go to liquidity, got %.2f of %.2f", act.Uses.Liquidity, act.TotalNet)
	}
	if !reflect.DeepEqual(in.Portfolio, port) {
		t.Error("input portfolio was modified")
	}
}

func TestDetermine_SmallRefillBlockedByMinTrade(t *testing.T) {
	act := NewPlanner(config.DefaultEngine()).Determine(newInput(peak, equityOnly(1000000, 121000)))
	if act.Type != model.ActionNone {
		t.Fatalf("expected no action, got %s", act.Type)
	}
	d := act.Diagnostics
	if d.BlockReason != model.BlockMinTrade {
		t.Errorf("expected min_trade, got %s", d.BlockReason)
	}
	if d.MinTradeGate != 10000 || !d.MinTradeRelaxed {
		t.Errorf("expected relaxed gate 10000, got %.0f (relaxed %v)", d.MinTradeGate, d.MinTradeRelaxed)
	}
	if d.BlockedAmount != 5000 {
		t.Errorf("expected blocked amount 5000, got %.0f", d.BlockedAmount)
	}
}

func TestDetermine_BearBufferEmergency(t *testing.T) {
	in := newInput(bear, withGold(equityOnly(500000, 20000)))
	in.Household.GoldActive = true
	in.Household.GoldTargetPct = 10
	in.MinGold = 30000

	act := NewPlanner(config.DefaultEngine()).Determine(in)
	if act.Type != model.ActionTransaction || !act.Emergency {
		t.Fatalf("expected an emergency transaction, got %s emergency=%v", act.Type, act.Emergency)
	}
	if act.Need != 40000 {
		t.Errorf("expected need 40000, got %.0f", act.Need)
	}
	if act.Sources[0].Kind != model.KindGold || act.Sources[0].Gross != 40000 {
		t.Errorf("expected 40000 of gold through the floor, got %+v", act.Sources[0])
	}
	if act.Uses.Liquidity != 40000 {
		t.Errorf("expected 40000 to liquidity, got %.2f", act.Uses.Liquidity)
	}
}

func TestDetermine_BearGuardrailCapped(t *testing.T) {
	in := newInput(bear, withGold(equityOnly(100000, 70000)))
	in.Household.GoldActive = true
	in.Household.GoldTargetPct = 10
	in.Household.MaxBearRefillPctOfEq = 2
	in.MinGold = 30000

	act := NewPlanner(config.DefaultEngine()).Determine(in)
	if act.Type != model.ActionTransaction {
		t.Fatalf("expected a transaction, got %s (%s)", act.Type, act.Diagnostics.BlockReason)
	}
	if act.Emergency {
		t.Error("guardrail refill is not an emergency sale")
	}
	if !strings.Contains(act.Title, "cap active") {
		t.Errorf("expected capped title, got %q", act.Title)
	}
	d := act.Diagnostics
	if d.BlockReason != model.BlockCapActive || d.GuardrailReason != "runway" || d.CapAmount != 10000 {
		t.Errorf("unexpected diagnostics %+v", d)
	}
	if act.TotalNet != 10000 || act.Sources[0].Kind != model.KindGold {
		t.Errorf("expected 10000 net from gold, got %.2f from %s", act.TotalNet, act.Sources[0].Kind)
	}
}

func TestPairRebalance(t *testing.T) {
	p := NewPlanner(config.DefaultEngine())

	port := model.Portfolio{Cash: 30000, MoneyMarket: 100000}
	m, ok := p.PairRebalance(port, 3500)
	if !ok || m.Amount != 20000 {
		t.Fatalf("expected 20000 into the money market, got %.0f (%v)", m.Amount, ok)
	}
	m.Apply(&port)
	if port.Cash != 10000 || port.MoneyMarket != 120000 {
		t.Errorf("expected 10000/120000, got %.0f/%.0f", port.Cash, port.MoneyMarket)
	}

	port = model.Portfolio{Cash: 1000, MoneyMarket: 50000}
	m, ok = p.PairRebalance(port, 3500)
	if !ok || m.Amount != -6000 {
		t.Fatalf("expected a 6000 cash refill, got %.0f (%v)", m.Amount, ok)
	}

	if _, ok := p.PairRebalance(model.Portfolio{Cash: 8000, MoneyMarket: 50000}, 3500); ok {
		t.Error("expected small move to be skipped")
	}
}
