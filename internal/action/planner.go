package action

import (
	"fmt"
	"math"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/sale"
)

// Input is the state the planner decides on. Floor, Flex and Pension are
// this year's inflated gross amounts; the planner nets the pension itself.
type Input struct {
	Regime    model.MarketRegime
	Portfolio model.Portfolio
	Household model.Household

	Floor   float64
	Flex    float64
	Pension float64

	// MinGold is the gold floor in money; zero when gold is inactive.
	MinGold float64
	// Allowance is the saver allowance still unused this tax year.
	Allowance float64
}

func (in Input) netNeeds() (floor, flex float64) {
	floor = math.Max(0, in.Floor-in.Pension)
	surplus := math.Max(0, in.Pension-in.Floor)
	flex = math.Max(0, in.Flex-surplus)
	return floor, flex
}

func (in Input) goldValue() float64 {
	if !in.Household.GoldActive {
		return 0
	}
	return in.Portfolio.GoldValue()
}

// Planner decides this year's trades. It is a pure value.
type Planner struct {
	cfg   config.Engine
	sales sale.Engine
}

// NewPlanner builds a planner from the engine configuration.
func NewPlanner(cfg config.Engine) Planner {
	return Planner{cfg: cfg, sales: sale.NewEngine(cfg)}
}

// plan is a sale under construction.
type plan struct {
	title     string
	need      float64
	uses      model.Uses
	req       sale.Request
	emergency bool
	capped    bool
	// minTrade < 0 means the default gate applies.
	minTrade float64
	diag     model.ActionDiagnostics
}

func (p Planner) newPlan(in Input, target float64) plan {
	return plan{
		minTrade: -1,
		req: sale.Request{
			Portfolio:      in.Portfolio,
			Regime:         in.Regime.Key,
			MinGold:        in.MinGold,
			GoldUpperBound: p.goldUpperBound(in),
			Budgets:        map[model.TrancheKind]float64{},
			ChurchTaxRate:  in.Household.ChurchTaxRate,
			Allowance:      in.Allowance,
		},
		diag: model.ActionDiagnostics{
			BlockReason:     model.BlockNone,
			TargetLiquidity: target,
		},
	}
}

// Determine picks the action for the year: buffer protection in bear
// markets, a runway guardrail refill, opportunistic rebalancing or surplus
// investment, in that order of precedence. The input is not modified.
func (p Planner) Determine(in Input) model.Action {
	st := p.cfg.Strategy
	in.Portfolio = in.Portfolio.Clone()

	liq := in.Portfolio.Liquidity()
	capital := in.Portfolio.EquityValue() + in.goldValue() + liq
	target := p.TargetLiquidity(in)
	netFloor, _ := in.netNeeds()
	minRunway := p.cfg.Profile.MinRunwayMonths
	bear := in.Regime.Key.IsBearProxy()

	pl := p.newPlan(in, target)

	buffer := math.Max(netFloor/12*minRunway, st.EmergencyBufferMinimum)
	if liq <= buffer && bear {
		pl.emergency = true
		if gap := buffer - liq; gap > 1 {
			pl.need = gap
			pl.title = "Emergency sale (buffer refill)"
		} else {
			pl.need = netFloor
			pl.title = "Emergency sale (buffer protection)"
		}
		pl.uses.Liquidity = pl.need
		pl.req.Emergency = true
		pl.diag.Entries = append(pl.diag.Entries, fmt.Sprintf("buffer protection: secure runway with %.0f", pl.need))
	}

	criticalFloor := liq < netFloor

	if !pl.emergency {
		p.planGuardrail(in, &pl, liq, capital, target, buffer, bear)
		if pl.need <= 0 && pl.diag.GuardrailReason == "" && !bear {
			p.planOpportunistic(in, &pl, liq, capital, target)
		}
	}

	if pl.need <= 0 {
		if act, ok := p.surplus(in, liq, capital, target); ok {
			return act
		}
		reason := pl.diag.BlockReason
		if reason == model.BlockNone {
			reason = model.BlockLiquiditySufficient
		}
		act := model.NoAction(p.noActionTitle(in, pl.title), reason)
		act.Diagnostics.BlockedAmount = pl.diag.BlockedAmount
		act.Diagnostics.MinTradeGate = pl.diag.MinTradeGate
		act.Diagnostics.MinTradeRelaxed = pl.diag.MinTradeRelaxed
		act.Diagnostics.GuardrailReason = pl.diag.GuardrailReason
		act.Diagnostics.TargetLiquidity = target
		act.Diagnostics.Entries = pl.diag.Entries
		return act
	}

	req := pl.req
	if !req.ForceGross {
		req.Amount = pl.need
	}
	res := p.sales.Sell(req)

	minTrade := pl.minTrade
	switch {
	case pl.emergency || criticalFloor:
		minTrade = 0
	case minTrade < 0:
		minTrade = p.baseMinTrade(capital)
	}
	pl.diag.MinTradeGate = minTrade

	if res.AchievedNet <= 0 || res.AchievedNet < minTrade {
		act := model.NoAction(p.noActionTitle(in, ""), model.BlockMinTrade)
		if res.AchievedNet <= 0 && in.MinGold > 0 && !req.Emergency && !req.IgnoreGoldFloor && in.goldValue() > 0 {
			act.Diagnostics.BlockReason = model.BlockGoldFloor
		}
		act.Need = pl.need
		act.Diagnostics.BlockedAmount = math.Max(0, minTrade-res.AchievedNet)
		if res.AchievedNet <= 0 {
			act.Diagnostics.BlockedAmount = pl.need
		}
		act.Diagnostics.MinTradeGate = minTrade
		act.Diagnostics.MinTradeRelaxed = pl.diag.MinTradeRelaxed
		act.Diagnostics.TargetLiquidity = target
		act.Diagnostics.Entries = pl.diag.Entries
		return act
	}

	achieved := res.AchievedNet
	if pl.need > achieved+1 && !pl.capped {
		pl.title += " (cap active)"
		pl.capped = true
	}

	// Gold purchases keep their rounded size; liquidity absorbs tax and caps.
	rest := achieved
	uses := model.Uses{}
	uses.Gold = math.Min(rest, pl.uses.Gold)
	rest -= uses.Gold
	uses.Liquidity = math.Min(rest, pl.uses.Liquidity)
	rest -= uses.Liquidity
	uses.Equity = math.Min(rest, pl.uses.Equity)
	rest -= uses.Equity
	if rest > 0 {
		if rest > 1000 {
			pl.diag.Entries = append(pl.diag.Entries, fmt.Sprintf("%.0f added to liquidity, allocation targets reached", rest))
		}
		uses.Liquidity += rest
	}

	pl.diag.Capped = pl.capped
	if pl.capped {
		pl.diag.BlockReason = model.BlockCapActive
		pl.diag.BlockedAmount = math.Max(0, pl.need-achieved)
	}

	return model.Action{
		Type:          model.ActionTransaction,
		Title:         pl.title,
		Need:          pl.need,
		Sources:       res.Breakdown,
		Uses:          uses,
		TotalTax:      res.TotalTax,
		TotalGross:    res.TotalGross,
		TotalNet:      achieved,
		AllowanceUsed: res.AllowanceUsed,
		Emergency:     pl.emergency,
		Diagnostics:   pl.diag,
	}
}

// planGuardrail refills liquidity when the runway or the target coverage is
// below its minimum. Peak regimes skip it unless liquidity is critical.
func (p Planner) planGuardrail(in Input, pl *plan, liq, capital, target, buffer float64, bear bool) {
	st := p.cfg.Strategy
	netFloor, _ := in.netNeeds()
	minRunway := p.cfg.Profile.MinRunwayMonths
	annual := netFloor + in.Flex

	runway := math.Inf(1)
	if annual > 0 {
		runway = liq / (annual / 12)
	}
	floorRunway := math.Inf(1)
	if netFloor > 0 {
		floorRunway = liq / (netFloor / 12)
	}
	coverage := 1.0
	if target > 0 {
		coverage = liq / target
	}

	runwayGap := floorRunway < minRunway || runway < minRunway
	coverageGap := coverage < st.GuardrailActivationPct
	grTarget := math.Max(minRunway*annual/12, st.CoverageMinPct*target)
	grGap := math.Max(0, grTarget-liq)

	critical := liq < st.AbsoluteMinLiquidity || coverage < st.PeakCriticalCoverage
	if fullFlexProfile(in.Regime.Profile) && !critical {
		return
	}
	if !(coverageGap || runwayGap) || grGap <= 1 {
		return
	}

	reason := "coverage"
	if runwayGap {
		reason = "runway"
	}

	equity := in.Portfolio.EquityValue()
	gold := in.goldValue()

	if bear {
		crit := liq < buffer*1.5 || coverage < st.CoverageMinPct
		r := p.cappedRefill(true, grGap, equity, in.Household, crit)
		pl.diag.GuardrailReason = reason
		if r.entry != "" {
			pl.diag.Entries = append(pl.diag.Entries, r.entry)
		}
		if r.need <= 0 {
			if r.suppressed {
				pl.diag.BlockReason = model.BlockGuardrail
			}
			return
		}
		pl.title = "Runway refill (bear)"
		p.applyRefill(in, pl, r, equity)
		pl.req.MinGold = 0
		pl.req.IgnoreGoldFloor = true
		if gold > 0 {
			pl.req.Budgets[model.KindGold] = gold
		}
		pl.minTrade = 0
		return
	}

	crit := coverage < st.CoverageMinPct || runwayGap
	g := p.minTradeGate(capital, grGap, grGap)
	pl.minTrade = g.override
	pl.diag.MinTradeRelaxed = g.relaxed
	if crit {
		pl.minTrade = 0
	}

	r := p.cappedRefill(false, grGap, equity, in.Household, crit)
	pl.diag.GuardrailReason = reason
	if r.entry != "" {
		pl.diag.Entries = append(pl.diag.Entries, r.entry)
	}
	if r.need <= 0 {
		if r.suppressed {
			pl.diag.BlockReason = model.BlockGuardrail
		}
		return
	}
	pl.title = "Runway refill (neutral)"
	p.applyRefill(in, pl, r, equity)
	if crit {
		pl.req.IgnoreGoldFloor = true
		pl.req.MinGold = 0
	}
	if gold > 0 {
		avail := math.Max(0, gold-in.MinGold)
		if crit {
			avail = gold
		}
		pl.req.Budgets[model.KindGold] = avail
	}
}

// applyRefill sizes the sale and spreads the equity budget across the two
// equity buckets by value.
func (p Planner) applyRefill(in Input, pl *plan, r refill, equity float64) {
	pl.need = r.need
	pl.capped = r.capped
	pl.uses.Liquidity = r.need
	pl.diag.Capped = r.capped
	if r.capped {
		pl.title += " (cap active)"
		pl.diag.CapAmount = r.need
	}
	if equity > 0 {
		sell := math.Min(r.need, equity)
		oldV := in.Portfolio.EquityValueOf(model.KindEquityOld)
		newV := in.Portfolio.EquityValueOf(model.KindEquityNew)
		pl.req.Budgets[model.KindEquityOld] = sell * oldV / equity
		pl.req.Budgets[model.KindEquityNew] = sell * newV / equity
	}
}

// goldUpperBound is the rebalancing ceiling above which gold is sold first.
func (p Planner) goldUpperBound(in Input) float64 {
	h := in.Household
	if !h.GoldActive || h.GoldTargetPct <= 0 {
		return 0
	}
	capital := in.Portfolio.EquityValue() + in.goldValue() + in.Portfolio.Liquidity()
	return capital * h.GoldTargetPct / 100 * (1 + p.bandPct(h)/100)
}

func (p Planner) bandPct(h model.Household) float64 {
	if h.RebalBandPct > 0 {
		return h.RebalBandPct
	}
	return p.cfg.Strategy.DefaultRebalBandPct
}

func (p Planner) noActionTitle(in Input, title string) string {
	if title == "" {
		title = "no action needed"
	}
	label := in.Regime.Label
	if label == "" {
		label = string(in.Regime.Key)
	}
	return fmt.Sprintf("%s (%s)", label, title)
}
