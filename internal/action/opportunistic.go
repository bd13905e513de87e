package action

import (
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/model"
)

// planOpportunistic tops up liquidity and rebalances gold outside bear
// markets. Equity is skimmed only above its band and within a cap that
// shrinks to zero at 20% below the all-time high. The sale size is rounded
// on the gross amount so the order itself is a round number.
func (p Planner) planOpportunistic(in Input, pl *plan, liq, capital, target float64) {
	st := p.cfg.Strategy
	h := in.Household
	q := p.cfg.Quantization

	rawGap := target - liq
	liqNeed := p.roundUp(math.Max(0, rawGap))
	surplusCash := math.Max(0, -rawGap)

	athFactor := calculator.Clamp((seiATH(in.Regime)-st.OpportunisticATHFloor)/(1-st.OpportunisticATHFloor), 0, 1)

	coverage := 1.0
	if target > 0 {
		coverage = liq / target
	}
	critical := coverage < st.CoverageMinPct
	belowFloor := liq < st.AbsoluteMinLiquidity

	gold := in.goldValue()
	band := p.bandPct(h) / 100
	var goldTarget, goldBuy, goldSell float64
	if h.GoldActive && h.GoldTargetPct > 0 {
		goldTarget = capital * h.GoldTargetPct / 100
		switch {
		case gold < goldTarget*(1-band):
			goldBuy = math.Max(0, goldTarget-gold)
		case gold > goldTarget*(1+band):
			goldSell = math.Max(0, gold-goldTarget)
		}
	}
	if liqNeed > 0 && goldBuy > 0 {
		goldBuy = math.Min(goldBuy, surplusCash)
	}
	effGoldBuy := goldBuy
	if surplusCash > 0 && goldBuy > 0 {
		effGoldBuy = math.Max(0, goldBuy-surplusCash)
	}

	total := math.Max(liqNeed+effGoldBuy, goldSell)
	need := total
	switch {
	case !critical && !belowFloor:
		if total < q.HysteresisRefill {
			need = 0
		} else {
			need = p.roundUp(total)
		}
	case need > 0:
		need = p.roundUp(need)
	}
	if need <= 0 {
		return
	}

	effLiqNeed := liqNeed + math.Max(0, need-total)

	var minGate float64
	switch {
	case belowFloor:
		minGate = 0
		pl.minTrade = 0
	case critical:
		minGate = math.Max(st.MinRefillAmount, st.CashRebalanceThreshold)
		pl.minTrade = 0
	default:
		g := p.minTradeGate(capital, effLiqNeed, need)
		minGate = g.applied
		pl.minTrade = g.override
		pl.diag.MinTradeRelaxed = g.relaxed
	}
	pl.diag.MinTradeGate = minGate
	if need < minGate {
		pl.diag.BlockReason = model.BlockMinTrade
		pl.diag.BlockedAmount = minGate - need
		return
	}

	goldBudget := 0.0
	if goldSell > 0 {
		goldBudget = p.roundDown(gold - goldTarget)
	}
	pl.req.Budgets[model.KindGold] = goldBudget

	equity := in.Portfolio.EquityValue()
	eqTarget := capital * h.TargetEquityPct / 100
	eqSurplus := 0.0
	if equity > eqTarget*(1+band) {
		eqSurplus = equity - eqTarget
	}
	switch {
	case goldSell > 1.5*effLiqNeed:
		eqSurplus = 0
	case goldSell >= effLiqNeed && !critical && !belowFloor:
		eqSurplus = 0
	}
	goldInsufficient := goldSell*st.RiskyGoldSaleShare < effLiqNeed
	if (belowFloor || critical) && eqSurplus < effLiqNeed && goldInsufficient {
		eqSurplus = math.Min(effLiqNeed, equity)
	}

	skimCap := h.MaxSkimPctOfEq / 100 * equity * athFactor
	if critical || belowFloor {
		skimCap = math.Max(skimCap, effLiqNeed*1.2)
	}
	if equity > 0 {
		pl.req.LimitEquity = true
		pl.req.EquityBudget = math.Min(eqSurplus, skimCap)
	}

	dry := pl.req
	dry.Amount = need
	gross := p.roundUp(p.sales.Sell(dry).TotalGross)
	pl.req.ForceGross = true
	pl.req.Amount = gross

	pl.need = need
	pl.title = "Opportunistic rebalancing and liquidity refill"
	if liqNeed <= 0 {
		pl.title = "Opportunistic rebalancing (gold)"
	}

	pl.uses.Gold = p.roundDown(math.Min(need, goldBuy))
	forLiq := math.Max(0, need-pl.uses.Gold)
	pl.uses.Liquidity = math.Min(forLiq, effLiqNeed)
	if goldSell > 0 {
		gap := math.Max(0, eqTarget-equity)
		pl.uses.Equity = math.Min(math.Max(0, forLiq-pl.uses.Liquidity), gap)
	}
}
