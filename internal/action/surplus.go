package action

import (
	"fmt"
	"math"
	"strings"

	"RetireSentinel/internal/model"
)

// surplus invests liquidity above target into the assets below their upper
// band, in proportion to each gap. Without any gap a skim-sized slice goes to
// equity. Nothing is invested in a bear market or far below the high.
func (p Planner) surplus(in Input, liq, capital, target float64) (model.Action, bool) {
	st := p.cfg.Strategy
	h := in.Household

	excess := liq - target
	risky := strings.Contains(string(in.Regime.Key), "bear") || in.Regime.ATHGapPct > st.SurplusRiskyGapPct

	hysteresis := st.SurplusInvestMinimum
	if p.cfg.Quantization.Enabled {
		hysteresis = p.baseMinTrade(capital)
	}
	if excess <= hysteresis || risky {
		return model.Action{}, false
	}

	band := p.bandPct(h) / 100
	stock := in.Portfolio.EquityValue()
	gold := in.goldValue()

	upperStock := capital * h.TargetEquityPct / 100 * (1 + band)
	upperGold := 0.0
	if h.GoldActive {
		upperGold = capital * h.GoldTargetPct / 100 * (1 + band)
	}
	gapStock := math.Max(0, upperStock-stock)
	gapGold := math.Max(0, upperGold-gold)
	gap := gapStock + gapGold

	amount := math.Min(excess, gap)
	overflow := gap <= 0
	if overflow {
		amount = math.Min(excess, h.MaxSkimPctOfEq/100*stock)
	}
	amount = p.roundDown(amount)
	if amount <= 0 {
		return model.Action{}, false
	}

	shareStock, shareGold := 1.0, 0.0
	if gap > 0 {
		shareStock = gapStock / gap
		shareGold = gapGold / gap
	}
	goldPart := p.roundDown(amount * shareGold)
	stockPart := p.roundDown(amount * shareStock)
	invest := goldPart + stockPart
	if invest <= 0 {
		return model.Action{}, false
	}

	title := "Surplus rebalancing (opportunistic)"
	if overflow {
		title = "Surplus rebalancing (liquidity reduction)"
	}
	return model.Action{
		Type:          model.ActionTransaction,
		Title:         title,
		Need:          invest,
		Uses:          model.Uses{Equity: stockPart, Gold: goldPart},
		FromLiquidity: invest,
		TotalNet:      invest,
		Diagnostics: model.ActionDiagnostics{
			BlockReason:     model.BlockNone,
			TargetLiquidity: target,
			Entries: []string{fmt.Sprintf("surplus of %.0f: invested %.0f (equity %.0f, gold %.0f) in %s",
				excess, invest, stockPart, goldPart, in.Regime.Key)},
		},
	}, true
}
