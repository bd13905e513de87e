package action

import (
	"fmt"
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/model"
)

// TargetLiquidity is the cash reserve the planner steers towards.
//
// With a dynamic profile the runway months move between the user's target
// and the profile bounds depending on the distance to the all-time high.
// The result never drops below the cash buffer months of the gross need and
// is rounded up to the next 100.
func (p Planner) TargetLiquidity(in Input) float64 {
	st := p.cfg.Strategy
	netFloor, netFlex := in.netNeeds()

	var target float64
	if !p.cfg.Profile.Dynamic {
		target = (netFloor + netFlex) * 2
	} else {
		profileMax := p.cfg.RunwayMonths(string(in.Regime.Profile))
		minMonths := in.Household.RunwayMinMonths
		if minMonths <= 0 {
			minMonths = p.cfg.Profile.MinRunwayMonths
		}
		userTarget := in.Household.RunwayTargetMonths
		if userTarget <= 0 {
			userTarget = profileMax
		}

		sei := seiATH(in.Regime)
		var months float64
		if sei >= 1 {
			f := math.Min((sei-1)*5, 1)
			months = userTarget + f*(profileMax-userTarget)
		} else {
			f := math.Min((1-sei)*2.5, 1)
			months = userTarget - f*(userTarget-minMonths)
		}

		need := netFloor + st.BearNeedFlexShare*netFlex
		if fullFlexProfile(in.Regime.Profile) {
			need = netFloor + netFlex
		}
		target = math.Max(1, need) / 12 * months
	}

	buffer := (in.Floor + in.Flex) / 12 * st.MinCashBufferMonths
	target = math.Max(target, buffer)
	return math.Ceil(target/100) * 100
}

// gate is the minimum trade result that applies to a liquidity driven action.
type gate struct {
	applied  float64
	override float64
	relaxed  bool
}

// MinTradeGate returns the minimum trade size for capital. A small liquidity
// refill relaxes it to the emergency gate so cash needs are never suppressed
// by the rebalancing threshold.
func (p Planner) MinTradeGate(capital, liquidityNeed, totalNeed float64) (applied float64, relaxed bool) {
	g := p.minTradeGate(capital, liquidityNeed, totalNeed)
	return g.applied, g.relaxed
}

func (p Planner) minTradeGate(capital, liquidityNeed, totalNeed float64) gate {
	st := p.cfg.Strategy
	base := p.baseMinTrade(capital)
	g := gate{applied: base, override: -1}
	if liquidityNeed > 0 && totalNeed > 0 && totalNeed < base {
		relaxed := math.Min(base, math.Max(st.MinRefillAmount, st.CashRebalanceThreshold))
		if relaxed < base {
			g.applied = relaxed
			g.override = relaxed
			g.relaxed = true
		}
	}
	return g
}

func (p Planner) baseMinTrade(capital float64) float64 {
	st := p.cfg.Strategy
	return math.Max(st.MinTradeAmountStatic, capital*st.MinTradeDynamicFactor)
}

// refill is a liquidity top-up after the refill cap was applied.
type refill struct {
	need       float64
	capped     bool
	suppressed bool
	entry      string
}

// cappedRefill limits a refill to a share of the equity value: the bear
// refill share in bear markets, the skim share otherwise. Critical liquidity
// lifts the cap and drops the minimum refill size.
func (p Planner) cappedRefill(bear bool, need, equity float64, h model.Household, critical bool) refill {
	st := p.cfg.Strategy
	pct := h.MaxSkimPctOfEq
	if bear {
		pct = h.MaxBearRefillPctOfEq
	}
	limit := pct / 100 * equity
	if critical {
		limit = math.Max(limit, equity*st.CriticalRefillFloorPct/100)
	}
	limit = p.roundDown(limit)

	net := math.Min(p.roundUp(need), limit)
	r := refill{capped: net < need}

	minRefill := st.MinRefillAmount
	if critical {
		minRefill = 0
	}
	if net < minRefill {
		if need >= minRefill {
			r.suppressed = true
			r.entry = fmt.Sprintf("refill of %.0f suppressed below minimum after cap", net)
		}
		return r
	}
	r.need = net
	if r.capped {
		r.entry = fmt.Sprintf("refill capped at %.0f (%.1f%% of equity)", net, pct)
	}
	return r
}

// roundUp rounds a need to the anti-pseudo-accuracy tier step.
func (p Planner) roundUp(v float64) float64 {
	q := p.cfg.Quantization
	if !q.Enabled {
		return math.Max(0, v)
	}
	return calculator.RoundUp(v, q.Step(v))
}

// roundDown rounds a cap or an investment to the tier step.
func (p Planner) roundDown(v float64) float64 {
	q := p.cfg.Quantization
	if !q.Enabled {
		return math.Max(0, v)
	}
	return calculator.RoundDown(v, q.Step(v))
}

func seiATH(r model.MarketRegime) float64 {
	if r.SeiATH <= 0 || math.IsNaN(r.SeiATH) {
		return 1
	}
	return r.SeiATH
}

func fullFlexProfile(k model.ProfileKey) bool {
	return k == model.ProfilePeak || k == model.ProfileHotNeutral
}
