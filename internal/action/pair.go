package action

import (
	"math"

	"RetireSentinel/internal/model"
)

// PairMove shifts money between the cash account and the money market fund.
// A positive Amount moves cash into the fund, a negative one refills cash.
type PairMove struct {
	Amount     float64
	TargetCash float64
}

// Apply books the move on p.
func (m PairMove) Apply(p *model.Portfolio) {
	p.Cash -= m.Amount
	p.MoneyMarket += m.Amount
}

// PairRebalance keeps the cash buffer months of the monthly need in cash and
// the rest in the money market. Moves below the cash rebalance threshold are
// skipped; larger ones are rounded down to the tier step in both directions.
func (p Planner) PairRebalance(port model.Portfolio, monthlyNeed float64) (PairMove, bool) {
	st := p.cfg.Strategy
	targetCash := math.Max(0, monthlyNeed) * st.MinCashBufferMonths
	m := PairMove{TargetCash: targetCash}

	delta := port.Cash - targetCash
	if delta > 0 {
		m.Amount = p.roundDown(delta)
	} else {
		m.Amount = -p.roundDown(math.Min(-delta, math.Max(0, port.MoneyMarket)))
	}
	if math.Abs(m.Amount) < st.CashRebalanceThreshold {
		return PairMove{TargetCash: targetCash}, false
	}
	return m, true
}
