package engine

import (
	"math"
	"time"

	"RetireSentinel/internal/model"
	"RetireSentinel/internal/sale"
)

// Ruin reasons.
const (
	RuinFloorNotCovered = "floor_not_covered"
	RuinWealthDepleted  = "wealth_depleted"
)

// State is what a multi-year run carries from one year to the next.
type State struct {
	Year      int
	Age       int
	Portfolio model.Portfolio
	Market    model.MarketSnapshot
	Spending  *model.SpendingState
	Tax       model.TaxState
	// Pension is the current nominal annual pension.
	Pension float64
}

// InitialState starts a run from a decision input.
func InitialState(in Input, year int) State {
	return State{
		Year:      year,
		Age:       in.Household.Age,
		Portfolio: in.Portfolio.Clone(),
		Market:    in.Market,
		Tax:       in.Tax,
		Pension:   in.Household.Pension,
	}
}

// InflationFactor is the price level relative to the first year.
func (s State) InflationFactor() float64 {
	if s.Spending == nil || s.Spending.CumulativeInflationFactor <= 0 {
		return 1
	}
	return s.Spending.CumulativeInflationFactor
}

// YearRecord is the trace of one simulated year.
type YearRecord struct {
	Year   int
	Age    int
	Regime model.RegimeKey

	Floor      float64
	Flex       float64
	Pension    float64
	Withdrawal float64
	FlexRate   float64
	CutPct     float64
	// WithdrawalRate is the portfolio withdrawal over total wealth, in percent.
	WithdrawalRate float64

	Action        model.ActionType
	ActionTitle   string
	EmergencySale float64
	SaleTax       float64
	SettledTax    float64
	TaxSaved      float64
	LossCarry     float64
	Interest      float64

	StartWealth float64
	EndWealth   float64
	RealWealth  float64
	Liquidity   float64
	// Coverage is year-end liquidity over the target liquidity, in percent.
	Coverage float64

	AlarmActive bool
	VPWStage    int
	Shortfall   float64
}

// Outcome is either Continue (Ruin false) with the next state or Ruin.
type Outcome struct {
	State      State
	Record     YearRecord
	Ruin       bool
	RuinReason string
}

// Step runs one year: apply returns, classify, plan spending and trades,
// execute the sale, resolve any shortfall with an emergency liquidation,
// pay out, rebalance cash, accrue interest and advance the carried state.
// The input state is not modified. The only error is a dynamic flex
// setting the planner rejects.
func (e *Engine) Step(h model.Household, st State, yr model.YearReturns) (Outcome, error) {
	port := st.Portfolio.Clone()

	port.ApplyReturns(yr.EquityReturn, yr.GoldReturn)
	mkt := st.Market.Roll(yr.EquityReturn)
	mkt.Inflation = yr.Inflation
	mkt.InterestRate = yr.InterestRate
	if yr.Cape > 0 {
		mkt.CapeRatio = yr.Cape
	}

	factor := st.InflationFactor()
	floor := h.Floor * factor
	flex := h.Flex * factor
	hh := h
	hh.Age = st.Age

	rec := YearRecord{
		Year:        yr.Year,
		Age:         st.Age,
		Floor:       floor,
		Flex:        flex,
		Pension:     st.Pension,
		StartWealth: totalWealth(port, h),
	}

	d, err := e.decide(hh, port, mkt, st.Spending, floor, flex, st.Pension, h.SaverAllowance)
	if err != nil {
		return Outcome{}, err
	}
	rec.Regime = d.regime.Key
	rec.FlexRate = d.spending.FlexRate
	rec.CutPct = d.spending.CutPct
	rec.AlarmActive = d.spending.AlarmActive
	rec.Action = d.action.Type
	rec.ActionTitle = d.action.Title
	if d.spending.VPW != nil {
		rec.VPWStage = d.next.VPWSafetyStage
	}

	at := time.Date(yr.Year, time.December, 31, 0, 0, 0, 0, time.UTC)
	var sold []model.SaleItem
	saleTax := 0.0
	allowance := h.SaverAllowance
	if d.action.Type == model.ActionTransaction {
		e.applyAction(&port, d.action, h, at)
		sold = append(sold, d.action.Sources...)
		saleTax += d.action.TotalTax
		allowance = math.Max(0, allowance-d.action.AllowanceUsed)
	}

	payout := d.spending.AnnualWithdrawal
	required := payout + d.netFloor/12
	if gap := required - port.Liquidity(); gap > 0.01 {
		res := e.liquidate(&port, gap, d.regime.Key, h, allowance)
		sold = append(sold, res.Breakdown...)
		saleTax += res.TotalTax
		rec.EmergencySale = res.AchievedNet
	}

	paid := take(&port, payout)
	rec.Withdrawal = paid
	rec.Shortfall = math.Max(0, payout-paid)
	if rec.StartWealth > 0 {
		rec.WithdrawalRate = paid / rec.StartWealth * 100
	}
	if paid+0.01 < d.netFloor {
		rec.EndWealth = totalWealth(port, h)
		rec.Liquidity = port.Liquidity()
		reason := RuinFloorNotCovered
		if rec.EndWealth <= 0.01 {
			reason = RuinWealthDepleted
		}
		next := st
		next.Portfolio = port
		next.Market = mkt
		return Outcome{State: next, Record: rec, Ruin: true, RuinReason: reason}, nil
	}

	if mv, ok := e.actions.PairRebalance(port, payout/12); ok {
		mv.Apply(&port)
	}

	interest := 0.0
	if yr.InterestRate > 0 && port.MoneyMarket > 0 {
		interest = port.MoneyMarket * yr.InterestRate / 100
		port.MoneyMarket += interest
	}
	rec.Interest = interest

	settle := e.sales.Settle(sale.TaxableSigned(sold)+interest, st.Tax, h.SaverAllowance, h.ChurchTaxRate)
	// Tax withheld at sale time is trued up against the year's settlement.
	port.Cash += saleTax - settle.TaxAfterLossCarry
	settleCash(&port)
	port.Prune()

	rec.SaleTax = saleTax
	rec.SettledTax = settle.TaxAfterLossCarry
	rec.TaxSaved = settle.TaxSaved()
	rec.LossCarry = settle.LossCarryNext

	next := d.next
	next.CumulativeInflationFactor = factor * (1 + yr.Inflation/100)
	if !finite(next.CumulativeInflationFactor) || next.CumulativeInflationFactor <= 0 {
		next.CumulativeInflationFactor = factor
	}

	rec.EndWealth = totalWealth(port, h)
	rec.RealWealth = rec.EndWealth / next.CumulativeInflationFactor
	rec.Liquidity = port.Liquidity()
	rec.Coverage = coverage(rec.Liquidity, d.target)

	return Outcome{
		State: State{
			Year:      yr.Year + 1,
			Age:       st.Age + 1,
			Portfolio: port,
			Market:    mkt,
			Spending:  &next,
			Tax:       model.TaxState{LossCarry: settle.LossCarryNext},
			Pension:   indexPension(st.Pension, h, yr),
		},
		Record: rec,
	}, nil
}

// applyAction books an action: the sold lots shrink, bought lots grow and
// the net proceeds land in liquidity.
func (e *Engine) applyAction(port *model.Portfolio, a model.Action, h model.Household, at time.Time) {
	port.ApplySale(a.Sources)
	if a.FromLiquidity > 0 {
		take(port, a.FromLiquidity)
	}
	port.Cash += a.Uses.Liquidity
	port.MoneyMarket += a.Uses.MoneyMarket
	port.Buy(model.KindEquityNew, a.Uses.Equity, e.cfg.Tax.EquityTaxFreeQuota, at)
	goldTQF := 0.0
	if h.GoldTaxFree {
		goldTQF = 1
	}
	port.Buy(model.KindGold, a.Uses.Gold, goldTQF, at)
}

// liquidate raises net cash for a shortfall: equities FIFO first, then gold
// with the gold floor bypassed. The proceeds go to cash.
func (e *Engine) liquidate(port *model.Portfolio, net float64, key model.RegimeKey, h model.Household, allowance float64) sale.Result {
	eq := e.sales.Sell(sale.Request{
		Amount:        net,
		Portfolio:     *port,
		Regime:        key,
		FIFO:          true,
		Budgets:       map[model.TrancheKind]float64{model.KindGold: 0},
		ChurchTaxRate: h.ChurchTaxRate,
		Allowance:     allowance,
	})
	port.ApplySale(eq.Breakdown)
	port.Cash += eq.AchievedNet

	res := eq
	if rest := net - eq.AchievedNet; rest > 0.01 && h.GoldActive {
		au := e.sales.Sell(sale.Request{
			Amount:          rest,
			Portfolio:       *port,
			Regime:          key,
			Emergency:       true,
			IgnoreGoldFloor: true,
			Budgets:         map[model.TrancheKind]float64{model.KindEquityOld: 0, model.KindEquityNew: 0},
			ChurchTaxRate:   h.ChurchTaxRate,
			Allowance:       math.Max(0, allowance-eq.AllowanceUsed),
		})
		port.ApplySale(au.Breakdown)
		port.Cash += au.AchievedNet
		res = sale.MergeResults(eq, au)
	}
	return res
}

// take withdraws up to amount from cash, then from the money market, and
// returns what was available.
func take(port *model.Portfolio, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	fromCash := math.Min(amount, math.Max(0, port.Cash))
	port.Cash -= fromCash
	fromMM := math.Min(amount-fromCash, math.Max(0, port.MoneyMarket))
	port.MoneyMarket -= fromMM
	return fromCash + fromMM
}

// settleCash covers a negative cash balance from the money market.
func settleCash(port *model.Portfolio) {
	if port.Cash >= 0 {
		return
	}
	cover := math.Min(-port.Cash, math.Max(0, port.MoneyMarket))
	port.MoneyMarket -= cover
	port.Cash += cover
	if port.Cash < 0 {
		port.Cash = 0
	}
}

func indexPension(pension float64, h model.Household, yr model.YearReturns) float64 {
	if pension <= 0 {
		return 0
	}
	pct := 0.0
	switch h.PensionIndex {
	case model.PensionIndexInflation:
		pct = yr.Inflation
	case model.PensionIndexWage:
		pct = yr.WageGrowth
	case model.PensionIndexFixed:
		pct = h.PensionIndexPct
	}
	next := pension * (1 + pct/100)
	if !finite(next) || next < 0 {
		return pension
	}
	return next
}

func totalWealth(port model.Portfolio, h model.Household) float64 {
	total := port.EquityValue() + port.Liquidity()
	if h.GoldActive {
		total += port.GoldValue()
	}
	return total
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
