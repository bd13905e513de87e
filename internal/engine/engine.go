// Package engine runs the yearly decision: it validates an input, classifies
// the market, plans spending and trades, and steps a portfolio through a year.
package engine

import (
	"fmt"
	"math"

	"RetireSentinel/internal/action"
	"RetireSentinel/internal/config"
	"RetireSentinel/internal/history"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/regime"
	"RetireSentinel/internal/sale"
	"RetireSentinel/internal/spending"
)

// Runway statuses relative to the household's runway months.
const (
	RunwayOK   = "ok"
	RunwayWarn = "warn"
	RunwayBad  = "bad"
)

// maxRunwayMonths caps the runway when nothing has to be withdrawn.
const maxRunwayMonths = 1200

// Input is one household decision request.
type Input struct {
	Household model.Household      `yaml:"household" json:"household"`
	Portfolio model.Portfolio      `yaml:"portfolio" json:"portfolio"`
	Market    model.MarketSnapshot `yaml:"market" json:"market"`
	Tax       model.TaxState       `yaml:"tax" json:"tax"`
}

// Runway describes how many months the liquidity lasts after the action.
type Runway struct {
	Months       float64
	MinMonths    float64
	TargetMonths float64
	Status       string
}

// Coverage is liquidity as a percentage of the target liquidity.
type Coverage struct {
	Before float64
	After  float64
}

// UI is the decision as shown to the household.
type UI struct {
	Spending        model.SpendingResult
	Action          model.Action
	Market          model.MarketRegime
	VPW             *model.VPWResult
	TargetLiquidity float64
	Liquidity       float64
	TotalWealth     float64
	MinGold         float64
	HorizonYears    float64
	Runway          Runway
	Coverage        Coverage
}

// Result is the outcome of SimulateSingleYear.
type Result struct {
	UI       UI
	NewState model.SpendingState
}

// Engine wires the planners together. Build it once per configuration;
// it holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg        config.Engine
	classifier regime.Classifier
	spending   spending.Planner
	actions    action.Planner
	sales      sale.Engine
}

// New validates cfg and builds an engine.
func New(cfg config.Engine) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{
		cfg:        cfg,
		classifier: regime.NewClassifier(cfg),
		spending:   spending.NewPlanner(cfg),
		actions:    action.NewPlanner(cfg),
		sales:      sale.NewEngine(cfg),
	}, nil
}

// Config returns the engine constants.
func (e *Engine) Config() config.Engine { return e.cfg }

// SimulateSingleYear decides the current year for a household. prior is the
// state returned by the previous call, nil for a first decision. A rejected
// input yields a *ValidationError; the input is never modified.
func (e *Engine) SimulateSingleYear(in Input, prior *model.SpendingState) (Result, error) {
	if err := e.Validate(in); err != nil {
		return Result{}, err
	}
	h := in.Household
	d, err := e.decide(h, in.Portfolio.Clone(), in.Market, prior, h.Floor, h.Flex, h.Pension, h.SaverAllowance)
	if err != nil {
		return Result{}, err
	}

	liqAfter := d.liquidity + d.action.Uses.Liquidity + d.action.Uses.MoneyMarket - d.action.FromLiquidity
	ui := UI{
		Spending:        d.spending,
		Action:          d.action,
		Market:          d.regime,
		VPW:             d.spending.VPW,
		TargetLiquidity: d.target,
		Liquidity:       d.liquidity,
		TotalWealth:     d.total,
		MinGold:         d.minGold,
		HorizonYears:    d.horizon,
		Runway:          runwayAfter(liqAfter, d.netFloor+d.netFlex, h),
		Coverage: Coverage{
			Before: coverage(d.liquidity, d.target),
			After:  coverage(liqAfter, d.target),
		},
	}
	return Result{UI: ui, NewState: d.next}, nil
}

// decision is everything one year's planning produced.
type decision struct {
	regime   model.MarketRegime
	spending model.SpendingResult
	next     model.SpendingState
	action   model.Action

	liquidity float64
	depot     float64
	total     float64
	netFloor  float64
	netFlex   float64
	minGold   float64
	target    float64
	horizon   float64
}

// decide classifies the market and plans spending and trades. floor, flex
// and pension are this year's nominal amounts.
func (e *Engine) decide(h model.Household, port model.Portfolio, mkt model.MarketSnapshot,
	prior *model.SpendingState, floor, flex, pension, allowance float64) (decision, error) {
	d := decision{regime: e.classifier.Classify(mkt)}

	gold := 0.0
	if h.GoldActive {
		gold = port.GoldValue()
	}
	d.depot = port.EquityValue() + gold
	d.liquidity = port.Liquidity()
	d.total = d.depot + d.liquidity

	d.netFloor = math.Max(0, floor-pension)
	d.netFlex = math.Max(0, flex-math.Max(0, pension-floor))
	runway := runwayMonths(d.liquidity, d.netFloor+d.netFlex)
	d.horizon = history.Horizon(h.Gender, h.Age, h.DynamicFlex)

	res, next, err := e.spending.Plan(spending.Input{
		Regime:          d.regime,
		Market:          mkt,
		Floor:           d.netFloor,
		Flex:            d.netFlex,
		Pension:         pension,
		DepotValue:      d.depot,
		TotalWealth:     d.total,
		RunwayMonths:    runway,
		MinRunwayMonths: h.RunwayMinMonths,
		Inflation:       mkt.Inflation,
		TargetEquityPct: h.TargetEquityPct,
		DynamicFlex:     h.DynamicFlex,
		HorizonYears:    d.horizon,
	}, prior)
	if err != nil {
		ve := &ValidationError{}
		ve.add("dynamic_flex", err.Error(), err)
		return d, ve
	}
	d.spending, d.next = res, next

	if h.GoldActive {
		d.minGold = h.GoldFloorPct / 100 * d.total
	}
	d.action = e.actions.Determine(action.Input{
		Regime:    d.regime,
		Portfolio: port,
		Household: h,
		Floor:     floor,
		Flex:      flex,
		Pension:   pension,
		MinGold:   d.minGold,
		Allowance: allowance,
	})
	d.target = d.action.Diagnostics.TargetLiquidity
	return d, nil
}

func runwayMonths(liquidity, annualNeed float64) float64 {
	if annualNeed <= 0 {
		return maxRunwayMonths
	}
	return math.Min(maxRunwayMonths, math.Max(0, liquidity)/(annualNeed/12))
}

func runwayAfter(liquidity, annualNeed float64, h model.Household) Runway {
	r := Runway{
		Months:       runwayMonths(liquidity, annualNeed),
		MinMonths:    h.RunwayMinMonths,
		TargetMonths: h.RunwayTargetMonths,
		Status:       RunwayBad,
	}
	switch {
	case r.Months >= h.RunwayTargetMonths:
		r.Status = RunwayOK
	case r.Months >= h.RunwayMinMonths:
		r.Status = RunwayWarn
	}
	return r
}

func coverage(liquidity, target float64) float64 {
	if target <= 0 {
		return 100
	}
	return liquidity / target * 100
}
