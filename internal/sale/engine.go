package sale

import (
	"math"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

// Request describes a sale. Amount is the net cash wanted unless ForceGross
// is set, in which case it is the gross amount to sell.
type Request struct {
	Amount     float64
	ForceGross bool
	Portfolio  model.Portfolio
	Regime     model.RegimeKey
	Emergency  bool
	// FIFO sells equities oldest first instead of by tax cost.
	FIFO bool

	// Gold floor: gold below MinGold is kept unless Emergency or IgnoreGoldFloor.
	MinGold         float64
	IgnoreGoldFloor bool
	// GoldUpperBound > 0 marks the rebalancing ceiling; gold above it is sold first.
	GoldUpperBound float64

	// Budgets caps the gross sold per kind; kinds absent from the map are unlimited.
	Budgets map[model.TrancheKind]float64
	// LimitEquity enables EquityBudget as a cap across both equity kinds.
	LimitEquity  bool
	EquityBudget float64

	ChurchTaxRate float64
	Allowance     float64
}

// Result is the outcome of a sale. AchievedNet < Requested signals partial fulfilment.
type Result struct {
	Requested     float64
	TotalTax      float64
	TotalGross    float64
	AchievedNet   float64
	AllowanceUsed float64
	Breakdown     []model.SaleItem
}

// Shortfall is the net amount that could not be raised.
func (r Result) Shortfall() float64 {
	return math.Max(0, r.Requested-r.AchievedNet)
}

// Engine sells tax lots. It is a pure value.
type Engine struct {
	cfg config.Engine
}

// NewEngine builds a sale engine from the engine configuration.
func NewEngine(cfg config.Engine) Engine {
	return Engine{cfg: cfg}
}

// Sell walks the lots in sell order until the target is reached or every
// lot is exhausted. The request's portfolio is not modified.
func (e Engine) Sell(req Request) Result {
	res := Result{Requested: math.Max(0, finite(req.Amount))}
	if res.Requested <= 0 {
		return res
	}
	keSt := e.cfg.KeSt(req.ChurchTaxRate)
	allowanceLeft := math.Max(0, finite(req.Allowance))
	remainingNet := res.Requested

	budgets := make(map[model.TrancheKind]float64, len(req.Budgets))
	for k, v := range req.Budgets {
		budgets[k] = math.Max(0, finite(v))
	}
	equityBudget := math.Max(0, finite(req.EquityBudget))

	goldRoom := req.Portfolio.GoldValue()
	if !req.Emergency && !req.IgnoreGoldFloor {
		goldRoom = math.Max(0, goldRoom-math.Max(0, req.MinGold))
	}

	for _, lot := range e.Order(req) {
		if req.ForceGross {
			if res.TotalGross >= res.Requested {
				break
			}
		} else if remainingNet <= 0.01 {
			break
		}

		t := lot.Tranche
		maxGross := t.MarketValue
		if t.Kind == model.KindGold {
			maxGross = math.Min(maxGross, goldRoom)
		}
		if b, ok := budgets[t.Kind]; ok {
			maxGross = math.Min(maxGross, b)
		}
		if req.LimitEquity && t.Kind.IsEquity() {
			maxGross = math.Min(maxGross, equityBudget)
		}
		if maxGross <= 0 {
			continue
		}

		k := t.GainRatio() * (1 - t.TaxFreeQuota)
		maxNet := maxGross - lotTax(maxGross, k, allowanceLeft, keSt)
		if maxNet <= 0 {
			continue
		}

		var gross float64
		switch {
		case req.ForceGross:
			gross = math.Min(res.Requested-res.TotalGross, maxGross)
		case remainingNet >= maxNet:
			gross = maxGross
		default:
			gross = grossForNet(remainingNet, k, allowanceLeft, keSt)
			gross = math.Min(gross, maxGross)
		}
		if gross < 1 {
			continue
		}

		taxable := gross * k
		allowanceUsed := math.Min(allowanceLeft, taxable)
		tax := math.Max(0, taxable-allowanceUsed) * keSt
		net := gross - tax

		if _, ok := budgets[t.Kind]; ok {
			budgets[t.Kind] = math.Max(0, budgets[t.Kind]-gross)
		}
		if req.LimitEquity && t.Kind.IsEquity() {
			equityBudget = math.Max(0, equityBudget-gross)
		}
		if t.Kind == model.KindGold {
			goldRoom = math.Max(0, goldRoom-gross)
		}

		res.TotalGross += gross
		res.TotalTax += tax
		res.AllowanceUsed += allowanceUsed
		allowanceLeft -= allowanceUsed
		remainingNet -= net

		perEuro := 0.0
		if gross > 0 {
			perEuro = tax / gross
		}
		res.Breakdown = append(res.Breakdown, model.SaleItem{
			Kind:          t.Kind,
			TrancheID:     t.ID,
			Index:         lot.Index,
			Gross:         gross,
			Tax:           tax,
			Net:           net,
			TaxableSigned: gross * t.SignedGainRatio() * (1 - t.TaxFreeQuota),
			AllowanceUsed: allowanceUsed,
			TaxFreeQuota:  t.TaxFreeQuota,
			TaxPerEuro:    perEuro,
		})
	}

	res.AchievedNet = res.TotalGross - res.TotalTax
	if !req.ForceGross {
		res.AchievedNet = math.Max(0, res.Requested-remainingNet)
	}
	return res
}

// lotTax is the tax on selling gross from a lot with taxable share k.
func lotTax(gross, k, allowance, keSt float64) float64 {
	return math.Max(0, gross*k-allowance) * keSt
}

// grossForNet inverts gross - lotTax(gross) = net.
func grossForNet(net, k, allowance, keSt float64) float64 {
	if net*k <= allowance {
		return net
	}
	return (net - allowance*keSt) / (1 - k*keSt)
}

// MergeResults combines two sequential sales.
func MergeResults(a, b Result) Result {
	return Result{
		Requested:     a.Requested + b.Requested,
		TotalTax:      a.TotalTax + b.TotalTax,
		TotalGross:    a.TotalGross + b.TotalGross,
		AchievedNet:   a.AchievedNet + b.AchievedNet,
		AllowanceUsed: a.AllowanceUsed + b.AllowanceUsed,
		Breakdown:     append(append([]model.SaleItem(nil), a.Breakdown...), b.Breakdown...),
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
