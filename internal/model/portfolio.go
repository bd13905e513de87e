package model

import (
	"math"
	"time"
)

// TrancheKind identifies the asset bucket of a tax lot.
type TrancheKind string

const (
	KindEquityOld TrancheKind = "equity_old"
	KindEquityNew TrancheKind = "equity_new"
	KindGold      TrancheKind = "gold"
)

// IsEquity reports whether the kind is one of the equity buckets.
func (k TrancheKind) IsEquity() bool {
	return k == KindEquityOld || k == KindEquityNew
}

// Tranche is a single tax lot.
type Tranche struct {
	ID           string      `yaml:"id" json:"id,omitempty"`
	Kind         TrancheKind `yaml:"kind" json:"kind"`
	MarketValue  float64     `yaml:"market_value" json:"market_value"`
	CostBasis    float64     `yaml:"cost_basis" json:"cost_basis"`
	TaxFreeQuota float64     `yaml:"tax_free_quota" json:"tax_free_quota"`
	PurchaseDate time.Time   `yaml:"purchase_date,omitempty" json:"purchase_date,omitempty"`
}

// GainRatio is the unrealised gain share of the market value, never negative.
func (t Tranche) GainRatio() float64 {
	return math.Max(0, t.SignedGainRatio())
}

// SignedGainRatio keeps losses negative; used for the tax-year settlement.
func (t Tranche) SignedGainRatio() float64 {
	if t.MarketValue <= 0 {
		return 0
	}
	return (t.MarketValue - t.CostBasis) / t.MarketValue
}

// Reduce removes gross from the lot and scales the cost basis proportionally.
func (t *Tranche) Reduce(gross float64) {
	if gross <= 0 || t.MarketValue <= 0 {
		return
	}
	if gross >= t.MarketValue {
		t.MarketValue = 0
		t.CostBasis = 0
		return
	}
	t.CostBasis *= 1 - gross/t.MarketValue
	t.MarketValue -= gross
}

// Portfolio holds the lots plus the two liquidity buckets.
type Portfolio struct {
	Equity      []Tranche `yaml:"equity" json:"equity"`
	Gold        []Tranche `yaml:"gold" json:"gold"`
	Cash        float64   `yaml:"cash" json:"cash"`
	MoneyMarket float64   `yaml:"money_market" json:"money_market"`
}

// Clone returns a copy that shares no slices with p.
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Equity = append([]Tranche(nil), p.Equity...)
	out.Gold = append([]Tranche(nil), p.Gold...)
	return out
}

// Liquidity is cash plus money market.
func (p Portfolio) Liquidity() float64 {
	return p.Cash + p.MoneyMarket
}

// EquityValue sums all equity lots.
func (p Portfolio) EquityValue() float64 {
	return sumValue(p.Equity)
}

// EquityValueOf sums the equity lots of one kind.
func (p Portfolio) EquityValueOf(kind TrancheKind) float64 {
	total := 0.0
	for _, t := range p.Equity {
		if t.Kind == kind {
			total += t.MarketValue
		}
	}
	return total
}

// GoldValue sums all gold lots.
func (p Portfolio) GoldValue() float64 {
	return sumValue(p.Gold)
}

// DepotValue is equity plus gold.
func (p Portfolio) DepotValue() float64 {
	return p.EquityValue() + p.GoldValue()
}

// Total is depot plus liquidity.
func (p Portfolio) Total() float64 {
	return p.DepotValue() + p.Liquidity()
}

// ApplyReturns grows every lot; cost bases stay put.
func (p *Portfolio) ApplyReturns(equityReturn, goldReturn float64) {
	for i := range p.Equity {
		p.Equity[i].MarketValue = math.Max(0, p.Equity[i].MarketValue*(1+equityReturn))
	}
	for i := range p.Gold {
		p.Gold[i].MarketValue = math.Max(0, p.Gold[i].MarketValue*(1+goldReturn))
	}
}

// ApplySale reduces the lots referenced by the sale items.
func (p *Portfolio) ApplySale(items []SaleItem) {
	for _, it := range items {
		switch {
		case it.Kind == KindGold && it.Index >= 0 && it.Index < len(p.Gold):
			p.Gold[it.Index].Reduce(it.Gross)
		case it.Kind.IsEquity() && it.Index >= 0 && it.Index < len(p.Equity):
			p.Equity[it.Index].Reduce(it.Gross)
		}
	}
}

// Buy adds amount to the newest lot of the given kind, opening one if none exists.
func (p *Portfolio) Buy(kind TrancheKind, amount, taxFreeQuota float64, at time.Time) {
	if amount <= 0 {
		return
	}
	lots := &p.Equity
	if kind == KindGold {
		lots = &p.Gold
	}
	for i := len(*lots) - 1; i >= 0; i-- {
		if (*lots)[i].Kind == kind {
			(*lots)[i].MarketValue += amount
			(*lots)[i].CostBasis += amount
			return
		}
	}
	*lots = append(*lots, Tranche{
		Kind:         kind,
		MarketValue:  amount,
		CostBasis:    amount,
		TaxFreeQuota: taxFreeQuota,
		PurchaseDate: at,
	})
}

// Prune drops empty lots.
func (p *Portfolio) Prune() {
	p.Equity = pruneLots(p.Equity)
	p.Gold = pruneLots(p.Gold)
}

func pruneLots(lots []Tranche) []Tranche {
	out := lots[:0]
	for _, t := range lots {
		if t.MarketValue > 0.005 {
			out = append(out, t)
		}
	}
	return out
}

func sumValue(lots []Tranche) float64 {
	total := 0.0
	for _, t := range lots {
		total += t.MarketValue
	}
	return total
}
