package sale

import (
	"fmt"
	"sort"

	"RetireSentinel/internal/model"
)

// Lot is a tranche with its position in the portfolio slice it came from.
type Lot struct {
	Tranche model.Tranche
	Index   int
}

// Order returns the lots in the sequence they are sold.
//
// Defensive context (deep bear, rally in bear, emergency): gold FIFO, then
// equities by tax cost. Gold above its rebalancing ceiling: same order.
// Otherwise equities by tax cost, then gold FIFO. With req.FIFO set the
// equities are sold oldest first as well.
func (e Engine) Order(req Request) []Lot {
	keSt := e.cfg.KeSt(req.ChurchTaxRate)

	var equities, gold []Lot
	for i, t := range req.Portfolio.Equity {
		if t.MarketValue > 0 {
			equities = append(equities, Lot{Tranche: t, Index: i})
		}
	}
	for i, t := range req.Portfolio.Gold {
		if t.MarketValue > 0 {
			gold = append(gold, Lot{Tranche: t, Index: i})
		}
	}

	if req.FIFO {
		sort.SliceStable(equities, func(i, j int) bool {
			return olderFirst(equities[i].Tranche, equities[j].Tranche)
		})
	} else {
		sort.SliceStable(equities, func(i, j int) bool {
			return cheaperFirst(equities[i], equities[j], keSt)
		})
	}

	sort.SliceStable(gold, func(i, j int) bool {
		return olderFirst(gold[i].Tranche, gold[j].Tranche)
	})

	defensive := req.Emergency ||
		req.Regime == model.RegimeBearDeep ||
		req.Regime == model.RegimeRecoveryInBear
	overweight := req.GoldUpperBound > 0 && req.Portfolio.GoldValue() > req.GoldUpperBound

	if defensive || overweight {
		return append(gold, equities...)
	}
	return append(equities, gold...)
}

// cheaperFirst ranks by tax per euro sold, then gain ratio, then newest
// purchase first.
func cheaperFirst(x, y Lot, keSt float64) bool {
	a, b := x.Tranche, y.Tranche
	ta := a.GainRatio() * (1 - a.TaxFreeQuota) * keSt
	tb := b.GainRatio() * (1 - b.TaxFreeQuota) * keSt
	if ta != tb {
		return ta < tb
	}
	if ga, gb := a.GainRatio(), b.GainRatio(); ga != gb {
		return ga < gb
	}
	da, db := !a.PurchaseDate.IsZero(), !b.PurchaseDate.IsZero()
	switch {
	case da && db && !a.PurchaseDate.Equal(b.PurchaseDate):
		return a.PurchaseDate.After(b.PurchaseDate)
	case da != db:
		return da
	}
	return lotKey(x) < lotKey(y)
}

// olderFirst orders dated lots by purchase date ahead of undated ones.
// Undated lots keep their portfolio order, which is acquisition order.
func olderFirst(a, b model.Tranche) bool {
	da, db := !a.PurchaseDate.IsZero(), !b.PurchaseDate.IsZero()
	switch {
	case da && db:
		return a.PurchaseDate.Before(b.PurchaseDate)
	case da != db:
		return da
	}
	return false
}

func lotKey(l Lot) string {
	if l.Tranche.ID != "" {
		return l.Tranche.ID
	}
	return fmt.Sprintf("%s#%04d", l.Tranche.Kind, l.Index)
}
