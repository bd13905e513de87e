package sale

import (
	"math"

	"RetireSentinel/internal/model"
)

// TaxableSigned sums the signed taxable gains of the sale items, losses included.
func TaxableSigned(items []model.SaleItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.TaxableSigned
	}
	return total
}

// Settle closes a tax year: the signed taxable base is netted against the
// carried loss, the saver allowance applies to what is left, and any
// remaining loss is carried forward. The carry never goes negative.
func (e Engine) Settle(taxableSigned float64, prev model.TaxState, allowance, churchRate float64) model.TaxSettlement {
	keSt := e.cfg.KeSt(churchRate)
	taxableSigned = finite(taxableSigned)
	carry := math.Max(0, finite(prev.LossCarry))
	allowance = math.Max(0, finite(allowance))

	positiveBefore := math.Max(0, taxableSigned)
	baseBefore := math.Max(0, positiveBefore-math.Min(allowance, positiveBefore))

	signedAfter := taxableSigned - carry
	positiveAfter := math.Max(0, signedAfter)
	allowanceUsed := math.Min(allowance, positiveAfter)
	baseAfter := math.Max(0, positiveAfter-allowanceUsed)

	return model.TaxSettlement{
		TaxableSigned:      taxableSigned,
		LossCarryStart:     carry,
		LossCarryNext:      math.Max(0, -signedAfter),
		AllowanceUsed:      allowanceUsed,
		TaxBaseBeforeCarry: baseBefore,
		TaxBaseAfterCarry:  baseAfter,
		TaxBeforeLossCarry: baseBefore * keSt,
		TaxAfterLossCarry:  baseAfter * keSt,
	}
}
