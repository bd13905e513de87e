package model

// TaxState is carried across tax years.
type TaxState struct {
	LossCarry float64 `json:"loss_carry" yaml:"loss_carry"`
}

// TaxSettlement is the result of closing a tax year.
type TaxSettlement struct {
	TaxableSigned      float64
	LossCarryStart     float64
	LossCarryNext      float64
	AllowanceUsed      float64
	TaxBaseBeforeCarry float64
	TaxBaseAfterCarry  float64
	TaxBeforeLossCarry float64
	TaxAfterLossCarry  float64
}

// TaxSaved is the tax avoided thanks to the loss carry.
func (s TaxSettlement) TaxSaved() float64 {
	if d := s.TaxBeforeLossCarry - s.TaxAfterLossCarry; d > 0 {
		return d
	}
	return 0
}
