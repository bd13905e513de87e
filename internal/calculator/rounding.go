package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// RoundUp rounds amount up to a multiple of step. Non-positive or
// non-finite amounts yield 0; a non-positive step returns amount unchanged.
func RoundUp(amount, step float64) float64 {
	return roundToStep(amount, step, true)
}

// RoundDown rounds amount down to a multiple of step.
func RoundDown(amount, step float64) float64 {
	return roundToStep(amount, step, false)
}

// Cents rounds a money amount to two decimals, half away from zero.
func Cents(amount float64) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

func roundToStep(amount, step float64, up bool) float64 {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return amount
	}
	// decimal division avoids 3*0.1-style float drift around step boundaries
	d := decimal.NewFromFloat(amount)
	s := decimal.NewFromFloat(step)
	q := d.Div(s)
	if up {
		q = q.Ceil()
	} else {
		q = q.Floor()
	}
	f, _ := q.Mul(s).Float64()
	return f
}
