package calculator

import (
	"errors"
	"math"
)

// AnnuityRate is the withdrawal share that amortises wealth over n years at
// real return r: r/(1-(1+r)^-n), falling back to 1/n for |r| < 0.001.
func AnnuityRate(r, n float64) (float64, error) {
	if n <= 0 {
		return 0, errors.New("horizon must be positive")
	}
	if math.IsNaN(r) || r <= -1 {
		return 0, errors.New("return must be greater than -100%")
	}
	if math.Abs(r) < 0.001 {
		return 1 / n, nil
	}
	return r / (1 - math.Pow(1+r, -n)), nil
}

// Clamp limits v to [lo, hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
