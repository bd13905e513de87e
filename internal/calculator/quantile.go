package calculator

import (
	"errors"
	"math"
)

// Quantile returns the q-quantile (0..1) with linear interpolation at
// position (n-1)*q. It partially reorders a private copy with quickselect.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values provided")
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, errors.New("quantile must be in [0, 1]")
	}
	buf := append([]float64(nil), values...)
	pos := float64(len(buf)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	vlo := selectK(buf, lo)
	if hi == lo {
		return vlo, nil
	}
	// after selecting lo, the smallest value right of lo is the hi-th element
	vhi := buf[lo+1]
	for _, v := range buf[lo+2:] {
		if v < vhi {
			vhi = v
		}
	}
	return vlo + (vhi-vlo)*(pos-float64(lo)), nil
}

// QuantileOr returns the quantile or fallback for an empty sample.
func QuantileOr(values []float64, q, fallback float64) float64 {
	v, err := Quantile(values, q)
	if err != nil {
		return fallback
	}
	return v
}

// selectK places the k-th smallest value at index k (Hoare quickselect)
// and returns it. Elements left of k are <= it, right of k are >= it.
func selectK(a []float64, k int) float64 {
	left, right := 0, len(a)-1
	for left < right {
		pivot := a[left+(right-left)/2]
		i, j := left, right
		for i <= j {
			for a[i] < pivot {
				i++
			}
			for a[j] > pivot {
				j--
			}
			if i <= j {
				a[i], a[j] = a[j], a[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			right = j
		case k >= i:
			left = i
		default:
			return a[k]
		}
	}
	return a[k]
}
