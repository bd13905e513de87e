package calculator

import (
	"errors"
	"math"
)

// MaxDrawdownPct scans the series with a running peak and returns the deepest
// fall below it in percent (0..100).
func MaxDrawdownPct(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, errors.New("no values provided")
	}
	peak := series[0]
	maxDD := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100, nil
}

// WindowLow returns the smallest positive value in the window, 0 when none is positive.
func WindowLow(window ...float64) float64 {
	low := math.Inf(1)
	for _, v := range window {
		if v > 0 && v < low {
			low = v
		}
	}
	if math.IsInf(low, 1) {
		return 0
	}
	return low
}

// RecoveryYears counts the years from the deepest trough until the series
// regains the preceding peak; -1 when it never does.
func RecoveryYears(series []float64) int {
	if len(series) == 0 {
		return 0
	}
	peak, peakAtTrough := series[0], series[0]
	troughIdx := -1
	worst := 0.0
	for i, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
				troughIdx = i
				peakAtTrough = peak
			}
		}
	}
	if troughIdx < 0 {
		return 0
	}
	for i := troughIdx + 1; i < len(series); i++ {
		if series[i] >= peakAtTrough {
			return i - troughIdx
		}
	}
	return -1
}
