package calculator

import (
	"errors"
	"math"
)

// Mean returns the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values provided")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// SampleStdDev returns the sample standard deviation (n-1 denominator).
func SampleStdDev(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, errors.New("not enough data for standard deviation")
	}
	mean, _ := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1)), nil
}

// Returns converts a wealth series into year-over-year returns.
// Steps starting from non-positive wealth are skipped.
func Returns(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for i := 1; i < len(series); i++ {
		if series[i-1] > 0 {
			out = append(out, series[i]/series[i-1]-1)
		}
	}
	return out
}

// VolatilityPct is the sample standard deviation of the yearly returns in percent.
func VolatilityPct(series []float64) (float64, error) {
	sd, err := SampleStdDev(Returns(series))
	if err != nil {
		return 0, err
	}
	return sd * 100, nil
}
