package history

import (
	"math"

	"RetireSentinel/internal/model"
)

const (
	mortalityMinAge = 50
	mortalityMaxAge = 110
	maxHorizonYears = 60
)

// One-year death probabilities for ages 50 to 110.
var mortality = map[model.Gender][]float64{
	model.GenderMale: {
		0.003, 0.003, 0.004, 0.004, 0.004, 0.005, 0.005, 0.006, 0.006, 0.007,
		0.007, 0.008, 0.009, 0.009, 0.010, 0.010, 0.011, 0.012, 0.013, 0.014,
		0.016, 0.017, 0.019, 0.021, 0.023, 0.026, 0.029, 0.032, 0.036, 0.040,
		0.045, 0.051, 0.057, 0.065, 0.073, 0.083, 0.094, 0.107, 0.121, 0.137,
		0.155, 0.175, 0.197, 0.221, 0.247, 0.275, 0.305, 0.337, 0.370, 0.400,
		0.430, 0.46, 0.49, 0.52, 0.55, 0.6, 0.65, 0.7, 0.8, 0.9,
		1,
	},
	model.GenderFemale: {
		0.002, 0.002, 0.002, 0.003, 0.003, 0.003, 0.004, 0.004, 0.004, 0.005,
		0.005, 0.006, 0.006, 0.007, 0.007, 0.007, 0.008, 0.008, 0.009, 0.010,
		0.011, 0.012, 0.013, 0.015, 0.016, 0.018, 0.021, 0.023, 0.026, 0.030,
		0.034, 0.039, 0.044, 0.050, 0.057, 0.066, 0.076, 0.087, 0.100, 0.115,
		0.131, 0.149, 0.169, 0.191, 0.215, 0.241, 0.269, 0.298, 0.329, 0.360,
		0.390, 0.42, 0.45, 0.48, 0.51, 0.55, 0.6, 0.65, 0.75, 0.85,
		1,
	},
}

// DeathProbability returns q(x) for gender at age. Ages below the table use
// the first entry; ages above it die with certainty. Unknown genders use the
// male table.
func DeathProbability(g model.Gender, age int) float64 {
	table, ok := mortality[g]
	if !ok {
		table = mortality[model.GenderMale]
	}
	switch {
	case age < mortalityMinAge:
		return table[0]
	case age > mortalityMaxAge:
		return 1
	}
	return table[age-mortalityMinAge]
}

// LifeExpectancy is the expected number of remaining years at age, rounded
// and at least one.
func LifeExpectancy(g model.Gender, age int) float64 {
	expected, surv := 0.0, 1.0
	for a := age; a <= mortalityMaxAge; a++ {
		expected += surv
		surv *= 1 - DeathProbability(g, a)
		if surv < 0.0001 {
			break
		}
	}
	return math.Max(1, math.Round(expected))
}

// SurvivalQuantileYears is the horizon that the retiree outlives only with
// probability 1-q. q is clamped to [0.5, 0.99]; the result to [1, 60].
func SurvivalQuantileYears(g model.Gender, age int, q float64) float64 {
	if math.IsNaN(q) {
		q = 0.85
	}
	q = math.Min(0.99, math.Max(0.5, q))
	target := 1 - q
	surv := 1.0
	for t := 0; t < maxHorizonYears; t++ {
		surv *= 1 - DeathProbability(g, age+t)
		if surv <= target {
			return math.Min(maxHorizonYears, math.Max(1, float64(t+1)))
		}
	}
	return maxHorizonYears
}

// Horizon resolves the planning horizon of a dynamic flex setup.
func Horizon(g model.Gender, age int, s model.DynamicFlexSettings) float64 {
	if s.HorizonYears > 0 {
		return math.Min(maxHorizonYears, math.Max(1, s.HorizonYears))
	}
	if s.HorizonMethod == model.HorizonSurvivalQuantile {
		return SurvivalQuantileYears(g, age, s.SurvivalQuantile)
	}
	return math.Min(maxHorizonYears, LifeExpectancy(g, age))
}
