package montecarlo

import (
	"math"

	"RetireSentinel/internal/calculator"
)

// Per-trial thresholds.
const (
	depletionThreshold = 100.0
	cutYearPct         = 10.0
	highRatePct        = 4.5
	recoveredRatePct   = 3.5
	noFlexRatePct      = 0.1
	heatmapYears       = 10
	// carSampleEvery keeps the real withdrawals of every n-th trial for the
	// consumption-at-risk quantile.
	carSampleEvery = 10
)

// HeatmapBins are the withdrawal-rate bucket edges in percent.
var HeatmapBins = []float64{0, 3, 3.5, 4, 4.5, 5, 5.5, 6, 7, 8, 10, math.Inf(1)}

// heatmapBin returns the bucket of a withdrawal rate, -1 when none fits.
func heatmapBin(rate float64) int {
	for b := 0; b < len(HeatmapBins)-1; b++ {
		if rate >= HeatmapBins[b] && rate < HeatmapBins[b+1] {
			return b
		}
	}
	return -1
}

// StressStats are the KPIs of a trial's stress window.
type StressStats struct {
	MaxDrawdown     float64
	ShareAbove45Pct float64
	CutYears        int
	CaRP10Real      float64
	RecoveryYears   int
}

// Trial is the outcome of one simulated lifetime.
type Trial struct {
	Index      int
	StartYear  int
	Lifespan   int
	Died       bool
	Failed     bool
	RuinReason string

	FinalWealth      float64
	Taxes            float64
	TaxSaved         float64
	CutYears         int
	MaxCut           float64
	Depleted         bool
	DepletionAge     int
	YearsWithoutFlex int
	SimulatedYears   int
	YearsAbove45     int
	HeatmapBins      []int
	Volatility       float64
	MaxDrawdown      float64
	MinCoverage      float64
	RealWithdrawals  []float64

	SafetyStage1Years int
	SafetyStage2Years int

	Stress StressStats
}

// Quantiles is a p10/p50/p90 triple.
type Quantiles struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// SafetyShares reports how often the VPW safety staging engaged.
type SafetyShares struct {
	YearShareStage1Plus float64 `json:"year_share_stage1_plus"`
	YearShareStage2     float64 `json:"year_share_stage2"`
	RunShareStage1Plus  float64 `json:"run_share_stage1_plus"`
	RunShareStage2      float64 `json:"run_share_stage2"`
	RunsStage1Plus      int     `json:"runs_stage1_plus"`
	RunsStage2          int     `json:"runs_stage2"`
}

// StressSummary aggregates the stress window KPIs.
type StressSummary struct {
	Preset           string  `json:"preset"`
	Years            int     `json:"years"`
	MaxDrawdownP50   float64 `json:"max_drawdown_p50"`
	MaxDrawdownP90   float64 `json:"max_drawdown_p90"`
	ShareAbove45P50  float64 `json:"share_above_45_p50"`
	CutYearsP50      float64 `json:"cut_years_p50"`
	CaRP10RealP50    float64 `json:"car_p10_real_p50"`
	RecoveryYearsP50 float64 `json:"recovery_years_p50"`
}

// Summary is the aggregate of a batch of trials.
type Summary struct {
	Runs         int    `json:"runs"`
	Method       string `json:"method"`
	Seed         int64  `json:"seed"`
	StressPreset string `json:"stress_preset"`

	FinalWealth           Quantiles `json:"final_wealth"`
	FinalWealthSuccessP50 float64   `json:"final_wealth_success_p50"`
	TaxP50                float64   `json:"tax_p50"`
	LifespanMean          float64   `json:"lifespan_mean"`
	CutYearsP50           float64   `json:"cut_years_p50"`
	MaxCutP50             float64   `json:"max_cut_p50"`
	SuccessRatePct        float64   `json:"success_rate_pct"`
	DepletionRatePct      float64   `json:"depletion_rate_pct"`
	DepletionAgeP50       float64   `json:"depletion_age_p50"`
	NoFlexShareP50        float64   `json:"no_flex_share_p50"`
	VolatilityP50         float64   `json:"volatility_p50"`
	MaxDrawdownP50        float64   `json:"max_drawdown_p50"`
	MaxDrawdownP90        float64   `json:"max_drawdown_p90"`

	Heatmap          [][]int   `json:"heatmap"`
	Bins             []float64 `json:"-"`
	TimeShareAbove45 float64   `json:"time_share_above_45"`
	CaRP10Real       float64   `json:"car_p10_real"`

	Safety             SafetyShares  `json:"safety"`
	LossCarrySaved     float64       `json:"loss_carry_saved"`
	LossCarrySavedMean float64       `json:"loss_carry_saved_mean"`
	Stress             StressSummary `json:"stress"`
}

// Aggregate folds trials into a summary. Trials are expected in index order.
func Aggregate(trials []Trial) Summary {
	n := len(trials)
	s := Summary{Runs: n, Bins: HeatmapBins}
	s.Heatmap = make([][]int, heatmapYears)
	for i := range s.Heatmap {
		s.Heatmap[i] = make([]int, len(HeatmapBins)-1)
	}
	if n == 0 {
		return s
	}

	var (
		final, success, taxes, lifespans, cutYears, maxCuts []float64

		depletionAges, noFlex, vols, dds, realW []float64

		stressDD, stressAbove, stressCuts, stressCaR, stressRec []float64

		depleted, succeeded, simYears, above45 int

		stage1Years, stage2Years, stage1Runs, stage2Runs int
	)
	for _, t := range trials {
		final = append(final, t.FinalWealth)
		if t.FinalWealth > 0 {
			success = append(success, t.FinalWealth)
		}
		if !t.Failed {
			succeeded++
		}
		taxes = append(taxes, t.Taxes)
		lifespans = append(lifespans, float64(t.Lifespan))
		cutYears = append(cutYears, float64(t.CutYears))
		maxCuts = append(maxCuts, t.MaxCut)
		if t.Depleted {
			depleted++
		}
		if t.DepletionAge > 0 {
			depletionAges = append(depletionAges, float64(t.DepletionAge))
		}
		share := 0.0
		if t.Lifespan > 0 {
			share = float64(t.YearsWithoutFlex) / float64(t.Lifespan)
		}
		noFlex = append(noFlex, share)
		vols = append(vols, t.Volatility)
		dds = append(dds, t.MaxDrawdown)
		realW = append(realW, t.RealWithdrawals...)

		simYears += t.SimulatedYears
		above45 += t.YearsAbove45
		for y, b := range t.HeatmapBins {
			if y < heatmapYears && b >= 0 {
				s.Heatmap[y][b]++
			}
		}

		stage1Years += t.SafetyStage1Years
		stage2Years += t.SafetyStage2Years
		if t.SafetyStage1Years > 0 {
			stage1Runs++
		}
		if t.SafetyStage2Years > 0 {
			stage2Runs++
		}
		s.LossCarrySaved += t.TaxSaved

		stressDD = append(stressDD, t.Stress.MaxDrawdown)
		stressAbove = append(stressAbove, t.Stress.ShareAbove45Pct)
		stressCuts = append(stressCuts, float64(t.Stress.CutYears))
		stressCaR = append(stressCaR, t.Stress.CaRP10Real)
		stressRec = append(stressRec, float64(t.Stress.RecoveryYears))
	}

	q := calculator.QuantileOr
	s.FinalWealth = Quantiles{P10: q(final, 0.1, 0), P50: q(final, 0.5, 0), P90: q(final, 0.9, 0)}
	s.FinalWealthSuccessP50 = q(success, 0.5, 0)
	s.TaxP50 = q(taxes, 0.5, 0)
	s.LifespanMean, _ = calculator.Mean(lifespans)
	s.CutYearsP50 = q(cutYears, 0.5, 0)
	s.MaxCutP50 = q(maxCuts, 0.5, 0)
	s.SuccessRatePct = float64(succeeded) / float64(n) * 100
	s.DepletionRatePct = float64(depleted) / float64(n) * 100
	s.DepletionAgeP50 = q(depletionAges, 0.5, 0)
	s.NoFlexShareP50 = q(noFlex, 0.5, 0)
	s.VolatilityP50 = q(vols, 0.5, 0)
	s.MaxDrawdownP50 = q(dds, 0.5, 0)
	s.MaxDrawdownP90 = q(dds, 0.9, 0)
	s.CaRP10Real = q(realW, 0.1, 0)

	if simYears > 0 {
		s.TimeShareAbove45 = float64(above45) / float64(simYears)
		s.Safety.YearShareStage1Plus = float64(stage1Years) / float64(simYears)
		s.Safety.YearShareStage2 = float64(stage2Years) / float64(simYears)
	}
	s.Safety.RunsStage1Plus = stage1Runs
	s.Safety.RunsStage2 = stage2Runs
	s.Safety.RunShareStage1Plus = float64(stage1Runs) / float64(n)
	s.Safety.RunShareStage2 = float64(stage2Runs) / float64(n)
	s.LossCarrySavedMean = s.LossCarrySaved / float64(n)

	s.Stress = StressSummary{
		MaxDrawdownP50:   q(stressDD, 0.5, 0),
		MaxDrawdownP90:   q(stressDD, 0.9, 0),
		ShareAbove45P50:  q(stressAbove, 0.5, 0),
		CutYearsP50:      q(stressCuts, 0.5, 0),
		CaRP10RealP50:    q(stressCaR, 0.5, 0),
		RecoveryYearsP50: q(stressRec, 0.5, 0),
	}
	return s
}
