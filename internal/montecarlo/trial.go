package montecarlo

import (
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/history"
)

// trial simulates one lifetime: each year it samples market data, applies
// the stress scenario, checks mortality and steps the engine, until death,
// ruin or the maximum duration.
func (p *Pool) trial(in engine.Input, combo, idx int) (Trial, error) {
	r := newRand(p.cfg.Seed, combo, idx)
	h := in.Household

	start := startIndex(r, p.data, p.cfg.CapeSampling, in.Market)
	smp, err := newSampler(p.cfg.Method, p.data, p.cfg.BlockSize, start)
	if err != nil {
		return Trial{}, err
	}
	stress := p.stress.start()
	stressYears := stress.years()

	st := engine.InitialState(in, p.year)
	t := Trial{
		Index:       idx,
		StartYear:   p.data.Years[start].Year,
		MinCoverage: math.Inf(1),
		HeatmapBins: make([]int, 0, heatmapYears),
		Stress:      StressStats{RecoveryYears: -1},
	}
	keepReal := idx%carSampleEvery == 0

	wealth := []float64{st.Portfolio.Total()}
	stressWealth := []float64{st.Portfolio.Total()}
	var stressReal []float64
	stressAbove := 0

	for y := 0; y < p.cfg.MaxYears; y++ {
		t.Lifespan = y + 1

		i, ok := stress.pick(r)
		if !ok {
			i = smp.next(r)
		}
		yr := stress.apply(p.data.Years[i], r)
		yr.Year = st.Year

		if r.Float64() < history.DeathProbability(h.Gender, st.Age) {
			t.Died = true
			break
		}

		factor := st.InflationFactor()
		out, err := p.engine.Step(h, st, yr)
		if err != nil {
			return Trial{}, err
		}
		rec := out.Record
		if out.Ruin {
			t.Failed = true
			t.RuinReason = out.RuinReason
			break
		}
		st = out.State

		t.Taxes += rec.SettledTax
		t.TaxSaved += rec.TaxSaved
		if rec.CutPct >= cutYearPct {
			t.CutYears++
		}
		t.MaxCut = math.Max(t.MaxCut, rec.CutPct)
		if t.DepletionAge == 0 && st.Portfolio.DepotValue() <= depletionThreshold {
			t.DepletionAge = rec.Age
		}
		if rec.FlexRate <= noFlexRatePct {
			t.YearsWithoutFlex++
		}
		t.SimulatedYears++
		if rec.WithdrawalRate > highRatePct {
			t.YearsAbove45++
		}
		realW := rec.Withdrawal / factor
		if keepReal {
			t.RealWithdrawals = append(t.RealWithdrawals, realW)
		}
		if y < heatmapYears {
			t.HeatmapBins = append(t.HeatmapBins, heatmapBin(rec.WithdrawalRate))
		}
		if rec.VPWStage >= 1 {
			t.SafetyStage1Years++
		}
		if rec.VPWStage >= 2 {
			t.SafetyStage2Years++
		}
		t.MinCoverage = math.Min(t.MinCoverage, rec.Coverage)
		wealth = append(wealth, rec.EndWealth)

		if y < stressYears {
			stressWealth = append(stressWealth, rec.EndWealth)
			if rec.WithdrawalRate > highRatePct {
				stressAbove++
			}
			if rec.CutPct > cutYearPct {
				t.Stress.CutYears++
			}
			stressReal = append(stressReal, realW)
		} else if stressYears > 0 && t.Stress.RecoveryYears < 0 && rec.WithdrawalRate < recoveredRatePct {
			t.Stress.RecoveryYears = y - (stressYears - 1)
		}
	}

	if !t.Failed {
		t.FinalWealth = st.Portfolio.Total()
	}
	t.Depleted = t.Failed || st.Portfolio.DepotValue() <= depletionThreshold
	if math.IsInf(t.MinCoverage, 1) {
		t.MinCoverage = 0
	}
	t.Volatility, _ = calculator.VolatilityPct(wealth)
	t.MaxDrawdown, _ = calculator.MaxDrawdownPct(wealth)

	if stressYears > 0 {
		t.Stress.MaxDrawdown, _ = calculator.MaxDrawdownPct(stressWealth)
		t.Stress.ShareAbove45Pct = float64(stressAbove) / float64(stressYears) * 100
		t.Stress.CaRP10Real = calculator.QuantileOr(stressReal, 0.1, 0)
		if t.Stress.RecoveryYears < 0 {
			t.Stress.RecoveryYears = stressYears
		}
	} else {
		t.Stress.RecoveryYears = 0
	}
	return t, nil
}
