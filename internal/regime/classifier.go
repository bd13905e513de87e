package regime

import (
	"fmt"
	"math"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/config"
	"RetireSentinel/internal/model"
)

// Labels maps regime keys to their display names.
var Labels = map[model.RegimeKey]string{
	model.RegimePeakHot:        "Overheated peak",
	model.RegimePeakStable:     "Stable all-time high",
	model.RegimeSideLong:       "Long sideways",
	model.RegimeCorrYoung:      "Young correction",
	model.RegimeRecovery:       "Confirmed recovery",
	model.RegimeBearDeep:       "Deep bear",
	model.RegimeRecoveryInBear: "Recovery in bear market",
	model.RegimeNeutral:        "Neutral",
}

// profiles maps regime keys to runway profiles.
var profiles = map[model.RegimeKey]model.ProfileKey{
	model.RegimePeakHot:        model.ProfilePeak,
	model.RegimePeakStable:     model.ProfileHotNeutral,
	model.RegimeSideLong:       model.ProfileHotNeutral,
	model.RegimeRecovery:       model.ProfileRecovery,
	model.RegimeCorrYoung:      model.ProfileRecovery,
	model.RegimeBearDeep:       model.ProfileBear,
	model.RegimeRecoveryInBear: model.ProfileRecoveryInBear,
	model.RegimeNeutral:        model.ProfileHotNeutral,
}

// Classifier turns a market snapshot into a regime. It is a pure value.
type Classifier struct {
	Thresholds config.RegimeThresholds
	Valuation  config.Valuation
}

// NewClassifier builds a classifier from the engine configuration.
func NewClassifier(cfg config.Engine) Classifier {
	return Classifier{Thresholds: cfg.Regime, Valuation: cfg.Valuation}
}

// Classify derives the regime of the snapshot. It never fails; degenerate
// price data yields the neutral regime.
func (c Classifier) Classify(m model.MarketSnapshot) model.MarketRegime {
	th := c.Thresholds
	r := model.MarketRegime{}

	if !validPrice(m.EndeVJ) || !validPrice(m.ATH) {
		r.Key = model.RegimeNeutral
		r.Reasons = append(r.Reasons, "incomplete price history")
	} else {
		r.ATHGapPct = (m.ATH - m.EndeVJ) / m.ATH * 100
		if validPrice(m.EndeVJ1) {
			r.Perf1YPct = (m.EndeVJ - m.EndeVJ1) / m.EndeVJ1 * 100
		}
		monthsSinceATH := m.YearsSinceATH * 12
		if r.ATHGapPct > 0 && m.YearsSinceATH == 0 {
			monthsSinceATH = 12
		}

		switch {
		case r.ATHGapPct <= 0:
			r.Key = model.RegimePeakStable
			r.Reasons = append(r.Reasons, "new all-time high")
			if r.Perf1YPct >= th.PeakHotPerf1Y {
				r.Key = model.RegimePeakHot
				r.Reasons = append(r.Reasons, fmt.Sprintf("strong momentum (>%.0f%%)", th.PeakHotPerf1Y))
			}
		case r.ATHGapPct > th.BearDeepGap:
			r.Key = model.RegimeBearDeep
			r.Reasons = append(r.Reasons, fmt.Sprintf("ATH gap %.1f%% > %.0f%%", r.ATHGapPct, th.BearDeepGap))
		case r.ATHGapPct > th.RecoveryGap && r.Perf1YPct > th.RecoveryPerf1Y && monthsSinceATH > th.RecoveryMonths:
			r.Key = model.RegimeRecovery
			r.Reasons = append(r.Reasons, "strong momentum after correction")
		case r.ATHGapPct <= th.CorrectionGap && monthsSinceATH <= th.CorrectionMonths:
			r.Key = model.RegimeCorrYoung
			r.Reasons = append(r.Reasons, "recent mild correction")
		default:
			r.Key = model.RegimeSideLong
			r.Reasons = append(r.Reasons, "sideways market")
		}

		if r.Key == model.RegimeBearDeep || r.Key == model.RegimeRecovery {
			if low := calculator.WindowLow(m.EndeVJ, m.EndeVJ1, m.EndeVJ2, m.EndeVJ3); low > 0 {
				r.RallyFromLowPct = (m.EndeVJ - low) / low * 100
			}
			if (r.Perf1YPct >= th.RallyPerf1Y || r.RallyFromLowPct >= th.RallyFromLow) && r.ATHGapPct > th.RallyMinGap {
				r.Key = model.RegimeRecoveryInBear
				r.Reasons = append(r.Reasons, fmt.Sprintf("rally in bear market (1y %.0f%%, from low %.0f%%)", r.Perf1YPct, r.RallyFromLowPct))
			}
		}
	}

	r.SeiATH = (100 - r.ATHGapPct) / 100
	r.Profile = profiles[r.Key]
	r.Label = Labels[r.Key]

	if m.Inflation >= th.StagflationInflPct && r.Perf1YPct-m.Inflation < 0 {
		r.Stagflation = true
		r.Profile = model.ProfileStagflation
		r.Label += " (stagflation)"
		r.Reasons = append(r.Reasons, fmt.Sprintf("stagflation (inflation %.1f%%, real 1y %.1f%%)", m.Inflation, r.Perf1YPct-m.Inflation))
	}

	r.CapeRatio, r.ValuationSignal, r.ExpectedReturnCape = c.assessCape(m.Cape())
	r.Reasons = append(r.Reasons, fmt.Sprintf("valuation %s (CAPE %.1f, exp. return %.1f%%)", r.ValuationSignal, r.CapeRatio, r.ExpectedReturnCape*100))
	return r
}

// assessCape buckets the CAPE ratio; non-positive values use the default CAPE.
func (c Classifier) assessCape(cape float64) (float64, string, float64) {
	v := c.Valuation
	if !validPrice(cape) {
		cape = v.DefaultCape
	}
	switch {
	case cape >= v.ExtremeCape:
		return cape, model.ValuationExtremeOvervalued, v.ReturnExtreme
	case cape >= v.OvervaluedCape:
		return cape, model.ValuationOvervalued, v.ReturnOvervalued
	case cape <= v.UndervaluedCape:
		return cape, model.ValuationUndervalued, v.ReturnUndervalued
	default:
		return cape, model.ValuationFair, v.ReturnFair
	}
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
