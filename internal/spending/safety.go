package spending

import (
	"RetireSentinel/internal/model"
)

type safetySignals struct {
	withdrawalRate float64
	drawdown       float64
	cutPct         float64
	runwayMonths   float64
	minRunway      float64
	alarm          bool
}

// badScore rates the stress of a dynamic flex year. Higher is worse.
func (p Planner) badScore(s safetySignals) int {
	g := p.cfg.Guardrails
	sf := p.cfg.Safety
	score := 0
	switch {
	case s.withdrawalRate > g.AlarmWithdrawalRate:
		score += 2
	case s.withdrawalRate > sf.GoodWithdrawalRate:
		score++
	}
	switch {
	case s.drawdown > g.AlarmRealDrawdown:
		score += 2
	case s.drawdown > g.PeakExitDrawdown:
		score++
	}
	if s.cutPct >= sf.HardCutPct {
		score++
	}
	if s.minRunway > 0 && s.runwayMonths < s.minRunway {
		score++
	}
	if s.alarm {
		score++
	}
	return score
}

func (p Planner) goodYear(s safetySignals) bool {
	sf := p.cfg.Safety
	return s.withdrawalRate <= sf.GoodWithdrawalRate &&
		s.drawdown <= sf.GoodDrawdown &&
		s.cutPct <= sf.GoodCutPct &&
		s.runwayMonths >= s.minRunway+sf.RunwayHeadroomMonths &&
		!s.alarm
}

// advanceSafety updates the staging streaks after the year's decision. A new
// stage takes effect in the following year.
func (p Planner) advanceSafety(next *model.SpendingState, vpw *model.VPWResult, s safetySignals) {
	sf := p.cfg.Safety
	next.VPWExpectedReturn = vpw.ExpectedRealReturn
	next.VPWPrevDynamicFlex = vpw.DynamicFlex
	if vpw.ReentryApplied && next.VPWReentryRemaining > 0 {
		next.VPWReentryRemaining--
	}
	if !sf.Enabled {
		next.VPWSafetyStage = 0
		return
	}

	score := p.badScore(s)
	vpw.BadScore = score

	switch {
	case score >= sf.BadScoreThreshold:
		next.VPWBadStreak++
		next.VPWGoodStreak = 0
	case p.goodYear(s):
		next.VPWGoodStreak++
		next.VPWBadStreak = 0
	default:
		next.VPWBadStreak = 0
		next.VPWGoodStreak = 0
	}

	stage := next.VPWSafetyStage
	critical := score >= sf.SevereScoreThreshold || s.alarm || (s.minRunway > 0 && s.runwayMonths < s.minRunway)
	switch {
	case next.VPWBadStreak >= sf.EscalateStreakYears && stage < sf.MaxStage:
		if stage == 0 || !sf.Stage2RequireCritical || critical {
			stage++
			next.VPWBadStreak = 0
			next.VPWReentryRemaining = 0
		}
	case next.VPWGoodStreak >= sf.DeescalateStreakYears && stage > 0:
		if stage == 2 {
			next.VPWReentryRemaining = sf.ReentryRampYears
		}
		stage--
		next.VPWGoodStreak = 0
	}
	next.VPWSafetyStage = stage
}
