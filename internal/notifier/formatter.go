package notifier

import (
	"fmt"
	"strings"
	"time"

	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/montecarlo"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/state"
)

var runwayIcons = map[string]string{
	engine.RunwayOK:   "🟢",
	engine.RunwayWarn: "🟡",
	engine.RunwayBad:  "🔴",
}

// FormatDecision formats the yearly decision into a Telegram message.
func FormatDecision(year int, res engine.Result) string {
	ui := res.UI
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🧭 <b>RetireSentinel decision</b> | %d\n\n", year))

	// Market
	b.WriteString(fmt.Sprintf("Regime: %s (%s)\n", ui.Market.Label, ui.Market.Key))
	if ui.Market.CapeRatio > 0 {
		b.WriteString(fmt.Sprintf("CAPE: %.1f | expected return %.1f%% | %s\n",
			ui.Market.CapeRatio, ui.Market.ExpectedReturnCape, ui.Market.ValuationSignal))
	}
	b.WriteString(fmt.Sprintf("Gap to ATH: %.1f%% | 1Y: %+.1f%%\n", ui.Market.ATHGapPct, ui.Market.Perf1YPct))
	if ui.Market.Stagflation {
		b.WriteString("⚠️ stagflation detected\n")
	}
	b.WriteString("\n")

	// Spending
	sp := ui.Spending
	b.WriteString("💶 <b>Spending:</b>\n")
	b.WriteString(fmt.Sprintf("  Withdrawal: €%.0f (€%.0f/month)\n", sp.AnnualWithdrawal, sp.MonthlyWithdrawal))
	b.WriteString(fmt.Sprintf("  Floor: €%.0f | Flex: €%.0f at %.0f%%\n", sp.Floor, sp.Flex, sp.FlexRate))
	if sp.CutPct > 0 {
		b.WriteString(fmt.Sprintf("  Cut: %.1f%% (%s)\n", sp.CutPct, sp.CutSource))
	}
	if sp.AlarmActive {
		b.WriteString("  🚨 guardrail alarm active\n")
	}
	if v := ui.VPW; v != nil && v.Enabled {
		b.WriteString(fmt.Sprintf("  Dynamic flex: €%.0f over %.0f years (%s)\n", v.DynamicFlex, v.HorizonYears, v.Status))
	}
	b.WriteString("\n")

	// Liquidity
	b.WriteString(fmt.Sprintf("%s <b>Runway:</b> %.1f months (min %.0f, target %.0f)\n",
		runwayIcons[ui.Runway.Status], ui.Runway.Months, ui.Runway.MinMonths, ui.Runway.TargetMonths))
	b.WriteString(fmt.Sprintf("  Liquidity: €%.0f of €%.0f target\n", ui.Liquidity, ui.TargetLiquidity))
	b.WriteString(fmt.Sprintf("  Coverage: %.0f%% → %.0f%%\n", ui.Coverage.Before, ui.Coverage.After))
	b.WriteString(fmt.Sprintf("  Total wealth: €%.0f\n\n", ui.TotalWealth))

	// Action
	b.WriteString(fmt.Sprintf("🛠 <b>Action:</b> %s\n", ui.Action.Title))
	if ui.Action.Type == model.ActionTransaction {
		for _, s := range ui.Action.Sources {
			b.WriteString(fmt.Sprintf("  sell %s %s: €%.0f (tax €%.0f)\n", s.Kind, s.TrancheID, s.Gross, s.Tax))
		}
		u := ui.Action.Uses
		b.WriteString(fmt.Sprintf("  → liquidity €%.0f | gold €%.0f | equity €%.0f | money market €%.0f\n",
			u.Liquidity, u.Gold, u.Equity, u.MoneyMarket))
		b.WriteString(fmt.Sprintf("  Tax: €%.0f\n", ui.Action.TotalTax))
	} else if r := ui.Action.Diagnostics.BlockReason; r != "" && r != model.BlockNone {
		b.WriteString(fmt.Sprintf("  blocked: %s\n", r))
	}

	return b.String()
}

// FormatHouseholdStatus formats the persisted household state for display.
func FormatHouseholdStatus(h *state.Household) string {
	var b strings.Builder
	b.WriteString("📦 <b>Household state</b>\n\n")
	b.WriteString(fmt.Sprintf("Base floor: €%.0f\n", h.BaseFloor))
	b.WriteString(fmt.Sprintf("Base flex: €%.0f\n", h.BaseFlex))
	b.WriteString(fmt.Sprintf("Inflation factor: %.3f\n", h.InflationFactor()))
	b.WriteString(fmt.Sprintf("Loss carry: €%.0f\n", h.Tax.LossCarry))
	if h.LastDecisionYear > 0 {
		b.WriteString(fmt.Sprintf("Last decision: %d\n", h.LastDecisionYear))
	}
	if h.Spending != nil {
		b.WriteString(fmt.Sprintf("Alarm active: %v\n", h.Spending.AlarmActive))
	}
	if !h.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Updated: %s\n", h.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return b.String()
}

// FormatHistory formats recent recorded decisions, newest first.
func FormatHistory(decisions []recorder.Decision) string {
	if len(decisions) == 0 {
		return "No decisions recorded yet."
	}
	var b strings.Builder
	b.WriteString("📜 <b>Recent decisions</b>\n\n")
	for _, d := range decisions {
		alarm := ""
		if d.AlarmActive {
			alarm = " 🚨"
		}
		b.WriteString(fmt.Sprintf("%d %s: €%.0f flex %.0f%% runway %.1fm%s\n",
			d.Year, d.Regime, d.Withdrawal, d.FlexRate, d.RunwayMonths, alarm))
	}
	return b.String()
}

// FormatSimulationSummary formats a Monte Carlo summary.
func FormatSimulationSummary(s *montecarlo.Summary, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🎲 <b>Simulation</b> | %s\n\n", time.Now().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Runs: %d | method %s | seed %d | %s\n",
		s.Runs, s.Method, s.Seed, elapsed.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Success: %.1f%% | depletion: %.1f%%\n", s.SuccessRatePct, s.DepletionRatePct))
	b.WriteString(fmt.Sprintf("Final wealth P10/P50/P90: €%.0f / €%.0f / €%.0f\n",
		s.FinalWealth.P10, s.FinalWealth.P50, s.FinalWealth.P90))
	b.WriteString(fmt.Sprintf("Max drawdown P50/P90: %.1f%% / %.1f%%\n", s.MaxDrawdownP50, s.MaxDrawdownP90))
	b.WriteString(fmt.Sprintf("Real withdrawal CaR P10: €%.0f\n", s.CaRP10Real))
	b.WriteString(fmt.Sprintf("Years above 4.5%%: %.1f%%\n", s.TimeShareAbove45*100))
	b.WriteString(fmt.Sprintf("Taxes P50: €%.0f | loss carry saved: €%.0f\n", s.TaxP50, s.LossCarrySaved))
	if s.Stress.Preset != "" && s.Stress.Years > 0 {
		st := s.Stress
		b.WriteString(fmt.Sprintf("\n⚡ <b>Stress %s</b> (%d years)\n", st.Preset, st.Years))
		b.WriteString(fmt.Sprintf("  Drawdown P50/P90: %.1f%% / %.1f%%\n", st.MaxDrawdownP50, st.MaxDrawdownP90))
		b.WriteString(fmt.Sprintf("  Recovery P50: %.0f years\n", st.RecoveryYearsP50))
	}
	return b.String()
}

// FormatSweep formats sweep results, one line per combo.
func FormatSweep(rows []montecarlo.SweepResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧪 <b>Sweep</b> | %d combos\n\n", len(rows)))
	for _, r := range rows {
		if r.Invalid {
			b.WriteString(fmt.Sprintf("#%d invalid: %s\n", r.ComboIndex, r.InvalidReason))
			continue
		}
		m := r.Metrics
		b.WriteString(fmt.Sprintf("#%d success %.1f%% | P10 €%.0f | median €%.0f | DD95 %.1f%%\n",
			r.ComboIndex, m.SuccessProbFloor, m.P10EndWealth, m.MedianEndWealth, m.Worst5Drawdown))
	}
	return b.String()
}
