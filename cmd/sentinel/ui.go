package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/montecarlo"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/state"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1).
		MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(24)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)

	badStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

func row(label string, value string) string {
	return labelStyle.Render(label) + value
}

func money(v float64) string {
	return fmt.Sprintf("€%.0f", v)
}

func section(title string, rows ...string) string {
	return boxStyle.Render(titleStyle.Render(title) + "\n" + strings.Join(rows, "\n"))
}

func runwayStyle(status string) lipgloss.Style {
	switch status {
	case engine.RunwayOK:
		return okStyle
	case engine.RunwayWarn:
		return warnStyle
	default:
		return badStyle
	}
}

func renderDecision(year int, res engine.Result, committed bool) string {
	ui := res.UI
	sp := ui.Spending

	mode := warnStyle.Render("preview")
	if committed {
		mode = okStyle.Render("recorded")
	}

	market := []string{
		row("Regime", fmt.Sprintf("%s (%s)", ui.Market.Label, ui.Market.Key)),
		row("CAPE", fmt.Sprintf("%.1f → %.1f%% expected, %s", ui.Market.CapeRatio, ui.Market.ExpectedReturnCape, ui.Market.ValuationSignal)),
		row("Gap to ATH / 1Y", fmt.Sprintf("%.1f%% / %+.1f%%", ui.Market.ATHGapPct, ui.Market.Perf1YPct)),
	}
	if ui.Market.Stagflation {
		market = append(market, badStyle.Render("stagflation"))
	}

	spending := []string{
		row("Withdrawal", fmt.Sprintf("%s (%s/month)", money(sp.AnnualWithdrawal), money(sp.MonthlyWithdrawal))),
		row("Floor / flex", fmt.Sprintf("%s / %s", money(sp.Floor), money(sp.Flex))),
		row("Flex rate", fmt.Sprintf("%.0f%%", sp.FlexRate)),
	}
	if sp.CutPct > 0 {
		spending = append(spending, row("Cut", warnStyle.Render(fmt.Sprintf("%.1f%% (%s)", sp.CutPct, sp.CutSource))))
	}
	if sp.AlarmActive {
		spending = append(spending, badStyle.Render("guardrail alarm active"))
	}
	if v := ui.VPW; v != nil && v.Enabled {
		spending = append(spending, row("Dynamic flex", fmt.Sprintf("%s over %.0f years (%s)", money(v.DynamicFlex), v.HorizonYears, v.Status)))
	}

	liquidity := []string{
		row("Runway", runwayStyle(ui.Runway.Status).Render(fmt.Sprintf("%.1f months", ui.Runway.Months)) +
			dimStyle.Render(fmt.Sprintf("  min %.0f, target %.0f", ui.Runway.MinMonths, ui.Runway.TargetMonths))),
		row("Liquidity", fmt.Sprintf("%s of %s", money(ui.Liquidity), money(ui.TargetLiquidity))),
		row("Coverage", fmt.Sprintf("%.0f%% → %.0f%%", ui.Coverage.Before, ui.Coverage.After)),
		row("Total wealth", money(ui.TotalWealth)),
	}

	action := []string{row("Action", ui.Action.Title)}
	if ui.Action.Type == model.ActionTransaction {
		for _, s := range ui.Action.Sources {
			action = append(action, dimStyle.Render(fmt.Sprintf("  sell %s %s %s, tax %s", s.Kind, s.TrancheID, money(s.Gross), money(s.Tax))))
		}
		u := ui.Action.Uses
		action = append(action,
			row("Uses", fmt.Sprintf("liquidity %s, gold %s, equity %s, money market %s",
				money(u.Liquidity), money(u.Gold), money(u.Equity), money(u.MoneyMarket))),
			row("Tax", money(ui.Action.TotalTax)),
		)
	} else if r := ui.Action.Diagnostics.BlockReason; r != "" && r != model.BlockNone {
		action = append(action, row("Blocked", string(r)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Decision %d", year))+" "+mode,
		section("Market", market...),
		section("Spending", spending...),
		section("Liquidity", liquidity...),
		section("Action", action...),
	)
}

func renderSummary(s *montecarlo.Summary, elapsed time.Duration) string {
	success := okStyle
	if s.SuccessRatePct < 90 {
		success = warnStyle
	}
	if s.SuccessRatePct < 75 {
		success = badStyle
	}

	outcome := []string{
		row("Runs", fmt.Sprintf("%d (%s, seed %d, %v)", s.Runs, s.Method, s.Seed, elapsed.Round(time.Millisecond))),
		row("Success", success.Render(fmt.Sprintf("%.1f%%", s.SuccessRatePct))),
		row("Depletion", fmt.Sprintf("%.1f%%, median age %.0f", s.DepletionRatePct, s.DepletionAgeP50)),
		row("Final wealth P10/50/90", fmt.Sprintf("%s / %s / %s", money(s.FinalWealth.P10), money(s.FinalWealth.P50), money(s.FinalWealth.P90))),
		row("Lifespan mean", fmt.Sprintf("%.1f years", s.LifespanMean)),
	}
	risk := []string{
		row("Max drawdown P50/P90", fmt.Sprintf("%.1f%% / %.1f%%", s.MaxDrawdownP50, s.MaxDrawdownP90)),
		row("Volatility P50", fmt.Sprintf("%.1f%%", s.VolatilityP50)),
		row("Real CaR P10", money(s.CaRP10Real)),
		row("Years above 4.5%", fmt.Sprintf("%.1f%%", s.TimeShareAbove45*100)),
		row("Cut years P50", fmt.Sprintf("%.0f (max cut %.0f%%)", s.CutYearsP50, s.MaxCutP50)),
		row("Safety stage 1+/2", fmt.Sprintf("%.1f%% / %.1f%% of runs", s.Safety.RunShareStage1Plus*100, s.Safety.RunShareStage2*100)),
		row("Taxes P50", fmt.Sprintf("%s, loss carry saved %s", money(s.TaxP50), money(s.LossCarrySaved))),
	}
	parts := []string{section("Outcome", outcome...), section("Risk", risk...)}

	if s.Stress.Preset != "" && s.Stress.Years > 0 {
		st := s.Stress
		parts = append(parts, section("Stress "+st.Preset,
			row("Drawdown P50/P90", fmt.Sprintf("%.1f%% / %.1f%%", st.MaxDrawdownP50, st.MaxDrawdownP90)),
			row("Share above 4.5%", fmt.Sprintf("%.1f%%", st.ShareAbove45P50)),
			row("Cut years P50", fmt.Sprintf("%.0f", st.CutYearsP50)),
			row("Real CaR P10", money(st.CaRP10RealP50)),
			row("Recovery P50", fmt.Sprintf("%.0f years", st.RecoveryYearsP50)),
		))
	}
	parts = append(parts, section("Withdrawal rate heatmap (share of runs)", renderHeatmap(s)))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderHeatmap(s *montecarlo.Summary) string {
	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-5s", "year")))
	for i := 0; i+1 < len(s.Bins); i++ {
		label := fmt.Sprintf("<%g", s.Bins[i+1])
		if math.IsInf(s.Bins[i+1], 1) {
			label = fmt.Sprintf("%g+", s.Bins[i])
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%6s", label)))
	}
	for y, counts := range s.Heatmap {
		b.WriteString(fmt.Sprintf("\n%-5d", y+1))
		for _, c := range counts {
			share := 0.0
			if s.Runs > 0 {
				share = float64(c) / float64(s.Runs) * 100
			}
			cell := fmt.Sprintf("%5.0f%%", share)
			switch {
			case share == 0:
				cell = dimStyle.Render(cell)
			case share >= 25:
				cell = warnStyle.Render(cell)
			}
			b.WriteString(cell)
		}
	}
	return b.String()
}

func renderSweep(rows []montecarlo.SweepResult) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%-4s %-9s %12s %12s %8s %8s  %s", "#", "success", "P10", "median", "DD95", "runway", "combo")))
	for _, r := range rows {
		combo := comboString(r.Combo)
		if r.Invalid {
			lines = append(lines, fmt.Sprintf("%-4d %s  %s", r.ComboIndex, badStyle.Render("invalid: "+r.InvalidReason), combo))
			continue
		}
		m := r.Metrics
		lines = append(lines, fmt.Sprintf("%-4d %-9s %12s %12s %7.1f%% %7.0f%%  %s",
			r.ComboIndex, fmt.Sprintf("%.1f%%", m.SuccessProbFloor), money(m.P10EndWealth), money(m.MedianEndWealth),
			m.Worst5Drawdown, m.MinRunwayObserved, combo))
	}
	return section(fmt.Sprintf("Sweep (%d combos)", len(rows)), lines...)
}

func comboString(c montecarlo.Combo) string {
	var parts []string
	add := func(name string, v *float64) {
		if v != nil {
			parts = append(parts, fmt.Sprintf("%s=%g", name, *v))
		}
	}
	add("runway_min", c.RunwayMin)
	add("runway_target", c.RunwayTarget)
	add("target_eq", c.TargetEq)
	add("rebal_band", c.RebalBand)
	add("max_skim_pct", c.MaxSkimPct)
	add("max_bear_refill_pct", c.MaxBearRefillPct)
	add("gold_target_pct", c.GoldTargetPct)
	add("horizon_years", c.HorizonYears)
	add("survival_quantile", c.SurvivalQuantile)
	add("go_go_multiplier", c.GoGoMultiplier)
	if len(parts) == 0 {
		return "base"
	}
	return strings.Join(parts, " ")
}

func renderState(h *state.Household, recent []recorder.Decision) string {
	rows := []string{
		row("Base floor / flex", fmt.Sprintf("%s / %s", money(h.BaseFloor), money(h.BaseFlex))),
		row("Inflation factor", fmt.Sprintf("%.3f", h.InflationFactor())),
		row("Loss carry", money(h.Tax.LossCarry)),
		row("Last decision", fmt.Sprintf("%d", h.LastDecisionYear)),
	}
	if h.Spending != nil && h.Spending.AlarmActive {
		rows = append(rows, badStyle.Render("guardrail alarm active"))
	}
	parts := []string{section("Household state", rows...)}

	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, d := range recent {
			lines = append(lines, fmt.Sprintf("%d  %-18s %10s  flex %3.0f%%  runway %5.1fm  %s",
				d.Year, d.Regime, money(d.Withdrawal), d.FlexRate, d.RunwayMonths, d.ActionTitle))
		}
		parts = append(parts, section("Recent decisions", lines...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderPresets() string {
	lines := make([]string, 0, len(montecarlo.Presets))
	for _, key := range montecarlo.PresetKeys() {
		p := montecarlo.Presets[key]
		years := ""
		if p.Years > 0 {
			years = dimStyle.Render(fmt.Sprintf(" (%d years)", p.Years))
		}
		lines = append(lines, fmt.Sprintf("%-20s %s%s", key, p.Label, years))
	}
	return section("Stress presets", lines...)
}

// progressPrinter reports harness progress on stderr.
func progressPrinter() func(montecarlo.Message) {
	last := -1
	return func(m montecarlo.Message) {
		if m.Type != montecarlo.MessageProgress || m.Total == 0 {
			return
		}
		pct := m.Done * 100 / m.Total
		if pct/10 == last/10 && pct != 100 {
			return
		}
		last = pct
		fmt.Fprintf(os.Stderr, "%s %3d%% (%d/%d)\n", dimStyle.Render("simulating"), pct, m.Done, m.Total)
	}
}
