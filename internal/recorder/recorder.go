package recorder

import (
	"time"

	"github.com/google/uuid"

	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/montecarlo"
)

// Decision is one recorded yearly decision.
type Decision struct {
	Year            int
	Regime          string
	Withdrawal      float64
	FlexRate        float64
	CutPct          float64
	ActionType      string
	ActionTitle     string
	TargetLiquidity float64
	Liquidity       float64
	TotalWealth     float64
	RunwayMonths    float64
	RunwayStatus    string
	CoverageBefore  float64
	CoverageAfter   float64
	AlarmActive     bool
}

// NewDecision flattens an engine result for storage.
func NewDecision(year int, res engine.Result) *Decision {
	ui := res.UI
	return &Decision{
		Year:            year,
		Regime:          string(ui.Market.Key),
		Withdrawal:      ui.Spending.AnnualWithdrawal,
		FlexRate:        ui.Spending.FlexRate,
		CutPct:          ui.Spending.CutPct,
		ActionType:      string(ui.Action.Type),
		ActionTitle:     ui.Action.Title,
		TargetLiquidity: ui.TargetLiquidity,
		Liquidity:       ui.Liquidity,
		TotalWealth:     ui.TotalWealth,
		RunwayMonths:    ui.Runway.Months,
		RunwayStatus:    ui.Runway.Status,
		CoverageBefore:  ui.Coverage.Before,
		CoverageAfter:   ui.Coverage.After,
		AlarmActive:     res.NewState.AlarmActive,
	}
}

// SimulationRun is one finished Monte Carlo run.
type SimulationRun struct {
	ID        string
	StartedAt time.Time
	Elapsed   time.Duration
	Summary   *montecarlo.Summary
}

// NewRunID returns a fresh ID for a simulation or sweep run.
func NewRunID() string { return uuid.New().String() }

// NewSimulationRun assigns a fresh run ID.
func NewSimulationRun(s *montecarlo.Summary, startedAt time.Time, elapsed time.Duration) *SimulationRun {
	return &SimulationRun{
		ID:        NewRunID(),
		StartedAt: startedAt,
		Elapsed:   elapsed,
		Summary:   s,
	}
}

// Recorder persists historical data for analysis.
type Recorder interface {
	RecordDecision(d *Decision) error
	RecordSimulation(run *SimulationRun) error
	RecordSweep(runID string, rows []montecarlo.SweepResult) error
	RecentDecisions(limit int) ([]Decision, error)
	Close() error
}
