package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/history"
	"RetireSentinel/internal/model"
	"RetireSentinel/internal/montecarlo"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/state"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type memRecorder struct {
	recorder.NoopRecorder
	decisions []recorder.Decision
	runs      []*recorder.SimulationRun
}

func (m *memRecorder) RecordDecision(d *recorder.Decision) error {
	m.decisions = append(m.decisions, *d)
	return nil
}

func (m *memRecorder) RecordSimulation(run *recorder.SimulationRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) RecentDecisions(limit int) ([]recorder.Decision, error) {
	return m.decisions, nil
}

func testInput() engine.Input {
	return engine.Input{
		Household: model.Household{
			Age:                  65,
			Gender:               model.GenderMale,
			Floor:                30000,
			Flex:                 12000,
			Pension:              10000,
			PensionIndex:         model.PensionIndexInflation,
			RunwayMinMonths:      24,
			RunwayTargetMonths:   36,
			TargetEquityPct:      60,
			RebalBandPct:         20,
			MaxSkimPctOfEq:       5,
			MaxBearRefillPctOfEq: 5,
		},
		Portfolio: model.Portfolio{
			Equity: []model.Tranche{{ID: "old", Kind: model.KindEquityOld, MarketValue: 900000, CostBasis: 400000, TaxFreeQuota: 0.3}},
			Cash:   120000,
		},
		Market: model.MarketSnapshot{EndeVJ: 100, EndeVJ1: 95, EndeVJ2: 90, EndeVJ3: 85, ATH: 100, CapeRatio: 25, Inflation: 2},
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeNotifier, *memRecorder) {
	t.Helper()
	e, err := engine.New(config.DefaultEngine())
	require.NoError(t, err)
	d, err := history.Default()
	require.NoError(t, err)
	pool, err := montecarlo.NewPool(e, d, config.Simulation{
		Runs: 10, MaxYears: 10, Method: config.MethodHistorical, BlockSize: 5, Seed: 1, Workers: 2,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	in := testInput()
	sm, err := state.NewManager(filepath.Join(t.TempDir(), "state.json"), in.Household)
	require.NoError(t, err)

	n := &fakeNotifier{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), e, sm, pool, n, rec, func() (engine.Input, error) { return in, nil })
	s.Now = func() time.Time { return time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC) }
	return s, n, rec
}

func TestRegisterAll(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.NoError(t, s.RegisterAll("0 0 9 2 1 *", "0 30 2 * * *"))
	assert.Len(t, s.Cron.Entries(), 2)

	s, _, _ = newTestScheduler(t)
	assert.Error(t, s.RegisterAll("not a cron", ""))
}

func TestDecisionTask_RecordsOncePerYear(t *testing.T) {
	s, n, rec := newTestScheduler(t)

	s.RunDecisionNow()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "2025")
	require.Len(t, rec.decisions, 1)
	assert.Equal(t, 2025, rec.decisions[0].Year)
	assert.Equal(t, 2025, s.State.Get().LastDecisionYear)

	// same year again: skipped silently
	s.RunDecisionNow()
	assert.Len(t, n.sent, 1)
	assert.Len(t, rec.decisions, 1)
}

func TestDecide_PreviewDoesNotCommit(t *testing.T) {
	s, _, rec := newTestScheduler(t)
	year, res, err := s.Decide(false)
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	assert.Greater(t, res.UI.Spending.AnnualWithdrawal, 0.0)
	assert.Empty(t, rec.decisions)
	assert.Zero(t, s.State.Get().LastDecisionYear)
}

func TestDecisionTask_InputError(t *testing.T) {
	s, n, rec := newTestScheduler(t)
	s.Input = func() (engine.Input, error) { return engine.Input{}, errors.New("no file") }
	s.RunDecisionNow()
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "no file")
	assert.Empty(t, rec.decisions)
}

func TestSimulate_RecordsRun(t *testing.T) {
	s, _, rec := newTestScheduler(t)
	sum, _, err := s.Simulate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Runs)
	require.Len(t, rec.runs, 1)
	assert.NotEmpty(t, rec.runs[0].ID)
}

func TestHandleCommand(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/help"), "/preview")
	assert.Contains(t, s.HandleCommand(ctx, "/status"), "€30000")
	assert.Equal(t, "No decisions recorded yet.", s.HandleCommand(ctx, "/history"))

	first := s.HandleCommand(ctx, "/decide")
	assert.Contains(t, first, "2025")
	assert.True(t, strings.Contains(s.HandleCommand(ctx, "/decide"), "already recorded"))
	assert.Contains(t, s.HandleCommand(ctx, "/history"), "2025")
	assert.Contains(t, s.HandleCommand(ctx, "/simulate"), "Runs: 10")
}
