// Package scheduler runs the yearly decision and the nightly simulation on
// cron schedules and answers chat commands.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/montecarlo"
	"RetireSentinel/internal/notifier"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/state"
)

// Notifier delivers reports.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// InputLoader returns the household input for the next decision.
type InputLoader func() (engine.Input, error)

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *engine.Engine
	State    *state.Manager
	Pool     *montecarlo.Pool
	Notifier Notifier
	Recorder recorder.Recorder
	Input    InputLoader
	Ctx      context.Context
	Now      func() time.Time

	simMu sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, e *engine.Engine, sm *state.Manager, pool *montecarlo.Pool,
	n Notifier, rec recorder.Recorder, input InputLoader) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   e,
		State:    sm,
		Pool:     pool,
		Notifier: n,
		Recorder: rec,
		Input:    input,
		Ctx:      ctx,
		Now:      time.Now,
	}
}

// RegisterAll registers the yearly decision and the simulation tasks.
func (s *Scheduler) RegisterAll(decisionCron, simulationCron string) error {
	if _, err := s.Cron.AddFunc(decisionCron, s.decisionTask); err != nil {
		return fmt.Errorf("register decision task: %w", err)
	}
	if simulationCron != "" {
		if _, err := s.Cron.AddFunc(simulationCron, s.simulationTask); err != nil {
			return fmt.Errorf("register simulation task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunDecisionNow executes the decision task immediately (RUN_ON_START).
func (s *Scheduler) RunDecisionNow() {
	s.decisionTask()
}

// Decide computes this year's decision. When commit is set the carried
// state and the recorder are updated.
func (s *Scheduler) Decide(commit bool) (int, engine.Result, error) {
	year := s.Now().Year()
	raw, err := s.Input()
	if err != nil {
		return year, engine.Result{}, err
	}
	in, prior := s.State.Prepare(raw)
	res, err := s.Engine.SimulateSingleYear(in, prior)
	if err != nil {
		return year, engine.Result{}, err
	}
	if !commit {
		return year, res, nil
	}
	if err := s.State.Record(year, in, res); err != nil {
		return year, res, err
	}
	if err := s.Recorder.RecordDecision(recorder.NewDecision(year, res)); err != nil {
		log.Printf("[ERROR] record decision: %v", err)
	}
	return year, res, nil
}

// Simulate runs the Monte Carlo harness on the prepared household input and
// records the run. Concurrent calls are serialized.
func (s *Scheduler) Simulate(ctx context.Context) (*montecarlo.Summary, time.Duration, error) {
	s.simMu.Lock()
	defer s.simMu.Unlock()

	raw, err := s.Input()
	if err != nil {
		return nil, 0, err
	}
	in, _ := s.State.Prepare(raw)
	started := s.Now()
	sum, err := s.Pool.Run(ctx, in)
	if err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(started)
	if err := s.Recorder.RecordSimulation(recorder.NewSimulationRun(sum, started, elapsed)); err != nil {
		log.Printf("[ERROR] record simulation: %v", err)
	}
	return sum, elapsed, nil
}

func (s *Scheduler) decisionTask() {
	log.Println("[INFO] running yearly decision")
	year, res, err := s.Decide(true)
	if errors.Is(err, state.ErrAlreadyDecided) {
		log.Printf("[WARN] decision for %d already recorded, skipping", year)
		return
	}
	if err != nil {
		log.Printf("[ERROR] yearly decision: %v", err)
		s.trySend(fmt.Sprintf("❌ Yearly decision failed: %v", err))
		return
	}
	s.trySend(notifier.FormatDecision(year, res))
}

func (s *Scheduler) simulationTask() {
	if s.Pool == nil {
		return
	}
	log.Println("[INFO] running simulation")
	sum, elapsed, err := s.Simulate(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] simulation: %v", err)
		return
	}
	log.Printf("[INFO] simulation done: %d runs, success %.1f%% in %v", sum.Runs, sum.SuccessRatePct, elapsed)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/decide":
		year, res, err := s.Decide(true)
		if errors.Is(err, state.ErrAlreadyDecided) {
			return fmt.Sprintf("Decision for %d is already recorded. Use /preview.", year)
		}
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatDecision(year, res)
	case "/preview":
		year, res, err := s.Decide(false)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatDecision(year, res)
	case "/status":
		h := s.State.Get()
		return notifier.FormatHouseholdStatus(&h)
	case "/history":
		ds, err := s.Recorder.RecentDecisions(10)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatHistory(ds)
	case "/simulate":
		if s.Pool == nil {
			return "Simulation is not configured."
		}
		sum, elapsed, err := s.Simulate(ctx)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatSimulationSummary(sum, elapsed)
	default:
		return "Commands:\n• /preview\n• /decide\n• /status\n• /history\n• /simulate"
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
