package main

import (
	"context"
	"fmt"
	"log"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/history"
	"RetireSentinel/internal/notifier"
	"RetireSentinel/internal/recorder"
	"RetireSentinel/internal/scheduler"
	"RetireSentinel/internal/state"
)

// app bundles the components shared by all commands.
type app struct {
	cfg      *config.Config
	engine   *engine.Engine
	recorder recorder.Recorder
}

func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	e, err := engine.New(cfg.Engine)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, engine: e, recorder: openRecorder(cfg.Database.SQLitePath)}, nil
}

func openRecorder(path string) recorder.Recorder {
	if path == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
		return recorder.NewNoopRecorder()
	}
	return sr
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Printf("[WARN] close recorder: %v", err)
	}
}

func (a *app) input(path string) (engine.Input, error) {
	if path == "" {
		path = a.cfg.Household.InputFile
	}
	return engine.LoadInput(path)
}

func (a *app) inputLoader(path string) scheduler.InputLoader {
	return func() (engine.Input, error) { return a.input(path) }
}

func (a *app) dataset(ctx context.Context) (*history.Dataset, error) {
	src := history.NewSource(a.cfg.Simulation.HistoryFile, a.cfg.Proxy)
	d, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	log.Printf("[INFO] dataset: %d years from %s", len(d.Years), src.Name())
	return d, nil
}

func (a *app) stateManager(in engine.Input) (*state.Manager, error) {
	sm, err := state.NewManager(a.cfg.State.File, in.Household)
	if err != nil {
		return nil, fmt.Errorf("init household state: %w", err)
	}
	return sm, nil
}

func (a *app) notifier() scheduler.Notifier {
	if !a.cfg.NotifierEnabled() {
		return notifier.LogNotifier{}
	}
	return notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)
}
