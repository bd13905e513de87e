package recorder

import "RetireSentinel/internal/montecarlo"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordDecision(_ *Decision) error                       { return nil }
func (n *NoopRecorder) RecordSimulation(_ *SimulationRun) error                { return nil }
func (n *NoopRecorder) RecordSweep(_ string, _ []montecarlo.SweepResult) error { return nil }
func (n *NoopRecorder) RecentDecisions(_ int) ([]Decision, error)              { return nil, nil }
func (n *NoopRecorder) Close() error                                           { return nil }
