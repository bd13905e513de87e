// Package montecarlo runs many stochastic lifetimes of a household through
// the yearly engine and aggregates their outcomes.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/history"
)

// ErrClosed is returned by a pool after Close.
var ErrClosed = errors.New("montecarlo: pool closed")

// MessageType tags a pool message.
type MessageType string

// Message types.
const (
	MessageReady    MessageType = "ready"
	MessageProgress MessageType = "progress"
	MessageResult   MessageType = "result"
	MessageError    MessageType = "error"
)

// Message reports pool progress to the caller.
type Message struct {
	Type    MessageType
	Combo   int
	Done    int
	Total   int
	Summary *Summary
	Sweep   []SweepResult
	Err     error
}

// Pool runs trials on a bounded set of goroutines. It is safe for
// concurrent use; the notify callback is never called concurrently.
type Pool struct {
	engine *engine.Engine
	data   *history.Dataset
	cfg    config.Simulation
	stress *stressPlan
	year   int

	notifyMu sync.Mutex
	notify   func(Message)

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewPool validates cfg, prepares the stress scenario and emits a ready
// message. notify may be nil.
func NewPool(e *engine.Engine, d *history.Dataset, cfg config.Simulation, notify func(Message)) (*Pool, error) {
	if e == nil || d == nil {
		return nil, errors.New("montecarlo: engine and dataset are required")
	}
	if len(d.Years) == 0 {
		return nil, errors.New("montecarlo: empty dataset")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	preset, err := LookupPreset(cfg.StressPreset)
	if err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 250
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		engine: e,
		data:   d,
		cfg:    cfg,
		stress: newStressPlan(preset, d),
		year:   time.Now().Year(),
		notify: notify,
		ctx:    ctx,
		cancel: cancel,
	}
	p.emit(Message{Type: MessageReady})
	return p, nil
}

// Config returns the effective harness settings.
func (p *Pool) Config() config.Simulation { return p.cfg }

// Close cancels running jobs and rejects new ones.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	return nil
}

// Run simulates cfg.Runs trials for in and aggregates them.
func (p *Pool) Run(ctx context.Context, in engine.Input) (*Summary, error) {
	trials, err := p.runCombo(ctx, in, 0, 0, p.cfg.Runs)
	if err != nil {
		p.emit(Message{Type: MessageError, Err: err})
		return nil, err
	}
	s := p.summarize(trials)
	p.emit(Message{Type: MessageResult, Summary: &s})
	return &s, nil
}

// RunRange simulates trials first..first+count-1 of a combo. Trials of the
// same combo and index are identical however the range is split.
func (p *Pool) RunRange(ctx context.Context, in engine.Input, combo, first, count int) ([]Trial, error) {
	return p.runCombo(ctx, in, combo, first, count)
}

func (p *Pool) summarize(trials []Trial) Summary {
	s := Aggregate(trials)
	s.Method = p.cfg.Method
	s.Seed = p.cfg.Seed
	s.StressPreset = p.cfg.StressPreset
	if p.stress != nil {
		s.Stress.Preset = p.stress.preset.Key
		s.Stress.Years = p.stress.preset.Years
	}
	return s
}

func (p *Pool) runCombo(ctx context.Context, in engine.Input, combo, first, count int) ([]Trial, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if count <= 0 {
		return nil, nil
	}
	if err := p.engine.Validate(in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()
	if p.cfg.TimeoutSeconds > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSeconds)*time.Second)
		defer cancelTimeout()
	}

	trials := make([]Trial, count)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for lo := 0; lo < count; lo += p.cfg.ChunkSize {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+p.cfg.ChunkSize, count)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				t, err := p.trial(in, combo, first+i)
				if err != nil {
					return fmt.Errorf("trial %d: %w", first+i, err)
				}
				trials[i] = t
			}
			n := done.Add(int64(hi - lo))
			p.emit(Message{Type: MessageProgress, Combo: combo, Done: int(n), Total: count})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		log.Printf("[WARN] simulation stopped after %d of %d trials: %v", done.Load(), count, err)
		return nil, err
	}
	return trials, nil
}

func (p *Pool) emit(m Message) {
	if p.notify == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.notify(m)
}
