// Package state persists the household's carried decision state between
// yearly runs.
package state

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"RetireSentinel/internal/engine"
	"RetireSentinel/internal/model"
)

// ErrAlreadyDecided is returned when a year has already been recorded.
var ErrAlreadyDecided = errors.New("state: year already decided")

// Manager guards the household state file.
type Manager struct {
	mu       sync.Mutex
	state    *Household
	filePath string
}

// NewManager creates a Manager, loading or initializing state from disk.
// A fresh state takes its base floor and flex from h.
func NewManager(filePath string, h model.Household) (*Manager, error) {
	st, err := LoadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if st.BaseFloor == 0 && st.BaseFlex == 0 {
		st.BaseFloor = h.Floor
		st.BaseFlex = h.Flex
	}

	m := &Manager{state: st, filePath: filePath}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns a copy of the current state.
func (m *Manager) Get() Household {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Prepare applies the carried state to a decision input: floor and flex are
// the base amounts in today's money and the loss carry comes from the state
// unless the input sets one. It returns the prior spending state.
func (m *Manager) Prepare(in engine.Input) (engine.Input, *model.SpendingState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	factor := m.state.InflationFactor()
	in.Household.Floor = m.state.BaseFloor * factor
	in.Household.Flex = m.state.BaseFlex * factor
	if in.Tax.LossCarry == 0 {
		in.Tax = m.state.Tax
	}
	var prior *model.SpendingState
	if m.state.Spending != nil {
		s := *m.state.Spending
		prior = &s
	}
	return in, prior
}

// Record stores the outcome of the decision for year and advances the
// price level by the year's inflation.
func (m *Manager) Record(year int, in engine.Input, res engine.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.LastDecisionYear != 0 && year <= m.state.LastDecisionYear {
		return fmt.Errorf("%w: %d", ErrAlreadyDecided, year)
	}

	next := res.NewState
	factor := next.CumulativeInflationFactor
	if factor <= 0 {
		factor = 1
	}
	if grown := factor * (1 + in.Market.Inflation/100); grown > 0 {
		factor = grown
	}
	next.CumulativeInflationFactor = factor
	m.state.Spending = &next
	m.state.LastDecisionYear = year

	ui := res.UI
	m.state.History = append(m.state.History, Entry{
		Year:        year,
		Regime:      ui.Market.Key,
		Withdrawal:  ui.Spending.AnnualWithdrawal,
		FlexRate:    ui.Spending.FlexRate,
		Action:      ui.Action.Title,
		AlarmActive: next.AlarmActive,
	})
	if len(m.state.History) > maxHistory {
		m.state.History = m.state.History[len(m.state.History)-maxHistory:]
	}

	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save household state: %v", err)
		return err
	}
	return nil
}

// SetLossCarry stores the loss carry reported by the year-end tax statement.
func (m *Manager) SetLossCarry(v float64) error {
	if v < 0 {
		return fmt.Errorf("loss carry must not be negative, got %.2f", v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Tax.LossCarry = v
	if err := m.save(); err != nil {
		log.Printf("[ERROR] failed to save household state after tax update: %v", err)
		return err
	}
	return nil
}

// Reset starts over from h, dropping all carried state.
func (m *Manager) Reset(h model.Household) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = &Household{BaseFloor: h.Floor, BaseFlex: h.Flex}
	return m.save()
}

func (m *Manager) save() error {
	return SaveState(m.filePath, m.state)
}

func (h *Household) clone() Household {
	c := *h
	if h.Spending != nil {
		s := *h.Spending
		c.Spending = &s
	}
	c.History = append([]Entry(nil), h.History...)
	return c
}
