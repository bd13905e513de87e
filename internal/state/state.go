package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"RetireSentinel/internal/model"
)

// maxHistory bounds the decision log kept in the state file.
const maxHistory = 30

// Entry is one recorded yearly decision.
type Entry struct {
	Year        int             `json:"year"`
	Regime      model.RegimeKey `json:"regime"`
	Withdrawal  float64         `json:"withdrawal"`
	FlexRate    float64         `json:"flex_rate"`
	Action      string          `json:"action"`
	AlarmActive bool            `json:"alarm_active"`
}

// Household is what survives between two yearly decisions.
type Household struct {
	// BaseFloor and BaseFlex are the spending needs in first-year money.
	BaseFloor float64 `json:"base_floor"`
	BaseFlex  float64 `json:"base_flex"`

	Spending *model.SpendingState `json:"spending,omitempty"`
	Tax      model.TaxState       `json:"tax"`

	LastDecisionYear int       `json:"last_decision_year"`
	History          []Entry   `json:"history"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// InflationFactor is the price level since the first decision.
func (h Household) InflationFactor() float64 {
	if h.Spending == nil || h.Spending.CumulativeInflationFactor <= 0 {
		return 1
	}
	return h.Spending.CumulativeInflationFactor
}

// LoadState reads the household state from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*Household, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Household{}, nil
		}
		return nil, err
	}
	var st Household
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState writes the household state to a JSON file.
func SaveState(filePath string, st *Household) error {
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(filePath, data, 0644)
}
