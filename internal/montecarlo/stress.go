package montecarlo

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sort"

	"RetireSentinel/internal/history"
	"RetireSentinel/internal/model"
)

// Stress kinds.
const (
	StressNone                 = "none"
	StressConditionalBootstrap = "conditional_bootstrap"
	StressParametric           = "parametric"
	StressParametricSequence   = "parametric_sequence"
)

// histMeanReturn is the centre the equity volatility scaling stretches around.
const histMeanReturn = 0.08

// Filter selects historical years for a conditional bootstrap. A nil bound
// does not filter.
type Filter struct {
	YearMin       *int
	YearMax       *int
	InflationMin  *float64
	EquityRealMax *float64 // real equity return in percent
	// MinCluster is accepted for completeness; years are drawn one by one.
	MinCluster int
}

// Preset describes a stress scenario applied to the first Years of a trial.
type Preset struct {
	Key   string
	Label string
	Kind  string
	Years int

	Filter Filter

	MuShiftEq      float64
	VolScaleEq     float64
	MuShiftAu      float64
	InflationFloor float64
	ReturnMaxEq    *float64
	ReturnMaxAu    *float64

	Sequence       []float64
	NoiseVol       float64
	InflationFixed *float64
	ReboundYears   int
	ReboundCap     float64
}

func ptr[T any](v T) *T { return &v }

// Presets are the built-in stress scenarios.
var Presets = map[string]Preset{
	"NONE": {Key: "NONE", Label: "No stress", Kind: StressNone},
	"STAGFLATION_70s": {
		Key:    "STAGFLATION_70s",
		Label:  "Stagflation (1970s-like)",
		Kind:   StressConditionalBootstrap,
		Years:  7,
		Filter: Filter{InflationMin: ptr(7.0), EquityRealMax: ptr(-2.0)},
	},
	"DOUBLE_BEAR_00s": {
		Key:    "DOUBLE_BEAR_00s",
		Label:  "Double bear (dotcom/GFC-like)",
		Kind:   StressConditionalBootstrap,
		Years:  6,
		Filter: Filter{EquityRealMax: ptr(-8.0), MinCluster: 2},
	},
	"INFLATION_SPIKE_3Y": {
		Key:            "INFLATION_SPIKE_3Y",
		Label:          "Inflation shock (3 years)",
		Kind:           StressParametric,
		Years:          3,
		MuShiftEq:      -0.05,
		VolScaleEq:     1.5,
		InflationFloor: 7,
	},
	"FORCED_DRAWDOWN_3Y": {
		Key:          "FORCED_DRAWDOWN_3Y",
		Label:        "Forced drawdown (3 years)",
		Kind:         StressParametricSequence,
		Years:        3,
		Sequence:     []float64{-0.25, -0.20, -0.15},
		NoiseVol:     0.04,
		ReboundYears: 2,
		ReboundCap:   0.05,
	},
}

// PresetKeys lists the preset keys in a stable order.
func PresetKeys() []string {
	keys := make([]string, 0, len(Presets))
	for k := range Presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LookupPreset resolves a preset key; the empty key means no stress.
func LookupPreset(key string) (Preset, error) {
	if key == "" {
		key = "NONE"
	}
	p, ok := Presets[key]
	if !ok {
		return Preset{}, fmt.Errorf("unknown stress preset %q", key)
	}
	return p, nil
}

// stressPlan is the read-only part of a scenario shared by all trials.
type stressPlan struct {
	preset   Preset
	pickable []int
}

// newStressPlan prepares a preset against a dataset. It returns nil when the
// preset applies no stress, including a bootstrap whose filter matches no year.
func newStressPlan(p Preset, d *history.Dataset) *stressPlan {
	if p.Kind == StressNone || p.Kind == "" || p.Years <= 0 {
		return nil
	}
	plan := &stressPlan{preset: p}
	if p.Kind == StressConditionalBootstrap {
		for i, y := range d.Years {
			if p.Filter.match(y) {
				plan.pickable = append(plan.pickable, i)
			}
		}
		if len(plan.pickable) == 0 {
			log.Printf("[WARN] stress preset %s matches no historical year, running without stress", p.Key)
			return nil
		}
	}
	return plan
}

func (f Filter) match(y model.YearReturns) bool {
	if f.YearMin != nil && y.Year < *f.YearMin {
		return false
	}
	if f.YearMax != nil && y.Year > *f.YearMax {
		return false
	}
	if f.InflationMin != nil && y.Inflation < *f.InflationMin {
		return false
	}
	if f.EquityRealMax != nil && y.EquityReturn*100-y.Inflation > *f.EquityRealMax {
		return false
	}
	return true
}

// stressState is one trial's progress through a scenario.
type stressState struct {
	plan      *stressPlan
	remaining int
	rebound   int
}

func (p *stressPlan) start() *stressState {
	if p == nil {
		return nil
	}
	return &stressState{plan: p, remaining: p.preset.Years, rebound: p.preset.ReboundYears}
}

// years is the length of the stress window, 0 without stress.
func (s *stressState) years() int {
	if s == nil {
		return 0
	}
	return s.plan.preset.Years
}

// pick overrides the sampler during a conditional bootstrap window.
func (s *stressState) pick(r *rand.Rand) (int, bool) {
	if s == nil || s.remaining <= 0 || s.plan.preset.Kind != StressConditionalBootstrap {
		return 0, false
	}
	pool := s.plan.pickable
	return pool[r.IntN(len(pool))], true
}

// apply shifts a sampled year while the window lasts and clamps rebounds
// after a sequence ends.
func (s *stressState) apply(yr model.YearReturns, r *rand.Rand) model.YearReturns {
	if s == nil {
		return yr
	}
	p := s.plan.preset
	if s.remaining <= 0 {
		if s.rebound > 0 && p.Kind == StressParametricSequence {
			yr.EquityReturn = math.Min(yr.EquityReturn, p.ReboundCap)
			s.rebound--
		}
		return yr
	}

	if p.Kind == StressParametricSequence {
		i := p.Years - s.remaining
		base := 0.0
		if i < len(p.Sequence) {
			base = p.Sequence[i]
		}
		yr.EquityReturn = base + (r.Float64()*2-1)*p.NoiseVol
		if p.InflationFixed != nil {
			yr.Inflation = *p.InflationFixed
		}
		s.remaining--
		return yr
	}

	if p.VolScaleEq != 0 {
		yr.EquityReturn = histMeanReturn + (yr.EquityReturn-histMeanReturn)*p.VolScaleEq
	}
	yr.EquityReturn += p.MuShiftEq
	yr.GoldReturn += p.MuShiftAu
	if p.ReturnMaxAu != nil {
		yr.GoldReturn = math.Min(yr.GoldReturn, *p.ReturnMaxAu)
	}
	if p.ReturnMaxEq != nil {
		yr.EquityReturn = math.Min(yr.EquityReturn, *p.ReturnMaxEq)
	}
	if p.InflationFloor > 0 {
		yr.Inflation = math.Max(yr.Inflation, p.InflationFloor)
	}
	s.remaining--
	return yr
}
