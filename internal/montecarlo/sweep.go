package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"RetireSentinel/internal/calculator"
	"RetireSentinel/internal/engine"
)

// Combo overrides household parameters for one sweep case. Nil fields keep
// the base input's value.
type Combo struct {
	RunwayMin        *float64 `yaml:"runway_min" json:"runway_min,omitempty"`
	RunwayTarget     *float64 `yaml:"runway_target" json:"runway_target,omitempty"`
	TargetEq         *float64 `yaml:"target_eq" json:"target_eq,omitempty"`
	RebalBand        *float64 `yaml:"rebal_band" json:"rebal_band,omitempty"`
	MaxSkimPct       *float64 `yaml:"max_skim_pct" json:"max_skim_pct,omitempty"`
	MaxBearRefillPct *float64 `yaml:"max_bear_refill_pct" json:"max_bear_refill_pct,omitempty"`
	GoldTargetPct    *float64 `yaml:"gold_target_pct" json:"gold_target_pct,omitempty"`
	HorizonYears     *float64 `yaml:"horizon_years" json:"horizon_years,omitempty"`
	SurvivalQuantile *float64 `yaml:"survival_quantile" json:"survival_quantile,omitempty"`
	GoGoMultiplier   *float64 `yaml:"go_go_multiplier" json:"go_go_multiplier,omitempty"`
}

// Apply returns in with the combo's overrides.
func (c Combo) Apply(in engine.Input) engine.Input {
	h := &in.Household
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&h.RunwayMinMonths, c.RunwayMin)
	set(&h.RunwayTargetMonths, c.RunwayTarget)
	set(&h.TargetEquityPct, c.TargetEq)
	set(&h.RebalBandPct, c.RebalBand)
	set(&h.MaxSkimPctOfEq, c.MaxSkimPct)
	set(&h.MaxBearRefillPctOfEq, c.MaxBearRefillPct)
	if c.GoldTargetPct != nil {
		h.GoldTargetPct = *c.GoldTargetPct
		h.GoldActive = *c.GoldTargetPct > 0
	}
	set(&h.DynamicFlex.HorizonYears, c.HorizonYears)
	set(&h.DynamicFlex.SurvivalQuantile, c.SurvivalQuantile)
	set(&h.DynamicFlex.GoGoMultiplier, c.GoGoMultiplier)
	return in
}

// Grid is a parameter sweep: every combination of the listed values.
type Grid struct {
	RunwayMin        []float64 `yaml:"runway_min"`
	RunwayTarget     []float64 `yaml:"runway_target"`
	TargetEq         []float64 `yaml:"target_eq"`
	RebalBand        []float64 `yaml:"rebal_band"`
	MaxSkimPct       []float64 `yaml:"max_skim_pct"`
	MaxBearRefillPct []float64 `yaml:"max_bear_refill_pct"`
	GoldTargetPct    []float64 `yaml:"gold_target_pct"`
	HorizonYears     []float64 `yaml:"horizon_years"`
	SurvivalQuantile []float64 `yaml:"survival_quantile"`
	GoGoMultiplier   []float64 `yaml:"go_go_multiplier"`
}

// Combos expands the grid in a stable order. An empty grid yields a single
// combo without overrides.
func (g Grid) Combos() []Combo {
	combos := []Combo{{}}
	axis := func(values []float64, field func(*Combo) **float64) {
		if len(values) == 0 {
			return
		}
		next := make([]Combo, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				cc := c
				*field(&cc) = &v
				next = append(next, cc)
			}
		}
		combos = next
	}
	axis(g.RunwayMin, func(c *Combo) **float64 { return &c.RunwayMin })
	axis(g.RunwayTarget, func(c *Combo) **float64 { return &c.RunwayTarget })
	axis(g.TargetEq, func(c *Combo) **float64 { return &c.TargetEq })
	axis(g.RebalBand, func(c *Combo) **float64 { return &c.RebalBand })
	axis(g.MaxSkimPct, func(c *Combo) **float64 { return &c.MaxSkimPct })
	axis(g.MaxBearRefillPct, func(c *Combo) **float64 { return &c.MaxBearRefillPct })
	axis(g.GoldTargetPct, func(c *Combo) **float64 { return &c.GoldTargetPct })
	axis(g.HorizonYears, func(c *Combo) **float64 { return &c.HorizonYears })
	axis(g.SurvivalQuantile, func(c *Combo) **float64 { return &c.SurvivalQuantile })
	axis(g.GoGoMultiplier, func(c *Combo) **float64 { return &c.GoGoMultiplier })
	return combos
}

// SweepMetrics summarises one combo.
type SweepMetrics struct {
	SuccessProbFloor  float64 `json:"success_prob_floor"`
	P10EndWealth      float64 `json:"p10_end_wealth"`
	P25EndWealth      float64 `json:"p25_end_wealth"`
	MedianEndWealth   float64 `json:"median_end_wealth"`
	P75EndWealth      float64 `json:"p75_end_wealth"`
	MeanEndWealth     float64 `json:"mean_end_wealth"`
	MaxEndWealth      float64 `json:"max_end_wealth"`
	Worst5Drawdown    float64 `json:"worst5_drawdown"`
	MinRunwayObserved float64 `json:"min_runway_observed"`
}

// SweepResult is one combo's outcome. Invalid combos are reported, not run.
type SweepResult struct {
	ComboIndex    int          `json:"combo_index"`
	Combo         Combo        `json:"combo"`
	Metrics       SweepMetrics `json:"metrics"`
	Invalid       bool         `json:"invalid,omitempty"`
	InvalidReason string       `json:"invalid_reason,omitempty"`
}

// SweepMetricsOf reduces trials to sweep metrics.
func SweepMetricsOf(trials []Trial) SweepMetrics {
	if len(trials) == 0 {
		return SweepMetrics{}
	}
	var ok int
	ends := make([]float64, 0, len(trials))
	dds := make([]float64, 0, len(trials))
	minRunway := math.Inf(1)
	for _, t := range trials {
		if !t.Failed {
			ok++
		}
		ends = append(ends, t.FinalWealth)
		dds = append(dds, t.MaxDrawdown)
		minRunway = math.Min(minRunway, t.MinCoverage)
	}
	q := calculator.QuantileOr
	mean, _ := calculator.Mean(ends)
	m := SweepMetrics{
		SuccessProbFloor:  float64(ok) / float64(len(trials)) * 100,
		P10EndWealth:      q(ends, 0.1, 0),
		P25EndWealth:      q(ends, 0.25, 0),
		MedianEndWealth:   q(ends, 0.5, 0),
		P75EndWealth:      q(ends, 0.75, 0),
		MeanEndWealth:     mean,
		MaxEndWealth:      q(ends, 1, 0),
		Worst5Drawdown:    q(dds, 0.95, 0),
		MinRunwayObserved: minRunway,
	}
	return m
}

// Sweep runs cfg.Runs trials for every combo. Combo i seeds its trials with
// combo index i, so a combo's result does not depend on the other combos.
func (p *Pool) Sweep(ctx context.Context, base engine.Input, combos []Combo) ([]SweepResult, error) {
	results := make([]SweepResult, 0, len(combos))
	for i, c := range combos {
		res := SweepResult{ComboIndex: i, Combo: c}
		in := c.Apply(base)
		if err := p.engine.Validate(in); err != nil {
			var ve *engine.ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			res.Invalid = true
			res.InvalidReason = ve.Error()
			results = append(results, res)
			continue
		}
		trials, err := p.runCombo(ctx, in, i, 0, p.cfg.Runs)
		if err != nil {
			p.emit(Message{Type: MessageError, Combo: i, Err: err})
			return nil, err
		}
		res.Metrics = SweepMetricsOf(trials)
		results = append(results, res)
	}
	p.emit(Message{Type: MessageResult, Sweep: results})
	return results, nil
}

// LoadGrid reads a sweep grid from a YAML file.
func LoadGrid(path string) (Grid, error) {
	var g Grid
	data, err := os.ReadFile(path)
	if err != nil {
		return g, fmt.Errorf("read sweep grid: %w", err)
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("parse sweep grid: %w", err)
	}
	return g, nil
}
