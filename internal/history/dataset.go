package history

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"RetireSentinel/internal/model"
)

// Historical regime tags used by the regime samplers.
const (
	Bull        = "BULL"
	Bear        = "BEAR"
	Sideways    = "SIDEWAYS"
	Stagflation = "STAGFLATION"
)

// Regimes lists the sampler regimes in a stable order.
var Regimes = []string{Bull, Bear, Sideways, Stagflation}

//go:embed data/historical.yaml
var embedded []byte

// Record is one calendar year of raw market data. Inflation, Rate, Wage and
// Gold are percentages; MSCI is the year-end index level.
type Record struct {
	Year      int     `yaml:"year"`
	MSCI      float64 `yaml:"msci"`
	Inflation float64 `yaml:"inflation"`
	Rate      float64 `yaml:"rate"`
	Wage      float64 `yaml:"wage"`
	Gold      float64 `yaml:"gold"`
	Cape      float64 `yaml:"cape,omitempty"`
}

type file struct {
	Years []Record `yaml:"years"`
}

// Dataset is the prepared annual history: one entry per year with a return,
// its regime tag, the regime pools and the year-to-year transition counts.
type Dataset struct {
	Years       []model.YearReturns
	Pools       map[string][]int
	Transitions map[string]map[string]int
}

// Default parses the embedded 1969-2024 dataset.
func Default() (*Dataset, error) {
	return Parse(embedded)
}

// LoadFile reads a dataset in the embedded YAML layout from path.
func LoadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML dataset and prepares it.
func Parse(data []byte) (*Dataset, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return Build(f.Years)
}

// Build turns raw records into annual returns. The return of year y is the
// index move from y-1 to y; inflation, rate, wage growth and gold are taken
// from the row of y-1, the macro data known when the year starts.
func Build(records []Record) (*Dataset, error) {
	rows := append([]Record(nil), records...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Year < rows[j].Year })

	ds := &Dataset{
		Pools:       map[string][]int{},
		Transitions: map[string]map[string]int{},
	}
	for _, r := range Regimes {
		ds.Pools[r] = nil
		ds.Transitions[r] = map[string]int{}
	}

	for i := 1; i < len(rows); i++ {
		cur, prev := rows[i], rows[i-1]
		if !finite(cur.MSCI) || !finite(prev.MSCI) {
			continue
		}
		ret := 0.0
		if prev.MSCI > 0 {
			ret = (cur.MSCI - prev.MSCI) / prev.MSCI
		}
		if !finite(ret) {
			ret = 0
		}
		y := model.YearReturns{
			Year:         cur.Year,
			EquityReturn: ret,
			GoldReturn:   orZero(prev.Gold) / 100,
			Inflation:    orZero(prev.Inflation),
			InterestRate: orZero(prev.Rate),
			WageGrowth:   orZero(prev.Wage),
			Cape:         orZero(prev.Cape),
		}
		y.Regime = Classify(y.EquityReturn, y.Inflation)
		ds.Pools[y.Regime] = append(ds.Pools[y.Regime], len(ds.Years))
		ds.Years = append(ds.Years, y)
	}
	if len(ds.Years) == 0 {
		return nil, errors.New("dataset needs at least two consecutive years")
	}

	for i := 1; i < len(ds.Years); i++ {
		ds.Transitions[ds.Years[i-1].Regime][ds.Years[i].Regime]++
	}
	return ds, nil
}

// Classify tags a year by its nominal return (fraction) and inflation (%).
func Classify(ret, inflation float64) string {
	real := ret*100 - inflation
	switch {
	case inflation > 4 && real < 0:
		return Stagflation
	case ret > 0.15:
		return Bull
	case ret < -0.10:
		return Bear
	default:
		return Sideways
	}
}

// Next draws the regime following from with u uniform in [0,1). A regime
// without observed transitions keeps itself.
func (d *Dataset) Next(from string, u float64) string {
	row := d.Transitions[from]
	total := 0
	for _, r := range Regimes {
		total += row[r]
	}
	if total == 0 {
		return from
	}
	x := u * float64(total)
	acc := 0.0
	for _, r := range Regimes {
		acc += float64(row[r])
		if x < acc {
			return r
		}
	}
	return Regimes[len(Regimes)-1]
}

// Index returns the position of year in Years, or -1.
func (d *Dataset) Index(year int) int {
	for i, y := range d.Years {
		if y.Year == year {
			return i
		}
	}
	return -1
}

// CapeCandidates returns the indices of years whose CAPE lies within 20% of
// target, widening to 50% when fewer than five match. Without CAPE data or
// without any match every year is a candidate.
func (d *Dataset) CapeCandidates(target float64) []int {
	all := make([]int, len(d.Years))
	for i := range all {
		all[i] = i
	}
	if !(target > 0) {
		return all
	}
	within := func(tol float64) []int {
		var out []int
		for i, y := range d.Years {
			if y.Cape > 0 && math.Abs(y.Cape-target) <= target*tol {
				out = append(out, i)
			}
		}
		return out
	}
	c := within(0.2)
	if len(c) < 5 {
		c = within(0.5)
	}
	if len(c) == 0 {
		return all
	}
	return c
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func orZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}
