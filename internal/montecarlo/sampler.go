package montecarlo

import (
	"fmt"
	"math/rand/v2"

	"RetireSentinel/internal/config"
	"RetireSentinel/internal/history"
	"RetireSentinel/internal/model"
)

// sampler yields the market years of one trial. It carries per-trial state
// and must not be shared between trials.
type sampler interface {
	next(r *rand.Rand) int
}

// newSampler builds the sampler for method. The first year drawn is always
// start; the method decides how the following years are picked.
func newSampler(method string, d *history.Dataset, blockSize, start int) (sampler, error) {
	switch method {
	case config.MethodHistorical:
		return &iidSampler{n: len(d.Years), first: start}, nil
	case config.MethodRegimeIID:
		return &regimeSampler{data: d, first: start}, nil
	case config.MethodRegimeMarkov:
		return &regimeSampler{data: d, first: start, markov: true}, nil
	case config.MethodBlock:
		if blockSize <= 0 {
			return nil, fmt.Errorf("block size must be positive, got %d", blockSize)
		}
		return &blockSampler{n: len(d.Years), size: blockSize, start: start}, nil
	default:
		return nil, fmt.Errorf("unknown sampling method %q", method)
	}
}

type iidSampler struct {
	n       int
	first   int
	started bool
}

func (s *iidSampler) next(r *rand.Rand) int {
	if !s.started {
		s.started = true
		return s.first
	}
	return r.IntN(s.n)
}

// regimeSampler draws a regime, then a year from that regime's pool. With
// markov set the regime follows the empirical transition counts.
type regimeSampler struct {
	data    *history.Dataset
	first   int
	markov  bool
	current string
}

func (s *regimeSampler) next(r *rand.Rand) int {
	if s.current == "" {
		s.current = s.data.Years[s.first].Regime
		return s.first
	}
	if s.markov {
		s.current = s.data.Next(s.current, r.Float64())
	} else {
		s.current = history.Regimes[r.IntN(len(history.Regimes))]
	}
	pool := s.data.Pools[s.current]
	if len(pool) == 0 {
		s.current = history.Sideways
		pool = s.data.Pools[s.current]
	}
	if len(pool) == 0 {
		return r.IntN(len(s.data.Years))
	}
	return pool[r.IntN(len(pool))]
}

// blockSampler replays contiguous runs of blockSize years.
type blockSampler struct {
	n      int
	size   int
	start  int
	offset int
}

func (s *blockSampler) next(r *rand.Rand) int {
	if s.offset >= s.size || s.start+s.offset >= s.n {
		s.start = 0
		if span := s.n - s.size; span > 0 {
			s.start = r.IntN(span + 1)
		}
		s.offset = 0
	}
	i := s.start + s.offset
	s.offset++
	if i >= s.n {
		i = s.n - 1
	}
	return i
}

// startIndex picks the first historical year of a trial: CAPE-matched when
// cape sampling is on and a market CAPE is known, uniform otherwise.
func startIndex(r *rand.Rand, d *history.Dataset, capeSampling bool, mkt model.MarketSnapshot) int {
	if capeSampling {
		if cape := mkt.Cape(); cape > 0 {
			c := d.CapeCandidates(cape)
			return c[r.IntN(len(c))]
		}
	}
	return r.IntN(len(d.Years))
}
