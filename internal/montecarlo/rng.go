package montecarlo

import "math/rand/v2"

// Seed derives the seed of one trial from the base seed, the sweep combo and
// the trial index. Every trial owns its stream, so results do not depend on
// how trials are spread over workers.
func Seed(base int64, combo, trial int) uint64 {
	x := uint64(base)
	x = mix(x ^ 0x9e3779b97f4a7c15*uint64(combo+1))
	x = mix(x ^ 0xc2b2ae3d27d4eb4f*uint64(trial+1))
	return x
}

// newRand returns the generator for one trial.
func newRand(base int64, combo, trial int) *rand.Rand {
	s := Seed(base, combo, trial)
	return rand.New(rand.NewPCG(s, mix(s)))
}

// mix is the splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
