// Package sampler provides seedable uniform and normal draws for the growth
// generators. Each generator owns one Sampler; they are not safe for
// concurrent use.
package sampler

import (
	"math"
	"math/rand/v2"
)

type Sampler struct {
	src *rand.PCG
	rng *rand.Rand
}

func New(seed uint64) *Sampler {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Sampler{src: src, rng: rand.New(src)}
}

// Float64 returns a uniform draw in [0, 1)
func (s *Sampler) Float64() float64 {
	return s.rng.Float64()
}

// Uniform returns a uniform draw in [lo, hi)
func (s *Sampler) Uniform(lo, hi float64) float64 {
	return s.rng.Float64()*(hi-lo) + lo
}

// Gaussian draws from N(mean, stdDev²) with the Box-Muller sine form.
// Both uniforms are taken from (0, 1] so the logarithm stays finite.
func (s *Sampler) Gaussian(mean, stdDev float64) float64 {
	u1 := 1.0 - s.rng.Float64()
	u2 := 1.0 - s.rng.Float64()
	z := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
	return mean + stdDev*z
}

// Clone returns an independent sampler positioned at the same point of the stream
func (s *Sampler) Clone() *Sampler {
	state, err := s.src.MarshalBinary()
	if err != nil {
		panic("sampler: marshal PCG state: " + err.Error())
	}
	src := &rand.PCG{}
	if err := src.UnmarshalBinary(state); err != nil {
		panic("sampler: unmarshal PCG state: " + err.Error())
	}
	return &Sampler{src: src, rng: rand.New(src)}
}
