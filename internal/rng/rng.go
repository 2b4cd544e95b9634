// Package rng provides the kernel's single seeded pseudo-random source.
// Every stochastic decision in the kernel (visitation shuffles, acceptance
// coin-flips, audit sampling, deceptive-agent trust thresholds) draws from
// one RNG instance in a fixed visitation order.
//
// The underlying generator is gonum's MT19937 wrapped as a math/rand
// Source64: Mersenne Twister gives long period, good statistical quality,
// and the same bit sequence for a given seed across platforms and Go
// versions, which math/rand's default source does not guarantee to
// preserve indefinitely.
package rng

import (
	"math/rand"

	"gonum.org/v1/gonum/mathext/prng"
)

// mt19937Source adapts gonum's MT19937 to rand.Source64.
type mt19937Source struct {
	mt *prng.MT19937
}

func newMT19937Source(seed int64) *mt19937Source {
	s := &mt19937Source{mt: prng.NewMT19937()}
	s.Seed(seed)
	return s
}

func (s *mt19937Source) Seed(seed int64) {
	s.mt.Seed(uint64(seed))
}

func (s *mt19937Source) Int63() int64 {
	return int64(s.mt.Uint64() >> 1)
}

func (s *mt19937Source) Uint64() uint64 {
	return s.mt.Uint64()
}

// RNG is the kernel's seeded source. It is never copied; it is threaded by
// pointer through the Orchestrator, governance engine, and agent policies.
type RNG struct {
	r     *rand.Rand
	draws uint64
}

// New creates a seeded RNG. The same seed always produces the same sequence
// of draws regardless of call site, which is what makes whole-run replay
// byte-identical.
func New(seed int64) *RNG {
	return &RNG{r: rand.New(newMT19937Source(seed))}
}

// Draws returns the number of stochastic calls made so far. Useful for
// diagnosing determinism regressions: two runs with the same seed must
// report the same Draws() at every corresponding point in the visitation
// order.
func (g *RNG) Draws() uint64 { return g.draws }

// Float64 returns a uniform draw in [0, 1).
func (g *RNG) Float64() float64 {
	g.draws++
	return g.r.Float64()
}

// Bool returns true with probability p (clamped to [0, 1]).
func (g *RNG) Bool(p float64) bool {
	if p <= 0 {
		g.draws++
		_ = g.r.Float64()
		return false
	}
	if p >= 1 {
		g.draws++
		_ = g.r.Float64()
		return true
	}
	return g.Float64() < p
}

// IntnInclusive draws a uniform integer in [lo, hi], used for the
// deceptive archetype's trust threshold T ~ Uniform{lo..hi}.
func (g *RNG) IntnInclusive(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	g.draws++
	return lo + g.r.Intn(hi-lo+1)
}

// Shuffle performs an in-place Fisher-Yates shuffle using the kernel RNG,
// used by the `random` visitation mode.
func (g *RNG) Shuffle(n int, swap func(i, j int)) {
	g.draws++
	g.r.Shuffle(n, swap)
}
