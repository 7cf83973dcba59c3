// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package kiss64 implements Marsaglia's 64-bit KISS pseudo-random generator
(the "mars-kiss64" variant: one linear congruential, one 3-shift xorshift,
and one multiply-with-carry sub-generator, summed), plus the derived
variates the spike-source core needs: uniform (0,1), exponential, and the
Poisson event count given a precomputed exp(-lambda).

The generator state is four 32-bit words.  Given the same validated seed,
the output stream is identical on every platform, which is what makes the
whole spike schedule a pure function of seed and parameters.
*/
package kiss64

import (
	"github.com/chewxy/math32"

	"github.com/neurosim/spikesource/fixp"
)

// Seed is the four-word generator state.  Word 0 seeds the congruential
// sub-generator, word 1 the xorshift, and words 2-3 the multiply-with-carry
// pair.
type Seed [4]uint32

// Validate fixes the degenerate seed words in place: the xorshift word must
// be non-zero (forced odd), and the multiply-with-carry word must lie in
// [1, 698769068] to avoid the sticky zero and short-cycle states.
// All entry points that accept a seed call this; it is idempotent.
func (sd *Seed) Validate() {
	sd[1] |= 1
	if sd[2] < 1 || sd[2] > 698769068 {
		sd[2] = sd[2]%698769068 + 1
	}
}

// Rand is a mars-kiss64 random stream.  Not safe for concurrent use; the
// core owns exactly one and only ever draws from the timer path.
type Rand struct {

	// current generator state, advanced by every draw
	State Seed
}

// New returns a generator seeded with the given (validated) seed.
func New(sd Seed) *Rand {
	sd.Validate()
	return &Rand{State: sd}
}

// Uint32 advances all three sub-generators and returns their sum.
func (rn *Rand) Uint32() uint32 {
	s := &rn.State
	s[0] = 314527869*s[0] + 1234567
	s[1] ^= s[1] << 5
	s[1] ^= s[1] >> 7
	s[1] ^= s[1] << 22
	t := 4294584393*uint64(s[2]) + uint64(s[3])
	s[3] = uint32(t >> 32)
	s[2] = uint32(t)
	return s[0] + s[1] + s[2]
}

// Float32 returns a uniform variate strictly inside (0,1).  The top 23
// bits of the draw plus a half-step offset keep both 0 and 1 out of the
// range and make every value exactly representable, so a following log
// is always defined and non-zero.
func (rn *Rand) Float32() float32 {
	return (float32(rn.Uint32()>>9) + 0.5) / (1 << 23)
}

// ExpVar returns an exponential variate -ln(U) with unit mean, truncated
// at the maximum value representable in the s16.15 wire format so that a
// persisted inter-spike interval always survives the round trip.
func (rn *Rand) ExpVar() float32 {
	v := -math32.Log(rn.Float32())
	if max := fixp.MaxReal.Float32(); v > max {
		return max
	}
	return v
}

// PoissonCount returns an event count distributed Poisson(lambda), given
// p = exp(-lambda), by the product-of-uniforms method: multiply uniform
// draws until the running product falls below p.  p == 0 returns 0 -- a
// rate too high for the fractional wire format is clamped to silence
// rather than saturated (see fixp.UFractFromFloat).
func (rn *Rand) PoissonCount(expMinusLambda float32) uint32 {
	if expMinusLambda == 0 {
		return 0
	}
	cnt := uint32(0)
	prod := rn.Float32()
	for prod > expMinusLambda {
		cnt++
		prod *= rn.Float32()
	}
	return cnt
}
