// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/neurosim/spikesource/fixp"
)

// SourceSize is the encoded size of one source record, in bytes.
const SourceSize = 24

// SpikeSource is one Poisson point process.  The regime tag selects
// which of the numeric fields is live: ExpMinusLambda in Fast,
// MeanISITicks and TimeToSpikeTicks in Slow.
type SpikeSource struct {
	Start            uint32      `desc:"first tick (inclusive) on which the source may spike"`
	End              uint32      `desc:"first tick on which the source may no longer spike"`
	Regime           Regime      `desc:"which sampler the source uses, from its current rate"`
	ExpMinusLambda   fixp.UFract `viewif:"Regime=Fast" desc:"exp(-rate per tick), the Poisson count draw parameter"`
	MeanISITicks     float32     `viewif:"Regime=Slow" desc:"mean inter-spike interval in ticks -- 0 means permanently silent"`
	TimeToSpikeTicks float32     `viewif:"Regime=Slow" desc:"remaining ticks until the next slow-lane spike"`
}

// Active reports whether the source may spike on the given tick.
func (ss *SpikeSource) Active(tick uint32) bool {
	return tick >= ss.Start && tick < ss.End
}

// SetRate points the source at a new rate in Hz, switching regime at
// the per-tick cutoff.  The slow lane's countdown is left alone: the
// next evaluation rolls a fresh interval when it crosses zero.  Rates
// at or below zero become the silent slow state.  Idempotent.
func (ss *SpikeSource) SetRate(rateHz float32, pp *Params) {
	rTick := rateHz * pp.SecsPerTick
	if rTick > pp.Cutoff {
		ss.Regime = Fast
		ss.ExpMinusLambda = fixp.UFractFromFloat(math32.Exp(-rTick))
		return
	}
	ss.Regime = Slow
	if rateHz <= 0 {
		ss.MeanISITicks = 0
		return
	}
	ss.MeanISITicks = pp.TicksPerSec / rateHz
}

// ReadFrom decodes one source record.  The interval fields travel as
// s16.15 words.
func (ss *SpikeSource) ReadFrom(data []byte) {
	ss.Start = binary.LittleEndian.Uint32(data)
	ss.End = binary.LittleEndian.Uint32(data[4:])
	ss.Regime = Regime(int32(binary.LittleEndian.Uint32(data[8:])))
	ss.ExpMinusLambda = fixp.UBits(binary.LittleEndian.Uint32(data[12:]))
	ss.MeanISITicks = fixp.KBits(binary.LittleEndian.Uint32(data[16:])).Float32()
	ss.TimeToSpikeTicks = fixp.KBits(binary.LittleEndian.Uint32(data[20:])).Float32()
}

// WriteTo encodes one source record.
func (ss *SpikeSource) WriteTo(data []byte) {
	binary.LittleEndian.PutUint32(data, ss.Start)
	binary.LittleEndian.PutUint32(data[4:], ss.End)
	binary.LittleEndian.PutUint32(data[8:], uint32(int32(ss.Regime)))
	binary.LittleEndian.PutUint32(data[12:], ss.ExpMinusLambda.Bits())
	binary.LittleEndian.PutUint32(data[16:], fixp.RealFromFloat(ss.MeanISITicks).Bits())
	binary.LittleEndian.PutUint32(data[20:], fixp.RealFromFloat(ss.TimeToSpikeTicks).Bits())
}
