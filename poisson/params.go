// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"encoding/binary"
	"fmt"

	"github.com/neurosim/spikesource/fixp"
	"github.com/neurosim/spikesource/kiss64"
)

// ParamsSize is the encoded size of the parameter block at the start of
// the parameter region, in bytes.
const ParamsSize = 56

// Params is the core-wide parameter block, written by the loader and
// re-read on every resume.  The fixed-point fields are the wire truth;
// Update computes the float32 working copies everything downstream uses.
type Params struct {
	HasKey             bool         `desc:"whether spikes are emitted onto the fabric at all -- recording still runs when false"`
	BaseKey            uint32       `desc:"routing key base -- ORed with the local source index to form each spike's multicast key"`
	RateUpdateMask     uint32       `desc:"AND mask extracting the global source id from a rate-command multicast key"`
	RandomBackoffUS    uint32       `desc:"maximum random delay at the start of each tick, microseconds -- desynchronises cores sharing a timer"`
	InterSpikeGapTicks uint32       `desc:"hardware-counter ticks to leave between consecutive spike dispatches"`
	SecondsPerTick     fixp.UFract  `desc:"simulation tick length in seconds, u0.32"`
	TicksPerSecond     fixp.Real    `desc:"reciprocal of SecondsPerTick, s16.15"`
	SlowFastCutoff     fixp.Real    `desc:"per-tick rate above which a source uses the fast lane (at or below it, the slow lane), s16.15"`
	FirstSourceID      uint32       `desc:"global id of this core's source 0"`
	NSources           uint32       `desc:"number of sources owned by this core"`
	Seed               kiss64.Seed  `desc:"four-word random stream seed"`

	SecsPerTick float32 `view:"-" json:"-" xml:"-" desc:"SecondsPerTick as float32"`
	TicksPerSec float32 `view:"-" json:"-" xml:"-" desc:"TicksPerSecond as float32"`
	Cutoff      float32 `view:"-" json:"-" xml:"-" desc:"SlowFastCutoff as float32"`
}

func (pp *Params) Update() {
	pp.SecsPerTick = pp.SecondsPerTick.Float32()
	pp.TicksPerSec = pp.TicksPerSecond.Float32()
	pp.Cutoff = pp.SlowFastCutoff.Float32()
}

func (pp *Params) Defaults() {
	pp.SecondsPerTick = fixp.UFractFromFloat(0.001)
	pp.TicksPerSecond = fixp.RealFromFloat(1000)
	pp.SlowFastCutoff = fixp.RealFromFloat(0.25)
	pp.Seed = kiss64.Seed{123456789, 234567891, 345678912, 456789123}
	pp.Update()
}

// Validate reports the first startup configuration error, if any.
func (pp *Params) Validate() error {
	if pp.NSources == 0 {
		return fmt.Errorf("poisson: parameter block has zero sources")
	}
	if pp.SecondsPerTick == 0 {
		return fmt.Errorf("poisson: seconds-per-tick is zero")
	}
	if pp.TicksPerSecond <= 0 {
		return fmt.Errorf("poisson: ticks-per-second %v is not positive", pp.TicksPerSecond.Float32())
	}
	if pp.SlowFastCutoff <= 0 {
		return fmt.Errorf("poisson: slow/fast cutoff %v is not positive", pp.SlowFastCutoff.Float32())
	}
	return nil
}

// ReadFrom decodes the parameter block from the front of the parameter
// region and recomputes the derived fields.
func (pp *Params) ReadFrom(data []byte) error {
	if len(data) < ParamsSize {
		return fmt.Errorf("poisson: parameter block %d bytes, need %d", len(data), ParamsSize)
	}
	pp.HasKey = binary.LittleEndian.Uint32(data) != 0
	pp.BaseKey = binary.LittleEndian.Uint32(data[4:])
	pp.RateUpdateMask = binary.LittleEndian.Uint32(data[8:])
	pp.RandomBackoffUS = binary.LittleEndian.Uint32(data[12:])
	pp.InterSpikeGapTicks = binary.LittleEndian.Uint32(data[16:])
	pp.SecondsPerTick = fixp.UBits(binary.LittleEndian.Uint32(data[20:]))
	pp.TicksPerSecond = fixp.KBits(binary.LittleEndian.Uint32(data[24:]))
	pp.SlowFastCutoff = fixp.KBits(binary.LittleEndian.Uint32(data[28:]))
	pp.FirstSourceID = binary.LittleEndian.Uint32(data[32:])
	pp.NSources = binary.LittleEndian.Uint32(data[36:])
	for i := range pp.Seed {
		pp.Seed[i] = binary.LittleEndian.Uint32(data[40+4*i:])
	}
	pp.Update()
	return nil
}

// WriteTo encodes the parameter block into the front of the parameter
// region.
func (pp *Params) WriteTo(data []byte) {
	hk := uint32(0)
	if pp.HasKey {
		hk = 1
	}
	binary.LittleEndian.PutUint32(data, hk)
	binary.LittleEndian.PutUint32(data[4:], pp.BaseKey)
	binary.LittleEndian.PutUint32(data[8:], pp.RateUpdateMask)
	binary.LittleEndian.PutUint32(data[12:], pp.RandomBackoffUS)
	binary.LittleEndian.PutUint32(data[16:], pp.InterSpikeGapTicks)
	binary.LittleEndian.PutUint32(data[20:], pp.SecondsPerTick.Bits())
	binary.LittleEndian.PutUint32(data[24:], pp.TicksPerSecond.Bits())
	binary.LittleEndian.PutUint32(data[28:], pp.SlowFastCutoff.Bits())
	binary.LittleEndian.PutUint32(data[32:], pp.FirstSourceID)
	binary.LittleEndian.PutUint32(data[36:], pp.NSources)
	for i, w := range pp.Seed {
		binary.LittleEndian.PutUint32(data[40+4*i:], w)
	}
}
