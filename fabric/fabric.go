// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package fabric is the spike-source core's view of the on-chip packet
fabric: a non-blocking Sender for keyed spike packets, a down-counting
Clock for pacing, and a Throttle that spaces sends a fixed number of
clock ticks apart so a tick's burst does not swamp the routers.

The package also defines the two rate-update framings that arrive over
the fabric: single multicast packets carrying one (key, rate) pair, and
host command payloads carrying a counted list of (id, rate) pairs.
*/
package fabric

import (
	"encoding/binary"
	"fmt"

	"github.com/neurosim/spikesource/fixp"
)

// Sender transmits one keyed packet without payload.  TrySend returns
// false when the outbound queue is full; the caller decides whether and
// how to retry.
type Sender interface {
	TrySend(key uint32) bool
}

// Clock is a free-running down-counting timer, matching the hardware
// timer the throttle paces against.  Count decreases as time passes.
type Clock interface {

	// Count returns the current timer value.
	Count() uint32

	// DelayUS busy-waits for the given number of microseconds.
	DelayUS(us uint32)
}

// Throttle spaces packet sends at least GapTicks clock ticks apart and
// retries congested sends until they are accepted.  One throttle is
// owned per core; it is not safe for concurrent use.
type Throttle struct {

	// Clock is the pacing timebase.
	Clock Clock

	// Sender transmits the packets.
	Sender Sender

	// GapTicks is the minimum clock-tick spacing between sends.
	GapTicks uint32

	// expected is the clock count at or below which the next send may go.
	expected uint32
}

// NewThrottle returns a throttle pacing sends gapTicks apart on the
// given clock and sender.
func NewThrottle(ck Clock, sd Sender, gapTicks uint32) *Throttle {
	return &Throttle{Clock: ck, Sender: sd, GapTicks: gapTicks}
}

// Start arms the throttle at the top of a timer tick: the first send of
// the tick is due one gap from now.
func (th *Throttle) Start() {
	th.expected = th.Clock.Count() - th.GapTicks
}

// Send waits until the pacing deadline has passed, advances the
// deadline by one gap, and transmits the key, retrying a congested
// fabric after a 1 microsecond delay until the packet is accepted.
func (th *Throttle) Send(key uint32) {
	for th.Clock.Count() > th.expected {
	}
	th.expected -= th.GapTicks
	for !th.Sender.TrySend(key) {
		th.Clock.DelayUS(1)
	}
}

// VirtualClock is a deterministic down-counting Clock for hosted runs
// and tests: every Count call costs one tick, and DelayUS costs
// TicksPerUS ticks per microsecond.
type VirtualClock struct {

	// Now is the current count, decremented by observation and delay.
	Now uint32

	// TicksPerUS is the clock rate, ticks per microsecond.
	TicksPerUS uint32
}

// NewVirtualClock returns a virtual clock starting at start and running
// at ticksPerUS ticks per microsecond.
func NewVirtualClock(start, ticksPerUS uint32) *VirtualClock {
	return &VirtualClock{Now: start, TicksPerUS: ticksPerUS}
}

// Count returns the current value and advances time by one tick.
func (vc *VirtualClock) Count() uint32 {
	vc.Now--
	return vc.Now
}

// DelayUS advances time by us microseconds.
func (vc *VirtualClock) DelayUS(us uint32) {
	vc.Now -= us * vc.TicksPerUS
}

// SendRecord is one accepted packet as seen by MemFabric: the key and
// the clock count at acceptance.
type SendRecord struct {
	Key   uint32
	Count uint32
}

// MemFabric is an in-memory Sender that records accepted packets in
// order.  Setting Congest makes it reject that many attempts before
// each acceptance, exercising the retry path.
type MemFabric struct {

	// Sent is every accepted packet in acceptance order.
	Sent []SendRecord

	// Congest is the number of rejections served before each acceptance.
	Congest int

	// Rejected counts rejections served so far.
	Rejected int

	// Clock, when set, stamps SendRecord.Count without costing a tick
	// observation of its own.
	Clock *VirtualClock

	pending int
}

// TrySend implements Sender.
func (mf *MemFabric) TrySend(key uint32) bool {
	if mf.pending < mf.Congest {
		mf.pending++
		mf.Rejected++
		return false
	}
	mf.pending = 0
	rec := SendRecord{Key: key}
	if mf.Clock != nil {
		rec.Count = mf.Clock.Now
	}
	mf.Sent = append(mf.Sent, rec)
	return true
}

// Keys returns the accepted keys in order.
func (mf *MemFabric) Keys() []uint32 {
	ks := make([]uint32, len(mf.Sent))
	for i, rec := range mf.Sent {
		ks[i] = rec.Key
	}
	return ks
}

// RateUpdate is one decoded rate change: the global source id and the
// new rate in Hz.
type RateUpdate struct {
	ID   uint32
	Rate fixp.Real
}

// DecodeMulticastRate decodes a rate-command multicast packet: the key
// ANDed with the rate-update mask yields the global source id, and the
// payload is the new rate as a raw s16.15 word.
func DecodeMulticastRate(key, payload, mask uint32) RateUpdate {
	return RateUpdate{ID: key & mask, Rate: fixp.KBits(payload)}
}

// EncodeMulticastRate builds the (key, payload) pair for a rate command
// addressed with the given base key.
func EncodeMulticastRate(baseKey uint32, up RateUpdate) (key, payload uint32) {
	return baseKey | up.ID, up.Rate.Bits()
}

// DecodeHostRates decodes a host rate-command payload: a little-endian
// item count followed by (id, rate) word pairs.  A payload too short
// for its declared count is rejected whole; no prefix is applied.
func DecodeHostRates(data []byte) ([]RateUpdate, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("fabric: host rate payload %d bytes, need at least 4", len(data))
	}
	n := binary.LittleEndian.Uint32(data)
	need := 4 + 8*int(n)
	if len(data) < need {
		return nil, fmt.Errorf("fabric: host rate payload %d bytes, %d items need %d", len(data), n, need)
	}
	ups := make([]RateUpdate, n)
	off := 4
	for i := range ups {
		ups[i].ID = binary.LittleEndian.Uint32(data[off:])
		ups[i].Rate = fixp.KBits(binary.LittleEndian.Uint32(data[off+4:]))
		off += 8
	}
	return ups, nil
}

// EncodeHostRates builds a host rate-command payload from the updates.
func EncodeHostRates(ups []RateUpdate) []byte {
	out := make([]byte, 4+8*len(ups))
	binary.LittleEndian.PutUint32(out, uint32(len(ups)))
	off := 4
	for _, up := range ups {
		binary.LittleEndian.PutUint32(out[off:], up.ID)
		binary.LittleEndian.PutUint32(out[off+4:], up.Rate.Bits())
		off += 8
	}
	return out
}
