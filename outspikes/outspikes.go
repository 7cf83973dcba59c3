// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package outspikes buffers the spikes emitted during one timer tick as a
stack of bit planes: bit s of plane k is set when source s spiked at
least k+1 times in the tick.  A single plane is enough for ordinary
rates; fast sources that produce several spikes per tick grow the stack
on demand, and the grown capacity is kept for the rest of the run.

The buffer serializes to a fixed little-endian layout (time, plane
count, then each plane as packed 32-bit words) so the recorded history
is readable without any knowledge of the in-memory representation.
*/
package outspikes

import (
	"encoding/binary"
	"math/bits"

	"github.com/c2h5oh/datasize"
	"github.com/emer/etable/bitslice"
	"github.com/goki/ki/ints"
)

// WordsPerPlane returns the number of packed 32-bit words one bit plane
// occupies on the wire for the given source count.
func WordsPerPlane(nSources int) int {
	return (nSources + 31) / 32
}

// Buffer accumulates one tick's worth of spikes.  Planes beyond NPlanes
// are allocated but empty; Reset clears only the used ones.
type Buffer struct {

	// NSources is the number of sources, fixed at construction.
	NSources int

	// Time is the tick the buffered spikes belong to, stamped by the caller.
	Time uint32

	// NPlanes is the number of planes with at least one bit set this tick.
	NPlanes int

	// Planes is the allocated plane stack, grown by doubling and never shrunk.
	Planes []bitslice.Slice
}

// NewBuffer returns a buffer for nSources sources with a single plane
// allocated, which covers every source that spikes at most once per tick.
func NewBuffer(nSources int) *Buffer {
	bf := &Buffer{NSources: nSources}
	bf.Planes = append(bf.Planes, bitslice.Make(nSources, 0))
	return bf
}

// Mark records that the given source spiked count times this tick,
// setting its bit in planes 0 through count-1.  The plane stack doubles
// until count planes exist, so a burst only pays the allocation once.
// count == 0 is a no-op.
func (bf *Buffer) Mark(source int, count uint32) {
	if count == 0 {
		return
	}
	cnt := int(count)
	for len(bf.Planes) < cnt {
		grow := ints.MaxInt(len(bf.Planes), 1)
		for i := 0; i < grow; i++ {
			bf.Planes = append(bf.Planes, bitslice.Make(bf.NSources, 0))
		}
	}
	bf.NPlanes = ints.MaxInt(bf.NPlanes, cnt)
	for k := 0; k < cnt; k++ {
		bf.Planes[k].Set(source, true)
	}
}

// Reset clears the planes used this tick and rewinds the used count.
// Allocated capacity is retained.
func (bf *Buffer) Reset() {
	for k := 0; k < bf.NPlanes; k++ {
		bf.Planes[k].SetAll(false)
	}
	bf.NPlanes = 0
}

// planeWords packs plane k into little-endian 32-bit words, least
// significant bit of word 0 being source 0.
func (bf *Buffer) planeWords(k int) []uint32 {
	ws := make([]uint32, WordsPerPlane(bf.NSources))
	pl := bf.Planes[k]
	for s := 0; s < bf.NSources; s++ {
		if pl.Index(s) {
			ws[s/32] |= 1 << uint(s%32)
		}
	}
	return ws
}

// Bytes serializes the buffer: time, plane count, then each used plane
// as packed words, all little-endian 32-bit.
func (bf *Buffer) Bytes() []byte {
	nw := WordsPerPlane(bf.NSources)
	out := make([]byte, 8+4*nw*bf.NPlanes)
	binary.LittleEndian.PutUint32(out[0:], bf.Time)
	binary.LittleEndian.PutUint32(out[4:], uint32(bf.NPlanes))
	off := 8
	for k := 0; k < bf.NPlanes; k++ {
		for _, w := range bf.planeWords(k) {
			binary.LittleEndian.PutUint32(out[off:], w)
			off += 4
		}
	}
	return out
}

// LayerSpikes returns the number of bits set in plane k.
func (bf *Buffer) LayerSpikes(k int) int {
	if k >= bf.NPlanes {
		return 0
	}
	n := 0
	for _, w := range bf.planeWords(k) {
		n += bits.OnesCount32(w)
	}
	return n
}

// TotalSpikes returns the total spike count across all used planes,
// which by construction equals the sum over sources of each source's
// per-tick spike count.
func (bf *Buffer) TotalSpikes() int {
	n := 0
	for k := 0; k < bf.NPlanes; k++ {
		n += bf.LayerSpikes(k)
	}
	return n
}

// Empty reports whether no spikes have been marked since the last Reset.
func (bf *Buffer) Empty() bool {
	return bf.NPlanes == 0
}

// MemSize returns a human-readable size of the allocated plane stack.
func (bf *Buffer) MemSize() string {
	n := 0
	for _, pl := range bf.Planes {
		n += len(pl)
	}
	return (datasize.ByteSize)(n).HumanReadable()
}
