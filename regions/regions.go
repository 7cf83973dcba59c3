// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package regions reads and writes the shared-memory layout the host
loader hands to a spike-source core: a magic-tagged header of region
offsets, followed by the regions themselves.  The core reads the system
and parameter regions and the history region's flags word at startup,
hands spike history to its recorder during the run (it does not write
the history region itself), and writes provenance counters back on
pause.

All words are little-endian uint32; offsets in the header are byte
offsets from the start of the block.
*/
package regions

import (
	"encoding/binary"
	"fmt"

	"github.com/emer/etable/minmax"
	"github.com/neurosim/spikesource/fixp"
)

const (
	// Magic tags a well-formed region block.
	Magic = 0xAD130AD6

	// Version is the layout version this package reads and writes.
	Version = 1
)

// Region identifies one region in the block.
type Region int

const (
	// System holds the run control block: timer period, run length, ports.
	System Region = iota

	// Params holds the core's parameter block and per-source records.
	Params

	// SpikeHistory holds the recording flags word followed by appended
	// per-tick spike history frames.
	SpikeHistory

	// Provenance holds the counters the core writes back on pause.
	Provenance

	// RegionN is the number of regions.
	RegionN
)

// HeaderSize is the byte size of the region header: magic, version, and
// one offset per region.
const HeaderSize = 4 * (2 + int(RegionN))

// Header is the decoded region header.
type Header struct {

	// Offsets are byte offsets of each region from the start of the block.
	Offsets [RegionN]uint32
}

// ReadHeader decodes and validates the header at the start of mem.
func ReadHeader(mem []byte) (*Header, error) {
	if len(mem) < HeaderSize {
		return nil, fmt.Errorf("regions: block %d bytes, header needs %d", len(mem), HeaderSize)
	}
	if mg := binary.LittleEndian.Uint32(mem); mg != Magic {
		return nil, fmt.Errorf("regions: bad magic 0x%08X, want 0x%08X", mg, uint32(Magic))
	}
	if vr := binary.LittleEndian.Uint32(mem[4:]); vr != Version {
		return nil, fmt.Errorf("regions: layout version %d, want %d", vr, Version)
	}
	hd := &Header{}
	for i := range hd.Offsets {
		off := binary.LittleEndian.Uint32(mem[8+4*i:])
		if int(off) > len(mem) {
			return nil, fmt.Errorf("regions: region %d offset %d beyond block of %d bytes", i, off, len(mem))
		}
		hd.Offsets[i] = off
	}
	return hd, nil
}

// WriteHeader encodes the header at the start of mem.
func (hd *Header) WriteHeader(mem []byte) {
	binary.LittleEndian.PutUint32(mem, Magic)
	binary.LittleEndian.PutUint32(mem[4:], Version)
	for i, off := range hd.Offsets {
		binary.LittleEndian.PutUint32(mem[8+4*i:], off)
	}
}

// Slice returns the sub-slice of mem holding the given region, running
// to the start of the next region or the end of the block.
func (hd *Header) Slice(mem []byte, rg Region) []byte {
	start := int(hd.Offsets[rg])
	end := len(mem)
	for _, off := range hd.Offsets {
		if o := int(off); o > start && o < end {
			end = o
		}
	}
	return mem[start:end]
}

// SystemBlock is the run control region.
type SystemBlock struct {

	// TimerPeriodUS is the simulation tick length in microseconds.
	TimerPeriodUS uint32

	// TotalTicks is the number of ticks to run before pausing.  The host
	// may raise it between pause and resume.
	TotalTicks uint32

	// InfiniteRun, when non-zero, runs until explicitly paused.
	InfiniteRun uint32

	// SDPPort is the host command port the core listens on.
	SDPPort uint32

	// DMATag is the transfer tag used for history writes.
	DMATag uint32
}

// SystemBlockSize is the encoded size of a SystemBlock.
const SystemBlockSize = 20

// ReadSystemBlock decodes the system region.
func ReadSystemBlock(data []byte) (*SystemBlock, error) {
	if len(data) < SystemBlockSize {
		return nil, fmt.Errorf("regions: system block %d bytes, need %d", len(data), SystemBlockSize)
	}
	return &SystemBlock{
		TimerPeriodUS: binary.LittleEndian.Uint32(data),
		TotalTicks:    binary.LittleEndian.Uint32(data[4:]),
		InfiniteRun:   binary.LittleEndian.Uint32(data[8:]),
		SDPPort:       binary.LittleEndian.Uint32(data[12:]),
		DMATag:        binary.LittleEndian.Uint32(data[16:]),
	}, nil
}

// WriteTo encodes the system block into data.
func (sb *SystemBlock) WriteTo(data []byte) {
	binary.LittleEndian.PutUint32(data, sb.TimerPeriodUS)
	binary.LittleEndian.PutUint32(data[4:], sb.TotalTicks)
	binary.LittleEndian.PutUint32(data[8:], sb.InfiniteRun)
	binary.LittleEndian.PutUint32(data[12:], sb.SDPPort)
	binary.LittleEndian.PutUint32(data[16:], sb.DMATag)
}

// ProvenanceBlock is what the core writes back on pause: how far it
// ran, what it sent, and the range of rates it was asked to apply.
type ProvenanceBlock struct {

	// TicksRun is the number of completed simulation ticks.
	TicksRun uint32

	// SpikesSent is the number of spike packets accepted by the fabric.
	SpikesSent uint32

	// RateUpdatesApplied counts rate commands applied to a live source.
	RateUpdatesApplied uint32

	// RateUpdatesIgnored counts rate commands for ids outside this core's
	// source window.
	RateUpdatesIgnored uint32

	// Rates is the range of rates applied over the run, in Hz.
	Rates minmax.F32
}

// ProvenanceBlockSize is the encoded size of a ProvenanceBlock.
const ProvenanceBlockSize = 24

// ReadProvenanceBlock decodes the provenance region.
func ReadProvenanceBlock(data []byte) (*ProvenanceBlock, error) {
	if len(data) < ProvenanceBlockSize {
		return nil, fmt.Errorf("regions: provenance block %d bytes, need %d", len(data), ProvenanceBlockSize)
	}
	pb := &ProvenanceBlock{
		TicksRun:           binary.LittleEndian.Uint32(data),
		SpikesSent:         binary.LittleEndian.Uint32(data[4:]),
		RateUpdatesApplied: binary.LittleEndian.Uint32(data[8:]),
		RateUpdatesIgnored: binary.LittleEndian.Uint32(data[12:]),
	}
	pb.Rates.Min = fixp.KBits(binary.LittleEndian.Uint32(data[16:])).Float32()
	pb.Rates.Max = fixp.KBits(binary.LittleEndian.Uint32(data[20:])).Float32()
	return pb, nil
}

// WriteTo encodes the provenance block into data.  Rates travel as
// s16.15 words.
func (pb *ProvenanceBlock) WriteTo(data []byte) {
	binary.LittleEndian.PutUint32(data, pb.TicksRun)
	binary.LittleEndian.PutUint32(data[4:], pb.SpikesSent)
	binary.LittleEndian.PutUint32(data[8:], pb.RateUpdatesApplied)
	binary.LittleEndian.PutUint32(data[12:], pb.RateUpdatesIgnored)
	binary.LittleEndian.PutUint32(data[16:], fixp.RealFromFloat(pb.Rates.Min).Bits())
	binary.LittleEndian.PutUint32(data[20:], fixp.RealFromFloat(pb.Rates.Max).Bits())
}
