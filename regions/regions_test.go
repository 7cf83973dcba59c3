// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regions

import (
	"encoding/binary"
	"testing"
)

func testHeader() *Header {
	hd := &Header{}
	hd.Offsets[System] = uint32(HeaderSize)
	hd.Offsets[Params] = uint32(HeaderSize + SystemBlockSize)
	hd.Offsets[SpikeHistory] = uint32(HeaderSize + SystemBlockSize + 80)
	hd.Offsets[Provenance] = uint32(HeaderSize + SystemBlockSize + 84)
	return hd
}

func TestHeaderRoundTrip(t *testing.T) {
	hd := testHeader()
	mem := make([]byte, hd.Offsets[Provenance]+ProvenanceBlockSize)
	hd.WriteHeader(mem)
	got, err := ReadHeader(mem)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if *got != *hd {
		t.Errorf("header: got %+v want %+v", got, hd)
	}
}

func TestHeaderBadMagic(t *testing.T) {
	hd := testHeader()
	mem := make([]byte, 256)
	hd.WriteHeader(mem)
	binary.LittleEndian.PutUint32(mem, 0xDEADBEEF)
	if _, err := ReadHeader(mem); err == nil {
		t.Errorf("bad magic accepted")
	}
}

func TestHeaderBadVersion(t *testing.T) {
	hd := testHeader()
	mem := make([]byte, 256)
	hd.WriteHeader(mem)
	binary.LittleEndian.PutUint32(mem[4:], Version+1)
	if _, err := ReadHeader(mem); err == nil {
		t.Errorf("bad version accepted")
	}
}

func TestHeaderShortBlock(t *testing.T) {
	if _, err := ReadHeader(make([]byte, 8)); err == nil {
		t.Errorf("short block accepted")
	}
	hd := testHeader()
	mem := make([]byte, 256)
	hd.Offsets[Provenance] = 9999
	hd.WriteHeader(mem)
	if _, err := ReadHeader(mem); err == nil {
		t.Errorf("out-of-range offset accepted")
	}
}

func TestSlice(t *testing.T) {
	hd := testHeader()
	mem := make([]byte, hd.Offsets[Provenance]+ProvenanceBlockSize)
	hd.WriteHeader(mem)
	sys := hd.Slice(mem, System)
	if len(sys) != SystemBlockSize {
		t.Errorf("system slice %v bytes, want %v", len(sys), SystemBlockSize)
	}
	pr := hd.Slice(mem, Params)
	if len(pr) != 80 {
		t.Errorf("params slice %v bytes, want 80", len(pr))
	}
	pv := hd.Slice(mem, Provenance)
	if len(pv) != ProvenanceBlockSize {
		t.Errorf("provenance slice %v bytes, want %v", len(pv), ProvenanceBlockSize)
	}
}

func TestSystemBlockRoundTrip(t *testing.T) {
	sb := &SystemBlock{TimerPeriodUS: 1000, TotalTicks: 50000, InfiniteRun: 0, SDPPort: 1, DMATag: 3}
	data := make([]byte, SystemBlockSize)
	sb.WriteTo(data)
	got, err := ReadSystemBlock(data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if *got != *sb {
		t.Errorf("system block: got %+v want %+v", got, sb)
	}
	if _, err := ReadSystemBlock(data[:8]); err == nil {
		t.Errorf("short system block accepted")
	}
}

func TestProvenanceRoundTrip(t *testing.T) {
	pb := &ProvenanceBlock{TicksRun: 1000, SpikesSent: 4321, RateUpdatesApplied: 7, RateUpdatesIgnored: 2}
	pb.Rates.Set(0.25, 2000)
	data := make([]byte, ProvenanceBlockSize)
	pb.WriteTo(data)
	got, err := ReadProvenanceBlock(data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.TicksRun != pb.TicksRun || got.SpikesSent != pb.SpikesSent ||
		got.RateUpdatesApplied != pb.RateUpdatesApplied || got.RateUpdatesIgnored != pb.RateUpdatesIgnored {
		t.Errorf("counters: got %+v want %+v", got, pb)
	}
	if got.Rates.Min != 0.25 || got.Rates.Max != 2000 {
		t.Errorf("rates: got %v", got.Rates)
	}
}
