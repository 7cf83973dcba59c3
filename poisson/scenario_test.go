// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"encoding/binary"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/neurosim/spikesource/fixp"
	"github.com/neurosim/spikesource/regions"
)

// A 1000 Hz source at 1 ms ticks sits exactly at one spike per tick:
// the canonical fast-lane configuration.
func TestFastRate(t *testing.T) {
	if testing.Short() {
		t.Skip("long statistical run")
	}
	const nticks = 100000
	rg := newRig(t, []float32{1000}, nticks*2, true)
	if rg.Core.Sources[0].Regime != Fast {
		t.Fatalf("1000 Hz source regime %v, want Fast", rg.Core.Sources[0].Regime)
	}
	rg.Core.Run(nticks)

	tot := float64(rg.Rec.TotalSpikes())
	sig := math.Sqrt(nticks)
	if math.Abs(tot-nticks) > 5*sig {
		t.Errorf("fast source emitted %v spikes over %v ticks, want within %v", tot, nticks, 5*sig)
	}
	if got := len(rg.Fab.Sent); int(tot) != got {
		t.Errorf("recorded %v but sent %v", int(tot), got)
	}

	// per-tick dispersion should match Poisson: (n-1)*var/mean ~ chi-squared
	xs := tickCounts(rg.Rec, 0, nticks)
	mean, vr := stat.MeanVariance(xs, nil)
	d := float64(nticks-1) * vr / mean
	chi := distuv.ChiSquared{K: nticks - 1}
	if lo, hi := chi.Quantile(1e-6), chi.Quantile(1-1e-6); d < lo || d > hi {
		t.Errorf("dispersion statistic %v outside [%v, %v]", d, lo, hi)
	}
}

// A slow source's inter-spike intervals are exponential with mean
// 1/(rate * seconds-per-tick) ticks.
func TestSlowISI(t *testing.T) {
	if testing.Short() {
		t.Skip("long statistical run")
	}
	const nticks = 100000
	rg := newRig(t, []float32{10}, nticks*2, false)
	ss := &rg.Core.Sources[0]
	if ss.Regime != Slow {
		t.Fatalf("10 Hz source regime %v, want Slow", ss.Regime)
	}
	if math.Abs(float64(ss.MeanISITicks)-100) > 0.01 {
		t.Fatalf("mean interval %v ticks, want 100", ss.MeanISITicks)
	}
	rg.Core.Run(nticks)

	var times []float64
	for _, fr := range rg.Rec.Frames {
		for c := uint32(0); c < fr.Counts[0]; c++ {
			times = append(times, float64(fr.Time))
		}
	}
	if len(times) < 500 {
		t.Fatalf("only %v spikes over %v ticks at 10 Hz", len(times), nticks)
	}
	isis := make([]float64, len(times)-1)
	for i := range isis {
		isis[i] = times[i+1] - times[i]
	}
	mean, vr := stat.MeanVariance(isis, nil)
	n := float64(len(isis))
	if sig := 5 * 100 / math.Sqrt(n); math.Abs(mean-100) > sig {
		t.Errorf("interval mean %v ticks, want within %v of 100", mean, sig)
	}
	if cv := math.Sqrt(vr) / mean; cv < 0.85 || cv > 1.15 {
		t.Errorf("interval cv %v, want close to 1", cv)
	}
}

// Scenario: one source at rate 0 with a key configured emits nothing
// and records nothing.
func TestZeroRateScenario(t *testing.T) {
	rg := newRig(t, []float32{0}, 2000, true)
	rg.Core.Run(1000)
	if len(rg.Fab.Sent) != 0 || len(rg.Rec.Frames) != 0 {
		t.Errorf("rate-0 source produced %v packets, %v frames", len(rg.Fab.Sent), len(rg.Rec.Frames))
	}
}

// Scenario: 0.25 Hz and 2000 Hz sources split across the regimes, emit
// independently, and use only their own keys.
func TestMixedRegimeScenario(t *testing.T) {
	const nticks = 20000
	rg := newRig(t, []float32{0.25, 2000}, nticks*2, true)
	cs := rg.Core
	if cs.Sources[0].Regime != Slow {
		t.Errorf("0.25 Hz source regime %v, want Slow", cs.Sources[0].Regime)
	}
	if cs.Sources[1].Regime != Fast {
		t.Errorf("2000 Hz source regime %v, want Fast", cs.Sources[1].Regime)
	}
	cs.Run(nticks)

	for i, k := range rg.Fab.Keys() {
		if k != testBaseKey && k != testBaseKey|1 {
			t.Fatalf("send %v used unexpected key %#x", i, k)
		}
	}
	n1 := float64(rg.Rec.SourceSpikes(1))
	want := 2.0 * nticks
	if sig := 5 * math.Sqrt(want); math.Abs(n1-want) > sig {
		t.Errorf("2000 Hz source emitted %v spikes over %v ticks, want about %v", n1, nticks, want)
	}
}

// Scenario: a multicast rate command lands mid-run and the source
// starts firing from the next tick on.
func TestMidRunRateUpdateScenario(t *testing.T) {
	rg := newRig(t, []float32{0, 0, 0, 0}, 100000, true)
	cs := rg.Core
	cs.Run(5000)

	key, payload := uint32(2), fixp.RealFromFloat(500).Bits()
	cs.OnMulticastPacket(key, payload)
	cs.Run(5000)

	for _, fr := range rg.Rec.Frames {
		if fr.Time < 5000 {
			t.Errorf("spikes recorded at tick %v, before the rate update", fr.Time)
		}
		for s, c := range fr.Counts {
			if s != 2 && c > 0 {
				t.Errorf("source %v spiked but only source 2 was enabled", s)
			}
		}
	}
	for i, k := range rg.Fab.Keys() {
		if k != testBaseKey|2 {
			t.Fatalf("send %v used key %#x, want %#x", i, k, testBaseKey|2)
		}
	}
	n2 := float64(rg.Rec.SourceSpikes(2))
	want := 0.5 * 5000
	if sig := 5 * math.Sqrt(want); math.Abs(n2-want) > sig {
		t.Errorf("source 2 emitted %v spikes over 5000 ticks at 500 Hz, want about %v", n2, want)
	}
}

// Scenario: no key configured; recording still sees every spike while
// the fabric sees none.
func TestNoKeyScenario(t *testing.T) {
	rg := newRig(t, []float32{800}, 100000, false)
	rg.Core.Run(5000)
	if len(rg.Fab.Sent) != 0 {
		t.Errorf("keyless core sent %v packets", len(rg.Fab.Sent))
	}
	n := float64(rg.Rec.TotalSpikes())
	want := 0.8 * 5000
	if sig := 5 * math.Sqrt(want); math.Abs(n-want) > sig {
		t.Errorf("recorded %v spikes, want about %v", n, want)
	}
}

// Scenario: pause at the configured length, host rewrites the base key,
// resume; all later packets carry the new key.
func TestRekeyOnResumeScenario(t *testing.T) {
	rg := newRig(t, []float32{1000}, 1000, true)
	cs := rg.Core
	cs.Run(1500)
	if !cs.Paused {
		t.Fatalf("core did not pause at 1000 ticks")
	}
	before := len(rg.Fab.Sent)

	hd, err := regions.ReadHeader(rg.Mem)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	const newKey = 0x90000
	pr := hd.Slice(rg.Mem, regions.Params)
	binary.LittleEndian.PutUint32(pr[4:], newKey)
	sys, err := regions.ReadSystemBlock(hd.Slice(rg.Mem, regions.System))
	if err != nil {
		t.Fatalf("system block: %v", err)
	}
	sys.TotalTicks = 2000
	sys.WriteTo(hd.Slice(rg.Mem, regions.System))

	if err := cs.Resume(); err != nil {
		t.Fatalf("resume: %v", err)
	}
	cs.Run(1500)

	keys := rg.Fab.Keys()
	for i, k := range keys[:before] {
		if k != testBaseKey {
			t.Errorf("pre-pause send %v used key %#x", i, k)
		}
	}
	if len(keys) == before {
		t.Fatalf("no packets sent after resume")
	}
	for i, k := range keys[before:] {
		if k != newKey {
			t.Errorf("post-resume send %v used key %#x, want %#x", i, k, uint32(newKey))
		}
	}
}

// Provenance lands in its region when the run pauses.
func TestProvenanceScenario(t *testing.T) {
	rg := newRig(t, []float32{600}, 1000, true)
	cs := rg.Core
	cs.SetRate(0, fixp.RealFromFloat(600))
	cs.Run(1500)
	if !cs.Paused {
		t.Fatalf("core did not pause")
	}

	hd, err := regions.ReadHeader(rg.Mem)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	pb, err := regions.ReadProvenanceBlock(hd.Slice(rg.Mem, regions.Provenance))
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	if pb.TicksRun != 1000 {
		t.Errorf("provenance ticks %v, want 1000", pb.TicksRun)
	}
	if int(pb.SpikesSent) != len(rg.Fab.Sent) {
		t.Errorf("provenance spikes %v, fabric accepted %v", pb.SpikesSent, len(rg.Fab.Sent))
	}
	if pb.RateUpdatesApplied != 1 {
		t.Errorf("provenance rate updates %v, want 1", pb.RateUpdatesApplied)
	}
	if pb.Rates.Min != 600 || pb.Rates.Max != 600 {
		t.Errorf("provenance rate range %v", pb.Rates)
	}
}
