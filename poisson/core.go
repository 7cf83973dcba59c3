// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync/atomic"

	"github.com/c2h5oh/datasize"
	"github.com/emer/emergent/erand"
	"github.com/emer/emergent/timer"

	"github.com/neurosim/spikesource/fabric"
	"github.com/neurosim/spikesource/fixp"
	"github.com/neurosim/spikesource/kiss64"
	"github.com/neurosim/spikesource/outspikes"
	"github.com/neurosim/spikesource/regions"
)

// Core is one spike-source core: the parameter block, the source table,
// the random stream, the per-tick spike buffer, and the pause/resume
// machinery, all owned in one place.
//
// Concurrency contract: every field is owned by the timer path
// (TimerTick), with two exceptions.  The rate-intake callbacks
// (OnMulticastPacket, OnHostMessage, SetRate) may overwrite the
// Regime / ExpMinusLambda / MeanISITicks fields of single source
// records at any time; each field is a single machine word, so a timer
// pass racing an update sees either the old or the new value, never a
// torn one, and at worst generates one tick of stale-regime spikes.
// The recording busy flag is set on the timer path and cleared by the
// writer's completion callback, so it alone is an atomic.
type Core struct {
	Params   Params        `desc:"core-wide parameters, re-read from shared memory on resume"`
	Sources  []SpikeSource `desc:"the source table, allocated once and re-read in place on resume"`
	Tick     uint32        `inactive:"+" desc:"current simulation tick"`
	Paused   bool          `inactive:"+" desc:"set when TotalTicks is reached; cleared by Resume"`
	RecordOn bool          `desc:"whether spike history is recorded, from the history region flags"`

	TotalTicks  uint32 `inactive:"+" desc:"ticks to run before pausing, from the system block"`
	InfiniteRun bool   `inactive:"+" desc:"run until explicitly paused, from the system block"`

	Rnd      *kiss64.Rand           `view:"-" desc:"the spike random stream"`
	Buf      *outspikes.Buffer      `view:"-" desc:"per-tick spike buffer handed to the recorder"`
	Throttle *fabric.Throttle       `view:"-" desc:"dispatch pacing"`
	Clock    fabric.Clock           `view:"-" desc:"timebase for pacing and start-of-tick backoff"`
	Recorder Recorder               `view:"-" desc:"spike history sink"`
	Backoff  erand.RndParams        `desc:"start-of-tick desynchronisation jitter -- wall clock only, never the schedule"`
	Prov     regions.ProvenanceBlock `inactive:"+" desc:"counters written back at finalise"`
	FunTimes map[string]*timer.Time `view:"-" desc:"timers for each major phase of the tick"`

	mem     []byte
	hdr     *regions.Header
	recBusy atomic.Bool
}

// NewCore returns an uninitialised core over the given shared-memory
// block and collaborators.  Call Init before the first tick.
func NewCore(mem []byte, sd fabric.Sender, ck fabric.Clock, rec Recorder) *Core {
	cs := &Core{mem: mem, Clock: ck, Recorder: rec}
	cs.Throttle = &fabric.Throttle{Clock: ck, Sender: sd}
	cs.FunTimes = make(map[string]*timer.Time)
	return cs
}

// Init parses the shared-memory block, loads parameters and the source
// table, seeds the random stream, and rolls each slow source's first
// interval.  Any failure here is a startup configuration error and the
// core must not be run.
func (cs *Core) Init() error {
	hdr, err := regions.ReadHeader(cs.mem)
	if err != nil {
		return fmt.Errorf("poisson: init: %w", err)
	}
	cs.hdr = hdr

	sys, err := regions.ReadSystemBlock(hdr.Slice(cs.mem, regions.System))
	if err != nil {
		return fmt.Errorf("poisson: init: %w", err)
	}
	cs.TotalTicks = sys.TotalTicks
	cs.InfiniteRun = sys.InfiniteRun != 0

	pr := hdr.Slice(cs.mem, regions.Params)
	if err := cs.Params.ReadFrom(pr); err != nil {
		return fmt.Errorf("poisson: init: %w", err)
	}
	if err := cs.Params.Validate(); err != nil {
		return fmt.Errorf("poisson: init: %w", err)
	}
	n := int(cs.Params.NSources)
	if len(pr) < ParamsSize+n*SourceSize {
		return fmt.Errorf("poisson: init: parameter region %d bytes, %d sources need %d",
			len(pr), n, ParamsSize+n*SourceSize)
	}
	cs.Sources = make([]SpikeSource, n)
	cs.readSources(pr)

	hist := hdr.Slice(cs.mem, regions.SpikeHistory)
	if len(hist) < 4 {
		return fmt.Errorf("poisson: init: spike history region %d bytes, need at least 4", len(hist))
	}
	cs.RecordOn = hist[0]&1 != 0

	cs.Rnd = kiss64.New(cs.Params.Seed)
	cs.Buf = outspikes.NewBuffer(n)
	cs.Throttle.GapTicks = cs.Params.InterSpikeGapTicks

	cs.Backoff.Dist = erand.Uniform
	cs.Backoff.Mean = float64(cs.Params.RandomBackoffUS) / 2
	cs.Backoff.Var = float64(cs.Params.RandomBackoffUS) / 2

	// the host loads zeroed countdowns; roll each slow source's first
	// interval so tick 0 does not see every source cross at once
	for i := range cs.Sources {
		ss := &cs.Sources[i]
		if ss.Regime == Slow && ss.MeanISITicks > 0 {
			ss.TimeToSpikeTicks = cs.isiDraw(ss.MeanISITicks)
		}
	}

	cs.Prov = regions.ProvenanceBlock{}
	cs.Prov.Rates.SetInfinity()
	cs.Tick = ^uint32(0)
	return nil
}

func (cs *Core) readSources(pr []byte) {
	for i := range cs.Sources {
		cs.Sources[i].ReadFrom(pr[ParamsSize+i*SourceSize:])
	}
}

// TimerTick runs one simulation tick: pause check, random backoff,
// throttle arm, spike generation in source order, then recording
// handoff.  Strictly non-reentrant; the driver must not overlap calls.
func (cs *Core) TimerTick() {
	cs.Tick++
	if !cs.InfiniteRun && cs.Tick >= cs.TotalTicks {
		cs.Pause()

		// replay this same tick after resume
		cs.Tick--
		return
	}
	if cs.Params.RandomBackoffUS > 0 {
		cs.Clock.DelayUS(uint32(cs.Backoff.Gen(-1)))
	}
	cs.Throttle.Start()
	cs.Buf.Reset()

	cs.FunTimerStart("Generate")
	for s := range cs.Sources {
		cs.genSource(s)
	}
	cs.FunTimerStop("Generate")

	cs.FunTimerStart("Record")
	cs.flushSpikes()
	cs.FunTimerStop("Record")
}

// genSource samples source s for the current tick and dispatches any
// spikes, source-major: every spike of s precedes any spike of s+1.
func (cs *Core) genSource(s int) {
	ss := &cs.Sources[s]
	if !ss.Active(cs.Tick) {
		return
	}
	switch ss.Regime {
	case Fast:
		k := cs.Rnd.PoissonCount(ss.ExpMinusLambda.Float32())
		if k == 0 {
			return
		}
		cs.Buf.Mark(s, k)
		if cs.Params.HasKey {
			for i := uint32(0); i < k; i++ {
				cs.send(s)
			}
		}
	case Slow:
		if ss.MeanISITicks == 0 {
			return
		}
		cross := uint32(0)
		for ss.TimeToSpikeTicks <= 0 {
			cross++
			cs.Buf.Mark(s, cross)
			if cs.Params.HasKey {
				cs.send(s)
			}
			ss.TimeToSpikeTicks += cs.isiDraw(ss.MeanISITicks)
		}
		ss.TimeToSpikeTicks--
	}
}

// isiDraw returns an exponential interval with the given mean,
// quantized to the s16.15 grid: the countdown only ever holds values
// the wire format represents, so a persisted countdown reloads exactly.
func (cs *Core) isiDraw(meanISI float32) float32 {
	return fixp.RealFromFloat(cs.Rnd.ExpVar() * meanISI).Float32()
}

func (cs *Core) send(s int) {
	cs.Throttle.Send(cs.Params.BaseKey | uint32(s))
	cs.Prov.SpikesSent++
}

// flushSpikes hands the tick's spike buffer to the recorder.  If the
// previous handoff is still in flight it waits; the buffer is
// serialized before submission so the recorder never borrows it.
func (cs *Core) flushSpikes() {
	if !cs.RecordOn {
		return
	}
	for cs.recBusy.Load() {
		runtime.Gosched()
	}
	if !cs.Buf.Empty() {
		cs.Buf.Time = cs.Tick
		cs.recBusy.Store(true)
		if err := cs.Recorder.RecordAndNotify(cs.Buf.Bytes(), func() { cs.recBusy.Store(false) }); err != nil {
			log.Printf("poisson: tick %d: recording failed: %v", cs.Tick, err)
			cs.recBusy.Store(false)
		}
		cs.Buf.Reset()
	}
	cs.Recorder.TimestepUpdate(cs.Tick)
}

// SetRate points the source with the given global id at a new rate in
// Hz.  Ids outside this core's window are silently ignored, another
// core owns them.  Safe to call from an intake callback while the timer
// is mid-tick; see the Core concurrency contract.
func (cs *Core) SetRate(globalID uint32, rate fixp.Real) {
	local := globalID - cs.Params.FirstSourceID
	if local >= cs.Params.NSources {
		cs.Prov.RateUpdatesIgnored++
		return
	}
	rt := rate.Float32()
	cs.Sources[local].SetRate(rt, &cs.Params)
	cs.Prov.RateUpdatesApplied++
	cs.Prov.Rates.FitValInRange(rt)
}

// OnMulticastPacket is the fabric intake for single rate commands.
func (cs *Core) OnMulticastPacket(key, payload uint32) {
	up := fabric.DecodeMulticastRate(key, payload, cs.Params.RateUpdateMask)
	cs.SetRate(up.ID, up.Rate)
}

// OnHostMessage is the intake for host rate commands carrying a counted
// list of (id, rate) pairs.  A malformed payload is rejected whole.
func (cs *Core) OnHostMessage(data []byte) error {
	ups, err := fabric.DecodeHostRates(data)
	if err != nil {
		return err
	}
	for _, up := range ups {
		cs.SetRate(up.ID, up.Rate)
	}
	return nil
}

// Pause persists parameters and the source table back to shared memory,
// synchronously finalises recording, writes provenance, and marks the
// core paused.  Run stops at the end of the current tick.
func (cs *Core) Pause() {
	cs.persist()
	cs.Recorder.Finalise()
	cs.Finalise()
	cs.Paused = true
}

// persist copies the parameter block and the current source table to
// the parameter region so the host reads back the latest state.
func (cs *Core) persist() {
	pr := cs.hdr.Slice(cs.mem, regions.Params)
	cs.Params.WriteTo(pr)
	for i := range cs.Sources {
		cs.Sources[i].WriteTo(pr[ParamsSize+i*SourceSize:])
	}
}

// Finalise writes the provenance counters to the provenance region.
func (cs *Core) Finalise() {
	cs.Prov.TicksRun = cs.Tick
	pv := cs.hdr.Slice(cs.mem, regions.Provenance)
	if len(pv) >= regions.ProvenanceBlockSize {
		cs.Prov.WriteTo(pv)
	}
}

// Resume re-reads the system block (the host may have extended the
// run), the parameter block, and the source table, re-arms the
// recorder, and clears the pause.  The source table is read into the
// existing allocation; the random stream keeps its in-memory state so
// the schedule continues where it left off.
func (cs *Core) Resume() error {
	sys, err := regions.ReadSystemBlock(cs.hdr.Slice(cs.mem, regions.System))
	if err != nil {
		return fmt.Errorf("poisson: resume: %w", err)
	}
	cs.TotalTicks = sys.TotalTicks
	cs.InfiniteRun = sys.InfiniteRun != 0

	pr := cs.hdr.Slice(cs.mem, regions.Params)
	if err := cs.Params.ReadFrom(pr); err != nil {
		return fmt.Errorf("poisson: resume: %w", err)
	}
	if int(cs.Params.NSources) != len(cs.Sources) {
		return fmt.Errorf("poisson: resume: source count changed from %d to %d",
			len(cs.Sources), cs.Params.NSources)
	}
	cs.readSources(pr)
	cs.Throttle.GapTicks = cs.Params.InterSpikeGapTicks
	cs.Recorder.Reset()
	cs.Paused = false
	return nil
}

// Run drives up to nticks timer ticks, stopping early if the core
// pauses.  It returns the number of ticks actually run.
func (cs *Core) Run(nticks int) int {
	for i := 0; i < nticks; i++ {
		cs.TimerTick()
		if cs.Paused {
			return i
		}
	}
	return nticks
}

// MemSize returns a human-readable size of the core's working state.
func (cs *Core) MemSize() string {
	n := len(cs.Sources) * SourceSize
	for _, pl := range cs.Buf.Planes {
		n += len(pl)
	}
	return (datasize.ByteSize)(n).HumanReadable()
}

// FunTimerStart starts the timer for the given phase, creating it on
// first use.
func (cs *Core) FunTimerStart(fun string) {
	ft, ok := cs.FunTimes[fun]
	if !ok {
		ft = &timer.Time{}
		cs.FunTimes[fun] = ft
	}
	ft.Start()
}

// FunTimerStop stops the timer for the given phase.
func (cs *Core) FunTimerStop(fun string) {
	cs.FunTimes[fun].Stop()
}

// TimerReport reports the time spent in each phase.
func (cs *Core) TimerReport() {
	fmt.Printf("TimerReport: %d sources\n", len(cs.Sources))
	fmt.Printf("\tPhase Name\tTotal Secs\tPct\n")
	nfn := len(cs.FunTimes)
	fnms := make([]string, 0, nfn)
	for k := range cs.FunTimes {
		fnms = append(fnms, k)
	}
	sort.StringSlice(fnms).Sort()
	tot := 0.0
	for _, fn := range fnms {
		tot += cs.FunTimes[fn].TotalSecs()
	}
	for _, fn := range fnms {
		sec := cs.FunTimes[fn].TotalSecs()
		fmt.Printf("\t%v \t%6.4g\t%6.4g\n", fn, sec, 100*(sec/tot))
	}
	fmt.Printf("\tTotal   \t%6.4g\n", tot)
}
