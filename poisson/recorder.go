// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/emer/etable/etensor"

	"github.com/neurosim/spikesource/outspikes"
)

// Recorder is the spike-history sink.  RecordAndNotify takes ownership
// of the serialized payload and calls done when the write has landed;
// the core will not submit another payload until then.
type Recorder interface {

	// RecordAndNotify writes one tick's serialized spike buffer and
	// calls done on completion.  The payload is never reused by the
	// caller.
	RecordAndNotify(data []byte, done func()) error

	// TimestepUpdate tells the recording subsystem a tick completed,
	// spikes or not.
	TimestepUpdate(tick uint32)

	// Finalise flushes synchronously; no writes are in flight after it
	// returns.
	Finalise()

	// Reset re-arms the recorder after a pause so a resumed run can
	// append.
	Reset()
}

// Frame is one decoded spike-history payload: the tick it belongs to
// and the per-source spike counts recovered from the bit planes.
type Frame struct {
	Time   uint32
	Counts []uint32
}

// MemRecorder is an in-memory Recorder for tests and hosted runs.  It
// decodes each payload back into per-source counts.  In Async mode the
// decode happens on a goroutine, exercising the busy-flag interlock;
// Finalise waits for all of them.
type MemRecorder struct {

	// NSources is the bit-plane width, needed to decode payloads.
	NSources int

	// Async decodes on a goroutine per payload when set.
	Async bool

	// Frames are the decoded payloads, one per tick that had spikes.
	Frames []Frame

	// LastTick is the most recent completed tick reported.
	LastTick uint32

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewMemRecorder returns a recorder decoding payloads for nSources
// sources.
func NewMemRecorder(nSources int) *MemRecorder {
	return &MemRecorder{NSources: nSources}
}

// DecodeFrame decodes one serialized spike-buffer payload into a Frame.
func DecodeFrame(data []byte, nSources int) (Frame, error) {
	nw := outspikes.WordsPerPlane(nSources)
	if len(data) < 8 {
		return Frame{}, fmt.Errorf("poisson: spike frame %d bytes, need at least 8", len(data))
	}
	fr := Frame{Time: binary.LittleEndian.Uint32(data), Counts: make([]uint32, nSources)}
	nl := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) < 8+4*nw*nl {
		return Frame{}, fmt.Errorf("poisson: spike frame %d bytes, %d planes need %d", len(data), nl, 8+4*nw*nl)
	}
	for k := 0; k < nl; k++ {
		for s := 0; s < nSources; s++ {
			w := binary.LittleEndian.Uint32(data[8+4*(k*nw+s/32):])
			if w&(1<<uint(s%32)) != 0 {
				fr.Counts[s]++
			}
		}
	}
	return fr, nil
}

func (mr *MemRecorder) record(data []byte, done func()) error {
	fr, err := DecodeFrame(data, mr.NSources)
	if err != nil {
		done()
		return err
	}
	mr.mu.Lock()
	mr.Frames = append(mr.Frames, fr)
	mr.mu.Unlock()
	done()
	return nil
}

// RecordAndNotify implements Recorder.
func (mr *MemRecorder) RecordAndNotify(data []byte, done func()) error {
	if !mr.Async {
		return mr.record(data, done)
	}
	mr.wg.Add(1)
	go func() {
		defer mr.wg.Done()
		mr.record(data, done)
	}()
	return nil
}

// TimestepUpdate implements Recorder.
func (mr *MemRecorder) TimestepUpdate(tick uint32) {
	mr.LastTick = tick
}

// Finalise implements Recorder: waits out any in-flight async decodes.
func (mr *MemRecorder) Finalise() {
	mr.wg.Wait()
}

// Reset implements Recorder.  Decoded history is kept so a resumed run
// appends to it.
func (mr *MemRecorder) Reset() {
}

// TotalSpikes returns the total recorded spike count.
func (mr *MemRecorder) TotalSpikes() int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	n := 0
	for _, fr := range mr.Frames {
		for _, c := range fr.Counts {
			n += int(c)
		}
	}
	return n
}

// SourceSpikes returns the total recorded count for one source.
func (mr *MemRecorder) SourceSpikes(s int) int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	n := 0
	for _, fr := range mr.Frames {
		n += int(fr.Counts[s])
	}
	return n
}

// Raster returns the recorded history as a [ticks, sources] tensor of
// per-tick spike counts, sized to the last completed tick.
func (mr *MemRecorder) Raster() *etensor.Int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	nt := int(mr.LastTick) + 1
	tsr := etensor.NewInt64([]int{nt, mr.NSources}, nil, []string{"Tick", "Source"})
	for _, fr := range mr.Frames {
		if int(fr.Time) >= nt {
			continue
		}
		for s, c := range fr.Counts {
			tsr.Set([]int{int(fr.Time), s}, int64(c))
		}
	}
	return tsr
}
