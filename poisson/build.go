// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import (
	"encoding/binary"

	"github.com/neurosim/spikesource/regions"
)

// RecordSpikesFlag in the spike-history region's flags word enables
// spike recording.
const RecordSpikesFlag = 1

// BuildMem assembles the shared-memory image a loader would hand to a
// core: region header, system block, parameter block plus source
// records, spike-history flags word, and a zeroed provenance block.
// Tests use it in place of the external toolchain.
func BuildMem(pp *Params, srcs []SpikeSource, sys *regions.SystemBlock, recFlags uint32) []byte {
	pp.NSources = uint32(len(srcs))

	hd := regions.Header{}
	off := uint32(regions.HeaderSize)
	hd.Offsets[regions.System] = off
	off += regions.SystemBlockSize
	hd.Offsets[regions.Params] = off
	off += uint32(ParamsSize + len(srcs)*SourceSize)
	hd.Offsets[regions.SpikeHistory] = off
	off += 4
	hd.Offsets[regions.Provenance] = off
	off += regions.ProvenanceBlockSize

	mem := make([]byte, off)
	hd.WriteHeader(mem)
	sys.WriteTo(hd.Slice(mem, regions.System))

	pr := hd.Slice(mem, regions.Params)
	pp.WriteTo(pr)
	for i := range srcs {
		srcs[i].WriteTo(pr[ParamsSize+i*SourceSize:])
	}

	binary.LittleEndian.PutUint32(hd.Slice(mem, regions.SpikeHistory), recFlags)
	return mem
}
