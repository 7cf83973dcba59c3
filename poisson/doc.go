// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package poisson is the spike-source core: a table of independent Poisson
point processes that each tick samples, dispatches as multicast packets,
and records.

Each source runs in one of two regimes chosen from its rate.  Fast
sources (per-tick rate above the cutoff) draw a Poisson spike count
every tick from a precomputed exp(-lambda).  Slow sources draw explicit
exponential inter-spike intervals and count ticks down to each spike,
which is far cheaper when spikes are rare.  Rates change at runtime via
multicast packets or host messages; a change only swaps the regime tag
and its parameter, so the update is a couple of word writes and needs
no lock against the timer.

The core reads its configuration from a loader-written shared-memory
block (see the regions package), pauses itself when the configured run
length is reached, persists its state for the host, and can resume with
whatever the host rewrote.  Given the same seed and parameters the full
spike schedule is deterministic.
*/
package poisson
