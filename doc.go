// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package spikesource is the repository for a real-time Poisson spike
generator core: a table of independent Poisson point processes that a
periodic timer samples, dispatches onto a multicast fabric, and records
as a bit-plane spike history.

This top level has no functional code -- everything is organized into
the following sub-packages:

* poisson: the core itself -- parameter block, source table,
dual-regime sampling (per-tick Poisson counts for fast sources,
exponential inter-spike intervals for slow ones), runtime rate updates,
pause/resume, recording, and provenance.

* kiss64: the four-word mars-kiss64 random stream and the uniform,
exponential, and Poisson-count variates drawn from it.

* fixp: the s16.15 and u0.32 fixed-point wire formats used by the
shared-memory block and the fabric rate payloads.

* outspikes: the growable bit-plane buffer that accumulates one tick's
spikes for the recorder.

* fabric: the core's view of the packet fabric -- sender and clock
interfaces, the counter-paced dispatch throttle, and the rate-update
wire framings.

* regions: the loader-written shared-memory layout -- region header,
system block, and provenance block.
*/
package spikesource
