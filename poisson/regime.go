// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package poisson

import "github.com/goki/ki/kit"

// Regime selects the sampling algorithm for one source, chosen from its
// rate: slow sources draw explicit inter-spike intervals, fast sources
// draw a per-tick Poisson count.
type Regime int32

//go:generate stringer -type=Regime

var KiT_Regime = kit.Enums.AddEnum(RegimeN, kit.NotBitFlag, nil)

func (ev Regime) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Regime) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

// The sampling regimes
const (
	// Slow draws exponential inter-spike intervals and counts ticks down
	// to each spike.  Used when the per-tick rate is at or below
	// SlowFastCutoff.
	Slow Regime = iota

	// Fast draws a Poisson-distributed spike count every tick from the
	// precomputed exp(-lambda).
	Fast

	RegimeN
)
