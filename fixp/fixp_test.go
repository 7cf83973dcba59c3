// Copyright (c) 2024, The Spikesource Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fixp

import (
	"math"
	"testing"
)

func TestRealRoundTrip(t *testing.T) {
	// values on the s16.15 grid survive exactly
	for _, v := range []float32{0, 0.5, -1.25, 100, 1000.03125, -65536} {
		if got := RealFromFloat(v).Float32(); got != v {
			t.Errorf("round trip %v: got %v", v, got)
		}
	}
}

func TestRealSaturate(t *testing.T) {
	if got := RealFromFloat(1e9); got != MaxReal {
		t.Errorf("large positive did not saturate: %v", got)
	}
	if got := RealFromFloat(-1e9); got != MinReal {
		t.Errorf("large negative did not saturate: %v", got)
	}
}

func TestRealBits(t *testing.T) {
	r := RealFromFloat(1.5)
	if r != Real(3<<14) {
		t.Errorf("1.5 raw: %v", int32(r))
	}
	if got := KBits(r.Bits()); got != r {
		t.Errorf("bits round trip: %v vs %v", got, r)
	}
	if got := KBits(RealFromFloat(-1).Bits()).Float32(); got != -1 {
		t.Errorf("negative bits round trip: %v", got)
	}
}

func TestUFractRoundTrip(t *testing.T) {
	for _, v := range []float32{0.5, 0.25, 0.001953125} {
		if got := UFractFromFloat(v).Float32(); got != v {
			t.Errorf("round trip %v: got %v", v, got)
		}
	}
}

func TestUFractClamp(t *testing.T) {
	if got := UFractFromFloat(0); got != 0 {
		t.Errorf("0: %v", got)
	}
	if got := UFractFromFloat(-0.5); got != 0 {
		t.Errorf("negative: %v", got)
	}
	if got := UFractFromFloat(1); got != MaxUFract {
		t.Errorf("1 did not saturate: %v", got)
	}
	if got := UFractFromFloat(2); got != MaxUFract {
		t.Errorf("2 did not saturate: %v", got)
	}
	// below half the smallest step, underflows to exactly 0
	if got := UFractFromFloat(1e-30); got != 0 {
		t.Errorf("tiny value did not underflow to 0: %v", got)
	}
}

func TestUFractPrecision(t *testing.T) {
	v := float32(0.001)
	got := UFractFromFloat(v).Float64()
	if math.Abs(got-0.001) > 1.0/4294967296.0 {
		t.Errorf("0.001 off by more than one step: %v", got)
	}
}
