// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"math/rand"
	"testing"
)

func TestHandleRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		pcpu := r.Intn(MaxPCPUs)
		slot := uint32(r.Intn(MaxTimersPerWheel))
		gen := uint32(uint64(r.Uint32()) & generationMask)
		if gen == 0 {
			gen = 1
		}

		h := newHandle(pcpu, slot, gen)
		if h.Zero() {
			t.Fatalf("newHandle(%d,%d,%d) produced the zero handle\n", pcpu, slot, gen)
		}
		if got := h.PCPU(); got != pcpu {
			t.Fatalf("PCPU: got %d want %d (handle %#x)\n", got, pcpu, uint64(h))
		}
		if got := h.slot(); got != slot {
			t.Fatalf("slot: got %d want %d (handle %#x)\n", got, slot, uint64(h))
		}
		if got := h.generation(); got != gen {
			t.Fatalf("generation: got %d want %d (handle %#x)\n", got, gen, uint64(h))
		}
	}
}

func TestHandleZero(t *testing.T) {
	var h Handle
	if !h.Zero() {
		t.Fatalf("zero-value Handle not reported Zero()\n")
	}
	if h := newHandle(0, 0, 1); h.Zero() {
		t.Fatalf("newHandle with a non-zero generation reported Zero()\n")
	}
}

func TestGroupIDRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		pcpu := r.Intn(MaxPCPUs)
		counter := r.Uint64() & groupCounterMask

		g := newGroupID(pcpu, counter)
		if got := g.PCPU(); got != pcpu {
			t.Fatalf("GroupID.PCPU: got %d want %d\n", got, pcpu)
		}
	}
}
