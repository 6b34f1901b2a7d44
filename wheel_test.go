// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"testing"

	"github.com/nanovisor/hvtimer/internal/timertest"
)

// newTestWheels builds a Wheels driven by a timertest.Clock running at
// 1 MHz, so TC units read directly as microseconds.
func newTestWheels(t *testing.T, numPCPUs int) (*Wheels, *timertest.Clock) {
	t.Helper()
	src := timertest.NewClock(1_000_000)
	var w Wheels
	if err := w.Init(numPCPUs, src, 0); err != nil {
		t.Fatalf("Wheels.Init: %s\n", err)
	}
	return &w, src
}

func TestWheelInit(t *testing.T) {
	w, _ := newTestWheels(t, 4)
	if !w.Ready() {
		t.Fatalf("Wheels not Ready() after Init\n")
	}
	if w.NumPCPUs() != 4 {
		t.Fatalf("NumPCPUs: got %d want 4\n", w.NumPCPUs())
	}
	for i := range w.wheels {
		wh := &w.wheels[i]
		if len(wh.freeList) != MaxTimersPerWheel {
			t.Fatalf("pcpu %d: free list size %d want %d\n", i, len(wh.freeList), MaxTimersPerWheel)
		}
		for s := range wh.spokes {
			if !wh.spokes[s].isEmpty() {
				t.Fatalf("pcpu %d spoke %d: not empty after init\n", i, s)
			}
		}
	}
}

func TestWheelAddFreeListShrinksAndRestores(t *testing.T) {
	w, _ := newTestWheels(t, 1)
	wh := &w.wheels[0]

	h, err := w.Add(0, 100, 0, func(*Wheels, Handle, TC, interface{}) {}, nil)
	if err != nil {
		t.Fatalf("Add: %s\n", err)
	}
	if len(wh.freeList) != MaxTimersPerWheel-1 {
		t.Fatalf("free list after Add: got %d want %d\n", len(wh.freeList), MaxTimersPerWheel-1)
	}

	ok, err := w.Remove(h)
	if err != nil || !ok {
		t.Fatalf("Remove: ok=%v err=%s\n", ok, err)
	}
	if len(wh.freeList) != MaxTimersPerWheel {
		t.Fatalf("free list after Remove: got %d want %d\n", len(wh.freeList), MaxTimersPerWheel)
	}
}

func TestWheelSlotExhausted(t *testing.T) {
	w, _ := newTestWheels(t, 1)
	for i := 0; i < MaxTimersPerWheel; i++ {
		h, err := w.Add(0, 100, 0, func(*Wheels, Handle, TC, interface{}) {}, nil)
		if err != nil {
			t.Fatalf("Add #%d: %s\n", i, err)
		}
		if h.Zero() {
			t.Fatalf("Add #%d: returned the zero handle for a live, armed timer\n", i)
		}
	}
	if _, err := w.Add(0, 100, 0, func(*Wheels, Handle, TC, interface{}) {}, nil); err != ErrSlotExhausted {
		t.Fatalf("Add on exhausted wheel: got %v want %v\n", err, ErrSlotExhausted)
	}
}

func TestWheelGenerationBumpsOnFree(t *testing.T) {
	w, _ := newTestWheels(t, 1)
	h1, err := w.Add(0, 100, 0, func(*Wheels, Handle, TC, interface{}) {}, nil)
	if err != nil {
		t.Fatalf("Add: %s\n", err)
	}
	if _, err := w.Remove(h1); err != nil {
		t.Fatalf("Remove: %s\n", err)
	}
	h2, err := w.Add(0, 200, 0, func(*Wheels, Handle, TC, interface{}) {}, nil)
	if err != nil {
		t.Fatalf("re-Add: %s\n", err)
	}
	if h1.slot() == h2.slot() && h1.generation() == h2.generation() {
		t.Fatalf("reused slot %d kept the same generation %d across free/realloc\n", h1.slot(), h1.generation())
	}
	if w.Pending(h1) {
		t.Fatalf("stale handle h1 reports Pending() true after its slot was reused\n")
	}
}

func TestWheelSpokeSortedness(t *testing.T) {
	w, src := newTestWheels(t, 1)
	src.Advance(1000)

	deadlines := []uint64{50, 5, 9000, 1, 200, 4}
	for _, d := range deadlines {
		if _, err := w.Add(0, TC(1000+d), 0, func(*Wheels, Handle, TC, interface{}) {}, nil); err != nil {
			t.Fatalf("Add(%d): %s\n", d, err)
		}
	}

	wh := &w.wheels[0]
	wh.mu.Lock()
	defer wh.mu.Unlock()
	for s := range wh.spokes {
		var last TC
		first := true
		wh.spokes[s].forEach(func(tm *timer) bool {
			if !first && tm.deadline.LT(last) {
				t.Fatalf("spoke %d not sorted: %s before %s\n", s, last, tm.deadline)
			}
			last = tm.deadline
			first = false
			return true
		})
	}
}
