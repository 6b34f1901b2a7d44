// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"sync"
	"sync/atomic"
)

// wheelStats are the per-wheel counters exported through the status
// surface.
type wheelStats struct {
	added          uint64
	fired          uint64
	removed        uint64
	overdue        uint64 // fired late enough to cross at least one extra spoke
	overdueDropped uint64 // re-armed one full period out instead of catching up a missed cycle
	slotsInUse     uint64

	interrupts     uint64
	periodSetCount uint64
	lostCycles     uint64
}

// wheel is one PCPU's hashed timing wheel: a fixed slab of timer slots,
// a free list over that slab, and SpokeCount sorted spokes. Every field
// below only changes under mu, except groupSeq, which CreateGroup bumps
// atomically, and flags/generation on the individual *timer values,
// which are additionally touched lock-free by Pending().
type wheel struct {
	mu sync.Mutex

	owner *Wheels // back-reference, used to pass the right Wheels to callbacks
	pcpu  int

	slots    []timer
	freeList []uint32

	spokes   [SpokeCount]timerList
	curSpoke uint32
	curTC    TC

	groupSeq uint64

	// scheduler tick, driven off the same hard tick as the wheel.
	schedDeadlineTC TC
	schedPeriodTC   TC

	// stats callback, driven on its own period independent of the
	// scheduler tick.
	statsDeadlineTC TC
	statsPeriodTC   TC

	// PCPU 0 only: advances the process-wide jiffies counter.
	jiffyDeadlineTC TC
	jiffyPeriodTC   TC

	// hard-interrupt period tunable: periodUS is what the controller is
	// currently programmed for; newPeriodUS is written by SetPeriodUS
	// and picked up by the next HardInterrupt.
	periodUS    uint64
	newPeriodUS uint64

	stats wheelStats
}

func (w *wheel) init(pcpu int) {
	w.pcpu = pcpu
	w.slots = make([]timer, MaxTimersPerWheel)
	w.freeList = make([]uint32, 0, MaxTimersPerWheel)
	for i := range w.slots {
		w.slots[i].next = &w.slots[i]
		w.slots[i].prev = &w.slots[i]
		w.slots[i].slotIdx = uint32(i)
		w.slots[i].flags = tFree
		w.slots[i].generation = 1 // 0 is reserved for the invalid handle
		w.freeList = append(w.freeList, uint32(i))
	}
	for i := range w.spokes {
		w.spokes[i].init(uint32(i))
	}
}

// spokeFor returns which spoke a timer deadline of d falls into.
func spokeFor(d TC) uint32 {
	return uint32(d.Val()>>SpokeWidthShift) & (SpokeCount - 1)
}

// allocLocked pops a free slot, or reports ErrSlotExhausted: the slab is
// fixed-size and never grows at runtime.
func (w *wheel) allocLocked() (*timer, error) {
	n := len(w.freeList)
	if n == 0 {
		return nil, ErrSlotExhausted
	}
	idx := w.freeList[n-1]
	w.freeList = w.freeList[:n-1]
	tm := &w.slots[idx]
	if tm.loadFlags()&tFree == 0 {
		PANIC("wheel %d: slot %d taken from the free list while still armed\n", w.pcpu, idx)
	}
	w.stats.slotsInUse++
	return tm, nil
}

// freeLocked returns tm to the free list and bumps its generation so any
// stale Handle referring to the old occupant reads as invalid. tm must
// already be detached from every spoke.
func (w *wheel) freeLocked(tm *timer) {
	if !tm.isDetached() {
		PANIC("wheel %d: freeLocked called on a linked timer %p\n", w.pcpu, tm)
	}
	tm.fn = nil
	tm.arg = nil
	tm.group = 0
	tm.deadline = 0
	tm.period = 0
	tm.bumpGeneration()
	tm.storeFlags(tFree)
	w.freeList = append(w.freeList, tm.slotIdx)
	w.stats.slotsInUse--
}

// addLocked arms a free slot with the given parameters, links it into the
// spoke for deadline, and returns its Handle.
func (w *wheel) addLocked(deadline, period TC, group GroupID, fn Callback, arg interface{}) (Handle, error) {
	tm, err := w.allocLocked()
	if err != nil {
		return 0, err
	}
	tm.deadline = deadline
	tm.period = period
	tm.group = group
	tm.fn = fn
	tm.arg = arg

	flags := tOneShot
	if period != 0 {
		flags = tPeriodic
	}
	tm.storeFlags(flags)

	h := newHandle(w.pcpu, tm.slotIdx, tm.loadGeneration())
	tm.handle = h

	w.spokes[spokeFor(deadline)].insert(tm)
	w.stats.added++
	return h, nil
}

// lookupLocked validates h against the slab and returns the live *timer it
// names, or nil if h is stale (slot freed/reused, wrong generation) or out
// of range. It never looks at the timer's link state.
func (w *wheel) lookupLocked(h Handle) *timer {
	idx := h.slot()
	if int(idx) >= len(w.slots) {
		return nil
	}
	tm := &w.slots[idx]
	if tm.loadGeneration() != h.generation() {
		return nil
	}
	if tm.loadFlags()&tFree != 0 {
		return nil
	}
	return tm
}

// removeOneLocked unlinks tm from its spoke (if linked) and frees it,
// unless it is currently firing, in which case it is only marked
// tExpired and the firing loop frees it on return. Safe to call for a
// timer found via a spoke scan (RemoveGroup) or via lookupLocked
// (Remove).
func (w *wheel) removeOneLocked(tm *timer) {
	f := tm.loadFlags()
	if f&tFiring != 0 {
		tm.setFlags(tExpired)
		return
	}
	if !tm.isDetached() {
		w.spokes[tm.spokeIdx].rm(tm)
	}
	w.stats.removed++
	w.freeLocked(tm)
}

// Wheels is the process-wide collection of per-PCPU wheels plus the
// shared time base that converts a Source's native rate into TC units.
type Wheels struct {
	src  Source
	conv rateConv // Source units -> TC; identityRateConv when they match

	minPeriodTC TC
	tcRate      uint64 // TC units per second, used to size default periods

	wheels  []wheel
	globals globalState

	ready uint32 // atomic, 1 once Init has completed successfully
}

// defaultPeriodUS is the interrupt period a wheel starts with before any
// SetPeriodUS call.
const defaultPeriodUS uint64 = 1000

// Init allocates numPCPUs wheels and derives the TC rate conversion from
// src, whose native HZ may differ from the process-wide TC rate the
// caller picks (tcHZ); pass tcHZ == 0 to run TC directly in the source's
// native units (the common case, and the only one exercised by the
// self-test in package post).
func (w *Wheels) Init(numPCPUs int, src Source, tcHZ uint64) error {
	if numPCPUs <= 0 || numPCPUs > MaxPCPUs {
		return ErrBadPCPU
	}
	if src == nil {
		return ErrUninitialized
	}
	w.src = src
	if tcHZ == 0 || tcHZ == src.HZ() {
		w.conv = identityRateConv
	} else {
		w.conv = computeRateConv(0, src.HZ(), 0, tcHZ)
	}

	rate := tcHZ
	if rate == 0 {
		rate = src.HZ()
	}
	w.minPeriodTC = TC(MinPeriodUS * rate / 1_000_000)
	if w.minPeriodTC == 0 {
		w.minPeriodTC = 1
	}
	w.tcRate = rate

	w.wheels = make([]wheel, numPCPUs)
	for i := range w.wheels {
		wh := &w.wheels[i]
		wh.init(i)
		wh.owner = w
		wh.periodUS = defaultPeriodUS
		wh.newPeriodUS = defaultPeriodUS
		wh.schedPeriodTC = TC(defaultPeriodUS * rate / 1_000_000)
		wh.statsPeriodTC = TC(defaultStatsPeriodUS * rate / 1_000_000)
		if i == 0 {
			wh.jiffyPeriodTC = TC(jiffyPeriodNS * rate / 1_000_000_000)
			if wh.jiffyPeriodTC == 0 {
				wh.jiffyPeriodTC = 1
			}
		}
	}
	atomic.StoreUint32(&w.ready, 1)
	return nil
}

// Ready reports whether Init has completed.
func (w *Wheels) Ready() bool { return atomic.LoadUint32(&w.ready) != 0 }

// NumPCPUs returns the number of wheels Init allocated.
func (w *Wheels) NumPCPUs() int { return len(w.wheels) }

// Now returns the current time in TC units, derived from the underlying
// Source via the conversion computed at Init.
func (w *Wheels) Now() TC {
	return TC(w.conv.ConvertTC(w.src.Now()))
}

func (w *Wheels) wheelFor(pcpu int) (*wheel, error) {
	if pcpu < 0 || pcpu >= len(w.wheels) {
		return nil, ErrBadPCPU
	}
	return &w.wheels[pcpu], nil
}
