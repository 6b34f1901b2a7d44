// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import "sync/atomic"

const (
	groupCounterBits = 64 - pcpuBits
	groupCounterMask = (1 << groupCounterBits) - 1
)

// GroupID identifies a set of timers that can be removed together with
// RemoveGroup. It is partitioned the same way Handle is: low bits hold
// the owning PCPU, the rest a per-PCPU monotonic counter. Zero means
// "no group".
type GroupID uint64

func newGroupID(pcpu int, counter uint64) GroupID {
	return GroupID(uint64(pcpu&pcpuMask) | (counter&groupCounterMask)<<pcpuBits)
}

// PCPU returns the processor that owns g.
func (g GroupID) PCPU() int { return int(g) & pcpuMask }

// Zero reports whether g is the no-group sentinel.
func (g GroupID) Zero() bool { return g == 0 }

// CreateGroup allocates a new group identifier partitioned to pcpu.
// Timers added with this group can later all be removed together via
// RemoveGroup.
func (w *Wheels) CreateGroup(pcpu int) (GroupID, error) {
	if pcpu < 0 || pcpu >= len(w.wheels) {
		return 0, ErrBadPCPU
	}
	n := atomic.AddUint64(&w.wheels[pcpu].groupSeq, 1)
	return newGroupID(pcpu, n), nil
}

// RemoveGroup walks every slot of the group's owning PCPU's wheel (so
// timers detached while firing are seen too) and removes every live
// timer tagged with it, using the same FIRING/EXPIRED discipline as
// Remove: a timer currently firing is marked EXPIRED instead of being
// freed immediately, and the firing loop frees it on return.
func (w *Wheels) RemoveGroup(g GroupID) error {
	if g.Zero() {
		return ErrUnknownGroup
	}
	pcpu := g.PCPU()
	if pcpu < 0 || pcpu >= len(w.wheels) {
		return ErrBadPCPU
	}
	wh := &w.wheels[pcpu]

	wh.mu.Lock()
	for i := range wh.slots {
		tm := &wh.slots[i]
		if tm.loadFlags()&tFree == 0 && tm.group == g {
			wh.removeOneLocked(tm)
		}
	}
	wh.mu.Unlock()
	return nil
}
