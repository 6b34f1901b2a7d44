// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import "sync/atomic"

// Callback is invoked when a timer fires. wh is the owning Wheels
// instance, h is the handle of the firing timer (stable across the call,
// even though the slot may be freed the moment the callback returns for a
// one-shot or a removed periodic timer), now is curTC at the time of
// firing, and arg is the opaque value passed to Add.
type Callback func(wh *Wheels, h Handle, now TC, arg interface{})

// timer flags. Exactly one of oneShot/periodic is set on an armed timer;
// free/firing/expired are the transient state bits. They are read and
// written atomically so Pending() can answer without taking the wheel
// lock, and so a concurrent firing loop on another goroutine can observe
// a Remove()-set tExpired bit the moment it is published.
const (
	tFree     uint32 = 1 << iota // on the wheel's free list
	tOneShot                     // fires once, then frees
	tPeriodic                    // re-arms with periodTC on each fire
	tFiring                      // callback currently executing, detached
	tExpired                     // fired (one-shot) or deleted while firing
)

// timer is the internal slot structure backing a Handle. It is
// intrusive-listed: next/prev link it into exactly one of a wheel's
// spokes or (transiently) nothing while firing. next/prev/deadline/
// period/group/fn/arg are only ever touched under the owning wheel's
// lock; flags and generation are additionally accessed lock-free by
// Pending().
type timer struct {
	next, prev *timer

	deadline TC
	period   TC // 0 for one-shot
	group    GroupID
	handle   Handle

	flags      uint32 // atomic, see tFree et al.
	generation uint32 // atomic, bumped (skipping 0) each time the slot frees

	fn  Callback
	arg interface{}

	spokeIdx uint32 // which spoke this timer is currently linked into
	slotIdx  uint32 // this timer's fixed index into its wheel's slab
}

func (t *timer) isDetached() bool {
	return t == t.next || (t.next == nil && t.prev == nil)
}

func (t *timer) loadFlags() uint32      { return atomic.LoadUint32(&t.flags) }
func (t *timer) storeFlags(f uint32)    { atomic.StoreUint32(&t.flags, f) }
func (t *timer) setFlags(mask uint32)   { atomicOr(&t.flags, mask) }
func (t *timer) clearFlags(mask uint32) { atomicAnd(&t.flags, ^mask) }

func (t *timer) loadGeneration() uint32 { return atomic.LoadUint32(&t.generation) }

// bumpGeneration increments the slot's generation, skipping the reserved
// 0 value on wraparound.
func (t *timer) bumpGeneration() uint32 {
	for {
		cur := atomic.LoadUint32(&t.generation)
		next := cur + 1
		if next == 0 {
			next = 1
		}
		if atomic.CompareAndSwapUint32(&t.generation, cur, next) {
			return next
		}
	}
}

func atomicOr(addr *uint32, mask uint32) {
	for {
		cur := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, cur, cur|mask) {
			return
		}
	}
}

func atomicAnd(addr *uint32, mask uint32) {
	for {
		cur := atomic.LoadUint32(addr)
		if atomic.CompareAndSwapUint32(addr, cur, cur&mask) {
			return
		}
	}
}
