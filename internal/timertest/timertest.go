// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package timertest holds package-level fakes shared by the timer
// package's own tests and by post's self-test: a hand-advanced Source
// and one fake per collaborator interface (InterruptController,
// BottomHalfDispatcher, Scheduler), so neither test suite needs its own
// private copy.
//
// It takes no dependency on the timer package itself, so it can be
// imported both from package timer's white-box tests and from post's
// black-box tests without an import cycle; Scheduler is generic over
// the "now" value precisely so it need not name timer.TC.
package timertest

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a fully controllable Source for deterministic tests: it
// starts at zero and only advances when Advance is called.
type Clock struct {
	hz uint64
	v  uint64 // atomic
}

// NewClock builds a Clock ticking at hz units/second, read starting
// from zero.
func NewClock(hz uint64) *Clock {
	return &Clock{hz: hz}
}

func (c *Clock) Now() uint64      { return atomic.LoadUint64(&c.v) }
func (c *Clock) HZ() uint64       { return c.hz }
func (c *Clock) Advance(d uint64) { atomic.AddUint64(&c.v, d) }

// WallClock is a Source backed by the real wall clock, scaled to hz
// units/second. It is useful where a test wants a real ticking
// goroutine (e.g. TickerSource) driving the wheel rather than a
// hand-advanced simulated clock.
type WallClock struct {
	hz uint64
}

// NewWallClock builds a WallClock ticking at hz units/second.
func NewWallClock(hz uint64) WallClock {
	return WallClock{hz: hz}
}

func (w WallClock) Now() uint64 { return uint64(time.Now().UnixNano()) * w.hz / 1_000_000_000 }
func (w WallClock) HZ() uint64  { return w.hz }

// InterruptController records every SetPeriod call instead of
// programming real hardware.
type InterruptController struct {
	calls int32 // atomic
}

// SetPeriod implements the timer package's InterruptController
// interface.
func (f *InterruptController) SetPeriod(pcpu int, us uint64) (uint64, error) {
	atomic.AddInt32(&f.calls, 1)
	return 0, nil
}

// Calls reports how many times SetPeriod was invoked.
func (f *InterruptController) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// BottomHalfDispatcher records ScheduleBH requests instead of acting on
// them, so a test can assert a bottom half was (or wasn't) requested
// without a real dispatcher in the loop.
type BottomHalfDispatcher struct {
	calls int32 // atomic
	last  int32 // atomic, most recently requested pcpu + 1; 0 means none yet
}

// ScheduleBH implements the timer package's BottomHalfDispatcher
// interface.
func (f *BottomHalfDispatcher) ScheduleBH(pcpu int) {
	atomic.AddInt32(&f.calls, 1)
	atomic.StoreInt32(&f.last, int32(pcpu+1))
}

// Calls reports how many times ScheduleBH was invoked.
func (f *BottomHalfDispatcher) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// LastPCPU reports the pcpu argument of the most recent ScheduleBH
// call, and whether any call has happened yet.
func (f *BottomHalfDispatcher) LastPCPU() (pcpu int, ok bool) {
	v := atomic.LoadInt32(&f.last)
	if v == 0 {
		return 0, false
	}
	return int(v - 1), true
}

// Tick is one recorded Scheduler.OnTick call.
type Tick[T any] struct {
	PCPU int
	Now  T
}

// Scheduler records every OnTick call in order. T is left generic
// (rather than importing the timer package's TC) so this package stays
// free of any dependency on it; callers instantiate Scheduler[timer.TC].
type Scheduler[T any] struct {
	mu    sync.Mutex
	ticks []Tick[T]
}

// OnTick implements the timer package's Scheduler interface.
func (f *Scheduler[T]) OnTick(pcpu int, now T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, Tick[T]{PCPU: pcpu, Now: now})
}

// Ticks returns a copy of every OnTick call recorded so far, in order.
func (f *Scheduler[T]) Ticks() []Tick[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Tick[T], len(f.ticks))
	copy(out, f.ticks)
	return out
}
