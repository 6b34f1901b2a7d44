// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import "sync/atomic"

// globalState is process-wide state: a single instance of this is shared
// by every wheel produced by the same Wheels.Init call. Jiffies is a
// coarse 10ms counter advanced only by PCPU 0's hard interrupt;
// TimeOfDayOffset lets wall time be recovered as offset + now()
// converted to µs.
type globalState struct {
	jiffies         uint64 // atomic
	timeOfDayOffset int64  // atomic
}

// Jiffies returns the current low-resolution (~10ms) tick count exported
// to legacy callers.
func (w *Wheels) Jiffies() uint64 {
	return atomic.LoadUint64(&w.globals.jiffies)
}

func (w *Wheels) advanceJiffies() {
	atomic.AddUint64(&w.globals.jiffies, 1)
}

// TimeOfDayOffsetUS returns the offset such that wall time in
// microseconds equals offset + (now() converted to µs).
func (w *Wheels) TimeOfDayOffsetUS() int64 {
	return atomic.LoadInt64(&w.globals.timeOfDayOffset)
}

// SetTimeOfDayOffsetUS installs a new wall-clock offset, e.g. after NTP
// sync or guest-initiated clock adjustment.
func (w *Wheels) SetTimeOfDayOffsetUS(offsetUS int64) {
	atomic.StoreInt64(&w.globals.timeOfDayOffset, offsetUS)
}
