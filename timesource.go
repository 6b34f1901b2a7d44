// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/timestamp"
)

// Source abstracts the monotonic counter behind now(): a single
// indirect call, selected once at init, so the rest of the subsystem
// never cares whether it is backed by a real TSC, a cross-chip
// performance counter, or a scaled fallback.
type Source interface {
	// Now returns the current reading in time-source units.
	Now() uint64
	// HZ returns the source's rate in units/second.
	HZ() uint64
}

// DefaultSource reads the host's monotonic clock through
// github.com/intuitivelabs/timestamp (itself backed by the TSC or
// equivalent) and applies shiftTC so Now() reads ~0 at the moment the
// source was created, the same adjustment a literal TSC read needs
// after a hardware reset.
type DefaultSource struct {
	ref     timestamp.TS
	hz      uint64
	shiftTC int64 // atomic
}

// NewDefaultSource builds the reference Source, reading the host's
// monotonic clock through github.com/intuitivelabs/timestamp at the
// given rate.
func NewDefaultSource(hz uint64) *DefaultSource {
	return &DefaultSource{ref: timestamp.Now(), hz: hz}
}

func (s *DefaultSource) Now() uint64 {
	elapsed := timestamp.Now().Sub(s.ref) // time.Duration, ns
	raw := int64(elapsed) * int64(s.hz) / int64(time.Second)
	return uint64(raw + atomic.LoadInt64(&s.shiftTC))
}

func (s *DefaultSource) HZ() uint64 { return s.hz }

// CorrectForTSCShift adjusts shiftTC by delta so Now() remains monotonic
// across a hardware TSC reset. Only the default and fake-NUMA sources
// honor this; the cross-chip source already reads a counter that is not
// reset per-PCPU.
func (s *DefaultSource) CorrectForTSCShift(delta int64) {
	atomic.AddInt64(&s.shiftTC, delta)
}

// CrossChipSource extends a shared 32-bit performance counter (read via
// low32) to 63 bits in software using a lock-free carry protocol, so
// PCPUs on different nodes that read the same chip's counter observe a
// consistent, monotonically increasing value despite only ever reading
// 32 bits of hardware state at a time.
//
// The extension word must be refreshed at least once every 2^30/rate
// seconds; the hard tick reading Now() on every interrupt guarantees
// this in practice.
type CrossChipSource struct {
	low32     func() uint32
	hz        uint64
	extension uint32 // atomic
}

// NewCrossChipSource builds a Source extending the 32-bit hardware
// counter read by low32 to 63 bits, ticking at hz.
func NewCrossChipSource(low32 func() uint32, hz uint64) *CrossChipSource {
	return &CrossChipSource{low32: low32, hz: hz}
}

func (s *CrossChipSource) Now() uint64 {
	lo := s.low32()
	ext := atomic.LoadUint32(&s.extension)

	hiBit := (lo >> 31) & 1
	extLowBit := ext & 1
	if hiBit != extLowBit {
		// The low-half top bit and the extension's parity disagree:
		// a rollover happened between reading lo and reading ext.
		if (lo>>30)&1 == 0 {
			// winner's branch: publish the bump. The store is
			// relaxed (no fence) but is issued strictly after the
			// read of lo above, so it can never be reordered ahead
			// of the hardware-counter read it depends on.
			ext++
			atomic.StoreUint32(&s.extension, ext)
		} else {
			// race-loser branch: someone else's bump hasn't been
			// published yet; treat ext-1 as the correct high half.
			ext--
		}
	}
	return uint64(ext)<<31 | uint64(lo&0x7fff_ffff)
}

func (s *CrossChipSource) HZ() uint64 { return s.hz }

// FakeNUMASource divides the default source's ticks by a small constant,
// used by POST and tests to exercise PCPUs that disagree about their TSC
// rate without needing real heterogeneous hardware.
type FakeNUMASource struct {
	base Source
	div  uint64
}

// NewFakeNUMASource builds a Source reading base at 1/div its native
// rate. div of 0 is treated as 1 (no division).
func NewFakeNUMASource(base Source, div uint64) *FakeNUMASource {
	if div == 0 {
		div = 1
	}
	return &FakeNUMASource{base: base, div: div}
}

func (s *FakeNUMASource) Now() uint64 { return s.base.Now() / s.div }
func (s *FakeNUMASource) HZ() uint64  { return s.base.HZ() / s.div }

// CorrectForTSCShift forwards the correction to the underlying source,
// if it supports it.
func (s *FakeNUMASource) CorrectForTSCShift(delta int64) {
	if c, ok := s.base.(interface{ CorrectForTSCShift(int64) }); ok {
		c.CorrectForTSCShift(delta)
	}
}
