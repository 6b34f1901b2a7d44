// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package timer implements the core of a hypervisor-style deferred-callback
// (timer) subsystem: a per-PCPU hashed timing wheel with sorted spokes,
// generation-tagged handles, a soft-timer discipline layered on a hard
// tick, and a pseudo-TSC time base reconciled across PCPUs.
package timer

const NAME = "hvtimer"

// Sizing constants. These are fixed at compile time: the wheel and the
// handle table never resize at runtime.
const (
	// MaxPCPUs bounds the number of physical processors this build
	// supports; it sizes the PCPU field of both Handle and GroupID.
	MaxPCPUs = 64
	pcpuBits = 6 // log2(MaxPCPUs)

	// MaxTimersPerWheel is the fixed slab size of each PCPU's wheel.
	// Size it >= worlds-per-PCPU * expected-timers-per-world.
	MaxTimersPerWheel = 512
	slotBits          = 9 // log2(MaxTimersPerWheel)

	// SpokeCount is the number of buckets in a PCPU's spoke array.
	// Tuned so that, on average, one spoke holds about one outstanding
	// timer for the expected load.
	SpokeCount = 64
	spokeBits  = 6 // log2(SpokeCount)

	// SpokeWidthShift: 2^F time-source units per spoke width, tuned so
	// one spoke is roughly one hard tick wide (1024 units: one default
	// 1000us tick at a 1 MHz time source).
	SpokeWidthShift = 10

	// generationBits is whatever is left of the 64-bit handle after the
	// pcpu and slot fields; generation 0 is reserved to mean "invalid".
	generationBits = 64 - pcpuBits - slotBits

	// MinPeriodUS is the compile-time floor for a periodic timer's
	// period, in microseconds. It is converted to TC units once, at
	// Wheels.Init time, by integer multiply/divide with the TC rate (see
	// (*Wheels).minPeriodTC).
	MinPeriodUS uint64 = 100

	// jiffyPeriodNS is the coarse legacy tick exported via Jiffies().
	jiffyPeriodNS uint64 = 10_000_000 // 10ms
)
