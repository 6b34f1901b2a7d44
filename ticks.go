// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"strconv"
)

// TCBits is the number of significant bits in a TC (time-source) value.
// MaxTCDiff bounds how far apart two TC values may be and still compare
// correctly under wraparound: curTC is monotonically non-decreasing,
// modulo occasional time-source shift corrections.
const (
	TCBits    = 64
	MaxTCDiff = 1 << (TCBits - 1)
)

// TC is an absolute point in time expressed in time-source units. It has
// no zero or reference value of its own; two TC values may only be
// meaningfully compared if their difference is strictly less than
// MaxTCDiff.
type TC uint64

// NewTC wraps a raw uint64 time-source reading as a TC.
func NewTC(u uint64) TC { return TC(u) }

// Val returns the raw uint64 value.
func (t TC) Val() uint64 { return uint64(t) }

// EQ reports t == u, taking wraparound into account.
func (t TC) EQ(u TC) bool { return uint64(t-u) == 0 }

// NE reports t != u.
func (t TC) NE(u TC) bool { return !t.EQ(u) }

// LT reports t < u, valid as long as |t-u| < MaxTCDiff.
func (t TC) LT(u TC) bool { return uint64(t-u)&MaxTCDiff != 0 }

// GT reports t > u.
func (t TC) GT(u TC) bool { return !t.LT(u) && t.NE(u) }

// GE reports t >= u.
func (t TC) GE(u TC) bool { return uint64(t-u)&MaxTCDiff == 0 }

// LE reports t <= u.
func (t TC) LE(u TC) bool { return t.LT(u) || t.EQ(u) }

// Add returns t+u.
func (t TC) Add(u TC) TC { return t + u }

// Sub returns t-u.
func (t TC) Sub(u TC) TC { return t - u }

// AddUint64 returns t+u.
func (t TC) AddUint64(u uint64) TC { return t + TC(u) }

// SubUint64 returns t-u.
func (t TC) SubUint64(u uint64) TC { return t - TC(u) }

func (t TC) String() string { return strconv.FormatUint(uint64(t), 10) }
