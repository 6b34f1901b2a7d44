// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

// rateConv holds the integer mult/shift/add parameters for converting
// between two linear unit bases without floating point:
//
//	y = add + (x * mult) >> shift
//
// Conversion parameters are computed once, off the hot path, and the
// identity conversion (add=0, mult=1, shift=0) is recognized and
// short-circuited by Convert.
type rateConv struct {
	add   int64
	mult  uint32
	shift uint8
}

// identityRateConv is the short-circuited y = x conversion.
var identityRateConv = rateConv{add: 0, mult: 1, shift: 0}

// computeRateConv derives conversion parameters from one linear clock
// base (x0, xrate) to another (y0, yrate), preserving about 32 bits of
// precision in mult:
//
//  1. start with mult = yrate, shift = 0; left-shift mult until its top
//     bit is set, incrementing shift each step;
//  2. right-shift xrate into div (a 32-bit value), incrementing shift for
//     each shift;
//  3. divide to get mult = mult / div, then right-shift mult while it is
//     still >= 2^32, decrementing shift;
//  4. add = y0 - (x0 * mult) >> shift.
func computeRateConv(x0 int64, xrate uint64, y0 int64, yrate uint64) rateConv {
	if xrate == yrate && x0 == y0 {
		return identityRateConv
	}

	var shift uint
	mult := yrate
	for mult&0x8000_0000_0000_0000 == 0 && mult != 0 {
		mult <<= 1
		shift++
	}

	div := xrate
	for div > 0xffff_ffff {
		div >>= 1
		shift++
	}
	if div == 0 {
		div = 1
	}

	mult /= div
	for mult >= (1 << 32) {
		mult >>= 1
		shift--
	}

	rc := rateConv{mult: uint32(mult)}
	if shift > 255 {
		shift = 255
	}
	rc.shift = uint8(shift)
	rc.add = y0 - convertWith(x0, rc)
	return rc
}

func convertWith(x int64, rc rateConv) int64 {
	return (x * int64(rc.mult)) >> rc.shift
}

// Convert applies y = add + (x*mult)>>shift.
func (rc rateConv) Convert(x int64) int64 {
	if rc == identityRateConv {
		return x
	}
	return rc.add + convertWith(x, rc)
}

// ConvertTC is the uint64/TC-flavored equivalent of Convert, used on the
// curTC hot path where values are never negative.
func (rc rateConv) ConvertTC(x uint64) uint64 {
	return uint64(rc.Convert(int64(x)))
}
