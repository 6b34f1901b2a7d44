// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"errors"
)

// Errors returned for runtime, race-induced outcomes: a stale or racing
// handle is a normal occurrence, not a bug, so these are plain sentinel
// errors rather than panics.
var ErrInvalidHandle = errors.New("invalid or stale timer handle")
var ErrUnknownGroup = errors.New("unknown timer group")

// Errors returned for programming errors: normally these would be
// asserted, but they are surfaced here as errors too since a hosted
// module should be able to refuse a caller mistake instead of always
// aborting the process.
var ErrUninitialized = errors.New("timer subsystem not initialized")
var ErrPeriodTooSmall = errors.New("period below MinPeriodUS")
var ErrTicksTooHigh = errors.New("deadline delta exceeds MaxTCDiff")
var ErrNilCallback = errors.New("Add called with a nil callback")
var ErrBadPCPU = errors.New("pcpu index out of range")
var ErrSyncFromOwningCPU = errors.New("RemoveSync called from the handle's owning PCPU")
var ErrSlotExhausted = errors.New("wheel free list exhausted")
