// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"github.com/intuitivelabs/slog"
)

// Log is the package-wide logger. Callers adjust verbosity with
// slog.SetLevel(&Log, slog.LWARN); the default level is left at
// slog.LNOTICE so BUG()/PANIC() are always visible but per-tick DBG()
// traffic is not.
var Log slog.Log = slog.Log{
	Prefix: NAME + ": ",
	L:      slog.LNOTICE,
}

func DBGon() bool  { return Log.L >= slog.LDBG }
func INFOon() bool { return Log.L >= slog.LINFO }
func WARNon() bool { return Log.L >= slog.LWARN }
func ERRon() bool  { return Log.L >= slog.LERR }

func DBG(f string, a ...interface{})  { Log.DBG(f, a...) }
func INFO(f string, a ...interface{}) { Log.INFO(f, a...) }
func WARN(f string, a ...interface{}) { Log.WARN(f, a...) }
func ERR(f string, a ...interface{})  { Log.ERR(f, a...) }

// BUG logs an invariant violation. It never aborts the process: a
// corrupted-but-recoverable state is reported, not fatal.
func BUG(f string, a ...interface{}) { Log.BUG(f, a...) }

// PANIC logs and then panics. Reserved for the handful of cases that
// indicate deeper corruption (e.g. a RemoveSync spin that never
// terminates) rather than an ordinary caller mistake.
func PANIC(f string, a ...interface{}) {
	Log.PANIC(f, a...)
}
