// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import "time"

// removeSyncSpinLimit bounds RemoveSync's spin against a FIRING timer
// before it gives up and panics: a stuck FIRING flag means the callback
// itself is stuck, which is corruption, not a race to be tolerated.
const removeSyncSpinLimit = 1_000_000

// Add arms a new timer on pcpu, firing fn(wh, handle, now, arg) at
// deadlineTC and, if periodTC != 0, every periodTC thereafter. The
// module must have completed Init.
func (w *Wheels) Add(pcpu int, deadlineTC, periodTC TC, fn Callback, arg interface{}) (Handle, error) {
	return w.AddGroup(pcpu, 0, deadlineTC, periodTC, fn, arg)
}

// AddGroup is Add plus a group tag; timers sharing a group can later be
// removed together with RemoveGroup.
func (w *Wheels) AddGroup(pcpu int, group GroupID, deadlineTC, periodTC TC, fn Callback, arg interface{}) (Handle, error) {
	if !w.Ready() {
		return 0, ErrUninitialized
	}
	if fn == nil {
		return 0, ErrNilCallback
	}
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return 0, err
	}
	if periodTC != 0 && periodTC.Val() < w.minPeriodTC.Val() {
		return 0, ErrPeriodTooSmall
	}

	wh.mu.Lock()
	h, err := wh.addLocked(deadlineTC, periodTC, group, fn, arg)
	wh.mu.Unlock()
	return h, err
}

// AddMS is Add with a deadline timeoutMS milliseconds from now and, if
// periodic, a period of timeoutMS.
func (w *Wheels) AddMS(pcpu int, timeoutMS uint64, periodic bool, fn Callback, arg interface{}) (Handle, error) {
	return w.addRelative(pcpu, timeoutMS*1000, periodic, fn, arg)
}

// AddHires is Add with a deadline timeoutUS microseconds from now and,
// if periodic, a period of timeoutUS.
func (w *Wheels) AddHires(pcpu int, timeoutUS uint64, periodic bool, fn Callback, arg interface{}) (Handle, error) {
	return w.addRelative(pcpu, timeoutUS, periodic, fn, arg)
}

func (w *Wheels) addRelative(pcpu int, us uint64, periodic bool, fn Callback, arg interface{}) (Handle, error) {
	delta := TC(us * w.tcRate / 1_000_000)
	now := w.Now()
	period := TC(0)
	if periodic {
		period = delta
	}
	return w.Add(pcpu, now.Add(delta), period, fn, arg)
}

// Remove cancels h. If h's timer is currently firing, it is only marked
// EXPIRED; the firing loop frees it when the callback returns. Safe to
// call from within a callback, including for the callback's own handle.
// Returns true iff this call is the one that performed the removal
// (InvalidHandle, including "already removed", is reported by returning
// false with ErrInvalidHandle, not by panicking: a stale handle is an
// ordinary outcome).
func (w *Wheels) Remove(h Handle) (bool, error) {
	wh, err := w.wheelFor(h.PCPU())
	if err != nil {
		return false, err
	}
	wh.mu.Lock()
	defer wh.mu.Unlock()

	tm := wh.lookupLocked(h)
	if tm == nil || tm.loadFlags()&tExpired != 0 {
		return false, ErrInvalidHandle
	}
	wh.removeOneLocked(tm)
	return true, nil
}

// RemoveSync is Remove but waits for an in-flight callback to finish
// before returning. It must not be called from the handle's own
// callback nor from the handle's owning PCPU (spinning there would
// deadlock against the firing loop that needs the same lock to clear
// FIRING); violating that is reported via ErrSyncFromOwningCPU rather
// than silently deadlocking, so callers get a chance to catch the
// programming error before it does. After removeSyncSpinLimit failed
// attempts it panics: a FIRING flag that never clears indicates a stuck
// callback, which is corruption, not an ordinary race.
func (w *Wheels) RemoveSync(h Handle, callerPCPU int) (bool, error) {
	if callerPCPU == h.PCPU() {
		return false, ErrSyncFromOwningCPU
	}
	wh, err := w.wheelFor(h.PCPU())
	if err != nil {
		return false, err
	}

	for attempt := 0; ; attempt++ {
		wh.mu.Lock()
		tm := wh.lookupLocked(h)
		if tm == nil {
			wh.mu.Unlock()
			return false, ErrInvalidHandle
		}
		if tm.loadFlags()&tFiring == 0 {
			wh.removeOneLocked(tm)
			wh.mu.Unlock()
			return true, nil
		}
		wh.mu.Unlock()

		if attempt >= removeSyncSpinLimit {
			PANIC("RemoveSync: handle %v stuck FIRING after %d attempts\n", h, attempt)
		}
		if attempt > 0 && attempt%1000 == 0 && WARNon() {
			WARN("RemoveSync: handle %v still FIRING after %d attempts\n", h, attempt)
		}
		time.Sleep(time.Microsecond)
	}
}

// Modify changes h's deadline and, for a periodic timer, its period.
// While a periodic timer's callback is running (including a Modify from
// within that callback on its own handle), the new values are recorded
// on the detached timer and the firing loop re-arms it at the new
// deadline when the callback returns. A one-shot that has already fired
// is reported as ErrInvalidHandle.
func (w *Wheels) Modify(h Handle, newDeadlineTC, newPeriodTC TC) (bool, error) {
	wh, err := w.wheelFor(h.PCPU())
	if err != nil {
		return false, err
	}
	if newPeriodTC != 0 && newPeriodTC.Val() < w.minPeriodTC.Val() {
		return false, ErrPeriodTooSmall
	}

	wh.mu.Lock()
	defer wh.mu.Unlock()

	tm := wh.lookupLocked(h)
	if tm == nil || tm.loadFlags()&tExpired != 0 {
		return false, ErrInvalidHandle
	}
	firing := tm.loadFlags()&tFiring != 0
	if !firing && !tm.isDetached() {
		wh.spokes[tm.spokeIdx].rm(tm)
	}
	tm.deadline = newDeadlineTC
	if tm.loadFlags()&tPeriodic != 0 {
		tm.period = newPeriodTC
	}
	if !firing {
		wh.spokes[spokeFor(newDeadlineTC)].insert(tm)
	}
	return true, nil
}

// GetTimeout snapshots h's deadline and period under its wheel's lock.
func (w *Wheels) GetTimeout(h Handle) (deadlineTC, periodTC TC, ok bool, err error) {
	wh, werr := w.wheelFor(h.PCPU())
	if werr != nil {
		return 0, 0, false, werr
	}
	wh.mu.Lock()
	defer wh.mu.Unlock()

	tm := wh.lookupLocked(h)
	if tm == nil {
		return 0, 0, false, nil
	}
	return tm.deadline, tm.period, true, nil
}

// Pending reports whether h still names a live (non-free, non-expired)
// timer. The result is inherently racy: a concurrent firing loop may
// transition the answer from true to false before the caller observes
// it, but it never goes the other way.
func (w *Wheels) Pending(h Handle) bool {
	wh, err := w.wheelFor(h.PCPU())
	if err != nil {
		return false
	}
	idx := h.slot()
	if int(idx) >= len(wh.slots) {
		return false
	}
	tm := &wh.slots[idx]
	if tm.loadGeneration() != h.generation() {
		return false
	}
	return tm.loadFlags()&(tFree|tExpired) == 0
}
