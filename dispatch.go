// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

// HardInterrupt is the entry point the InterruptController invokes at
// the configured rate on pcpu. It refreshes curTC, checks whether any
// due work exists between curSpoke and the spoke curTC now hashes to
// and, if so, asks the BottomHalfDispatcher to run the firing loop; it
// also drives the scheduler tick, the PCPU-0 jiffies advance, and
// applies a pending period change. It never runs the firing loop
// itself: the wheel lock here is held only long enough to inspect
// state, so the interrupt handler only ever schedules the bottom half.
func (w *Wheels) HardInterrupt(pcpu int, bh BottomHalfDispatcher, sched Scheduler, stats StatsCollector, ic InterruptController) error {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return err
	}

	wh.mu.Lock()
	wh.curTC = w.Now()
	wh.stats.interrupts++
	hasWork := wh.hasDueWorkLocked()

	if sched != nil && wh.curTC.GE(wh.schedDeadlineTC) {
		wh.schedDeadlineTC = wh.schedDeadlineTC.Add(wh.schedPeriodTC)
		schedNow := wh.curTC
		wh.mu.Unlock()
		sched.OnTick(pcpu, schedNow)
		wh.mu.Lock()
	}

	if pcpu == 0 && wh.jiffyPeriodTC != 0 && wh.curTC.GE(wh.jiffyDeadlineTC) {
		wh.jiffyDeadlineTC = wh.jiffyDeadlineTC.Add(wh.jiffyPeriodTC)
		w.advanceJiffies()
	}

	if stats != nil && wh.statsPeriodTC != 0 && wh.curTC.GE(wh.statsDeadlineTC) {
		wh.statsDeadlineTC = wh.statsDeadlineTC.Add(wh.statsPeriodTC)
		snap := wh.snapshotLocked()
		snap.Jiffies = w.Jiffies()
		statsNow := wh.curTC
		wh.mu.Unlock()
		stats.OnStatsTick(pcpu, statsNow, snap)
		wh.mu.Lock()
	}

	reprogram := wh.newPeriodUS != wh.periodUS
	newPeriod := wh.newPeriodUS
	wh.mu.Unlock()

	if reprogram && ic != nil {
		remaining, err := ic.SetPeriod(pcpu, newPeriod)
		wh.mu.Lock()
		wh.periodUS = newPeriod
		wh.stats.periodSetCount++
		wh.stats.lostCycles += remaining
		wh.mu.Unlock()
		if err != nil {
			return err
		}
	}

	if hasWork && bh != nil {
		bh.ScheduleBH(pcpu)
	}
	return nil
}

// hasDueWorkLocked reports whether any spoke between curSpoke and the
// spoke curTC hashes to currently has a head due to fire. Since spokes
// are sorted, this inspects at most SpokeCount heads.
func (w *wheel) hasDueWorkLocked() bool {
	last := spokeFor(w.curTC)
	s := w.curSpoke
	for {
		lst := &w.spokes[s]
		if !lst.isEmpty() && lst.head.next.deadline.LE(w.curTC) {
			return true
		}
		if s == last {
			return false
		}
		s = (s + 1) % SpokeCount
	}
}

// BottomHalf is the firing loop, invoked by the BottomHalfDispatcher
// after a ScheduleBH(pcpu) request, and also callable directly as a
// soft-timer poll from any path: because spokes stay sorted, the
// "nothing ready" case inspects only one head per spoke walked, and only
// one head in all when curTC still hashes to curSpoke.
func (w *Wheels) BottomHalf(pcpu int) error {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return err
	}
	wh.mu.Lock()
	wh.curTC = w.Now()
	last := spokeFor(wh.curTC)
	for {
		wh.runSpokeLocked(wh.curSpoke)
		if wh.curSpoke == last {
			break
		}
		wh.curSpoke = (wh.curSpoke + 1) % SpokeCount
	}
	wh.mu.Unlock()
	return nil
}

// runSpokeLocked drains every due entry at the head of spoke s, firing
// each with the wheel lock released for the duration of the callback.
// Must be called with wh.mu held.
func (w *wheel) runSpokeLocked(s uint32) {
	lst := &w.spokes[s]
	for {
		if lst.isEmpty() {
			return
		}
		tm := lst.head.next
		if tm.deadline.GT(w.curTC) {
			return
		}
		lst.rm(tm)

		flags := tm.loadFlags()
		if flags&tPeriodic != 0 {
			if w.curTC.GT(tm.deadline) {
				w.stats.overdue++
			}
			next := tm.deadline.Add(tm.period)
			if next.LE(w.curTC) {
				// A missed cycle is not caught up; we re-arm one
				// period out from now and simply count it,
				// intentionally trading punctuality for bounded
				// catch-up work under sustained overload.
				next = w.curTC.Add(tm.period)
				w.stats.overdueDropped++
			}
			tm.deadline = next
		} else {
			tm.setFlags(tExpired)
		}
		tm.setFlags(tFiring)
		fn, arg, h, now := tm.fn, tm.arg, tm.handle, w.curTC
		w.stats.fired++

		w.mu.Unlock()
		if fn != nil {
			fn(w.owner, h, now, arg)
		}
		w.mu.Lock()

		tm.clearFlags(tFiring)
		if tm.loadFlags()&tExpired != 0 {
			w.removeOneLocked(tm)
		} else if flags&tPeriodic != 0 {
			w.spokes[spokeFor(tm.deadline)].insert(tm)
		}
	}
}
