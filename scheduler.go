// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

// defaultStatsPeriodUS is the stats callback's default period, driven
// independently of the scheduler tick.
const defaultStatsPeriodUS uint64 = 10_000

// StatsCollector receives a periodic snapshot hook off the hard tick,
// separate from Scheduler.OnTick so a bring-up stats exporter doesn't
// have to share a period with the real scheduler.
type StatsCollector interface {
	OnStatsTick(pcpu int, now TC, snap Stats)
}

// Stats is the read-only per-wheel snapshot handed to a StatsCollector
// and surfaced on the status file.
type Stats struct {
	CurTC      TC
	CurSpoke   uint32
	PeriodUS   uint64
	SlotsInUse uint64
	SlotsFree  uint64

	Interrupts     uint64
	PeriodSetCount uint64
	LostCycles     uint64
	Added          uint64
	Fired          uint64
	Removed        uint64
	Overdue        uint64
	OverdueDropped uint64

	SchedDeadlineTC TC
	Jiffies         uint64
}

// SetStatsPeriodTC sets the interval, in TC units, between StatsCollector
// snapshots on pcpu.
func (w *Wheels) SetStatsPeriodTC(pcpu int, period TC) error {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return err
	}
	wh.mu.Lock()
	wh.statsPeriodTC = period
	wh.mu.Unlock()
	return nil
}

// snapshotLocked builds a Stats value from the wheel's current state.
// Must be called with wh.mu held.
func (w *wheel) snapshotLocked() Stats {
	return Stats{
		CurTC:           w.curTC,
		CurSpoke:        w.curSpoke,
		PeriodUS:        w.periodUS,
		SlotsInUse:      w.stats.slotsInUse,
		SlotsFree:       uint64(len(w.slots)) - w.stats.slotsInUse,
		Interrupts:      w.stats.interrupts,
		PeriodSetCount:  w.stats.periodSetCount,
		LostCycles:      w.stats.lostCycles,
		Added:           w.stats.added,
		Fired:           w.stats.fired,
		Removed:         w.stats.removed,
		Overdue:         w.stats.overdue,
		OverdueDropped:  w.stats.overdueDropped,
		SchedDeadlineTC: w.schedDeadlineTC,
	}
}

// Snapshot returns pcpu's current Stats.
func (w *Wheels) Snapshot(pcpu int) (Stats, error) {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return Stats{}, err
	}
	wh.mu.Lock()
	s := wh.snapshotLocked()
	wh.mu.Unlock()
	s.Jiffies = w.Jiffies()
	return s, nil
}
