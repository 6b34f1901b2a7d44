// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"fmt"
	"io"
	"net/http"
)

// WriteStatus dumps per-PCPU wheel state in a plain-text, human-grep-able
// style rather than a structured encoding: Hz, curTC, curSpoke,
// configured period, counters, free slot count, scheduler deadline,
// jiffies, then one line per live timer.
func (w *Wheels) WriteStatus(out io.Writer) error {
	if !w.Ready() {
		fmt.Fprintln(out, "hvtimer: not initialized")
		return nil
	}
	fmt.Fprintf(out, "hvtimer: %d pcpus, tcRate %d Hz, jiffies %d\n",
		w.NumPCPUs(), w.tcRate, w.Jiffies())

	for pcpu := range w.wheels {
		wh := &w.wheels[pcpu]
		wh.mu.Lock()
		s := wh.snapshotLocked()
		fmt.Fprintf(out, "pcpu %d: curTC=%s curSpoke=%d periodUS=%d"+
			" interrupts=%d periodSetCount=%d lostCycles=%d"+
			" slotsInUse=%d slotsFree=%d"+
			" added=%d fired=%d removed=%d overdue=%d overdueDropped=%d"+
			" schedDeadlineTC=%s\n",
			pcpu, s.CurTC, s.CurSpoke, s.PeriodUS,
			s.Interrupts, s.PeriodSetCount, s.LostCycles,
			s.SlotsInUse, s.SlotsFree,
			s.Added, s.Fired, s.Removed, s.Overdue, s.OverdueDropped,
			s.SchedDeadlineTC)

		for i := range wh.spokes {
			wh.spokes[i].forEach(func(tm *timer) bool {
				kind := "one-shot"
				if tm.loadFlags()&tPeriodic != 0 {
					kind = "periodic"
				}
				fmt.Fprintf(out, "  pcpu %d spoke %d: handle=%#x deadlineTC=%s"+
					" periodTC=%s periodUS=%d kind=%s group=%#x\n",
					pcpu, i, uint64(tm.handle), tm.deadline, tm.period,
					tm.period.Val()*1_000_000/orOne(w.tcRate),
					kind, uint64(tm.group))
				return true
			})
		}
		wh.mu.Unlock()
	}
	return nil
}

func orOne(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

// WriteUptime writes uptime as "seconds.milliseconds", derived from
// Now() converted to ms.
func (w *Wheels) WriteUptime(out io.Writer) error {
	ms := w.Now().Val() * 1000 / orOne(w.tcRate)
	fmt.Fprintf(out, "%d.%03d\n", ms/1000, ms%1000)
	return nil
}

// StatusHandler returns a net/http.Handler exposing WriteStatus, for
// deployments that prefer polling it over a socket to reading a file.
func (w *Wheels) StatusHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteStatus(rw)
	})
}

// UptimeHandler returns a net/http.Handler exposing WriteUptime.
func (w *Wheels) UptimeHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteUptime(rw)
	})
}
