// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/timestamp"
)

// TickerSource is a reference InterruptController + BottomHalfDispatcher
// pair for hosts with no real programmable interrupt controller: one
// time.Ticker-driven goroutine per PCPU plays the role of the hardware
// tick, and BH requests run synchronously on that same goroutine (there
// being no separate bottom-half execution context to hand off to). One
// such goroutine runs per PCPU, matching this package's per-PCPU wheel
// model.
type TickerSource struct {
	wh    *Wheels
	sched Scheduler
	stats StatsCollector

	pcpus []pcpuTicker

	wg     sync.WaitGroup
	cancel chan struct{}
}

type pcpuTicker struct {
	periodUS uint64 // atomic, current period in effect
	lastTick timestamp.TS
	badTicks uint32
}

// NewTickerSource builds a TickerSource driving every PCPU wh.Init
// allocated. sched and stats may be nil.
func NewTickerSource(wh *Wheels, sched Scheduler, stats StatsCollector) *TickerSource {
	t := &TickerSource{
		wh:    wh,
		sched: sched,
		stats: stats,
		pcpus: make([]pcpuTicker, wh.NumPCPUs()),
	}
	for i := range t.pcpus {
		us, _ := wh.PeriodUS(i)
		t.pcpus[i].periodUS = us
	}
	return t
}

// SetPeriod implements InterruptController. It only records the new
// period for the next tick of pcpu's goroutine to pick up; the ticker
// itself is rebuilt from within that goroutine, which owns it.
func (t *TickerSource) SetPeriod(pcpu int, us uint64) (uint64, error) {
	if pcpu < 0 || pcpu >= len(t.pcpus) {
		return 0, ErrBadPCPU
	}
	atomic.StoreUint64(&t.pcpus[pcpu].periodUS, us)
	return 0, nil
}

// ScheduleBH implements BottomHalfDispatcher by running the firing loop
// immediately and synchronously: there is no separate BH context to hand
// off to on this reference collaborator, so "scheduled" and "run" happen
// on the same call.
func (t *TickerSource) ScheduleBH(pcpu int) {
	t.wh.BottomHalf(pcpu)
}

// Start launches one ticking goroutine per PCPU.
func (t *TickerSource) Start() {
	t.cancel = make(chan struct{})
	for i := range t.pcpus {
		pcpu := i
		t.pcpus[pcpu].lastTick = timestamp.Now()
		t.wg.Add(1)
		go t.run(pcpu)
	}
}

// Shutdown stops every goroutine Start launched and waits for them to
// exit.
func (t *TickerSource) Shutdown() {
	if t.cancel != nil {
		close(t.cancel)
	}
	t.wg.Wait()
}

func (t *TickerSource) run(pcpu int) {
	defer t.wg.Done()

	us := atomic.LoadUint64(&t.pcpus[pcpu].periodUS)
	if us == 0 {
		us = defaultPeriodUS
	}
	ticker := time.NewTicker(time.Duration(us) * time.Microsecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.cancel:
			return
		case <-ticker.C:
			t.tick(pcpu)

			if newUS := atomic.LoadUint64(&t.pcpus[pcpu].periodUS); newUS != us {
				us = newUS
				ticker.Stop()
				ticker = time.NewTicker(time.Duration(us) * time.Microsecond)
			}
		}
	}
}

// tick handles one goroutine wakeup, including "time going backwards"
// recovery: an NTP step or VM migration can make timestamp.Now()
// regress; a handful of occurrences are logged and ignored, but a
// sustained regression is treated as the clock having been reset out
// from under the time source, which CorrectForTSCShift on the
// default/fake-NUMA sources is built to absorb.
func (t *TickerSource) tick(pcpu int) {
	p := &t.pcpus[pcpu]
	now := timestamp.Now()
	if now.Before(p.lastTick) {
		p.badTicks++
		if WARNon() {
			WARN("tickersource: pcpu %d time going backward by %s (%d times)\n",
				pcpu, p.lastTick.Sub(now), p.badTicks)
		}
		p.lastTick = now
		if p.badTicks <= 10 {
			return
		}
		p.badTicks = 0
	} else {
		p.badTicks = 0
	}
	p.lastTick = now

	t.wh.HardInterrupt(pcpu, t, t.sched, t.stats, t)
}
