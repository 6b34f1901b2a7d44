// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

// Package post exercises a running timer subsystem through its public
// API at startup, the way a test world on each PCPU would in the host
// kernel: one goroutine per PCPU plays the role of that world, and
// every PCPU must reach a barrier before the next scenario starts, so a
// stuck PCPU fails the whole run rather than a silent partial pass.
package post

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	timer "github.com/nanovisor/hvtimer"
)

// Report is the outcome of one PCPU's self-test. A failure is reported
// to bring-up for inspection; it never aborts the kernel.
type Report struct {
	PCPU int

	PeriodicFires int
	PeriodicOK    bool

	Scheduled  int
	Fired      int
	OutOfBound int
	BatchOK    bool

	Err error
}

// OK reports whether every scenario this PCPU ran passed.
func (r Report) OK() bool {
	return r.Err == nil && r.PeriodicOK && r.BatchOK
}

// Config tunes the self-test's timing assumptions; Default is sized for
// the two scenarios below.
type Config struct {
	// PeriodicPeriod is the period of scenario 1's periodic timer.
	PeriodicPeriod time.Duration
	// PeriodicMinFires is the minimum firing count scenario 1 requires
	// within PeriodicWait.
	PeriodicMinFires int
	// PeriodicWait bounds how long scenario 1 waits for PeriodicMinFires.
	PeriodicWait time.Duration

	// BatchSize is the number of one-shot timers scenario 2 schedules.
	BatchSize int
	// BatchSpread is the span of staggered deadlines scenario 2 uses.
	BatchSpread time.Duration
	// BatchSlackLow/BatchSlackHigh bound how early/late (relative to its
	// own deadline) a one-shot is allowed to fire and still count.
	BatchSlackLow, BatchSlackHigh time.Duration
}

// Default schedules a periodic timer at ~1ms and waits up to 100x that
// for at least 10 firings, then schedules a large batch of one-shot
// timers staggered across a bounded window.
var Default = Config{
	PeriodicPeriod:   time.Millisecond,
	PeriodicMinFires: 10,
	PeriodicWait:     100 * time.Millisecond,

	BatchSize:      512,
	BatchSpread:    50 * time.Millisecond,
	BatchSlackLow:  2 * time.Millisecond,
	BatchSlackHigh: 20 * time.Millisecond,
}

// Run runs both self-test scenarios on every PCPU wh was initialized
// with, synchronizing at a barrier between them, and returns one Report
// per PCPU. It never panics on a failed scenario; failures are recorded
// in the returned Reports for bring-up to inspect.
func Run(wh *timer.Wheels, cfg Config) []Report {
	n := wh.NumPCPUs()
	reports := make([]Report, n)

	var barrier sync.WaitGroup
	barrier.Add(n)

	var wg sync.WaitGroup
	wg.Add(n)
	for pcpu := 0; pcpu < n; pcpu++ {
		pcpu := pcpu
		go func() {
			defer wg.Done()
			reports[pcpu] = runOnPCPU(wh, pcpu, cfg, &barrier)
		}()
	}
	wg.Wait()
	return reports
}

func runOnPCPU(wh *timer.Wheels, pcpu int, cfg Config, barrier *sync.WaitGroup) Report {
	r := Report{PCPU: pcpu}

	r.PeriodicFires, r.Err = periodicScenario(wh, pcpu, cfg)
	r.PeriodicOK = r.Err == nil && r.PeriodicFires >= cfg.PeriodicMinFires

	barrier.Done()
	barrier.Wait()

	if r.Err == nil {
		r.Scheduled, r.Fired, r.OutOfBound, r.Err = batchScenario(wh, pcpu, cfg)
		r.BatchOK = r.Err == nil && r.Fired == r.Scheduled && r.OutOfBound == 0
	}
	return r
}

// periodicScenario confirms a periodic timer fires repeatedly at roughly
// its configured rate.
func periodicScenario(wh *timer.Wheels, pcpu int, cfg Config) (int, error) {
	var fires int32
	h, err := wh.AddHires(pcpu, uint64(cfg.PeriodicPeriod/time.Microsecond), true,
		func(_ *timer.Wheels, _ timer.Handle, _ timer.TC, _ interface{}) {
			atomic.AddInt32(&fires, 1)
		}, nil)
	if err != nil {
		return 0, fmt.Errorf("post: periodic scenario: add: %w", err)
	}
	defer wh.Remove(h)

	deadline := time.Now().Add(cfg.PeriodicWait)
	for time.Now().Before(deadline) {
		if int(atomic.LoadInt32(&fires)) >= cfg.PeriodicMinFires {
			break
		}
		time.Sleep(cfg.PeriodicPeriod)
	}
	return int(atomic.LoadInt32(&fires)), nil
}

// batchScenario confirms a large batch of staggered one-shot timers all
// fire, each within a bounded window of its own deadline.
func batchScenario(wh *timer.Wheels, pcpu int, cfg Config) (scheduled, fired, outOfBound int, err error) {
	type want struct {
		deadline time.Time
	}
	results := make(chan struct {
		onTime bool
	}, cfg.BatchSize)

	wants := make([]want, cfg.BatchSize)
	handles := make([]timer.Handle, 0, cfg.BatchSize)

	for i := 0; i < cfg.BatchSize; i++ {
		stagger := time.Duration(i) * cfg.BatchSpread / time.Duration(cfg.BatchSize)
		deadline := time.Now().Add(stagger)
		wants[i] = want{deadline: deadline}

		i := i
		h, aerr := wh.AddHires(pcpu, uint64(stagger/time.Microsecond), false,
			func(_ *timer.Wheels, _ timer.Handle, _ timer.TC, _ interface{}) {
				now := time.Now()
				delta := now.Sub(wants[i].deadline)
				onTime := delta >= -cfg.BatchSlackLow && delta <= cfg.BatchSlackHigh
				results <- struct{ onTime bool }{onTime}
			}, nil)
		if aerr != nil {
			return scheduled, fired, outOfBound, fmt.Errorf("post: batch scenario: add %d: %w", i, aerr)
		}
		handles = append(handles, h)
	}
	scheduled = len(handles)

	timeout := time.After(cfg.BatchSpread + cfg.BatchSlackHigh + 2*time.Second)
	for fired < scheduled {
		select {
		case res := <-results:
			fired++
			if !res.onTime {
				outOfBound++
			}
		case <-timeout:
			return scheduled, fired, outOfBound, fmt.Errorf("post: batch scenario: timed out, %d/%d fired", fired, scheduled)
		}
	}
	return scheduled, fired, outOfBound, nil
}
