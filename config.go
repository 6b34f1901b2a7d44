// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

// SetPeriodUS requests a new hard-interrupt period, in microseconds,
// for pcpu. It only records the request; the change is applied and
// periodUS/periodSetCount updated atomically under the wheel lock the
// next time HardInterrupt runs on pcpu.
func (w *Wheels) SetPeriodUS(pcpu int, us uint64) error {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return err
	}
	if us == 0 {
		return ErrPeriodTooSmall
	}
	wh.mu.Lock()
	wh.newPeriodUS = us
	wh.mu.Unlock()
	return nil
}

// PeriodUS returns the period currently programmed on pcpu.
func (w *Wheels) PeriodUS(pcpu int) (uint64, error) {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return 0, err
	}
	wh.mu.Lock()
	us := wh.periodUS
	wh.mu.Unlock()
	return us, nil
}

// SetSchedPeriodTC sets the interval, in TC units, between
// Scheduler.OnTick invocations on pcpu. It takes effect starting from
// the next scheduled deadline.
func (w *Wheels) SetSchedPeriodTC(pcpu int, period TC) error {
	wh, err := w.wheelFor(pcpu)
	if err != nil {
		return err
	}
	wh.mu.Lock()
	wh.schedPeriodTC = period
	wh.mu.Unlock()
	return nil
}
