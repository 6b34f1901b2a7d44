// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package timer

import "sync"

// resyncPeriodMS is how often a non-zero NUMA node's pseudo-TSC offset
// is resynchronized against PCPU 0. Tuned loosely; correctness only
// depends on resyncing more often than drift accumulates to a
// perceptible amount, not on any particular cadence.
const resyncPeriodMS = 1000

// PseudoTSC reconciles each PCPU's local time-source reading into a
// single virtualized monotonic clock that appears to run at PCPU 0's
// rate, for export to guest worlds. mult/shift are derived once at
// Init from each PCPU's measured Hz, tweaked toward consensus; only the
// additive offset is ever touched again, by periodic resynchronization.
type PseudoTSC struct {
	mu    sync.Mutex
	wh    *Wheels
	nodes []rateConv // one per PCPU, index 0 is the reference and never resynced
}

// NewPseudoTSC derives a PseudoTSC for wh, using pcpuHz[i] as PCPU i's
// measured native rate, tweaked toward consensus. pcpuHz[0] is the
// reference rate every other PCPU's pseudo-TSC is expressed in.
func NewPseudoTSC(wh *Wheels, pcpuHz []uint64) *PseudoTSC {
	p := &PseudoTSC{wh: wh, nodes: make([]rateConv, len(pcpuHz))}
	if len(pcpuHz) == 0 {
		return p
	}
	refHz := tweakTowardConsensus(pcpuHz)
	now := wh.Now()
	for i, hz := range refHz {
		if i == 0 {
			p.nodes[i] = identityRateConv
			continue
		}
		p.nodes[i] = computeRateConv(int64(now.Val()), hz, int64(now.Val()), refHz[0])
	}
	return p
}

// tweakTowardConsensus nudges each measured Hz toward the group's
// consensus rate, the mean of all given rates: a rate more than ~1.6%
// away from the mean is replaced by the mean, and rates within that
// tolerance are left untouched. Rates are not grouped by node, and no
// bus-speed or CPU-to-bus multiplier check is made.
func tweakTowardConsensus(pcpuHz []uint64) []uint64 {
	const toleranceNum, toleranceDen = 16, 1000 // ~1.6%

	var sum uint64
	for _, hz := range pcpuHz {
		sum += hz
	}
	consensus := sum / uint64(len(pcpuHz))

	out := make([]uint64, len(pcpuHz))
	for i, hz := range pcpuHz {
		lo := consensus - consensus*toleranceNum/toleranceDen
		hi := consensus + consensus*toleranceNum/toleranceDen
		if hz < lo || hz > hi {
			out[i] = consensus
		} else {
			out[i] = hz
		}
	}
	return out
}

// Value returns pcpu's pseudo-TSC value derived from localTC, a reading
// already taken from pcpu's own time source.
func (p *PseudoTSC) Value(pcpu int, localTC TC) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pcpu < 0 || pcpu >= len(p.nodes) {
		return localTC.Val()
	}
	return p.nodes[pcpu].ConvertTC(localTC.Val())
}

// resync recomputes node pcpu's additive offset so Value(pcpu, now)
// matches the reference PCPU's pseudo-TSC at this instant, leaving the
// rate fields (mult, shift) held constant.
func (p *PseudoTSC) resync(pcpu int, now TC) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pcpu <= 0 || pcpu >= len(p.nodes) {
		return
	}
	rc := p.nodes[pcpu]
	want := int64(now.Val()) // PCPU 0's pseudo-TSC runs at its own TC rate
	got := convertWith(int64(now.Val()), rc)
	rc.add = want - got
	p.nodes[pcpu] = rc
}

// Start schedules the periodic resync callback on every non-zero node
// this PseudoTSC covers, dogfooding the subsystem's own public API
// rather than a bespoke timer path.
func (p *PseudoTSC) Start() error {
	for pcpu := 1; pcpu < len(p.nodes); pcpu++ {
		pcpu := pcpu
		_, err := p.wh.AddMS(pcpu, resyncPeriodMS, true, func(wh *Wheels, h Handle, now TC, arg interface{}) {
			p.resync(pcpu, now)
		}, nil)
		if err != nil {
			return err
		}
	}
	return nil
}
