// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package post

import (
	"testing"
	"time"

	timer "github.com/nanovisor/hvtimer"
	"github.com/nanovisor/hvtimer/internal/timertest"
)

func TestRunPassesWithARealTickerSource(t *testing.T) {
	var wh timer.Wheels
	if err := wh.Init(2, timertest.NewWallClock(1_000_000), 0); err != nil {
		t.Fatalf("Wheels.Init: %s\n", err)
	}

	src := timer.NewTickerSource(&wh, nil, nil)
	src.Start()
	defer src.Shutdown()

	cfg := Default
	cfg.PeriodicPeriod = 200 * time.Microsecond
	cfg.PeriodicWait = 20 * time.Millisecond
	cfg.PeriodicMinFires = 10
	cfg.BatchSize = 32
	cfg.BatchSpread = 10 * time.Millisecond
	cfg.BatchSlackLow = 2 * time.Millisecond
	cfg.BatchSlackHigh = 20 * time.Millisecond

	reports := Run(&wh, cfg)
	if len(reports) != 2 {
		t.Fatalf("Run returned %d reports, want 2\n", len(reports))
	}
	for _, r := range reports {
		if !r.OK() {
			t.Errorf("pcpu %d: self-test failed: periodicFires=%d periodicOK=%v"+
				" scheduled=%d fired=%d outOfBound=%d batchOK=%v err=%v\n",
				r.PCPU, r.PeriodicFires, r.PeriodicOK,
				r.Scheduled, r.Fired, r.OutOfBound, r.BatchOK, r.Err)
		}
	}
}
