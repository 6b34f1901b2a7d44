package timer

import (
	"math/rand"
	"os"
	"testing"
	"time"
)

var seed int64

func TestMain(m *testing.M) {
	seed = time.Now().UnixNano()
	rand.Seed(seed)
	res := m.Run()
	os.Exit(res)
}

func TestTCConst(t *testing.T) {
	if MaxTCDiff == 0 || (MaxTCDiff&(MaxTCDiff-1) != 0) {
		t.Fatalf("wrong MaxTCDiff 0x%x, should be 2^k\n", uint64(MaxTCDiff))
	}
}

func tstOp(t *testing.T, p string, v1, v2 uint64) {
	t1 := NewTC(v1)
	t2 := NewTC(v2)

	if t1.Val() != v1 || t2.Val() != v2 {
		t.Errorf(p+"Val roundtrip failed for 0x%x, 0x%x\n", v1, v2)
	}
	if t1.EQ(t2) != (v1 == v2) {
		t.Errorf(p+"EQ for 0x%x <> 0x%x failed\n", v1, v2)
	}
	if ((v1 >= v2) && ((v1 - v2) < MaxTCDiff)) ||
		((v1 < v2) && ((v2 - v1) < MaxTCDiff)) {
		// as long as abs(v1-v2) is not bigger than MaxTCDiff
		if t1.NE(t2) != (v1 != v2) {
			t.Errorf(p+"NE for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.LT(t2) != (v1 < v2) {
			t.Errorf(p+"LT for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.LE(t2) != (v1 <= v2) {
			t.Errorf(p+"LE for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.GT(t2) != (v1 > v2) {
			t.Errorf(p+"GT for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.GE(t2) != (v1 >= v2) {
			t.Errorf(p+"GE for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.Add(t2).NE(NewTC(v1 + v2)) {
			t.Errorf(p+"Add for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.Sub(t2).NE(NewTC(v1 - v2)) {
			t.Errorf(p+"Sub for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.AddUint64(v2).NE(NewTC(v1 + v2)) {
			t.Errorf(p+"AddUint64 for 0x%x <> 0x%x failed\n", v1, v2)
		}
		if t1.SubUint64(v2).NE(NewTC(v1 - v2)) {
			t.Errorf(p+"SubUint64 for 0x%x <> 0x%x failed\n", v1, v2)
		}
	}
}

func TestTCOps(t *testing.T) {
	const iterations = 100000
	tstOp(t, "", 1, 2)
	tstOp(t, "", 4, 3)
	tstOp(t, "", MaxTCDiff-1, 1)
	tstOp(t, "", 1, MaxTCDiff-1)
	tstOp(t, "", MaxTCDiff-1, MaxTCDiff-2)
	tstOp(t, "", MaxTCDiff-2, MaxTCDiff-1)
	tstOp(t, "", MaxTCDiff, 0)
	tstOp(t, "", MaxTCDiff+1, MaxTCDiff+2)

	for i := 0; i < iterations; i++ {
		v1 := uint64(rand.Int63())
		// rand.Int63 never exceeds 1<<63-1, so it always fits below
		// MaxTCDiff and is safe to use as a wraparound-free delta.
		diff := uint64(rand.Int63())
		tstOp(t, "rand+: ", v1, v1+diff)
		tstOp(t, "rand-: ", v1, v1-diff)
	}
	for i := 0; i < iterations; i++ {
		v1 := uint64(rand.Int63())
		v2 := uint64(rand.Int63())
		tstOp(t, "rand2: ", v1, v2)
	}
}
