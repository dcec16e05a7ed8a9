package model

import "testing"

func TestHistogram_TracksMinMaxAvg(t *testing.T) {
	var h Histogram
	for _, s := range []int32{100, 50, 200, 80} {
		h.Add(s)
	}
	if h.Current != 80 {
		t.Fatalf("Current = %d, want 80", h.Current)
	}
	if h.Min != 50 {
		t.Fatalf("Min = %d, want 50", h.Min)
	}
	if h.Max != 200 {
		t.Fatalf("Max = %d, want 200", h.Max)
	}
}

func TestHistogram_EWMAConvergesTowardSteadySample(t *testing.T) {
	var h Histogram
	h.Add(0)
	for i := 0; i < 200; i++ {
		h.Add(80)
	}
	// Truncating division stops moving once the gap to 80 is under 8.
	if h.Avg != 73 {
		t.Fatalf("Avg = %d, want 73 (truncating EWMA settles 7 below the steady sample)", h.Avg)
	}
}

func TestLagStats_SnapshotIsIndependentCopy(t *testing.T) {
	s := NewLagStats(8)
	s.AddPositionPing(20)
	s.AddTimeSync(5, 0.01, 0.02, 0.03)

	snap := s.Snapshot()
	if snap.PositionPing.Current != 40 {
		t.Fatalf("PositionPing.Current = %d, want 40 (doubled one-way sample)", snap.PositionPing.Current)
	}
	if snap.S2CLoss != 0.01 || snap.S2CWeaponLoss != 0.02 || snap.C2SLoss != 0.03 {
		t.Fatalf("unexpected loss fractions in snapshot: %+v", snap)
	}

	s.AddPositionPing(999)
	if snap.PositionPing.Current == s.PositionPing.Current {
		t.Fatalf("snapshot mutated after later Add, Current=%d", snap.PositionPing.Current)
	}
}
