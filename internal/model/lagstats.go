package model

import "sync"

// Histogram tracks current/running-average/min/max for one ping source
// (spec.md §3 "Lag stats per player", §4.9). The average is an EWMA with
// alpha=1/8, computed with truncating integer arithmetic the way the
// reference implementation does (spec.md §9 Open Questions).
type Histogram struct {
	Current int32
	Avg     int32
	Min     int32
	Max     int32
	n       int32
}

// Add folds in a new sample.
func (h *Histogram) Add(sample int32) {
	h.Current = sample
	if h.n == 0 || sample < h.Min {
		h.Min = sample
	}
	if h.n == 0 || sample > h.Max {
		h.Max = sample
	}
	if h.n == 0 {
		h.Avg = sample
	} else {
		// avg += (sample - avg) / 8, truncated toward zero.
		h.Avg += (sample - h.Avg) / 8
	}
	h.n++
}

// LagStats holds the per-player ping histograms and packetloss fractions
// (spec.md §3, §4.9).
type LagStats struct {
	mu sync.Mutex

	PositionPing   Histogram
	ReliableRTT    Histogram
	ClientPing     Histogram

	S2CLoss       float64
	S2CWeaponLoss float64
	C2SLoss       float64

	timeSyncRing []int64
	timeSyncCap  int

	lastPacketAt int64 // unix millis of last received packet, for spike detection
}

// NewLagStats constructs a LagStats with the given time-sync ring capacity.
func NewLagStats(timeSyncCap int) *LagStats {
	if timeSyncCap <= 0 {
		timeSyncCap = 32
	}
	return &LagStats{timeSyncCap: timeSyncCap}
}

// AddPositionPing folds a one-way position-packet latency sample (doubled
// to approximate RTT, per spec.md §4.9).
func (s *LagStats) AddPositionPing(oneWayMillis int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PositionPing.Add(oneWayMillis * 2)
}

// AddReliableRTT folds a reliable-layer round-trip sample.
func (s *LagStats) AddReliableRTT(rttMillis int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReliableRTT.Add(rttMillis)
}

// AddClientPing folds a client-self-reported ping sample.
func (s *LagStats) AddClientPing(pingMillis int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClientPing.Add(pingMillis)
}

// AddTimeSync appends a clock-drift sample to the bounded ring and stores
// the supplied packetloss fractions (spec.md §4.9).
func (s *LagStats) AddTimeSync(driftMillis int64, s2cLoss, s2cWeaponLoss, c2sLoss float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeSyncRing = append(s.timeSyncRing, driftMillis)
	if len(s.timeSyncRing) > s.timeSyncCap {
		s.timeSyncRing = s.timeSyncRing[len(s.timeSyncRing)-s.timeSyncCap:]
	}
	s.S2CLoss = s2cLoss
	s.S2CWeaponLoss = s2cWeaponLoss
	s.C2SLoss = c2sLoss
}

// Snapshot returns a value copy safe to read without holding the lock.
func (s *LagStats) Snapshot() LagSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LagSnapshot{
		PositionPing:  s.PositionPing,
		ReliableRTT:   s.ReliableRTT,
		ClientPing:    s.ClientPing,
		S2CLoss:       s.S2CLoss,
		S2CWeaponLoss: s.S2CWeaponLoss,
		C2SLoss:       s.C2SLoss,
	}
}

// LagSnapshot is a consistent point-in-time copy of LagStats for callers
// (lag action) that must not hold the stats lock while applying policy.
type LagSnapshot struct {
	PositionPing  Histogram
	ReliableRTT   Histogram
	ClientPing    Histogram
	S2CLoss       float64
	S2CWeaponLoss float64
	C2SLoss       float64
}
