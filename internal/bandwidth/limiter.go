// Package bandwidth is the per-connection priority token-bucket limiter
// (spec.md §4.4). State is guarded by a single mutex the way the
// teacher's GameClient guards its rarely-touched fields (internal/
// gameserver/client.go) — iter/check/adjust all run from the single
// transport goroutine that owns a connection, so the lock only exists
// to let diagnostics read a snapshot concurrently.
package bandwidth

import (
	"math"
	"sync"
	"time"
)

// Priority is a bandwidth bucket class, highest value first (spec.md
// §4.4 "priority value → lower class").
type Priority int

const (
	PriorityUnrelLow Priority = iota
	PriorityUnrelNormal
	PriorityUnrelHigh
	PriorityReliable
	PriorityAck
	priorityCount
)

// Weights are the default percentage weights for the five priority
// classes, summing to 100 (spec.md §4.4).
var DefaultWeights = [priorityCount]int{
	PriorityUnrelLow:    20,
	PriorityUnrelNormal: 40,
	PriorityUnrelHigh:   20,
	PriorityReliable:    15,
	PriorityAck:         5,
}

// Config holds the load-time limiter configuration (spec.md §4.4).
type Config struct {
	Weights     [priorityCount]int
	LimitLow    float64
	LimitHigh   float64
	InitLimit   float64
	MaxBurst    float64
	SliceRate   time.Duration // the 1/8-second iteration slice
	ScaleS      float64
	UseHitLimit bool
}

// DefaultConfig matches spec.md §9's worked AIMD example: limit=5000,
// S=1024, UseHitLimit=false.
func DefaultConfig() Config {
	return Config{
		Weights:     DefaultWeights,
		LimitLow:    1000,
		LimitHigh:   50000,
		InitLimit:   5000,
		MaxBurst:    16384,
		SliceRate:   125 * time.Millisecond,
		ScaleS:      1024,
		UseHitLimit: false,
	}
}

// Limiter is one connection's bandwidth accounting state.
type Limiter struct {
	cfg Config

	mu         sync.Mutex
	tokens     [priorityCount]float64
	limit      float64
	hitLimit   bool
	lastSlice  time.Time
}

// New constructs a Limiter initialised to cfg.InitLimit.
func New(cfg Config, now time.Time) *Limiter {
	return &Limiter{
		cfg:       cfg,
		limit:     cfg.InitLimit,
		lastSlice: now,
	}
}

// Iter advances the token buckets by the whole number of 1/8-second
// slices elapsed since the last call (spec.md §4.4 "Iteration").
func (l *Limiter) Iter(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.iterLocked(now)
}

func (l *Limiter) iterLocked(now time.Time) {
	slices := int64(now.Sub(l.lastSlice) / l.cfg.SliceRate)
	if slices <= 0 {
		return
	}
	l.lastSlice = l.lastSlice.Add(time.Duration(slices) * l.cfg.SliceRate)

	for p := Priority(0); p < priorityCount; p++ {
		add := float64(slices) * l.limit * float64(l.cfg.Weights[p]) / 100 / 8
		l.tokens[p] += add
		if l.tokens[p] > l.cfg.MaxBurst {
			l.tokens[p] = l.cfg.MaxBurst
		}
	}
}

// Check attempts to admit a send of the given byte count at priority.
// Shortfall is drawn from successively lower-priority buckets (spec.md
// §4.4 "Admission"). On exhaustion no tokens are consumed and hitLimit
// is set; Check returns false.
func (l *Limiter) Check(bytes int, priority Priority) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	need := float64(bytes)
	// Dry-run against a working copy so a shortfall never partially
	// consumes tokens (spec.md §4.4 "no partial consumption").
	working := l.tokens
	for p := priority; need > 0; p-- {
		take := working[p]
		if take > need {
			take = need
		}
		working[p] -= take
		need -= take
		if p == 0 {
			break
		}
	}
	if need > 0 {
		l.hitLimit = true
		return false
	}
	l.tokens = working
	return true
}

// OnAck applies the additive-increase half of the AIMD adjustment
// (spec.md §4.4 "On ACK received").
func (l *Limiter) OnAck() {
	l.mu.Lock()
	defer l.mu.Unlock()

	increment := l.cfg.ScaleS * l.cfg.ScaleS / l.limit
	if l.cfg.UseHitLimit && l.hitLimit {
		increment *= 4
		l.hitLimit = false
	}
	l.limit = clamp(l.limit+increment, l.cfg.LimitLow, l.cfg.LimitHigh)
}

// OnRetry applies the multiplicative-decrease half of the AIMD
// adjustment (spec.md §4.4 "On retry").
func (l *Limiter) OnRetry() {
	l.mu.Lock()
	defer l.mu.Unlock()

	discriminant := l.limit*l.limit - 4*l.cfg.ScaleS*l.cfg.ScaleS
	if discriminant < 0 {
		discriminant = 0
	}
	l.limit = clamp((l.limit+math.Sqrt(discriminant))/2, l.cfg.LimitLow, l.cfg.LimitHigh)
}

// CanBufferPackets returns how deep the reliable send window may grow
// (spec.md §4.4 "Exposed queries").
func (l *Limiter) CanBufferPackets(maxPacket, clientCanBuffer int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := int(l.limit / float64(maxPacket))
	if n < 1 {
		return 1
	}
	if n > clientCanBuffer {
		return clientCanBuffer
	}
	return n
}

// Limit returns the current overall byte-per-second limit.
func (l *Limiter) Limit() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
