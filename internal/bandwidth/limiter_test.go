package bandwidth

import (
	"testing"
	"time"
)

func TestIter_AddsTokensProportionalToElapsedSlices(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	l := New(cfg, now)
	l.Iter(now.Add(1 * time.Second)) // 8 slices

	if !l.Check(100, PriorityReliable) {
		t.Fatalf("Check should admit after accruing tokens")
	}
}

func TestCheck_DrawsFromLowerPriorityOnShortfall(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	l := New(cfg, now)
	l.Iter(now.Add(1 * time.Second))

	// Drain the ack bucket entirely, then request more than it can give —
	// it should draw the remainder from reliable.
	ackTokens := l.tokens[PriorityAck]
	if !l.Check(int(ackTokens)+50, PriorityAck) {
		t.Fatalf("Check should draw shortfall from lower-priority buckets")
	}
}

func TestCheck_RollsBackOnExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitLimit = 100
	now := time.Now()
	l := New(cfg, now)
	l.Iter(now.Add(1 * time.Second))

	before := l.tokens
	if l.Check(1<<30, PriorityAck) {
		t.Fatalf("Check should fail for an impossibly large request")
	}
	if l.tokens != before {
		t.Fatalf("tokens mutated after failed Check: got %v, want %v", l.tokens, before)
	}
	if !l.hitLimit {
		t.Fatalf("hitLimit not set after exhaustion")
	}
}

func TestOnAck_IncreasesLimitAdditively(t *testing.T) {
	cfg := DefaultConfig()
	l := New(cfg, time.Now())
	before := l.Limit()
	for i := 0; i < 100; i++ {
		l.OnAck()
	}
	if l.Limit() <= before {
		t.Fatalf("limit did not increase after 100 ACKs: %v -> %v", before, l.Limit())
	}
}

func TestOnRetry_DecreasesLimitMultiplicatively(t *testing.T) {
	cfg := DefaultConfig()
	l := New(cfg, time.Now())
	for i := 0; i < 100; i++ {
		l.OnAck()
	}
	high := l.Limit()
	for i := 0; i < 10; i++ {
		l.OnRetry()
	}
	if l.Limit() >= high {
		t.Fatalf("limit did not decrease after retries: %v -> %v", high, l.Limit())
	}
	if l.Limit() < cfg.LimitLow {
		t.Fatalf("limit %v below LimitLow %v", l.Limit(), cfg.LimitLow)
	}
}

func TestCanBufferPackets_ClampedToClientCanBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitLimit = cfg.LimitHigh
	l := New(cfg, time.Now())
	if got := l.CanBufferPackets(1, 32); got != 32 {
		t.Fatalf("CanBufferPackets = %d, want clamp to 32", got)
	}
}
