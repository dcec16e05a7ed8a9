package broker

import (
	"errors"
	"testing"
)

func TestReg_RejectsOverwriteWhileInUse(t *testing.T) {
	b := New()
	if err := b.Reg("auth", "v1"); err != nil {
		t.Fatalf("Reg: %v", err)
	}
	if _, err := b.Get("auth"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := b.Reg("auth", "v2"); !errors.Is(err, ErrInUse) {
		t.Fatalf("Reg over referenced impl = %v, want ErrInUse", err)
	}
}

func TestUnreg_FailsWhileReferenced(t *testing.T) {
	b := New()
	_ = b.Reg("auth", "v1")
	if _, err := b.Get("auth"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := b.Unreg("auth"); !errors.Is(err, ErrInUse) {
		t.Fatalf("Unreg while referenced = %v, want ErrInUse", err)
	}
	b.Release("auth")
	if err := b.Unreg("auth"); err != nil {
		t.Fatalf("Unreg after Release: %v", err)
	}
}

func TestGetAdvisors_OrderedByPriority(t *testing.T) {
	b := New()
	b.RegAdvisor("kill", "low", 10)
	b.RegAdvisor("kill", "high", 1)
	b.RegAdvisor("kill", "mid", 5)

	got := b.GetAdvisors("kill")
	want := []any{"high", "mid", "low"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGetAdvisors_SnapshotUnaffectedByLaterUnreg(t *testing.T) {
	b := New()
	b.RegAdvisor("kill", "a", 1)
	snap := b.GetAdvisors("kill")
	b.UnregAdvisor("kill", "a")
	if len(snap) != 1 || snap[0] != "a" {
		t.Fatalf("snapshot mutated: %v", snap)
	}
}

func TestFire_InvokesAllRegisteredCallbacksInOrder(t *testing.T) {
	b := New()
	var order []int
	b.RegCallback("playerjoin", func(args ...any) { order = append(order, 1) })
	b.RegCallback("playerjoin", func(args ...any) { order = append(order, 2) })
	b.Fire("playerjoin")
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestGet_UnregisteredInterfaceReturnsErrNotRegistered(t *testing.T) {
	b := New()
	if _, err := b.Get("missing"); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Get missing = %v, want ErrNotRegistered", err)
	}
}
