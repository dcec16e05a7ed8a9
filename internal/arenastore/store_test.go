package arenastore

import (
	"testing"

	"github.com/ssgo/zonecore/internal/model"
)

func TestCreateArena_RejectsDuplicateName(t *testing.T) {
	s := New()
	if _, err := s.CreateArena("duel1", "duel", 1); err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	if _, err := s.CreateArena("DUEL1", "duel", 1); err == nil {
		t.Fatalf("CreateArena duplicate: want error, got nil")
	}
}

func TestCreateArena_InstallsRegisteredSlots(t *testing.T) {
	s := New()
	s.RegisterDataSlot(1, func() any { return 42 })
	a, err := s.CreateArena("duel1", "duel", 1)
	if err != nil {
		t.Fatalf("CreateArena: %v", err)
	}
	if a.Data(1) != 42 {
		t.Fatalf("Data(1) = %v, want 42", a.Data(1))
	}
}

func TestForEachWithBaseName_FiltersByBase(t *testing.T) {
	s := New()
	s.CreateArena("duel1", "duel", 1)
	s.CreateArena("duel2", "duel", 2)
	s.CreateArena("public0", "public", 0)

	var names []string
	s.ForEachWithBaseName("duel", func(a *model.Arena) bool {
		names = append(names, a.Name)
		return true
	})
	if len(names) != 2 {
		t.Fatalf("len = %d, want 2", len(names))
	}
}

func TestRemove_DeletesArena(t *testing.T) {
	s := New()
	s.CreateArena("duel1", "duel", 1)
	s.Remove("duel1")
	if s.ByName("duel1") != nil {
		t.Fatalf("arena still present after Remove")
	}
}
