// Package arenastore is the arena table (spec.md §4.2 "Player/arena
// stores"), symmetric to internal/playerstore: name lookup, iteration
// under a single lock, and extra-data slot factory registration.
// Grounded the same way as playerstore on the teacher's ClientManager
// (internal/gameserver/clients.go).
package arenastore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ssgo/zonecore/internal/model"
)

// DataFactory builds the initial value for a registered extra-data slot.
type DataFactory func() any

// Store is the process-wide arena table. The zero value is not usable;
// use New.
type Store struct {
	mu sync.RWMutex

	byName map[string]*model.Arena // keyed lowercase

	factories map[int]DataFactory
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		byName:    make(map[string]*model.Arena),
		factories: make(map[int]DataFactory),
	}
}

// RegisterDataSlot installs the factory for extra-data key, applied to
// every arena created after registration.
func (s *Store) RegisterDataSlot(key int, factory DataFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[key] = factory
}

// UnregisterDataSlot removes the factory and clears the slot from every
// currently-held arena.
func (s *Store) UnregisterDataSlot(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.factories, key)
	for _, a := range s.byName {
		a.DeleteData(key)
	}
}

// CreateArena constructs and registers a new arena. Returns an error if
// the name is already taken (spec.md §4.8 "arena placement" creates
// through this, holding its own lock to avoid duplicate creation races).
func (s *Store) CreateArena(name, baseName string, number int) (*model.Arena, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := s.byName[key]; exists {
		return nil, fmt.Errorf("creating arena %q: already exists", name)
	}
	a := model.NewArena(name, baseName, number)
	for slotKey, factory := range s.factories {
		a.SetData(slotKey, factory())
	}
	s.byName[key] = a
	return a, nil
}

// Remove deletes the arena from the table (called once its destroy
// sequence reaches model.ArenaDestroyed).
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byName, strings.ToLower(name))
}

// ByName returns the arena with the given name (case-insensitive), or
// nil.
func (s *Store) ByName(name string) *model.Arena {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[strings.ToLower(name)]
}

// Count returns the number of arenas currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// ForEach iterates every held arena under the store's read lock. fn
// returning false stops the iteration early.
func (s *Store) ForEach(fn func(*model.Arena) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byName {
		if !fn(a) {
			return
		}
	}
}

// ForEachWithBaseName iterates only arenas whose BaseName matches base,
// compared case-insensitively.
func (s *Store) ForEachWithBaseName(base string, fn func(*model.Arena) bool) {
	baseLower := strings.ToLower(base)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byName {
		if strings.ToLower(a.BaseName) == baseLower {
			if !fn(a) {
				return
			}
		}
	}
}
