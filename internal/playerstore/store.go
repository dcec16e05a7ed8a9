// Package playerstore is the player table (spec.md §4.2 "Player/arena
// stores"): id/name lookup, iteration under a single lock, and
// allocation of the extra-data slots gameplay modules register against
// player ids. Grounded on the teacher's gameserver.ClientManager
// (internal/gameserver/clients.go), generalized from a GameClient-keyed
// table to the spec's Player-keyed one and extended with delayed id
// reuse (spec.md §4.2, §9 Open Questions) and a pooled target-set
// expansion helper.
package playerstore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/pool"
)

// DataFactory builds the initial value for a registered extra-data slot.
type DataFactory func() any

// freedID is one entry on the delayed-reuse queue: an id freed at a
// known time, held until reuseAge has elapsed before it is offered to a
// new AllocatePlayer call.
type freedID struct {
	id int32
	at time.Time
}

// Store is the process-wide player table. The zero value is not usable;
// use New.
type Store struct {
	mu sync.RWMutex

	byID   map[int32]*model.Player
	byName map[string]*model.Player // keyed lowercase

	nextID    int32
	freeQueue []freedID // FIFO by free time; reuseAge gates the head
	reuseAge  time.Duration

	factories map[int]DataFactory

	sets *pool.PlayerSetPool
}

// New constructs an empty Store. reuseAge is the minimum time a freed id
// sits quarantined before AllocatePlayer will hand it out again (spec.md
// §3 "parks the id on a timed reuse queue (minimum delay 10 s) before
// reissue", default 10s).
func New(reuseAge time.Duration) *Store {
	return &Store{
		byID:      make(map[int32]*model.Player),
		byName:    make(map[string]*model.Player),
		reuseAge:  reuseAge,
		factories: make(map[int]DataFactory),
		sets:      pool.NewPlayerSetPool(16),
		nextID:    1,
	}
}

// RegisterDataSlot installs the factory for extra-data key. Every player
// allocated after registration gets the slot pre-populated; existing
// players are not retroactively touched (spec.md §4.2 "slot factory
// registration applies going forward").
func (s *Store) RegisterDataSlot(key int, factory DataFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[key] = factory
}

// UnregisterDataSlot removes the factory and clears the slot from every
// currently-held player.
func (s *Store) UnregisterDataSlot(key int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.factories, key)
	for _, p := range s.byID {
		p.DeleteData(key)
	}
}

// AllocatePlayer reserves an id, constructs a Player and installs every
// registered extra-data slot. A freed id is reissued, in the order it
// was freed, once it has sat on the reuse queue for at least reuseAge;
// otherwise a fresh id is minted from nextID (spec.md §3 "ID reuse").
func (s *Store) AllocatePlayer(remoteAddr string, kind model.ClientKind) *model.Player {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int32
	if len(s.freeQueue) > 0 && time.Since(s.freeQueue[0].at) >= s.reuseAge {
		id = s.freeQueue[0].id
		s.freeQueue = s.freeQueue[1:]
	} else {
		id = s.nextID
		s.nextID++
	}

	p := model.NewPlayer(id, remoteAddr, kind)
	for key, factory := range s.factories {
		p.SetData(key, factory())
	}
	s.byID[id] = p
	return p
}

// BindName associates a display name with an already-allocated player
// (set once login succeeds and the name is known).
func (s *Store) BindName(p *model.Player, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(name)
	if existing, ok := s.byName[key]; ok && existing != p {
		return fmt.Errorf("binding name %q: already bound to player %d", name, existing.ID)
	}
	p.Name = name
	s.byName[key] = p
	return nil
}

// FreePlayer removes the player from the table and appends its id to
// the reuse queue, quarantined for reuseAge before AllocatePlayer will
// hand it out again.
func (s *Store) FreePlayer(p *model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, p.ID)
	if p.Name != "" {
		delete(s.byName, strings.ToLower(p.Name))
	}
	s.freeQueue = append(s.freeQueue, freedID{id: p.ID, at: time.Now()})
}

// ByID returns the player with the given id, or nil.
func (s *Store) ByID(id int32) *model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// ByName returns the player with the given name (case-insensitive), or
// nil.
func (s *Store) ByName(name string) *model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byName[strings.ToLower(name)]
}

// ByRemoteAddr returns the player bound to the given transport endpoint
// key, or nil. Used by packet dispatch, which only has the datagram's
// source address to work with until login has bound an id.
func (s *Store) ByRemoteAddr(remoteAddr string) *model.Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if p.RemoteAddr == remoteAddr {
			return p
		}
	}
	return nil
}

// Count returns the number of players currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ForEach iterates every held player under the store's read lock. fn
// returning false stops the iteration early.
func (s *Store) ForEach(fn func(*model.Player) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if !fn(p) {
			return
		}
	}
}

// ScanLocked iterates every held player under the store's write lock
// (spec.md §4.5 "the scan holds the player-store write lock, collects
// transitions into a pending list, releases the lock, then performs the
// side effects with no lock held"). fn should only collect state — it
// must not block or perform I/O.
func (s *Store) ScanLocked(fn func(*model.Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		fn(p)
	}
}

// ExpandTarget resolves a target spec into a concrete, pooled player
// slice: "*" expands to every player, an arena name (prefixed "#") to
// every player currently in that arena, anything else to the single
// matching name (spec.md §4.2 "target expansion", used by chat/command
// broadcast). The caller must return the slice via ReleaseTarget.
func (s *Store) ExpandTarget(target string) []*model.Player {
	out := s.sets.Get()
	switch {
	case target == "*":
		s.mu.RLock()
		for _, p := range s.byID {
			out = append(out, p)
		}
		s.mu.RUnlock()
	case strings.HasPrefix(target, "#"):
		arena := strings.ToLower(target[1:])
		s.mu.RLock()
		for _, p := range s.byID {
			if strings.ToLower(p.ArenaName()) == arena {
				out = append(out, p)
			}
		}
		s.mu.RUnlock()
	default:
		if p := s.ByName(target); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ReleaseTarget returns a slice obtained from ExpandTarget to the pool.
func (s *Store) ReleaseTarget(set []*model.Player) {
	s.sets.Put(set)
}
