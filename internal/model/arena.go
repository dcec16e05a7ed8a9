package model

import (
	"sync"
	"sync/atomic"
)

// ArenaStatus is the arena lifecycle state (spec.md §3 "Arena").
type ArenaStatus int32

const (
	ArenaDoInit ArenaStatus = iota
	ArenaWaitHolds
	ArenaDoLoad
	ArenaRunning
	ArenaDoWriteData
	ArenaWaitHoldsOut
	ArenaDoDestroy
	ArenaDestroyed
)

func (s ArenaStatus) String() string {
	switch s {
	case ArenaDoInit:
		return "DoInit"
	case ArenaWaitHolds:
		return "WaitHolds"
	case ArenaDoLoad:
		return "DoLoad"
	case ArenaRunning:
		return "Running"
	case ArenaDoWriteData:
		return "DoWriteData"
	case ArenaWaitHoldsOut:
		return "WaitHoldsOut"
	case ArenaDoDestroy:
		return "DoDestroy"
	case ArenaDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// SeedInfo is the door/green seed packet (spec.md §4.7).
type SeedInfo struct {
	GreenSeed uint32
	DoorSeed  uint32
	Timestamp uint32
}

// Arena is a named game room (spec.md §3 "Arena").
type Arena struct {
	Name     string
	BaseName string
	Number   int // 0 = no numeric suffix, else 1-9

	status atomic.Int32

	totalCount   atomic.Int32
	playingCount atomic.Int32

	mu           sync.Mutex
	specFreq     int16
	seedOverride *SeedInfo

	dataMu sync.RWMutex
	data   map[int]any
}

// NewArena constructs an arena in ArenaDoInit.
func NewArena(name, baseName string, number int) *Arena {
	a := &Arena{
		Name:     name,
		BaseName: baseName,
		Number:   number,
		specFreq: 8025,
		data:     make(map[int]any),
	}
	a.status.Store(int32(ArenaDoInit))
	return a
}

func (a *Arena) Status() ArenaStatus     { return ArenaStatus(a.status.Load()) }
func (a *Arena) SetStatus(s ArenaStatus) { a.status.Store(int32(s)) }

func (a *Arena) TotalCount() int   { return int(a.totalCount.Load()) }
func (a *Arena) PlayingCount() int { return int(a.playingCount.Load()) }

func (a *Arena) AddTotal(delta int)   { a.totalCount.Add(int32(delta)) }
func (a *Arena) AddPlaying(delta int) { a.playingCount.Add(int32(delta)) }

func (a *Arena) SpecFreq() int16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.specFreq
}

func (a *Arena) SetSpecFreq(freq int16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.specFreq = freq
}

// SeedOverride returns the active seed override, or nil if none is set
// (spec.md §4.7 OverrideArenaSeedInfo/RemoveArenaOverride).
func (a *Arena) SeedOverride() *SeedInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seedOverride
}

func (a *Arena) SetSeedOverride(s *SeedInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seedOverride = s
}

// Data returns the extra-data slot value for key, or nil if unset.
func (a *Arena) Data(key int) any {
	a.dataMu.RLock()
	defer a.dataMu.RUnlock()
	return a.data[key]
}

// SetData installs the extra-data slot value for key.
func (a *Arena) SetData(key int, v any) {
	a.dataMu.Lock()
	a.data[key] = v
	a.dataMu.Unlock()
}

// DeleteData removes the extra-data slot value for key.
func (a *Arena) DeleteData(key int) {
	a.dataMu.Lock()
	delete(a.data, key)
	a.dataMu.Unlock()
}
