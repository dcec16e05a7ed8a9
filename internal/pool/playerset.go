package pool

import (
	"sync"

	"github.com/ssgo/zonecore/internal/model"
)

// PlayerSetPool pools the []*model.Player slices the broker's advisors and
// the arena/chat "send to target" helpers build on every call (spec.md
// §4.1/§4.2 "target expansion"). Call Get, append, iterate, then Put —
// Put clears the slice so it never pins player pointers after release.
type PlayerSetPool struct {
	pool sync.Pool
}

// NewPlayerSetPool creates a pool whose fresh slices start at defaultCap.
func NewPlayerSetPool(defaultCap int) *PlayerSetPool {
	p := &PlayerSetPool{}
	p.pool.New = func() any {
		s := make([]*model.Player, 0, defaultCap)
		return &s
	}
	return p
}

// Get returns an empty, pooled slice ready to append to.
func (p *PlayerSetPool) Get() []*model.Player {
	s := p.pool.Get().(*[]*model.Player)
	return (*s)[:0]
}

// Put clears and returns the slice to the pool.
func (p *PlayerSetPool) Put(s []*model.Player) {
	if s == nil {
		return
	}
	for i := range s {
		s[i] = nil
	}
	s = s[:0]
	p.pool.Put(&s)
}
