package pool

import (
	"strings"
	"sync"
)

// BuilderPool pools strings.Builder instances for the chat/command
// formatting paths that assemble text packets on every call.
type BuilderPool struct {
	pool sync.Pool
}

// NewBuilderPool creates a strings.Builder pool.
func NewBuilderPool() *BuilderPool {
	p := &BuilderPool{}
	p.pool.New = func() any {
		return &strings.Builder{}
	}
	return p
}

// Get returns a reset, ready-to-use builder.
func (p *BuilderPool) Get() *strings.Builder {
	b := p.pool.Get().(*strings.Builder)
	b.Reset()
	return b
}

// Put returns the builder to the pool.
func (p *BuilderPool) Put(b *strings.Builder) {
	if b == nil {
		return
	}
	p.pool.Put(b)
}
