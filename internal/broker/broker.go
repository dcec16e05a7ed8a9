// Package broker is the named capability registry gameplay modules plug
// into (spec.md §4.1 "Module/interface broker"): a single interface can
// have one registered implementation (Reg/Get/Unreg) or many advisors
// consulted in priority order (RegAdvisor/GetAdvisors/UnregAdvisor), and
// a named callback list other modules fire events through
// (RegCallback/Fire/UnregCallback). Modelled on the teacher's
// ClientManager's registration-table idiom, generalized from a single
// concrete map to an interface{}-keyed registry since the broker has no
// fixed set of interfaces at compile time.
package broker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInUse is returned by Unreg when the registered implementation still
// has outstanding references (spec.md §4.1 "Unreg fails while InUse").
var ErrInUse = errors.New("broker: interface in use")

// ErrNotRegistered is returned by Get/Unreg for an interface with no
// current registration.
var ErrNotRegistered = errors.New("broker: interface not registered")

type registration struct {
	impl     any
	refCount int
}

type advisorEntry struct {
	impl     any
	priority int
}

// Broker is the process-wide registry. The zero value is not usable; use
// New.
type Broker struct {
	mu sync.RWMutex

	interfaces map[string]*registration
	advisors   map[string][]advisorEntry
	callbacks  map[string][]func(args ...any)
}

// New constructs an empty Broker.
func New() *Broker {
	return &Broker{
		interfaces: make(map[string]*registration),
		advisors:   make(map[string][]advisorEntry),
		callbacks:  make(map[string][]func(args ...any)),
	}
}

// Reg registers the sole implementation of a named interface. Registering
// over an existing, still-referenced implementation is rejected with
// ErrInUse; registering over an unreferenced one replaces it.
func (b *Broker) Reg(name string, impl any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.interfaces[name]; ok && r.refCount > 0 {
		return fmt.Errorf("registering %q: %w", name, ErrInUse)
	}
	b.interfaces[name] = &registration{impl: impl}
	return nil
}

// Get looks up the implementation of name and bumps its reference count.
// Callers must call Release when done holding the reference.
func (b *Broker) Get(name string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.interfaces[name]
	if !ok {
		return nil, fmt.Errorf("getting %q: %w", name, ErrNotRegistered)
	}
	r.refCount++
	return r.impl, nil
}

// Release drops a reference taken by Get.
func (b *Broker) Release(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.interfaces[name]
	if !ok || r.refCount == 0 {
		return
	}
	r.refCount--
}

// Unreg removes the registration for name. Fails with ErrInUse if any
// reference is outstanding.
func (b *Broker) Unreg(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.interfaces[name]
	if !ok {
		return fmt.Errorf("unregistering %q: %w", name, ErrNotRegistered)
	}
	if r.refCount > 0 {
		return fmt.Errorf("unregistering %q: %w", name, ErrInUse)
	}
	delete(b.interfaces, name)
	return nil
}

// RegAdvisor appends impl to the named advisor list at the given
// priority (lower runs first), re-sorting the list. Multiple modules may
// register advisors for the same name (spec.md §4.1 "Advisors").
func (b *Broker) RegAdvisor(name string, impl any, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := append(b.advisors[name], advisorEntry{impl: impl, priority: priority})
	sort.SliceStable(list, func(i, j int) bool { return list[i].priority < list[j].priority })
	b.advisors[name] = list
}

// UnregAdvisor removes the first advisor entry matching impl by identity.
func (b *Broker) UnregAdvisor(name string, impl any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.advisors[name]
	for i, e := range list {
		if e.impl == impl {
			b.advisors[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// GetAdvisors returns a priority-ordered copy-on-write snapshot of the
// named advisor list. Callers iterate the snapshot without holding the
// broker lock, so a concurrent RegAdvisor/UnregAdvisor never races the
// iteration.
func (b *Broker) GetAdvisors(name string) []any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := b.advisors[name]
	if len(list) == 0 {
		return nil
	}
	out := make([]any, len(list))
	for i, e := range list {
		out[i] = e.impl
	}
	return out
}

// RegCallback appends fn to the named callback list (spec.md §4.1
// "callbacks" — fire-and-forget event notification, as opposed to
// advisors which return a decision).
func (b *Broker) RegCallback(name string, fn func(args ...any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[name] = append(b.callbacks[name], fn)
}

// UnregCallback removes every callback registered for name. The broker
// does not expose identity-based removal for callbacks: callers that
// need fine-grained removal should register through RegAdvisor instead.
func (b *Broker) UnregCallback(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.callbacks, name)
}

// Fire invokes every callback registered for name, in registration order,
// with the current snapshot of the list. Fire does not hold the broker
// lock while invoking callbacks, so a callback may itself call back into
// the broker (e.g. to unregister itself) without deadlocking.
func (b *Broker) Fire(name string, args ...any) {
	b.mu.RLock()
	list := append([]func(args ...any){}, b.callbacks[name]...)
	b.mu.RUnlock()
	for _, fn := range list {
		fn(args...)
	}
}
