// Package auth implements the authentication chain (spec.md §4.6): a
// linked-list override pattern through the broker, where each module
// captures the previously registered "auth" interface on load and
// registers itself as the new head. Grounded on the teacher's
// session/sequencing idioms (internal/login/session_manager.go) for the
// once-only completion contract, generalized into the broker's
// capture-then-override registration style spec.md §4.6 describes.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/ssgo/zonecore/internal/broker"
)

// InterfaceName is the broker interface name the chain registers under.
const InterfaceName = "auth"

// Result is the outcome an Authenticator reports via Request.Done.
type Result struct {
	OK         bool
	CustomText string // shown to the client on failure (spec.md §4.6 "CustomText")
	Name       string // resolved player name (extracted from the login packet)
	Squad      string
}

// Request is one login attempt travelling down the chain. Done must be
// called exactly once (spec.md §4.6 "Contract").
type Request struct {
	Ctx       context.Context
	MachineID uint32
	LoginName string
	LoginSquad string

	mu       sync.Mutex
	done     bool
	callback func(Result)
}

// NewRequest constructs a Request whose Done invokes onDone exactly
// once.
func NewRequest(ctx context.Context, machineID uint32, loginName, loginSquad string, onDone func(Result)) *Request {
	return &Request{Ctx: ctx, MachineID: machineID, LoginName: loginName, LoginSquad: loginSquad, callback: onDone}
}

// Done completes the request. Subsequent calls are no-ops (defends the
// once-only contract against a buggy chain link calling twice).
func (r *Request) Done(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.callback(res)
}

// Authenticator is the chain-link contract (spec.md §4.6).
type Authenticator interface {
	Authenticate(req *Request)
}

// AuthenticatorFunc adapts a plain function to Authenticator.
type AuthenticatorFunc func(req *Request)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(req *Request) { f(req) }

// Register captures the broker's current "auth" registration (if any),
// passes it to build as prev, and installs the result as the new head
// of the chain (spec.md §4.6 "captures the previously registered auth
// interface on load and registers itself as the new one").
func Register(brk *broker.Broker, build func(prev Authenticator) Authenticator) error {
	var prev Authenticator
	if impl, err := brk.Get(InterfaceName); err == nil {
		prev, _ = impl.(Authenticator)
		brk.Release(InterfaceName)
		if err := brk.Unreg(InterfaceName); err != nil {
			return fmt.Errorf("auth: replacing chain head: %w", err)
		}
	}
	return brk.Reg(InterfaceName, build(prev))
}

// Default accepts every login, extracting name and squad from the
// request (spec.md §4.6 "The terminal default accepts all logins with
// the name and squad extracted from the login packet").
type Default struct{}

// Authenticate implements Authenticator.
func (Default) Authenticate(req *Request) {
	req.Done(Result{OK: true, Name: req.LoginName, Squad: req.LoginSquad})
}
