package transport

import "github.com/ssgo/zonecore/internal/crypto"

// InitHandler claims a connection-init handshake for a client kind it
// recognizes, returning the encryption provider to install and whether
// it claimed the packet (spec.md §4.3 "Connection-init": ordered chain,
// first handler that claims it instantiates a Connection and optionally
// an encryption provider).
type InitHandler interface {
	TryInit(clientKind byte, key int32) (cipher crypto.Provider, ok bool)
}

// InitHandlerFunc adapts a plain function to InitHandler.
type InitHandlerFunc func(clientKind byte, key int32) (crypto.Provider, bool)

// TryInit calls f.
func (f InitHandlerFunc) TryInit(clientKind byte, key int32) (crypto.Provider, bool) {
	return f(clientKind, key)
}

// NullInitHandler claims clientKind and installs crypto.NullProvider (no
// encryption); cmd/zoneserver registers it for legacy clients (spec.md
// §9 "the core ships a null-encryption handler").
func NullInitHandler(clientKind byte) InitHandler {
	return InitHandlerFunc(func(kind byte, key int32) (crypto.Provider, bool) {
		if kind != clientKind {
			return nil, false
		}
		return crypto.NullProvider{}, true
	})
}

// ContinuumInitHandler claims clientKind and installs a keyed continuum
// cipher (spec.md §9, adapted from the teacher's rolling-key cipher).
func ContinuumInitHandler(clientKind byte) InitHandler {
	return InitHandlerFunc(func(kind byte, key int32) (crypto.Provider, bool) {
		if kind != clientKind {
			return nil, false
		}
		c := crypto.NewContinuumCipher()
		c.SetKey(key)
		return crypto.AsProvider(c), true
	})
}
