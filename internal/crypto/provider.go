// Package crypto implements the connection-init encryption providers: the
// continuum rolling-XOR cipher used by modern clients and a null provider,
// which cmd/zoneserver installs for legacy clients. It also holds a
// Blowfish ECB cipher that does not implement Provider and that no
// connection-init handler installs. See internal/transport for how a
// provider is selected.
package crypto

// Provider is the per-connection encryption contract the reliable
// transport calls on every outbound/inbound datagram after connection-init
// has completed.
type Provider interface {
	Encrypt(data []byte)
	Decrypt(data []byte)
}

// NullProvider performs no encryption. cmd/zoneserver installs it for
// legacy clients; tests use it too.
type NullProvider struct{}

func (NullProvider) Encrypt([]byte) {}
func (NullProvider) Decrypt([]byte) {}

// continuumAdapter satisfies Provider for *ContinuumCipher without changing
// its richer IsEnabled/SetKey surface used directly by connection-init.
type continuumAdapter struct{ c *ContinuumCipher }

// AsProvider adapts a keyed ContinuumCipher to the Provider interface.
func AsProvider(c *ContinuumCipher) Provider { return continuumAdapter{c: c} }

func (a continuumAdapter) Encrypt(data []byte) { a.c.Encrypt(data) }
func (a continuumAdapter) Decrypt(data []byte) { a.c.Decrypt(data) }
