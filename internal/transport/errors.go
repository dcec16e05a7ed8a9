package transport

import (
	"errors"
	"fmt"
)

// ErrOversizedPacket mirrors wire.ErrOversizedPacket at the transport
// layer, where the assembly cap is connection-local configuration
// rather than a wire-format constant.
var ErrOversizedPacket = errors.New("transport: declared big-packet length exceeds assembly cap")

// ErrTimeout is the disconnect reason for an idle connection (spec.md
// §4.3 "absence of any packet for the idle timeout disconnects with
// Timeout").
var ErrTimeout = errors.New("transport: connection idle timeout")

func errOversized(declared, limit uint32) error {
	return fmt.Errorf("%w: declared %d exceeds cap %d", ErrOversizedPacket, declared, limit)
}
