package crypto

import (
	"encoding/binary"
	"sync/atomic"
)

// ContinuumCipher implements the rolling XOR cipher negotiated by the
// modern-client connection-init handshake (packet type 0x00 0x01/0x00 0x02).
// The cipher evolves its key on every call so replayed datagrams never
// decrypt to the same plaintext twice.
//
//   - Encrypt: encrypted[i] = raw[i] ^ outKey[i & 0x0F] ^ encrypted[i-1]
//   - Decrypt: decrypted[i] = encrypted[i] ^ inKey[i & 0x0F] ^ encrypted[i-1]
//   - After each call, key bytes [8:12] (LE uint32) are incremented by packet size.
//   - The first Encrypt call is skipped: the connection-init response itself
//     is sent unencrypted.
type ContinuumCipher struct {
	inKey     [16]byte
	outKey    [16]byte
	isEnabled atomic.Bool
}

// NewContinuumCipher creates a disabled cipher. Call SetKey before use.
func NewContinuumCipher() *ContinuumCipher {
	return &ContinuumCipher{}
}

// SetKey derives inKey/outKey from the 4-byte signed LE key exchanged during
// connection-init. The low 4 bytes are repeated to fill the 16-byte key.
func (c *ContinuumCipher) SetKey(key int32) {
	var seed [16]byte
	for i := 0; i < 16; i += 4 {
		binary.LittleEndian.PutUint32(seed[i:], uint32(key))
	}
	c.inKey = seed
	c.outKey = seed
}

// Encrypt encrypts data in-place. The first call after SetKey is a no-op
// (the connection-init response carries the key in the clear).
func (c *ContinuumCipher) Encrypt(data []byte) {
	if !c.isEnabled.Swap(true) {
		return
	}

	var prev byte
	for i := range data {
		prev = data[i] ^ c.outKey[i&0x0F] ^ prev
		data[i] = prev
	}
	shiftKey(c.outKey[:], len(data))
}

// Decrypt decrypts data in-place. A no-op before the cipher is enabled.
func (c *ContinuumCipher) Decrypt(data []byte) {
	if !c.isEnabled.Load() {
		return
	}

	var xor byte
	for i := range data {
		encrypted := data[i]
		data[i] = encrypted ^ c.inKey[i&0x0F] ^ xor
		xor = encrypted
	}
	shiftKey(c.inKey[:], len(data))
}

// IsEnabled reports whether the cipher has processed its first packet.
func (c *ContinuumCipher) IsEnabled() bool {
	return c.isEnabled.Load()
}

func shiftKey(key []byte, size int) {
	old := binary.LittleEndian.Uint32(key[8:12])
	old += uint32(size)
	binary.LittleEndian.PutUint32(key[8:12], old)
}
