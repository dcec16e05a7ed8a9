package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssgo/zonecore/internal/bandwidth"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/crypto"
)

// pendingSend is one unacked reliable packet awaiting retry or ack
// (spec.md §4.3 "Reliable send").
type pendingSend struct {
	seq      uint32
	frame    []byte
	sentAt   time.Time
	timeout  time.Duration
	attempts int
}

// Connection is one remote endpoint's reliable-transport state (spec.md
// §4.3). RemoteAddr is the same string key the player store's
// model.Player.RemoteAddr field carries — a weak reference, never a
// pointer into this struct (spec.md §9).
type Connection struct {
	RemoteAddr string
	Kind       byte

	Cipher  crypto.Provider
	Limiter *bandwidth.Limiter

	mu       sync.Mutex
	sendSeq  uint32
	recvSeq  uint32
	recvBuf  map[uint32][]byte // out-of-order reliable packets awaiting in-sequence delivery
	pending  map[uint32]*pendingSend

	bigTotal uint32
	bigBuf   []byte

	lastRecvAt atomic.Int64 // unix nanos
	closed     atomic.Bool
}

func newConnection(remoteAddr string, kind byte, cipher crypto.Provider, limiter *bandwidth.Limiter, now time.Time) *Connection {
	c := &Connection{
		RemoteAddr: remoteAddr,
		Kind:       kind,
		Cipher:     cipher,
		Limiter:    limiter,
		recvBuf:    make(map[uint32][]byte),
		pending:    make(map[uint32]*pendingSend),
	}
	c.lastRecvAt.Store(now.UnixNano())
	return c
}

func (c *Connection) touch(now time.Time) {
	c.lastRecvAt.Store(now.UnixNano())
}

// IdleFor reports how long it has been since the last received datagram.
func (c *Connection) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastRecvAt.Load()))
}

// Closed reports whether Disconnect has already run for this connection.
func (c *Connection) Closed() bool { return c.closed.Load() }

// nextSendSeq allocates the next reliable sequence number.
func (c *Connection) nextSendSeq() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.sendSeq
	c.sendSeq++
	return seq
}

// trackPending registers a reliable send for retry tracking.
func (c *Connection) trackPending(seq uint32, frame []byte, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[seq] = &pendingSend{
		seq:     seq,
		frame:   frame,
		sentAt:  now,
		timeout: constants.RetryInitialTimeout,
	}
}

// ack removes a pending send by sequence, reporting whether it existed
// (duplicate acks are harmless no-ops).
func (c *Connection) ack(seq uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[seq]; !ok {
		return false
	}
	delete(c.pending, seq)
	return true
}

// duePending returns a snapshot of sends whose retry timeout has
// elapsed as of now, bumping their timeout (exponential backoff, capped)
// and attempt count in place.
func (c *Connection) duePending(now time.Time) []*pendingSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due []*pendingSend
	for _, p := range c.pending {
		if now.Sub(p.sentAt) < p.timeout {
			continue
		}
		p.attempts++
		p.sentAt = now
		p.timeout *= 2
		if p.timeout > constants.RetryMaxTimeout {
			p.timeout = constants.RetryMaxTimeout
		}
		due = append(due, p)
	}
	return due
}

// deliverInOrder buffers an out-of-order reliable packet and returns, in
// sequence order, every payload now ready for application delivery
// (spec.md §4.3 "Delivery to the application is strictly in sequence
// order; out-of-order arrivals are buffered").
func (c *Connection) deliverInOrder(seq uint32, payload []byte) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if seq < c.recvSeq {
		return nil // duplicate, already delivered
	}
	if _, dup := c.recvBuf[seq]; dup && seq != c.recvSeq {
		return nil
	}
	c.recvBuf[seq] = payload

	var ready [][]byte
	for {
		next, ok := c.recvBuf[c.recvSeq]
		if !ok {
			break
		}
		ready = append(ready, next)
		delete(c.recvBuf, c.recvSeq)
		c.recvSeq++
	}
	return ready
}

// assembleBigFragment folds in one big-packet fragment, returning the
// completed payload once every byte up to totalLen has arrived.
// ErrOversizedPacket is returned (and the connection should be
// disconnected) if totalLen exceeds maxAssembly.
func (c *Connection) assembleBigFragment(totalLen, offset uint32, chunk []byte, maxAssembly uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if totalLen > maxAssembly {
		return nil, errOversized(totalLen, maxAssembly)
	}
	if c.bigBuf == nil || uint32(len(c.bigBuf)) != totalLen {
		c.bigTotal = totalLen
		c.bigBuf = make([]byte, totalLen)
	}
	end := offset + uint32(len(chunk))
	if end > c.bigTotal {
		return nil, errOversized(end, maxAssembly)
	}
	copy(c.bigBuf[offset:end], chunk)
	if end < c.bigTotal {
		return nil, nil
	}
	out := c.bigBuf
	c.bigBuf = nil
	return out, nil
}
