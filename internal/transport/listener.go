// Package transport is the reliable UDP layer (spec.md §4.3): framing
// classification lives in internal/wire, per-connection reliable
// windows and retry state in Connection, and the receive/retry loops
// and connection table here. Grounded on the teacher's gameserver.Server
// accept-loop-plus-per-client-state shape (internal/gameserver/server.go),
// adapted from TCP's one-goroutine-per-connection model to UDP's single
// shared socket with an in-process connection table keyed by remote
// address.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ssgo/zonecore/internal/bandwidth"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/pool"
	"github.com/ssgo/zonecore/internal/wire"
)

// PacketHandler dispatches a fully-reassembled application payload to
// the rest of the core. remoteAddr is the same weak-reference key
// carried on model.Player.RemoteAddr.
type PacketHandler func(remoteAddr string, payload []byte)

// Config bounds the listener's per-datagram and per-connection limits.
type Config struct {
	MTU            int // read buffer size, spec.md §4.3 path MTU
	BigPacketMax   uint32
	BandwidthCfg   bandwidth.Config
	RetryScanEvery time.Duration
}

// DefaultConfig returns the spec.md worked defaults.
func DefaultConfig() Config {
	return Config{
		MTU:            constants.GroupedPathMTU,
		BigPacketMax:   constants.DefaultBigPacketMax,
		BandwidthCfg:   bandwidth.DefaultConfig(),
		RetryScanEvery: 100 * time.Millisecond,
	}
}

// Listener owns the shared UDP socket, the connection table, and the
// ordered connection-init handler chain.
type Listener struct {
	cfg     Config
	pc      net.PacketConn
	bufPool *pool.BytePool
	onPkt   PacketHandler

	mu           sync.RWMutex
	conns        map[string]*Connection
	initHandlers []InitHandler
	onConnect    func(remoteAddr string, clientKind byte)
}

// New wraps an already-bound net.PacketConn. Callers obtain pc via
// net.ListenPacket("udp", addr) in cmd/zoneserver.
func New(pc net.PacketConn, cfg Config, onPkt PacketHandler) *Listener {
	return &Listener{
		cfg:     cfg,
		pc:      pc,
		bufPool: pool.NewBytePool(cfg.MTU),
		onPkt:   onPkt,
		conns:   make(map[string]*Connection),
	}
}

// RegisterInitHandler appends h to the end of the connection-init
// dispatch chain (spec.md §4.3 "ordered chain of registered handlers").
func (l *Listener) RegisterInitHandler(h InitHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initHandlers = append(l.initHandlers, h)
}

// OnConnect installs the callback fired once a new connection is
// accepted by the init handler chain (spec.md §3 "Player ... created
// by the connection-init path"). Only one callback is supported; a
// later call replaces the previous one.
func (l *Listener) OnConnect(fn func(remoteAddr string, clientKind byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onConnect = fn
}

// Connection returns the connection for remoteAddr, or nil.
func (l *Listener) Connection(remoteAddr string) *Connection {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.conns[remoteAddr]
}

// IdleFor reports how long it has been since remoteAddr's connection last
// received a datagram, and whether the connection exists at all. Exposed
// so collaborators like internal/lag can judge staleness without binding
// to the concrete *Connection type.
func (l *Listener) IdleFor(remoteAddr string, now time.Time) (time.Duration, bool) {
	conn := l.Connection(remoteAddr)
	if conn == nil {
		return 0, false
	}
	return conn.IdleFor(now), true
}

// Disconnect removes and marks closed the connection for remoteAddr,
// optionally notifying the peer with a disconnect frame.
func (l *Listener) Disconnect(remoteAddr string, notifyPeer bool) {
	l.mu.Lock()
	c, ok := l.conns[remoteAddr]
	if ok {
		delete(l.conns, remoteAddr)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	c.closed.Store(true)
	if notifyPeer {
		addr, err := net.ResolveUDPAddr("udp", remoteAddr)
		if err == nil {
			l.pc.WriteTo(disconnectFrame(), addr)
		}
	}
}

func disconnectFrame() []byte {
	w := wire.NewWriter(2)
	w.WriteByte(constants.FrameMarker).WriteByte(constants.FrameDisconnect)
	return w.Bytes()
}

// Run drives the receive loop until ctx is cancelled or the socket
// errors. It also starts the retry-scan and idle-timeout goroutines.
func (l *Listener) Run(ctx context.Context) error {
	go l.retryLoop(ctx)
	go l.idleLoop(ctx)

	go func() {
		<-ctx.Done()
		l.pc.Close()
	}()

	for {
		buf := l.bufPool.Get(l.cfg.MTU)
		n, addr, err := l.pc.ReadFrom(buf)
		if err != nil {
			l.bufPool.Put(buf)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("transport: read error", "error", err)
			continue
		}
		datagram := append([]byte(nil), buf[:n]...)
		l.bufPool.Put(buf)
		l.handleDatagram(addr.String(), datagram, time.Now())
	}
}

func (l *Listener) handleDatagram(remoteAddr string, datagram []byte, now time.Time) {
	kind, body, err := wire.Classify(datagram)
	if err != nil {
		slog.Warn("transport: malformed datagram", "remote", remoteAddr, "class", "malicious", "error", err)
		return
	}

	conn := l.Connection(remoteAddr)
	if conn == nil {
		if kind != wire.KindConnectionInit {
			return // no connection and not a handshake: drop
		}
		l.handleConnectionInit(remoteAddr, body, now)
		return
	}

	conn.touch(now)

	switch kind {
	case wire.KindRegular:
		conn.Cipher.Decrypt(body)
		l.onPkt(remoteAddr, body)
	case wire.KindReliable:
		l.handleReliable(conn, remoteAddr, body, now)
	case wire.KindAck:
		seq, err := wire.DecodeAck(body)
		if err != nil {
			return
		}
		if conn.ack(seq) {
			conn.Limiter.OnAck()
		}
	case wire.KindGrouped:
		inner, err := wire.DecodeGrouped(body)
		if err != nil {
			slog.Warn("transport: malformed grouped packet", "remote", remoteAddr, "class", "malicious", "error", err)
			return
		}
		for _, p := range inner {
			conn.Cipher.Decrypt(p)
			l.onPkt(remoteAddr, p)
		}
	case wire.KindBigPacket:
		total, offset, chunk, err := wire.DecodeBigFragment(body)
		if err != nil {
			return
		}
		payload, err := conn.assembleBigFragment(total, offset, chunk, l.cfg.BigPacketMax)
		if err != nil {
			slog.Warn("transport: oversized big packet, disconnecting", "remote", remoteAddr, "error", err)
			l.Disconnect(remoteAddr, true)
			return
		}
		if payload != nil {
			conn.Cipher.Decrypt(payload)
			l.onPkt(remoteAddr, payload)
		}
	case wire.KindDisconnect:
		l.Disconnect(remoteAddr, false)
	case wire.KindConnectionInit:
		// Already connected; a repeated handshake is ignored rather than
		// re-claimed, matching "first handler that claims it" semantics.
	}
}

func (l *Listener) handleReliable(conn *Connection, remoteAddr string, body []byte, now time.Time) {
	seq, payload, err := wire.DecodeReliable(body)
	if err != nil {
		slog.Warn("transport: malformed reliable frame, disconnecting", "remote", remoteAddr, "error", err)
		l.Disconnect(remoteAddr, true)
		return
	}
	l.pc.WriteTo(wire.EncodeAck(seq), mustResolve(remoteAddr))

	ready := conn.deliverInOrder(seq, payload)
	for _, p := range ready {
		conn.Cipher.Decrypt(p)
		l.onPkt(remoteAddr, p)
	}
}

func (l *Listener) handleConnectionInit(remoteAddr string, body []byte, now time.Time) {
	clientKind, key, err := wire.DecodeConnectionInit(body)
	if err != nil {
		return
	}

	l.mu.RLock()
	handlers := append([]InitHandler(nil), l.initHandlers...)
	l.mu.RUnlock()

	for _, h := range handlers {
		cipher, ok := h.TryInit(clientKind, key)
		if !ok {
			continue
		}
		conn := newConnection(remoteAddr, clientKind, cipher, bandwidth.New(l.cfg.BandwidthCfg, now), now)
		l.mu.Lock()
		l.conns[remoteAddr] = conn
		l.mu.Unlock()

		addr := mustResolve(remoteAddr)
		l.pc.WriteTo(wire.EncodeConnectionResp(key), addr)

		l.mu.RLock()
		onConnect := l.onConnect
		l.mu.RUnlock()
		if onConnect != nil {
			onConnect(remoteAddr, clientKind)
		}
		return
	}
	// No handler claimed it: drop (spec.md §4.3).
}

// SendUnreliable admits and sends an unencrypted-framing application
// payload, subject to the connection's bandwidth limiter.
func (l *Listener) SendUnreliable(remoteAddr string, payload []byte, priority bandwidth.Priority) error {
	conn := l.Connection(remoteAddr)
	if conn == nil {
		return fmt.Errorf("transport: send to unknown connection %s", remoteAddr)
	}
	if !conn.Limiter.Check(len(payload), priority) {
		return fmt.Errorf("transport: bandwidth limit exceeded for %s", remoteAddr)
	}
	out := append([]byte(nil), payload...)
	conn.Cipher.Encrypt(out)
	_, err := l.pc.WriteTo(out, mustResolve(remoteAddr))
	return err
}

// SendReliable admits, frames and tracks a reliable application payload
// for retry until acknowledged.
func (l *Listener) SendReliable(remoteAddr string, payload []byte) error {
	conn := l.Connection(remoteAddr)
	if conn == nil {
		return fmt.Errorf("transport: send to unknown connection %s", remoteAddr)
	}
	if !conn.Limiter.Check(len(payload), bandwidth.PriorityReliable) {
		return fmt.Errorf("transport: bandwidth limit exceeded for %s", remoteAddr)
	}

	enc := append([]byte(nil), payload...)
	conn.Cipher.Encrypt(enc)
	seq := conn.nextSendSeq()
	frame := wire.EncodeReliable(seq, enc)

	now := time.Now()
	conn.trackPending(seq, frame, now)
	_, err := l.pc.WriteTo(frame, mustResolve(remoteAddr))
	return err
}

func (l *Listener) retryLoop(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.RetryScanEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.scanRetries(now)
		}
	}
}

func (l *Listener) scanRetries(now time.Time) {
	l.mu.RLock()
	conns := make([]*Connection, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.RUnlock()

	for _, conn := range conns {
		for _, due := range conn.duePending(now) {
			conn.Limiter.OnRetry()
			l.pc.WriteTo(due.frame, mustResolve(conn.RemoteAddr))
		}
	}
}

func (l *Listener) idleLoop(ctx context.Context) {
	ticker := time.NewTicker(constants.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.scanIdle(now)
		}
	}
}

func (l *Listener) scanIdle(now time.Time) {
	l.mu.RLock()
	var idle []string
	for addr, c := range l.conns {
		if c.IdleFor(now) > constants.IdleTimeout {
			idle = append(idle, addr)
		}
	}
	l.mu.RUnlock()

	for _, addr := range idle {
		slog.Info("transport: disconnecting idle connection", "remote", addr, "reason", ErrTimeout)
		l.Disconnect(addr, false)
	}
}

func mustResolve(remoteAddr string) net.Addr {
	addr, err := net.ResolveUDPAddr("udp", remoteAddr)
	if err != nil {
		return &net.UDPAddr{}
	}
	return addr
}
