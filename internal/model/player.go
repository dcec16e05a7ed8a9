// Package model holds the core data types shared across the zone server:
// Player, Arena, their lifecycle enums and lag statistics
// (spec.md §3). Mutable fields are guarded the way the teacher guards
// per-connection state — atomics for hot-path reads, a small mutex for
// the rest — so readers from other goroutines never need the player
// store's lock.
package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// ClientKind identifies the wire variant a player connected with
// (spec.md §3 "client kind").
type ClientKind int32

const (
	ClientKindUnknown ClientKind = iota
	ClientKindLegacy
	ClientKindModern
	ClientKindChat
	ClientKindFake
)

func (k ClientKind) String() string {
	switch k {
	case ClientKindLegacy:
		return "legacy-client"
	case ClientKindModern:
		return "modern-client"
	case ClientKindChat:
		return "chat-client"
	case ClientKindFake:
		return "fake"
	default:
		return "unknown"
	}
}

// State is the player lifecycle state machine value (spec.md §4.5).
type State int32

const (
	StateUninitialized State = iota
	StateNeedAuth
	StateWaitAuth
	StateNeedGlobalSync
	StateWaitGlobalSync1
	StateDoGlobalCallbacks
	StateSendLoginResponse
	StateConnected
	StateLoggedIn
	StateDoFreqAndArenaSync
	StateWaitArenaSync1
	StateArenaRespAndCBS
	StatePlaying
	StateLeavingArena
	StateDoArenaSync2
	StateWaitArenaSync2
	StateLeavingZone
	StateWaitGlobalSync2
	StateTimeWait
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateNeedAuth:
		return "NeedAuth"
	case StateWaitAuth:
		return "WaitAuth"
	case StateNeedGlobalSync:
		return "NeedGlobalSync"
	case StateWaitGlobalSync1:
		return "WaitGlobalSync1"
	case StateDoGlobalCallbacks:
		return "DoGlobalCallbacks"
	case StateSendLoginResponse:
		return "SendLoginResponse"
	case StateConnected:
		return "Connected"
	case StateLoggedIn:
		return "LoggedIn"
	case StateDoFreqAndArenaSync:
		return "DoFreqAndArenaSync"
	case StateWaitArenaSync1:
		return "WaitArenaSync1"
	case StateArenaRespAndCBS:
		return "ArenaRespAndCBS"
	case StatePlaying:
		return "Playing"
	case StateLeavingArena:
		return "LeavingArena"
	case StateDoArenaSync2:
		return "DoArenaSync2"
	case StateWaitArenaSync2:
		return "WaitArenaSync2"
	case StateLeavingZone:
		return "LeavingZone"
	case StateWaitGlobalSync2:
		return "WaitGlobalSync2"
	case StateTimeWait:
		return "TimeWait"
	default:
		return "Unknown"
	}
}

// Position is a player's last-reported position snapshot (spec.md §3).
type Position struct {
	X, Y     int32
	XVel     int32
	YVel     int32
	Rotation byte
}

// Player is a connected client (spec.md §3 "Player").
//
// The ship/freq/arena fields and the others grouped under mu are
// protected by mu; the lifecycle state and the boolean flags are
// atomics and the position snapshot has its own lock, so the transport
// goroutines can update them without taking mu.
type Player struct {
	ID         int32
	Name       string
	Squad      string
	MachineID  uint32
	PermanentID int64
	ClientKind ClientKind

	// RemoteAddr is the connection endpoint key into the transport
	// layer's connection table — a weak reference by design (spec.md §9):
	// the player does not hold a *Connection pointer.
	RemoteAddr string
	ConnectAs  string
	ConnectedAt time.Time

	state atomic.Int32

	mu              sync.Mutex
	authenticated   bool
	arenaName       string // weak reference: resolved via the arena store
	newArena        string // arena placement is targeting this name
	whenLoggedIn    State  // state to resume once arena sync unwinds
	leaveWhenDoneWaiting bool
	replacedByID    int32 // 0 = none
	shipRequested   int8
	ship            int8
	freq            int16
	loginRejectText string // set by a failed auth chain; the rejection response is built from the auth result itself

	posMu    sync.RWMutex
	position Position

	hasSentPosition atomic.Bool
	hasSentWeapon   atomic.Bool
	noShip          atomic.Bool
	noFlagsBalls    atomic.Bool
	securitySuppressed atomic.Bool

	secMu              sync.Mutex
	securityChallengeAt time.Time // zero = no challenge outstanding
	expectedSettingsChecksum uint32
	expectedMapChecksum      uint32

	// Lag holds the player's ping/packetloss histograms (spec.md §4.9);
	// the security response handler and the lag watcher both feed it.
	Lag *LagStats

	dataMu sync.RWMutex
	data   map[int]any
}

// NewPlayer constructs a zeroed player in StateUninitialized. Extra-data
// slots are installed by the player store's AllocatePlayer, which knows the
// registered factories; NewPlayer itself only allocates the map.
func NewPlayer(id int32, remoteAddr string, kind ClientKind) *Player {
	p := &Player{
		ID:          id,
		RemoteAddr:  remoteAddr,
		ClientKind:  kind,
		ConnectedAt: time.Now(),
		ship:        -1,
		shipRequested: -1,
		data:        make(map[int]any),
		Lag:         NewLagStats(32),
	}
	p.state.Store(int32(StateUninitialized))
	return p
}

// State returns the current lifecycle state. Lock-free (atomic read).
func (p *Player) State() State { return State(p.state.Load()) }

// SetState sets the lifecycle state (atomic store). The lifecycle engine
// calls it from the scan's apply phase, with no store lock held, and from
// external events such as login, auth completion and kicks.
func (p *Player) SetState(s State) { p.state.Store(int32(s)) }

func (p *Player) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticated
}

func (p *Player) SetAuthenticated(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = v
}

// ArenaName returns the arena the player currently believes it is in.
func (p *Player) ArenaName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.arenaName
}

func (p *Player) SetArenaName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.arenaName = name
}

func (p *Player) NewArenaName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newArena
}

func (p *Player) SetNewArenaName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newArena = name
}

func (p *Player) WhenLoggedIn() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.whenLoggedIn
}

func (p *Player) SetWhenLoggedIn(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.whenLoggedIn = s
}

func (p *Player) LeaveArenaWhenDoneWaiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leaveWhenDoneWaiting
}

func (p *Player) SetLeaveArenaWhenDoneWaiting(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaveWhenDoneWaiting = v
}

// LoginRejectText returns the rejection text a failed auth chain attached
// to this player (spec.md §4.6), or "" if none is pending.
func (p *Player) LoginRejectText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginRejectText
}

func (p *Player) SetLoginRejectText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loginRejectText = text
}

// ReplacedByID returns the id of the new login replacing this player, or 0.
func (p *Player) ReplacedByID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.replacedByID
}

func (p *Player) SetReplacedByID(id int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replacedByID = id
}

func (p *Player) ShipRequested() int8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shipRequested
}

func (p *Player) SetShipRequested(ship int8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shipRequested = ship
}

func (p *Player) Ship() int8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ship
}

func (p *Player) Freq() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freq
}

func (p *Player) SetShipFreq(ship int8, freq int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ship = ship
	p.freq = freq
}

// Position returns the last reported position snapshot.
func (p *Player) Position() Position {
	p.posMu.RLock()
	defer p.posMu.RUnlock()
	return p.position
}

// SetPosition updates the position snapshot from a position packet.
func (p *Player) SetPosition(pos Position) {
	p.posMu.Lock()
	p.position = pos
	p.posMu.Unlock()
	p.hasSentPosition.Store(true)
}

func (p *Player) HasSentPosition() bool  { return p.hasSentPosition.Load() }
func (p *Player) HasSentWeapon() bool    { return p.hasSentWeapon.Load() }
func (p *Player) SetHasSentWeapon(v bool) { p.hasSentWeapon.Store(v) }
func (p *Player) NoShip() bool           { return p.noShip.Load() }
func (p *Player) SetNoShip(v bool)       { p.noShip.Store(v) }
func (p *Player) NoFlagsBalls() bool     { return p.noFlagsBalls.Load() }
func (p *Player) SetNoFlagsBalls(v bool) { p.noFlagsBalls.Store(v) }

// SecuritySuppressed reports whether the player carries a capability that
// suppresses the security kickoff (spec.md §4.7, per-player suppress).
func (p *Player) SecuritySuppressed() bool     { return p.securitySuppressed.Load() }
func (p *Player) SetSecuritySuppressed(v bool) { p.securitySuppressed.Store(v) }

// SecurityChallengeAt returns when the last outstanding security challenge
// was sent to this player, or the zero Time if none is outstanding
// (spec.md §4.7 "15 seconds later, any player ... that has not responded
// is kicked").
func (p *Player) SecurityChallengeAt() time.Time {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	return p.securityChallengeAt
}

// SetSecurityChallengeAt records when a challenge was sent. Call with the
// zero Time to clear it once the player responds.
func (p *Player) SetSecurityChallengeAt(t time.Time) {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	p.securityChallengeAt = t
}

// ExpectedSettingsChecksum returns the settings checksum computed for this
// player under the current challenge key (spec.md §4.7 "SettingsChecksum
// (computed per-player under the same key)").
func (p *Player) ExpectedSettingsChecksum() uint32 {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	return p.expectedSettingsChecksum
}

func (p *Player) SetExpectedSettingsChecksum(v uint32) {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	p.expectedSettingsChecksum = v
}

// ExpectedMapChecksum returns the arena map checksum computed for this
// player's challenge, captured at send time so a later rotation cannot
// race the response check.
func (p *Player) ExpectedMapChecksum() uint32 {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	return p.expectedMapChecksum
}

func (p *Player) SetExpectedMapChecksum(v uint32) {
	p.secMu.Lock()
	defer p.secMu.Unlock()
	p.expectedMapChecksum = v
}

// Data returns the extra-data slot value for key, or nil if unset.
func (p *Player) Data(key int) any {
	p.dataMu.RLock()
	defer p.dataMu.RUnlock()
	return p.data[key]
}

// SetData installs the extra-data slot value for key.
func (p *Player) SetData(key int, v any) {
	p.dataMu.Lock()
	p.data[key] = v
	p.dataMu.Unlock()
}

// DeleteData removes the extra-data slot value for key (used when a slot is
// unregistered and its factory reclaims all live instances).
func (p *Player) DeleteData(key int) {
	p.dataMu.Lock()
	delete(p.data, key)
	p.dataMu.Unlock()
}
