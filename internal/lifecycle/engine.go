// Package lifecycle drives the player state machine (spec.md §4.5): a
// single periodic scan, run from one goroutine ("the mainloop thread"),
// that collects pending transitions under the player store's write
// lock, releases it, then performs side effects (persistence calls,
// broker callbacks) with no lock held. Grounded on the teacher's
// ticker-driven periodic manager (internal/spawn/respawn.go
// RespawnTaskManager.Start), generalized from a single fixed-interval
// task to a state-dispatch table.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/auth"
	"github.com/ssgo/zonecore/internal/broker"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/wire"
)

// ScanInterval is the lifecycle engine's fixed tick (spec.md §4.5
// "Periodic (every 100 ms)").
const ScanInterval = 100 * time.Millisecond

// GlobalSync is the persistence contract the NeedGlobalSync/WaitGlobalSync2
// transitions call through (spec.md §4.5; backed by internal/persist.ScoreStore
// in cmd/zoneserver's wiring).
type GlobalSync interface {
	Load(ctx context.Context, name string) (map[string]any, error)
	Save(ctx context.Context, name, squad string, data map[string]any) error
}

// FreqPicker assigns a ship/freq pair on arena entry (spec.md §4.5
// "pick freq via FreqManager"). Gameplay modules supply the real
// policy; the core only calls through this contract (spec.md §1
// Non-goals).
type FreqPicker interface {
	PickFreq(arena *model.Arena, p *model.Player) (ship int8, freq int16)
}

// Sender is the outbound reliable-delivery contract the login response
// is sent through (spec.md §4.5 "SendLoginResponse"). Satisfied by
// *transport.Listener; isolated here so the engine can be tested
// without a live socket.
type Sender interface {
	SendReliable(remoteAddr string, payload []byte) error
}

// Engine runs the lifecycle scan.
type Engine struct {
	players *playerstore.Store
	arenas  *arenastore.Store
	brk     *broker.Broker
	sync    GlobalSync
	freq    FreqPicker
	sender  Sender
}

// New constructs an Engine. brk is used to fire PlayerAction.{Connect,
// EnterArena,LeaveArena,Disconnect} callbacks (spec.md §4.5). sender
// delivers the S2C login response built at SendLoginResponse / on auth
// rejection.
func New(players *playerstore.Store, arenas *arenastore.Store, brk *broker.Broker, sync GlobalSync, freq FreqPicker, sender Sender) *Engine {
	return &Engine{players: players, arenas: arenas, brk: brk, sync: sync, freq: freq, sender: sender}
}

// Run blocks, ticking the scan every ScanInterval until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.scan(ctx)
		}
	}
}

// transition is one player's pending state change, collected under the
// store's write lock and applied afterward without it.
type transition struct {
	player *model.Player
	from   model.State
	to     model.State
}

// scan implements spec.md §4.5's two-phase pattern.
func (e *Engine) scan(ctx context.Context) {
	var pending []transition

	e.players.ScanLocked(func(p *model.Player) {
		from := p.State()
		to := e.decide(p, from)
		if to != from {
			pending = append(pending, transition{player: p, from: from, to: to})
		}
	})

	for _, t := range pending {
		e.apply(ctx, t)
	}
}

// decide returns the state p should move to on this tick, or its
// current state if no scan-driven transition applies. States reached
// only by external events (auth completion, kick, arena-leave request)
// are not decided here — they are read as already-set by the caller
// that triggered them and simply carried forward to their side-effect
// phase.
func (e *Engine) decide(p *model.Player, from model.State) model.State {
	switch from {
	case model.StateNeedAuth:
		return model.StateWaitAuth
	case model.StateNeedGlobalSync:
		return model.StateWaitGlobalSync1
	case model.StateDoGlobalCallbacks:
		return model.StateSendLoginResponse
	case model.StateSendLoginResponse:
		return model.StateLoggedIn
	case model.StateLoggedIn, model.StateConnected:
		if newArena := p.NewArenaName(); newArena != "" {
			if a := e.arenas.ByName(newArena); a != nil && a.Status() == model.ArenaRunning {
				return model.StateDoFreqAndArenaSync
			}
		}
		if when := p.WhenLoggedIn(); when != model.StateUninitialized {
			return when
		}
		return from
	case model.StateDoFreqAndArenaSync:
		return model.StateWaitArenaSync1
	case model.StateWaitArenaSync1:
		if p.LeaveArenaWhenDoneWaiting() {
			return model.StateDoArenaSync2
		}
		return model.StateArenaRespAndCBS
	case model.StateArenaRespAndCBS:
		return model.StatePlaying
	case model.StateLeavingArena:
		return model.StateDoArenaSync2
	case model.StateDoArenaSync2:
		return model.StateWaitArenaSync2
	case model.StateWaitArenaSync2:
		return model.StateLoggedIn
	case model.StateLeavingZone:
		return model.StateWaitGlobalSync2
	case model.StateWaitGlobalSync2:
		return model.StateTimeWait
	case model.StateTimeWait:
		return from // apply freed the player on entering TimeWait, without waiting for the transport to drain
	default:
		return from
	}
}

// apply performs the side effects for one collected transition with no
// store lock held (spec.md §4.5).
func (e *Engine) apply(ctx context.Context, t transition) {
	p := t.player
	p.SetState(t.to)

	switch t.to {
	case model.StateWaitAuth:
		e.startAuth(ctx, p)

	case model.StateWaitGlobalSync1:
		if _, err := e.sync.Load(ctx, p.Name); err != nil {
			slog.Error("lifecycle: global sync load failed, advancing anyway", "player", p.Name, "error", err)
		}
		p.SetState(model.StateDoGlobalCallbacks)

	case model.StateSendLoginResponse:
		e.sendLoginResponse(p, wire.LoginResponse{Code: constants.LoginOK})
		e.brk.Fire("PlayerAction.Connect", p)

	case model.StateWaitArenaSync1:
		a := e.arenas.ByName(p.NewArenaName())
		if a != nil && e.freq != nil {
			ship, freq := e.freq.PickFreq(a, p)
			p.SetShipFreq(ship, freq)
		}

	case model.StateArenaRespAndCBS:
		// State already advanced to Playing by decide() on next tick;
		// the "fires PlayerAction.EnterArena, sends arena response" side
		// effect belongs here, driven by t.to == ArenaRespAndCBS meaning
		// this IS the ArenaRespAndCBS application tick.
		p.SetArenaName(p.NewArenaName())
		p.SetNewArenaName("")
		e.brk.Fire("PlayerAction.EnterArena", p)

	case model.StateDoArenaSync2:
		e.brk.Fire("PlayerAction.LeaveArena", p)
		if err := e.sync.Save(ctx, p.Name, p.Squad, nil); err != nil {
			slog.Error("lifecycle: arena sync save failed, advancing anyway", "player", p.Name, "error", err)
		}

	case model.StateWaitGlobalSync2:
		e.brk.Fire("PlayerAction.Disconnect", p)
		if err := e.sync.Save(ctx, p.Name, p.Squad, nil); err != nil {
			slog.Error("lifecycle: global sync save failed, advancing anyway", "player", p.Name, "error", err)
		}

	case model.StateTimeWait:
		e.players.FreePlayer(p)
	}
}

// HandleLogin is the Uninitialized->NeedAuth external trigger (spec.md
// §4.5, driven by the transport layer's login packet dispatch rather
// than the scan, since it depends on data — name/squad/machine id —
// that only arrives off the wire). A login packet arriving for a
// player not in StateUninitialized is ignored: the client already has
// one login attempt in flight.
func (e *Engine) HandleLogin(p *model.Player, machineID uint32, name, squad string) {
	if p.State() != model.StateUninitialized {
		return
	}
	p.MachineID = machineID
	p.Name = name
	p.Squad = squad
	p.SetState(model.StateNeedAuth)
}

// startAuth runs the broker's registered auth chain head for p,
// arriving at WaitAuth (spec.md §4.6). The chain's completion callback
// may fire on any goroutine, so it only mutates p directly (the same
// external-event pattern KickPlayer uses) rather than going through
// the scan's pending-transition list.
func (e *Engine) startAuth(ctx context.Context, p *model.Player) {
	impl, err := e.brk.Get(auth.InterfaceName)
	if err != nil {
		slog.Error("lifecycle: no auth chain registered, rejecting login", "player", p.Name, "error", err)
		e.completeAuth(p, auth.Result{OK: false, CustomText: "login unavailable"})
		return
	}
	head := impl.(auth.Authenticator)
	req := auth.NewRequest(ctx, p.MachineID, p.Name, p.Squad, func(res auth.Result) {
		e.completeAuth(p, res)
	})
	head.Authenticate(req)
	e.brk.Release(auth.InterfaceName)
}

// completeAuth applies the auth chain's verdict: success moves the
// player on to NeedGlobalSync (and binds its resolved name); failure
// sends the rejection response directly, sets WhenLoggedIn to
// LeavingZone and returns the player to Connected, so the following
// lifecycle scans tear it down (spec.md §4.6, §8 scenario 2).
func (e *Engine) completeAuth(p *model.Player, res auth.Result) {
	if res.OK {
		p.Name = res.Name
		p.Squad = res.Squad
		if err := e.players.BindName(p, res.Name); err != nil {
			slog.Error("lifecycle: binding login name failed", "player", res.Name, "error", err)
		}
		p.SetState(model.StateNeedGlobalSync)
		return
	}
	e.sendLoginResponse(p, wire.LoginResponse{Code: constants.LoginCustomText, CustomText: res.CustomText})
	p.SetLoginRejectText(res.CustomText)
	// Route through the same WhenLoggedIn-driven path KickPlayer uses: the
	// next scan reads WhenLoggedIn at Connected and carries the player on
	// to teardown (LeavingZone -> WaitGlobalSync2 -> TimeWait -> freed).
	p.SetWhenLoggedIn(model.StateLeavingZone)
	p.SetState(model.StateConnected)
}

// sendLoginResponse encodes and delivers the S2C 0x0A body if a sender
// is wired; engines built for tests without one simply skip delivery.
func (e *Engine) sendLoginResponse(p *model.Player, resp wire.LoginResponse) {
	if e.sender == nil {
		return
	}
	if err := e.sender.SendReliable(p.RemoteAddr, wire.EncodeLoginResponse(resp)); err != nil {
		slog.Error("lifecycle: sending login response failed", "player", p.Name, "error", err)
	}
}

// KickPlayer sets WhenLoggedIn to LeavingZone and, if the player is in
// an arena, moves it directly to LeavingArena (spec.md §4.5
// "KickPlayer").
func (e *Engine) KickPlayer(p *model.Player) {
	p.SetWhenLoggedIn(model.StateLeavingZone)
	if p.ArenaName() != "" {
		p.SetState(model.StateLeavingArena)
	}
}
