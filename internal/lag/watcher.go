// Package lag implements the lag-action watcher (spec.md §4.9): a
// dedicated ticker that round-robins currently-playing players, reads
// each one's lag statistics no more than once per CheckInterval, and
// applies spectator-forcing / NoFlagsBalls / ignore-weapons policy.
// Grounded on the teacher's ticker-driven periodic manager
// (internal/spawn/respawn.go RespawnTaskManager), generalized from a
// fixed respawn task to a per-player lag-policy sweep.
package lag

import (
	"context"
	"sync"
	"time"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
)

// IdleLookup reports how long it has been since a connection last
// received a datagram (satisfied by *transport.Listener.IdleFor).
type IdleLookup interface {
	IdleFor(remoteAddr string, now time.Time) (time.Duration, bool)
}

// GameManager receives the computed ignore-weapons ratio (spec.md §4.9
// "push to the game manager"); the gameplay module behind it is an
// external collaborator (spec.md §1 Non-goals).
type GameManager interface {
	SetIgnoreWeapons(p *model.Player, ratio float64)
}

// Config tunes the lag-action thresholds. Names and tiers follow
// spec.md §4.9; the exact numeric defaults are this build's choice,
// not specified by the source spec.
type Config struct {
	CheckInterval time.Duration // spec.md §4.9 "default 3s"
	SweepEvery    time.Duration // watcher tick; independent of CheckInterval

	SpikeToSpec      time.Duration // last-packet age over this forces spectator
	PingToSpec       int32         // avg ping (ms) over this forces spectator
	PacketlossToSpec float64       // packetloss fraction over this forces spectator

	NoFlagsBallsPing int32   // lower-tier avg ping (ms) that sets NoFlagsBalls
	NoFlagsBallsLoss float64 // lower-tier packetloss fraction that sets NoFlagsBalls

	IgnoreWeaponsPingStart, IgnoreWeaponsPingAll       int32
	IgnoreWeaponsS2CLossStart, IgnoreWeaponsS2CLossAll float64
	IgnoreWeaponsWeaponLossStart, IgnoreWeaponsWeaponLossAll float64
}

// DefaultConfig returns reasonable thresholds in the spirit of spec.md
// §4.9's three tiers (spectator / NoFlagsBalls / ignore-weapons ramp).
func DefaultConfig() Config {
	return Config{
		CheckInterval:    3 * time.Second,
		SweepEvery:       250 * time.Millisecond,
		SpikeToSpec:      4 * time.Second,
		PingToSpec:       500,
		PacketlossToSpec: 0.20,

		NoFlagsBallsPing: 300,
		NoFlagsBallsLoss: 0.10,

		IgnoreWeaponsPingStart:       150,
		IgnoreWeaponsPingAll:         500,
		IgnoreWeaponsS2CLossStart:    0.05,
		IgnoreWeaponsS2CLossAll:      0.20,
		IgnoreWeaponsWeaponLossStart: 0.05,
		IgnoreWeaponsWeaponLossAll:   0.20,
	}
}

// Watcher runs the lag-action sweep.
type Watcher struct {
	cfg     Config
	players *playerstore.Store
	arenas  *arenastore.Store
	idle    IdleLookup
	manager GameManager

	mu          sync.Mutex
	lastChecked map[int32]time.Time
}

// New constructs a Watcher.
func New(players *playerstore.Store, arenas *arenastore.Store, idle IdleLookup, manager GameManager, cfg Config) *Watcher {
	return &Watcher{
		cfg:         cfg,
		players:     players,
		arenas:      arenas,
		idle:        idle,
		manager:     manager,
		lastChecked: make(map[int32]time.Time),
	}
}

// Run blocks, sweeping every cfg.SweepEvery until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.sweep(now)
		}
	}
}

// sweep visits every currently-playing player, applying policy to those
// not checked within CheckInterval (spec.md §4.9).
func (w *Watcher) sweep(now time.Time) {
	w.players.ForEach(func(p *model.Player) bool {
		if p.State() != model.StatePlaying {
			return true
		}

		w.mu.Lock()
		last, seen := w.lastChecked[p.ID]
		due := !seen || now.Sub(last) >= w.cfg.CheckInterval
		if due {
			w.lastChecked[p.ID] = now
		}
		w.mu.Unlock()
		if !due {
			return true
		}

		w.apply(p, now)
		return true
	})
}

// apply implements spec.md §4.9's three-tier policy for one player.
func (w *Watcher) apply(p *model.Player, now time.Time) {
	snap := p.Lag.Snapshot()

	if idleFor, ok := w.idle.IdleFor(p.RemoteAddr, now); ok && idleFor > w.cfg.SpikeToSpec {
		w.forceSpectator(p)
		return
	}

	loss := snap.S2CLoss
	if snap.C2SLoss > loss {
		loss = snap.C2SLoss
	}

	if snap.ClientPing.Avg > w.cfg.PingToSpec || loss > w.cfg.PacketlossToSpec {
		w.forceSpectator(p)
		return
	}

	p.SetNoFlagsBalls(snap.ClientPing.Avg > w.cfg.NoFlagsBallsPing || loss > w.cfg.NoFlagsBallsLoss)

	ratio := ramp(float64(snap.ClientPing.Avg), float64(w.cfg.IgnoreWeaponsPingStart), float64(w.cfg.IgnoreWeaponsPingAll))
	if r := ramp(snap.S2CLoss, w.cfg.IgnoreWeaponsS2CLossStart, w.cfg.IgnoreWeaponsS2CLossAll); r > ratio {
		ratio = r
	}
	if r := ramp(snap.S2CWeaponLoss, w.cfg.IgnoreWeaponsWeaponLossStart, w.cfg.IgnoreWeaponsWeaponLossAll); r > ratio {
		ratio = r
	}

	if w.manager != nil {
		w.manager.SetIgnoreWeapons(p, ratio)
	}
}

func (w *Watcher) forceSpectator(p *model.Player) {
	freq := int16(8025)
	if a := w.arenas.ByName(p.ArenaName()); a != nil {
		freq = a.SpecFreq()
	}
	p.SetShipFreq(-1, freq)
}

// ramp returns the linear-ramp fraction of v between start and all,
// clamped to [0, 1] (spec.md §4.9 "linear ramps ... clamped to [0, 1]").
func ramp(v, start, all float64) float64 {
	if all <= start {
		if v >= start {
			return 1
		}
		return 0
	}
	frac := (v - start) / (all - start)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}
