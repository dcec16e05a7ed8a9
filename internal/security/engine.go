// Package security drives the periodic seed/challenge cycle (spec.md
// §4.7): every minute it rotates the green-prize and door seeds, picks a
// new challenge key, recomputes per-arena map checksums under that key,
// and reliably challenges every eligible player. Responses are validated
// against the map/settings/exe checksums and liars are kicked. Grounded
// on the teacher's ticker-driven periodic manager (internal/spawn/respawn.go
// RespawnTaskManager), generalized from a single fixed task to a
// rotate/send/check-timeout cycle.
package security

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/wire"
)

// MapChecksumFunc computes the map checksum for an arena under a
// challenge key. The map file reader/checksum library itself is an
// external collaborator (spec.md §1 Non-goals); this is the contract the
// core calls through.
type MapChecksumFunc func(arenaName string, key uint32) uint32

// SettingsChecksumFunc computes the per-player settings checksum under a
// challenge key (spec.md §4.7 "SettingsChecksum computed per-player under
// the same key").
type SettingsChecksumFunc func(p *model.Player, key uint32) uint32

// Sender delivers a reliable application packet to a connected player
// (satisfied by *transport.Listener).
type Sender interface {
	SendReliable(remoteAddr string, payload []byte) error
}

// Kicker removes a player from the zone (satisfied by *lifecycle.Engine).
type Kicker interface {
	KickPlayer(p *model.Player)
}

// Config tunes the seed-sync cycle.
type Config struct {
	SeedInterval     time.Duration // spec.md §4.7 "every minute"
	ChallengeTimeout time.Duration // spec.md §4.7 "15 seconds later"
	CheckInterval    time.Duration // how often outstanding challenges are swept for timeout
	SecurityKickoff  bool          // spec.md §4.7 "subject to SecurityKickoff"
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		SeedInterval:     60 * time.Second,
		ChallengeTimeout: 15 * time.Second,
		CheckInterval:    time.Second,
		SecurityKickoff:  true,
	}
}

// Engine runs the seed-sync cycle.
type Engine struct {
	cfg     Config
	arenas  *arenastore.Store
	players *playerstore.Store
	table   *ScrtyTable

	mapChecksum      MapChecksumFunc
	settingsChecksum SettingsChecksumFunc
	sender           Sender
	kicker           Kicker

	mu          sync.Mutex
	key         uint32
	expectedExe uint32
	seeds       model.SeedInfo
	arenaChecksums map[string]uint32
}

// New constructs an Engine. table may be nil (no scrty file configured);
// the challenge key then stays 0 and exe-checksum validation is skipped.
func New(arenas *arenastore.Store, players *playerstore.Store, table *ScrtyTable, mapChecksum MapChecksumFunc, settingsChecksum SettingsChecksumFunc, sender Sender, kicker Kicker, cfg Config) *Engine {
	return &Engine{
		cfg:              cfg,
		arenas:           arenas,
		players:          players,
		table:            table,
		mapChecksum:      mapChecksum,
		settingsChecksum: settingsChecksum,
		sender:           sender,
		kicker:           kicker,
		arenaChecksums:   make(map[string]uint32),
	}
}

// Run blocks, rotating seeds every cfg.SeedInterval and sweeping for
// timed-out challenges every cfg.CheckInterval, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	rotate := time.NewTicker(e.cfg.SeedInterval)
	check := time.NewTicker(e.cfg.CheckInterval)
	defer rotate.Stop()
	defer check.Stop()

	e.rotate()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rotate.C:
			e.rotate()
		case <-check.C:
			e.checkTimeouts(time.Now())
		}
	}
}

// rotate implements spec.md §4.7 steps 1-3.
func (e *Engine) rotate() {
	green := rand.Uint32()
	door := rand.Uint32()
	timestamp := uint32(time.Now().Unix())

	var key, expectedExe uint32
	if e.table != nil && e.table.Len() > 0 {
		idx := 1 + rand.IntN(e.table.Len())
		key, expectedExe, _ = e.table.Pair(idx)
	}

	checksums := make(map[string]uint32)
	e.arenas.ForEach(func(a *model.Arena) bool {
		if a.Status() != model.ArenaRunning || a.SeedOverride() != nil {
			return true
		}
		if e.mapChecksum != nil {
			checksums[a.Name] = e.mapChecksum(a.Name, key)
		}
		return true
	})

	e.mu.Lock()
	e.seeds = model.SeedInfo{GreenSeed: green, DoorSeed: door, Timestamp: timestamp}
	e.key = key
	e.expectedExe = expectedExe
	e.arenaChecksums = checksums
	e.mu.Unlock()

	e.challengeEligible()
}

// challengeEligible sends the security packet to every player in a
// non-overridden, running arena that has sent a position packet and has
// no challenge already outstanding (spec.md §4.7 step 3).
func (e *Engine) challengeEligible() {
	e.mu.Lock()
	seeds, key := e.seeds, e.key
	checksums := e.arenaChecksums
	e.mu.Unlock()

	now := time.Now()
	e.players.ForEach(func(p *model.Player) bool {
		arenaName := p.ArenaName()
		if arenaName == "" || !p.HasSentPosition() {
			return true
		}
		mapChecksum, eligible := checksums[arenaName]
		if !eligible {
			return true // arena overridden or not running: excluded from this cycle
		}
		if !p.SecurityChallengeAt().IsZero() {
			return true // previous challenge still outstanding
		}

		if e.settingsChecksum != nil {
			p.SetExpectedSettingsChecksum(e.settingsChecksum(p, key))
		}
		p.SetExpectedMapChecksum(mapChecksum)

		body := wire.EncodeSecurityChallenge(seeds.GreenSeed, seeds.DoorSeed, seeds.Timestamp, key)
		if err := e.sender.SendReliable(p.RemoteAddr, body); err != nil {
			slog.Error("security: sending challenge failed", "player", p.Name, "error", err)
			return true
		}
		p.SetSecurityChallengeAt(now)
		return true
	})
}

// checkTimeouts kicks any player whose outstanding challenge has gone
// unanswered for cfg.ChallengeTimeout (spec.md §4.7 step 4).
func (e *Engine) checkTimeouts(now time.Time) {
	e.players.ForEach(func(p *model.Player) bool {
		sentAt := p.SecurityChallengeAt()
		if sentAt.IsZero() || now.Sub(sentAt) < e.cfg.ChallengeTimeout {
			return true
		}
		p.SetSecurityChallengeAt(time.Time{})
		if e.cfg.SecurityKickoff && !p.SecuritySuppressed() {
			slog.Warn("security: challenge timeout, kicking", "player", p.Name)
			e.kicker.KickPlayer(p)
		}
		return true
	})
}

// ArenaEntrySeeds returns the seeds a newly-arriving player should
// receive so its door/green RNGs synchronize (spec.md §4.7 "Arena entry
// always sends the current seeds"): the arena's override if one is
// active, otherwise the global rotation seeds.
func (e *Engine) ArenaEntrySeeds(a *model.Arena) model.SeedInfo {
	if ov := a.SeedOverride(); ov != nil {
		return *ov
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seeds
}

// OverrideArenaSeedInfo installs a per-arena seed override (spec.md §4.7
// "OverrideArenaSeedInfo"). While active, the arena is excluded from the
// periodic challenge.
func (e *Engine) OverrideArenaSeedInfo(a *model.Arena, green, door, timestamp uint32) {
	a.SetSeedOverride(&model.SeedInfo{GreenSeed: green, DoorSeed: door, Timestamp: timestamp})
}

// RemoveArenaOverride reverts an arena to the global seed rotation.
func (e *Engine) RemoveArenaOverride(a *model.Arena) {
	a.SetSeedOverride(nil)
}
