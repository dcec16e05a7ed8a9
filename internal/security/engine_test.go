package security

import (
	"sync"
	"testing"
	"time"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/wire"
)

type fakeSender struct {
	mu  sync.Mutex
	got map[string][]byte
}

func newFakeSender() *fakeSender { return &fakeSender{got: make(map[string][]byte)} }

func (f *fakeSender) SendReliable(remoteAddr string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got[remoteAddr] = payload
	return nil
}

type fakeKicker struct {
	mu     sync.Mutex
	kicked []string
}

func (f *fakeKicker) KickPlayer(p *model.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, p.Name)
}

func newTestEngine(t *testing.T) (*Engine, *arenastore.Store, *playerstore.Store, *fakeSender, *fakeKicker) {
	t.Helper()
	arenas := arenastore.New()
	players := playerstore.New(time.Second)
	sender := newFakeSender()
	kicker := &fakeKicker{}
	cfg := Config{SeedInterval: time.Hour, ChallengeTimeout: 50 * time.Millisecond, CheckInterval: 10 * time.Millisecond, SecurityKickoff: true}
	e := New(arenas, players, nil,
		func(arenaName string, key uint32) uint32 { return key + 1 },
		func(p *model.Player, key uint32) uint32 { return key + 2 },
		sender, kicker, cfg)
	return e, arenas, players, sender, kicker
}

func TestRotate_ChallengesEligiblePlayersOnly(t *testing.T) {
	e, arenas, players, sender, _ := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)

	eligible := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	eligible.Name = "eligible"
	eligible.SetArenaName("duel1")
	eligible.SetPosition(model.Position{})

	noPosition := players.AllocatePlayer("2.2.2.2:2", model.ClientKindLegacy)
	noPosition.Name = "noposition"
	noPosition.SetArenaName("duel1")

	e.rotate()

	sender.mu.Lock()
	_, gotEligible := sender.got["1.1.1.1:1"]
	_, gotNoPosition := sender.got["2.2.2.2:2"]
	sender.mu.Unlock()

	if !gotEligible {
		t.Fatalf("eligible player was not challenged")
	}
	if gotNoPosition {
		t.Fatalf("player with no position packet was challenged")
	}
	if eligible.SecurityChallengeAt().IsZero() {
		t.Fatalf("SecurityChallengeAt not recorded for eligible player")
	}
}

func TestRotate_SkipsArenaWithActiveOverride(t *testing.T) {
	e, arenas, players, sender, _ := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)
	a.SetSeedOverride(&model.SeedInfo{GreenSeed: 1, DoorSeed: 2, Timestamp: 3})

	p := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	p.SetArenaName("duel1")
	p.SetPosition(model.Position{})

	e.rotate()

	sender.mu.Lock()
	_, got := sender.got["1.1.1.1:1"]
	sender.mu.Unlock()
	if got {
		t.Fatalf("player in overridden arena should not be challenged")
	}
}

func TestCheckTimeouts_KicksUnansweredChallenge(t *testing.T) {
	e, arenas, players, _, kicker := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)

	p := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	p.Name = "liar"
	p.SetArenaName("duel1")
	p.SetPosition(model.Position{})

	e.rotate()
	time.Sleep(60 * time.Millisecond)
	e.checkTimeouts(time.Now())

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	if len(kicker.kicked) != 1 || kicker.kicked[0] != "liar" {
		t.Fatalf("kicked = %v, want [liar]", kicker.kicked)
	}
}

func TestCheckTimeouts_RespectsSuppressCapability(t *testing.T) {
	e, arenas, players, _, kicker := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)

	p := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	p.SetArenaName("duel1")
	p.SetPosition(model.Position{})
	p.SetSecuritySuppressed(true)

	e.rotate()
	time.Sleep(60 * time.Millisecond)
	e.checkTimeouts(time.Now())

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	if len(kicker.kicked) != 0 {
		t.Fatalf("kicked = %v, want none (suppressed)", kicker.kicked)
	}
}

func TestHandleResponse_MismatchKicksPlayer(t *testing.T) {
	e, arenas, players, _, kicker := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)

	p := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	p.Name = "cheater"
	p.SetArenaName("duel1")
	p.SetPosition(model.Position{})

	e.rotate()

	e.HandleResponse(p, wire.SecurityResponse{
		MapChecksum:      p.ExpectedMapChecksum() + 1, // wrong on purpose
		SettingsChecksum: p.ExpectedSettingsChecksum(),
	})

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	if len(kicker.kicked) != 1 {
		t.Fatalf("kicked = %v, want [cheater]", kicker.kicked)
	}
}

func TestHandleResponse_MatchDoesNotKick(t *testing.T) {
	e, arenas, players, _, kicker := newTestEngine(t)

	a, _ := arenas.CreateArena("duel1", "duel", 1)
	a.SetStatus(model.ArenaRunning)

	p := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	p.SetArenaName("duel1")
	p.SetPosition(model.Position{})

	e.rotate()

	e.HandleResponse(p, wire.SecurityResponse{
		MapChecksum:      p.ExpectedMapChecksum(),
		SettingsChecksum: p.ExpectedSettingsChecksum(),
	})

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	if len(kicker.kicked) != 0 {
		t.Fatalf("kicked = %v, want none", kicker.kicked)
	}
}
