package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/auth"
	"github.com/ssgo/zonecore/internal/broker"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/wire"
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]byte
}

func newFakeSender() *fakeSender { return &fakeSender{sent: make(map[string][]byte)} }

func (f *fakeSender) SendReliable(remoteAddr string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[remoteAddr] = payload
	return nil
}

func (f *fakeSender) packetFor(remoteAddr string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[remoteAddr]
}

type fakeSync struct{}

func (fakeSync) Load(ctx context.Context, name string) (map[string]any, error) { return nil, nil }
func (fakeSync) Save(ctx context.Context, name, squad string, data map[string]any) error {
	return nil
}

type fakeFreq struct{}

func (fakeFreq) PickFreq(a *model.Arena, p *model.Player) (int8, int16) { return 0, 8025 }

func TestScan_AdvancesGlobalSyncPipelineToLoggedIn(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, nil)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	p.SetState(model.StateNeedGlobalSync)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		e.scan(ctx)
	}

	if p.State() != model.StateLoggedIn {
		t.Fatalf("State = %v, want LoggedIn", p.State())
	}
}

func TestScan_ArenaSyncFiresEnterArenaCallback(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, nil)

	var fired bool
	brk.RegCallback("PlayerAction.EnterArena", func(args ...any) { fired = true })

	arenas.CreateArena("duel1", "duel", 1)
	arenas.ByName("duel1").SetStatus(model.ArenaRunning)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	p.SetState(model.StateLoggedIn)
	p.SetNewArenaName("duel1")

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		e.scan(ctx)
	}

	if !fired {
		t.Fatalf("EnterArena callback never fired")
	}
	if p.State() != model.StatePlaying {
		t.Fatalf("State = %v, want Playing", p.State())
	}
	if p.ArenaName() != "duel1" {
		t.Fatalf("ArenaName = %q, want duel1", p.ArenaName())
	}
}

func TestHandleLogin_DrivesPlayerFromUninitializedToLoggedInAndSendsResponse(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	if err := auth.Register(brk, func(prev auth.Authenticator) auth.Authenticator { return auth.Default{} }); err != nil {
		t.Fatalf("auth.Register: %v", err)
	}
	sender := newFakeSender()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, sender)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	e.HandleLogin(p, 42, "Alice", "Raiders")

	ctx := context.Background()
	for i := 0; i < 8 && p.State() != model.StateLoggedIn; i++ {
		e.scan(ctx)
	}

	if p.State() != model.StateLoggedIn {
		t.Fatalf("State = %v, want LoggedIn", p.State())
	}
	if p.Name != "Alice" || p.Squad != "Raiders" {
		t.Fatalf("Name/Squad = %q/%q, want Alice/Raiders", p.Name, p.Squad)
	}

	body := sender.packetFor("1.2.3.4:1")
	if body == nil {
		t.Fatalf("no login response sent")
	}
	r := wire.NewReader(body)
	op, _ := r.Byte()
	code, _ := r.Byte()
	if op != constants.S2CLoginResponse || code != constants.LoginOK {
		t.Fatalf("header = %#x,%#x, want %#x,%#x", op, code, constants.S2CLoginResponse, constants.LoginOK)
	}
}

func TestHandleLogin_RejectedByBanSendsCustomTextAndTearsDown(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	if err := auth.Register(brk, func(prev auth.Authenticator) auth.Authenticator {
		return auth.AuthenticatorFunc(func(req *auth.Request) {
			req.Done(auth.Result{OK: false, CustomText: "you have been temporarily kicked for abuse"})
		})
	}); err != nil {
		t.Fatalf("auth.Register: %v", err)
	}
	sender := newFakeSender()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, sender)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	e.HandleLogin(p, 7, "Bob", "")

	ctx := context.Background()
	for i := 0; i < 8; i++ {
		e.scan(ctx)
	}

	body := sender.packetFor("1.2.3.4:1")
	if body == nil {
		t.Fatalf("no login response sent")
	}
	r := wire.NewReader(body)
	r.Byte()
	code, _ := r.Byte()
	if code != constants.LoginCustomText {
		t.Fatalf("code = %#x, want LoginCustomText", code)
	}
	if players.ByID(p.ID) != nil {
		t.Fatalf("rejected player still held in store after teardown")
	}
}

func TestHandleLogin_IgnoredWhenNotUninitialized(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, nil)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	p.SetState(model.StateLoggedIn)
	e.HandleLogin(p, 1, "Eve", "")

	if p.State() != model.StateLoggedIn {
		t.Fatalf("State = %v, want unchanged LoggedIn", p.State())
	}
}

func TestKickPlayer_SetsLeavingZoneOrLeavingArena(t *testing.T) {
	players := playerstore.New(time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	e := New(players, arenas, brk, fakeSync{}, fakeFreq{}, nil)

	p := players.AllocatePlayer("1.2.3.4:1", model.ClientKindLegacy)
	p.SetArenaName("duel1")
	p.SetState(model.StatePlaying)

	e.KickPlayer(p)

	if p.WhenLoggedIn() != model.StateLeavingZone {
		t.Fatalf("WhenLoggedIn = %v, want LeavingZone", p.WhenLoggedIn())
	}
	if p.State() != model.StateLeavingArena {
		t.Fatalf("State = %v, want LeavingArena", p.State())
	}
}
