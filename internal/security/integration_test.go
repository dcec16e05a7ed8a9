package security

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/wire"
)

// writeSequentialScrtyFile writes a scrty table (spec.md §6) to a temp
// file with a distinct, deterministic (key, expectedExe) pair at every
// index so a test can assert on whichever pair rotate() happens to draw.
func writeSequentialScrtyFile(t *testing.T) string {
	t.Helper()
	raw := make([]byte, scrtyFileSize)
	for i := 0; i < scrtyPairCount; i++ {
		off := i * 8
		binary.LittleEndian.PutUint32(raw[off:off+4], uint32(1000+i))
		binary.LittleEndian.PutUint32(raw[off+4:off+8], uint32(9000+i))
	}
	path := filepath.Join(t.TempDir(), "scrty.dat")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

// TestRotateAndHandleResponse_PerKeyExeChecksumBothClientKinds assembles
// a loaded scrty table, a running engine, and both a legacy and a
// Continuum player — the subsystems the per-challenge-key exe checksum
// validation actually spans (spec.md §4.7 response validation, §9's
// legacy-vs-Continuum exe checksum branch).
func TestRotateAndHandleResponse_PerKeyExeChecksumBothClientKinds(t *testing.T) {
	table, err := LoadScrtyTable(writeSequentialScrtyFile(t))
	require.NoError(t, err)

	arenas := arenastore.New()
	players := playerstore.New(time.Second)
	sender := newFakeSender()
	kicker := &fakeKicker{}

	cfg := Config{SeedInterval: time.Hour, ChallengeTimeout: time.Hour, CheckInterval: time.Hour, SecurityKickoff: true}
	e := New(arenas, players, table,
		func(arenaName string, key uint32) uint32 { return key },
		func(p *model.Player, key uint32) uint32 { return key },
		sender, kicker, cfg)

	a, err := arenas.CreateArena("duel1", "duel", 1)
	require.NoError(t, err)
	a.SetStatus(model.ArenaRunning)

	legacy := players.AllocatePlayer("1.1.1.1:1", model.ClientKindLegacy)
	legacy.Name = "legacyplayer"
	legacy.SetArenaName("duel1")
	legacy.SetPosition(model.Position{})

	modern := players.AllocatePlayer("2.2.2.2:2", model.ClientKindModern)
	modern.Name = "modernplayer"
	modern.SetArenaName("duel1")
	modern.SetPosition(model.Position{})

	e.rotate()

	e.mu.Lock()
	key, expectedExe := e.key, e.expectedExe
	e.mu.Unlock()
	require.NotZero(t, key, "rotate should have drawn a table pair")

	// Legacy clients are checked against the scrty table's own value
	// directly; modern/Continuum clients go through the fixed mixer.
	e.HandleResponse(legacy, wire.SecurityResponse{
		MapChecksum:      legacy.ExpectedMapChecksum(),
		SettingsChecksum: legacy.ExpectedSettingsChecksum(),
		ExeChecksum:      expectedExe,
	})
	e.HandleResponse(modern, wire.SecurityResponse{
		MapChecksum:      modern.ExpectedMapChecksum(),
		SettingsChecksum: modern.ExpectedSettingsChecksum(),
		ExeChecksum:      continuumExeChecksumMixer(key),
	})

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	require.Empty(t, kicker.kicked, "both clients answered their own exe-checksum variant correctly")
}

// TestRotateAndHandleResponse_WrongVariantExeChecksumKicks confirms a
// Continuum client answering with the legacy (raw table) exe checksum
// value instead of the mixed one is treated as a mismatch and kicked.
func TestRotateAndHandleResponse_WrongVariantExeChecksumKicks(t *testing.T) {
	table, err := LoadScrtyTable(writeSequentialScrtyFile(t))
	require.NoError(t, err)

	arenas := arenastore.New()
	players := playerstore.New(time.Second)
	sender := newFakeSender()
	kicker := &fakeKicker{}

	cfg := Config{SeedInterval: time.Hour, ChallengeTimeout: time.Hour, CheckInterval: time.Hour, SecurityKickoff: true}
	e := New(arenas, players, table,
		func(arenaName string, key uint32) uint32 { return key },
		func(p *model.Player, key uint32) uint32 { return key },
		sender, kicker, cfg)

	a, err := arenas.CreateArena("duel1", "duel", 1)
	require.NoError(t, err)
	a.SetStatus(model.ArenaRunning)

	modern := players.AllocatePlayer("2.2.2.2:2", model.ClientKindModern)
	modern.Name = "modernplayer"
	modern.SetArenaName("duel1")
	modern.SetPosition(model.Position{})

	e.rotate()
	e.mu.Lock()
	_, expectedExe := e.key, e.expectedExe
	e.mu.Unlock()

	e.HandleResponse(modern, wire.SecurityResponse{
		MapChecksum:      modern.ExpectedMapChecksum(),
		SettingsChecksum: modern.ExpectedSettingsChecksum(),
		ExeChecksum:      expectedExe, // wrong: this is the legacy-variant value
	})

	kicker.mu.Lock()
	defer kicker.mu.Unlock()
	require.Len(t, kicker.kicked, 1)
	require.Equal(t, "modernplayer", kicker.kicked[0])
}
