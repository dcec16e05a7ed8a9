package security

import (
	"log/slog"
	"time"

	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/wire"
)

// continuumExeChecksumMixer computes the expected exe checksum for a
// Continuum client under challenge key (spec.md §9 Open Questions: "The
// connection-init legacy exe checksum is a fixed magic-number mixer keyed
// on the challenge key — this design preserves the mixer for
// compatibility without attributing semantics to individual constants").
func continuumExeChecksumMixer(key uint32) uint32 {
	const magic = 0xA73F9C21
	v := key ^ magic
	v = (v << 13) | (v >> 19)
	v *= 0x9E3779B1
	return v
}

// HandleResponse validates a player's security response (spec.md §4.7
// "Response validation") and forwards its latency statistics to the lag
// collector. Mismatches are logged at malicious level and, subject to
// SecurityKickoff and the per-player suppress capability, the player is
// kicked.
func (e *Engine) HandleResponse(p *model.Player, resp wire.SecurityResponse) {
	p.SetSecurityChallengeAt(time.Time{})

	if p.Lag != nil {
		p.Lag.AddClientPing(int32(resp.PingAvg))
	}

	mismatched := false

	if resp.MapChecksum != p.ExpectedMapChecksum() {
		slog.Warn("security: malicious", "player", p.Name, "reason", "Map checksum mismatch.")
		mismatched = true
	}
	if resp.SettingsChecksum != p.ExpectedSettingsChecksum() {
		slog.Warn("security: malicious", "player", p.Name, "reason", "Settings checksum mismatch.")
		mismatched = true
	}

	e.mu.Lock()
	key, expectedExe := e.key, e.expectedExe
	e.mu.Unlock()

	wantExe := expectedExe
	if p.ClientKind == model.ClientKindModern {
		wantExe = continuumExeChecksumMixer(key)
	}
	if e.table != nil && resp.ExeChecksum != wantExe {
		slog.Warn("security: malicious", "player", p.Name, "reason", "Exe checksum mismatch.")
		mismatched = true
	}

	if mismatched && e.cfg.SecurityKickoff && !p.SecuritySuppressed() {
		e.kicker.KickPlayer(p)
	}
}
