// Package directory implements the directory-publisher UDP beacon
// (spec.md §6 "Directory publishing"): every 60 seconds it sends a
// fixed-format datagram describing this zone to each configured
// directory server. Spec.md §1 lists the directory publisher as an
// external collaborator specified only by its contract, but §6 gives
// the full wire format and period, so this build supplies a concrete
// implementation. Grounded on the corpus's ticker-driven periodic
// manager idiom (internal/spawn/respawn.go RespawnTaskManager).
package directory

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/ssgo/zonecore/internal/wire"
)

// Interval is the fixed beacon period (spec.md §6 "Every 60s").
const Interval = 60 * time.Second

// Config describes this zone's identity for the beacon.
type Config struct {
	Port        uint16
	Name        string
	Password    string
	Description string
}

// PlayerCounter reports the current player count to publish.
type PlayerCounter func() int

// Publisher sends the beacon to every configured directory server.
type Publisher struct {
	cfg     Config
	servers []string
	count   PlayerCounter
}

// New constructs a Publisher. servers are host:port addresses of
// configured directory servers (config.DirectoryServerEntry, rendered
// by the caller).
func New(cfg Config, servers []string, count PlayerCounter) *Publisher {
	return &Publisher{cfg: cfg, servers: servers, count: count}
}

// Run blocks, sending the beacon every Interval until ctx is cancelled.
// An initial beacon is sent immediately so directory servers don't wait
// a full interval after startup to learn about this zone.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	p.publish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.publish()
		}
	}
}

func (p *Publisher) publish() {
	players := 0
	if p.count != nil {
		players = p.count()
	}
	beacon := wire.EncodeDirectoryBeacon(p.cfg.Port, uint16(players), p.cfg.Name, p.cfg.Password, p.cfg.Description)

	for _, addr := range p.servers {
		conn, err := net.Dial("udp", addr)
		if err != nil {
			slog.Error("directory: dialing directory server failed", "addr", addr, "error", err)
			continue
		}
		if _, err := conn.Write(beacon); err != nil {
			slog.Error("directory: sending beacon failed", "addr", addr, "error", err)
		}
		conn.Close()
	}
}
