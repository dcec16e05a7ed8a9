// Command zoneserver is the zone-server core's process entrypoint
// (spec.md §6 "CLI / signals"). It takes a module-config path, a
// zone-config path, and an optional log directory, wires every
// internal package built under internal/ into one running process,
// and supervises them until a signal or fatal error ends the run.
package main

import (
	"context"
	"fmt"
	"hash/crc32"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ssgo/zonecore/internal/arenaplacement"
	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/auth"
	"github.com/ssgo/zonecore/internal/bandwidth"
	"github.com/ssgo/zonecore/internal/broker"
	"github.com/ssgo/zonecore/internal/config"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/directory"
	"github.com/ssgo/zonecore/internal/lag"
	"github.com/ssgo/zonecore/internal/lifecycle"
	"github.com/ssgo/zonecore/internal/mainloop"
	"github.com/ssgo/zonecore/internal/model"
	"github.com/ssgo/zonecore/internal/persist"
	"github.com/ssgo/zonecore/internal/playerstore"
	"github.com/ssgo/zonecore/internal/security"
	"github.com/ssgo/zonecore/internal/transport"
	"github.com/ssgo/zonecore/internal/wire"
)

// Exit codes (spec.md §6).
const (
	exitClean           = 0
	exitFatalInit       = 1
	exitModuleLoadError = 2
	exitSignalRestart   = 3
	exitSignalShutdown  = 4
)

// messageFile is the SIGUSR2 operator-broadcast drop file, read from
// and then deleted in the process's working directory (spec.md §6).
const messageFile = "MESSAGE"

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <module-config.yaml> <zone-config.yaml> [log-dir]\n", os.Args[0])
		os.Exit(exitFatalInit)
	}
	moduleConfigPath := os.Args[1]
	zoneConfigPath := os.Args[2]
	logDirOverride := ""
	if len(os.Args) > 3 {
		logDirOverride = os.Args[3]
	}

	mw, err := config.LoadModuleWiring(moduleConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading module config: %v\n", err)
		os.Exit(exitModuleLoadError)
	}

	cfg, err := config.LoadZoneServer(zoneConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading zone server config: %v\n", err)
		os.Exit(exitModuleLoadError)
	}
	if logDirOverride != "" {
		cfg.LogDir = logDirOverride
	}

	lh, err := openLog(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log: %v\n", err)
		os.Exit(exitFatalInit)
	}
	slog.Info("zonecore starting", "bind", cfg.BindAddress, "port", cfg.Port)

	code := run(cfg, mw, lh)
	os.Exit(code)
}

// logHandle lets SIGHUP reopen the log file without restarting the
// process (spec.md §6 "SIGHUP: reopen log file").
type logHandle struct {
	dir   string
	level string
	file  *os.File
}

func openLog(dir, level string) (*logHandle, error) {
	h := &logHandle{dir: dir, level: level}
	if err := h.reopen(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *logHandle) reopen() error {
	var w *os.File = os.Stdout
	if h.dir != "" {
		if err := os.MkdirAll(h.dir, 0o755); err != nil {
			return fmt.Errorf("creating log dir %s: %w", h.dir, err)
		}
		f, err := os.OpenFile(filepath.Join(h.dir, "zonecore.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if h.file != nil {
			h.file.Close()
		}
		h.file = f
		w = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(h.level)})))
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// run wires and supervises the zone server until shutdown, returning
// the process exit code.
func run(cfg config.ZoneServer, mw config.ModuleWiring, log *logHandle) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := persist.Open(dbCtx, cfg.Database.DSN())
	dbCancel()
	if err != nil {
		slog.Error("fatal: database connect failed", "error", err)
		return exitFatalInit
	}
	defer db.Close()

	if err := persist.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		slog.Error("fatal: migrations failed", "error", err)
		return exitFatalInit
	}

	players := playerstore.New(30 * time.Second)
	arenas := arenastore.New()
	brk := broker.New()
	bans := persist.NewBanStore(db)
	scores := persist.NewScoreStore(db)

	if err := wireAuth(brk, bans, mw); err != nil {
		slog.Error("fatal: auth module wiring failed", "error", err)
		return exitModuleLoadError
	}

	transportCfg := transport.DefaultConfig()
	bwCfg := bandwidth.DefaultConfig()
	bwCfg.LimitLow = cfg.Bandwidth.LimitLow
	bwCfg.LimitHigh = cfg.Bandwidth.LimitHigh
	bwCfg.InitLimit = cfg.Bandwidth.InitLimit
	bwCfg.ScaleS = cfg.Bandwidth.ScaleS
	transportCfg.BandwidthCfg = bwCfg

	pc, err := net.ListenPacket("udp", fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port))
	if err != nil {
		slog.Error("fatal: binding udp socket failed", "error", err)
		return exitFatalInit
	}
	defer pc.Close()

	zoneCfg, err := config.LoadZoneConfig(cfg.ZoneConfigPath)
	if err != nil {
		slog.Error("fatal: loading zone config failed", "error", err)
		return exitModuleLoadError
	}
	publicBaseNames := splitNonEmpty(zoneCfg.GetStr("Arena", "PublicArenas", "0"))
	desiredPlaying := func(baseName string) int {
		return zoneCfg.GetInt(baseName, "DesiredPlaying", constants.DefaultDesiredPlaying)
	}

	var secEngine *security.Engine
	var lc *lifecycle.Engine
	listener := transport.New(pc, transportCfg, func(remoteAddr string, payload []byte) {
		dispatchPacket(players, arenas, publicBaseNames, desiredPlaying, secEngine, lc, remoteAddr, payload)
	})
	listener.RegisterInitHandler(transport.NullInitHandler(constants.ClientKindLegacy))
	listener.RegisterInitHandler(transport.ContinuumInitHandler(constants.ClientKindModern))
	listener.OnConnect(func(remoteAddr string, clientKind byte) {
		players.AllocatePlayer(remoteAddr, modelClientKind(clientKind))
	})

	lc = lifecycle.New(players, arenas, brk, scores, nil, listener)

	if cfg.Security.ScrtyTablePath != "" {
		table, err := security.LoadScrtyTable(cfg.Security.ScrtyTablePath)
		if err != nil {
			slog.Error("fatal: loading scrty table failed", "error", err)
			return exitFatalInit
		}
		secCfg := security.DefaultConfig()
		if cfg.Security.SeedIntervalSec > 0 {
			secCfg.SeedInterval = time.Duration(cfg.Security.SeedIntervalSec) * time.Second
		}
		secEngine = security.New(arenas, players, table, placeholderMapChecksum, placeholderSettingsChecksum, listener, lc, secCfg)
	}

	watcher := lag.New(players, arenas, listener, noopGameManager{}, lag.DefaultConfig())
	loop := mainloop.New()

	var dirServers []string
	for _, d := range cfg.DirectoryServers {
		dirServers = append(dirServers, fmt.Sprintf("%s:%d", d.Host, d.Port))
	}
	publisher := directory.New(directory.Config{Port: uint16(cfg.Port), Name: "zonecore"}, dirServers, players.Count)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return lc.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	if len(dirServers) > 0 {
		g.Go(func() error { return publisher.Run(gctx) })
	}
	if secEngine != nil {
		g.Go(func() error { return secEngine.Run(gctx) })
	}

	exitCode := waitForSignal(ctx, cancel, log, players, scores, listener)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("service exited unexpectedly", "error", err)
		return exitFatalInit
	}
	return exitCode
}

// waitForSignal implements spec.md §6's five POSIX signal behaviors. It
// blocks until a shutdown/restart signal arrives or ctx is otherwise
// cancelled, then cancels cancel and returns the matching exit code.
func waitForSignal(ctx context.Context, cancel context.CancelFunc, log *logHandle, players *playerstore.Store, scores *persist.ScoreStore, listener *transport.Listener) int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return exitClean
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				if err := log.reopen(); err != nil {
					slog.Error("SIGHUP: reopening log failed", "error", err)
				}
				persistAll(players, scores)
			case syscall.SIGUSR1:
				persistAll(players, scores)
			case syscall.SIGUSR2:
				broadcastMessageFile(players, listener)
			case syscall.SIGINT:
				cancel()
				return exitSignalShutdown
			case syscall.SIGTERM:
				cancel()
				return exitSignalRestart
			}
		}
	}
}

func persistAll(players *playerstore.Store, scores *persist.ScoreStore) {
	ctx := context.Background()
	players.ForEach(func(p *model.Player) bool {
		if err := scores.Save(ctx, p.Name, p.Squad, nil); err != nil {
			slog.Error("persist save failed", "player", p.Name, "error", err)
		}
		return true
	})
}

// broadcastMessageFile implements spec.md §6's SIGUSR2 behavior: read
// one line from MESSAGE in the working directory, broadcast it to every
// connected player as an arena message, then delete the file.
func broadcastMessageFile(players *playerstore.Store, listener *transport.Listener) {
	data, err := os.ReadFile(messageFile)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("SIGUSR2: reading message file failed", "error", err)
		}
		return
	}
	text := firstLine(string(data))
	if text == "" {
		os.Remove(messageFile)
		return
	}

	body := wire.EncodeChatMessage(constants.ChatTypeArena, text)
	targets := players.ExpandTarget("*")
	for _, p := range targets {
		if err := listener.SendReliable(p.RemoteAddr, body); err != nil {
			slog.Error("SIGUSR2: sending broadcast failed", "player", p.Name, "error", err)
		}
	}
	players.ReleaseTarget(targets)

	slog.Info("SIGUSR2: broadcasting operator message", "text", text, "recipients", len(targets))
	os.Remove(messageFile)
}

// splitNonEmpty splits a comma-separated config value, dropping blanks.
// "0" (ZoneConfig's GetStr default marker for "key absent") yields no
// base names.
func splitNonEmpty(csv string) []string {
	if csv == "" || csv == "0" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '\r' {
			return s[:i]
		}
	}
	return s
}

// modelClientKind maps the wire-level connection-init client kind byte
// to the player model's client kind enum (spec.md §3 "client kind" —
// two distinct encodings: the handshake byte negotiated in
// internal/transport, and the stable enum carried on model.Player).
func modelClientKind(wireKind byte) model.ClientKind {
	switch wireKind {
	case constants.ClientKindLegacy:
		return model.ClientKindLegacy
	case constants.ClientKindModern:
		return model.ClientKindModern
	default:
		return model.ClientKindUnknown
	}
}

// dispatchPacket routes the small set of opcodes the core itself
// originates or consumes (login, security response, arena placement).
// The full gameplay opcode table is a module concern wired through the
// broker (spec.md §1 Non-goals); everything else is dropped here.
func dispatchPacket(players *playerstore.Store, arenas *arenastore.Store, publicBaseNames []string, desiredPlaying arenaplacement.DesiredPlayingFunc, secEngine *security.Engine, lc *lifecycle.Engine, remoteAddr string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case constants.C2SLoginLegacy, constants.C2SLoginModern:
		if lc == nil {
			return
		}
		p := players.ByRemoteAddr(remoteAddr)
		if p == nil {
			return
		}
		req, err := wire.DecodeLoginRequest(payload[1:])
		if err != nil {
			slog.Warn("dispatch: malformed login request", "remote", remoteAddr, "error", err)
			return
		}
		lc.HandleLogin(p, req.MachineID, req.Name, req.Squad)

	case constants.C2SGoArena:
		p := players.ByRemoteAddr(remoteAddr)
		if p == nil {
			return
		}
		requested, err := wire.DecodeGoArena(payload[1:])
		if err != nil {
			slog.Warn("dispatch: malformed go-arena request", "remote", remoteAddr, "error", err)
			return
		}
		bases := publicBaseNames
		if requested != "" {
			bases = []string{requested}
		}
		name, err := arenaplacement.Place(arenas, bases, p.ConnectAs, desiredPlaying)
		if err != nil {
			slog.Warn("dispatch: arena placement failed", "player", p.Name, "error", err)
			return
		}
		p.SetNewArenaName(name)

	case constants.C2SSecurityResponse:
		if secEngine == nil {
			return
		}
		p := players.ByRemoteAddr(remoteAddr)
		if p == nil {
			return
		}
		resp, err := wire.DecodeSecurityResponse(payload[1:])
		if err != nil {
			slog.Warn("dispatch: malformed security response", "remote", remoteAddr, "error", err)
			return
		}
		secEngine.HandleResponse(p, resp)
	}
}

// wireAuth installs the auth chain head. The ban filter is this build's
// only optional auth stage; module wiring can disable it (e.g. a test
// deployment with no bans table seeded yet) by mapping "auth" to
// anything other than "banfilter".
func wireAuth(brk *broker.Broker, bans *persist.BanStore, mw config.ModuleWiring) error {
	return auth.Register(brk, func(prev auth.Authenticator) auth.Authenticator {
		if name, ok := mw.Interfaces["auth"]; ok && name != "banfilter" {
			if prev == nil {
				return auth.Default{}
			}
			return prev
		}
		return auth.NewBanFilter(bans, prev)
	})
}

// placeholderMapChecksum stands in for the gameplay-supplied map-file
// checksum algorithm (spec.md §1 Non-goals excludes the map file format
// itself); it folds the arena name and challenge key through crc32 so
// the security engine has a stable, key-dependent value to compare
// against each rotation.
func placeholderMapChecksum(arenaName string, key uint32) uint32 {
	return crc32.ChecksumIEEE([]byte(arenaName)) ^ key
}

func placeholderSettingsChecksum(p *model.Player, key uint32) uint32 {
	return crc32.ChecksumIEEE([]byte(p.Name)) ^ key
}

type noopGameManager struct{}

func (noopGameManager) SetIgnoreWeapons(p *model.Player, ratio float64) {}
