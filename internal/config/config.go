// Package config holds the zone server's two configuration surfaces: a
// YAML module-wiring file (which named broker interfaces/advisors this
// build statically links, plus network/database/bandwidth/security
// defaults) and the INI-style per-zone settings file external callers
// author (internal/config/inifile.go).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ZoneServer holds the module-wiring configuration for a zone server
// process (spec.md §6 CLI, SPEC_FULL.md Domain Stack "yaml.v3").
type ZoneServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)
	LogDir   string `yaml:"log_dir"`   // empty = stdout only

	// Bandwidth limiter defaults (spec.md §4.4)
	Bandwidth BandwidthDefaults `yaml:"bandwidth"`

	// Security / seed sync (spec.md §4.7)
	Security SecurityDefaults `yaml:"security"`

	// Directory publisher targets (spec.md §6 "Directory publishing")
	DirectoryServers []DirectoryServerEntry `yaml:"directory_servers"`

	// ZoneConfigPath is the INI-style per-zone settings file (spec.md §6).
	ZoneConfigPath string `yaml:"zone_config_path"`
}

// BandwidthDefaults mirrors the bandwidth.Config load-time parameters so
// they can be overridden per-deployment without touching code.
type BandwidthDefaults struct {
	LimitLow  float64 `yaml:"limit_low"`
	LimitHigh float64 `yaml:"limit_high"`
	InitLimit float64 `yaml:"init_limit"`
	ScaleS    float64 `yaml:"scale_s"`
}

// SecurityDefaults configures the seed-sync cadence and the scrty table
// path (spec.md §4.7).
type SecurityDefaults struct {
	ScrtyTablePath  string `yaml:"scrty_table_path"`
	SeedIntervalSec int    `yaml:"seed_interval_sec"` // default 60
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, defaults from pgxpool apply if not set)
	MaxConns          int32  `yaml:"max_conns"`            // default: max(4, NumCPU)
	MinConns          int32  `yaml:"min_conns"`            // default: 0
	MinIdleConns      int32  `yaml:"min_idle_conns"`       // default: 0
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`    // duration, e.g. "1h"
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`   // duration, e.g. "30m"
	HealthCheckPeriod string `yaml:"health_check_period"`  // duration, e.g. "1m"
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	// Append pool parameters if set (non-zero/non-empty)
	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// DirectoryServerEntry is one beacon target for internal/directory.
type DirectoryServerEntry struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultZoneServer returns ZoneServer config with the same worked
// defaults as bandwidth.DefaultConfig and spec.md §4.7's 60-second seed
// sync cadence.
func DefaultZoneServer() ZoneServer {
	return ZoneServer{
		BindAddress: "0.0.0.0",
		Port:        5000,
		LogLevel:    "info",
		Bandwidth: BandwidthDefaults{
			LimitLow:  1000,
			LimitHigh: 50000,
			InitLimit: 5000,
			ScaleS:    1024,
		},
		Security: SecurityDefaults{
			SeedIntervalSec: 60,
		},
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "zonecore",
			Password: "zonecore",
			DBName:  "zonecore",
			SSLMode: "disable",
		},
	}
}

// LoadZoneServer loads module-wiring config from a YAML file. If the
// file doesn't exist, returns defaults.
func LoadZoneServer(path string) (ZoneServer, error) {
	cfg := DefaultZoneServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
