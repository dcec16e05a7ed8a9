package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleWiring lists which named broker interfaces and advisors a build
// statically links (spec.md §1 Non-goals: "a plugin API for dynamically
// loaded binaries" is explicitly out of scope, so wiring is declared
// up front and resolved by cmd/zoneserver at startup, not discovered at
// runtime).
type ModuleWiring struct {
	// Interfaces maps a broker interface name to the Go constructor
	// identifier cmd/zoneserver dispatches on (e.g. "auth" -> "banfilter").
	Interfaces map[string]string `yaml:"interfaces"`

	// Advisors maps a broker advisor-list name to the ordered set of
	// constructor identifiers to register against it, each at the given
	// priority.
	Advisors map[string][]AdvisorWiring `yaml:"advisors"`
}

// AdvisorWiring is one entry in an advisor list's static wiring.
type AdvisorWiring struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

// LoadModuleWiring reads a module-wiring file. A missing file yields an
// empty ModuleWiring (no error) — the default build registers nothing
// beyond its built-in null handlers.
func LoadModuleWiring(path string) (ModuleWiring, error) {
	var mw ModuleWiring
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return mw, nil
		}
		return mw, fmt.Errorf("reading module wiring %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &mw); err != nil {
		return mw, fmt.Errorf("parsing module wiring %s: %w", path, err)
	}
	return mw, nil
}
