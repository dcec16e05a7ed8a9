// Package arenaplacement implements the arena placement algorithm
// (spec.md §4.8): given a connecting player, picks the arena name the
// lifecycle engine should switch it to, creating a numbered arena on
// demand when every existing candidate is full. Grounded on the
// teacher's arena-instance selection in internal/gameserver (the
// per-base-name, numbered-instance pattern used for instanced zones),
// generalized to the spec's pass/candidate scan.
package arenaplacement

import (
	"errors"
	"fmt"

	"github.com/ssgo/zonecore/internal/arenastore"
	"github.com/ssgo/zonecore/internal/constants"
	"github.com/ssgo/zonecore/internal/model"
)

// ErrNoArenaAvailable is returned when every pass overflows the arena
// name length limit and no fallback was ever seen.
var ErrNoArenaAvailable = errors.New("arenaplacement: no candidate arena name fits the length limit")

// DesiredPlayingFunc returns the per-base-name population ceiling (spec.md
// §4.8 "fetch its General:DesiredPlaying"), backed by the zone config's
// per-arena-base INI section in cmd/zoneserver's wiring.
type DesiredPlayingFunc func(baseName string) int

type candidate struct {
	name   string
	base   string
	number int
}

// Place runs the spec.md §4.8 algorithm and returns the resolved arena
// name. If that arena does not yet exist, Place creates it via arenas
// (step 5's "first-seen wins ... creates the arena on demand"). When
// every candidate within the name length limit already exists and is
// full, Place returns the first of them.
//
// connectAs, if non-empty, restricts the candidate list to itself (step
// 1). publicBaseNames is the configured global list, used otherwise;
// an empty list behaves as [""].
func Place(arenas *arenastore.Store, publicBaseNames []string, connectAs string, desiredPlaying DesiredPlayingFunc) (string, error) {
	bases := publicBaseNames
	if connectAs != "" {
		bases = []string{connectAs}
	}
	if len(bases) == 0 {
		bases = []string{""}
	}

	var fallback *candidate
	var firstExisting *model.Arena

	for pass := 0; pass < constants.ArenaPlacementPasses; pass++ {
		for _, base := range bases {
			name := base
			if pass != 0 {
				name = fmt.Sprintf("%s%d", base, pass)
			}
			if len(name) > constants.ArenaNameMaxLen {
				continue // invariant: overflow skips the candidate
			}

			existing := arenas.ByName(name) // ByName keys lowercase: case-insensitive match
			if existing == nil {
				if fallback == nil {
					fallback = &candidate{name: name, base: base, number: pass}
				}
				continue
			}
			if firstExisting == nil {
				firstExisting = existing
			}

			desired := desiredPlaying(base)
			if desired <= 0 {
				desired = constants.DefaultDesiredPlaying
			}
			if existing.PlayingCount() < desired {
				return existing.Name, nil
			}
		}
	}

	if fallback == nil {
		if firstExisting != nil {
			return firstExisting.Name, nil
		}
		return "", ErrNoArenaAvailable
	}
	return resolveFallback(arenas, fallback)
}

func resolveFallback(arenas *arenastore.Store, c *candidate) (string, error) {
	if a := arenas.ByName(c.name); a != nil {
		return a.Name, nil // created concurrently between scan and here
	}
	a, err := arenas.CreateArena(c.name, c.base, c.number)
	if err != nil {
		if existing := arenas.ByName(c.name); existing != nil {
			return existing.Name, nil
		}
		return "", fmt.Errorf("arenaplacement: creating fallback arena %q: %w", c.name, err)
	}
	a.SetStatus(model.ArenaDoInit)
	return a.Name, nil
}
