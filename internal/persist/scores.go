package persist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ScoreStore persists the opaque per-player score blob the lifecycle engine
// loads during NeedGlobalSync and saves during DoArenaSync2/WaitGlobalSync2.
// The blob's internal shape belongs to the gameplay modules (spec.md §1
// Non-goals); the core only guarantees it round-trips.
type ScoreStore struct {
	db *DB
}

// NewScoreStore wraps a DB handle as a ScoreStore.
func NewScoreStore(db *DB) *ScoreStore {
	return &ScoreStore{db: db}
}

// Load fetches the score blob for name, or nil if the player has none yet.
func (s *ScoreStore) Load(ctx context.Context, name string) (map[string]any, error) {
	var raw []byte
	err := s.db.pool.QueryRow(ctx,
		`SELECT data FROM player_scores WHERE name = $1`, name,
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("loading score for %q: %w", name, err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding score for %q: %w", name, err)
	}
	return data, nil
}

// Save upserts the score blob for name.
func (s *ScoreStore) Save(ctx context.Context, name, squad string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding score for %q: %w", name, err)
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO player_scores (name, squad, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (name) DO UPDATE
		 SET squad = EXCLUDED.squad, data = EXCLUDED.data, updated_at = now()`,
		name, squad, raw,
	)
	if err != nil {
		return fmt.Errorf("saving score for %q: %w", name, err)
	}
	return nil
}
