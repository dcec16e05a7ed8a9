package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ban is a ban record keyed by machine id (spec.md §3 "Ban record").
type Ban struct {
	MachineID uint32
	ExpiresAt time.Time
	Kicker    string
	Reason    string
	Attempts  int32
}

// BanStore persists ban records. The ban filter in internal/auth consults
// it on every login; the kick command inserts into it.
type BanStore struct {
	db *DB
}

// NewBanStore wraps a DB handle as a BanStore.
func NewBanStore(db *DB) *BanStore {
	return &BanStore{db: db}
}

// Lookup returns the ban for machineID, or nil if none exists.
func (s *BanStore) Lookup(ctx context.Context, machineID uint32) (*Ban, error) {
	var b Ban
	err := s.db.pool.QueryRow(ctx,
		`SELECT machine_id, expires_at, kicker, reason, attempts
		 FROM bans WHERE machine_id = $1`, machineID,
	).Scan(&b.MachineID, &b.ExpiresAt, &b.Kicker, &b.Reason, &b.Attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying ban %d: %w", machineID, err)
	}
	return &b, nil
}

// Insert installs or replaces a ban record (the kick command's entry point).
func (s *BanStore) Insert(ctx context.Context, b Ban) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO bans (machine_id, expires_at, kicker, reason, attempts)
		 VALUES ($1, $2, $3, $4, 0)
		 ON CONFLICT (machine_id) DO UPDATE
		 SET expires_at = EXCLUDED.expires_at, kicker = EXCLUDED.kicker, reason = EXCLUDED.reason, attempts = 0`,
		b.MachineID, b.ExpiresAt, b.Kicker, b.Reason,
	)
	if err != nil {
		return fmt.Errorf("inserting ban %d: %w", b.MachineID, err)
	}
	return nil
}

// Delete removes a ban record explicitly. Expired records are not removed
// automatically: the ban filter lets the login through and leaves the
// record in place.
func (s *BanStore) Delete(ctx context.Context, machineID uint32) error {
	_, err := s.db.pool.Exec(ctx, `DELETE FROM bans WHERE machine_id = $1`, machineID)
	if err != nil {
		return fmt.Errorf("deleting ban %d: %w", machineID, err)
	}
	return nil
}

// IncrementAttempts bumps the attempt counter on a still-active ban.
func (s *BanStore) IncrementAttempts(ctx context.Context, machineID uint32) error {
	_, err := s.db.pool.Exec(ctx,
		`UPDATE bans SET attempts = attempts + 1 WHERE machine_id = $1`, machineID)
	if err != nil {
		return fmt.Errorf("incrementing ban attempts %d: %w", machineID, err)
	}
	return nil
}
