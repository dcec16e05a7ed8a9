// Package persist implements the concrete, Postgres-backed side of the
// "out of scope" persistence collaborator spec.md §1 describes only by
// contract: ban records (spec.md §3) and the player-score save/load the
// lifecycle engine's NeedGlobalSync/DoArenaSync2 states call into. The
// engine makes these calls synchronously, inline in its scan's apply
// phase; they are not posted to a worker or back to the mainloop.
package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool shared by the ban store and score store.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and returns a DB handle.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// Pool returns the underlying pgx pool (for goose migrations).
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}
