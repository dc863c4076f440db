package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"gog/cmd/security/token"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgTable is the reaper's target for the Postgres backend.
type pgTable struct {
	pool *pgxpool.Pool
}

func (t *pgTable) sweep(ctx context.Context, now time.Time) (int, error) {
	tag, err := t.pool.Exec(ctx, `
		DELETE FROM gog.sessions
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func sweepPG(ctx context.Context, t *pgTable, now time.Time) (int, error) {
	return t.sweep(ctx, now)
}

// PostgresRegistry implements Registry using PostgreSQL (gog.sessions).
//
// Only the hash of a token is stored. Renewal and expiry checks run as a
// single UPDATE, so concurrent lookups and sweeps are serialized by row locks.
type PostgresRegistry struct {
	table *pgTable
	ttl   time.Duration
	opts  options

	reaper    *reaper
	cleanup   runtime.Cleanup
	closeOnce sync.Once
}

var _ Registry = (*PostgresRegistry)(nil)

// NewPostgresRegistry creates a Postgres-backed registry. The pool is owned
// by the caller; Close does not close it.
//
// As with NewMemoryRegistry, a TTL <= 0 falls back to DefaultConfig().TTL.
func NewPostgresRegistry(pool *pgxpool.Pool, cfg Config, opts ...Option) *PostgresRegistry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	r := &PostgresRegistry{
		table: &pgTable{pool: pool},
		ttl:   cfg.TTL,
		opts:  buildOptions(opts),
	}

	if cfg.CleanupInterval > 0 {
		r.reaper = startReaper(r.table, cfg.CleanupInterval, r.opts, sweepPG)
		r.cleanup = runtime.AddCleanup(r, func(cancel context.CancelFunc) { cancel() }, r.reaper.cancel)
	}

	return r
}

// EnsureSchema creates the sessions table if it does not exist yet.
func (r *PostgresRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.table.pool.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS gog;

		CREATE TABLE IF NOT EXISTS gog.sessions (
			token_hash  text        PRIMARY KEY,
			identity    text        NOT NULL,
			created_at  timestamptz NOT NULL,
			expires_at  timestamptz NOT NULL
		);

		CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON gog.sessions (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("ensure sessions schema: %w", err)
	}
	return nil
}

// Add inserts a new session row, redrawing the token on hash collision.
func (r *PostgresRegistry) Add(ctx context.Context, identity string) (Token, error) {
	now := r.opts.clock.Now()

	for {
		tok := r.opts.tokens()
		tag, err := r.table.pool.Exec(ctx, `
			INSERT INTO gog.sessions (token_hash, identity, created_at, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (token_hash) DO NOTHING
		`, token.HashSessionTokenHex(tok.String()), identity, now, now.Add(r.ttl))
		if err != nil {
			return Token{}, fmt.Errorf("insert session: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return tok, nil
		}
	}
}

// Get renews and returns the session for tok in one statement.
func (r *PostgresRegistry) Get(ctx context.Context, tok Token) (string, error) {
	now := r.opts.clock.Now()

	var identity string
	err := r.table.pool.QueryRow(ctx, `
		UPDATE gog.sessions
		SET expires_at = $3
		WHERE token_hash = $1
		  AND expires_at > $2
		RETURNING identity
	`, token.HashSessionTokenHex(tok.String()), now, now.Add(r.ttl)).Scan(&identity)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return identity, nil
}

// Remove deletes the session row for tok (idempotent).
func (r *PostgresRegistry) Remove(ctx context.Context, tok Token) error {
	_, err := r.table.pool.Exec(ctx, `
		DELETE FROM gog.sessions
		WHERE token_hash = $1
	`, token.HashSessionTokenHex(tok.String()))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep deletes every session that expired at or before the current time.
func (r *PostgresRegistry) Sweep(ctx context.Context) (int, error) {
	return r.table.sweep(ctx, r.opts.clock.Now())
}

// Ping checks connectivity for readiness probes.
func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.table.pool.Ping(ctx)
}

// Close stops the background reaper, if any. The pool stays open.
func (r *PostgresRegistry) Close() error {
	r.closeOnce.Do(func() {
		if r.reaper != nil {
			r.cleanup.Stop()
			r.reaper.stop()
		}
	})
	return nil
}
