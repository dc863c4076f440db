package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gog/cmd/security/token"

	backend "github.com/redis/go-redis/v9"
)

// RedisRegistry implements Registry with one expiring Redis key per session.
//
// Redis drops expired keys on its own, so this backend never runs a reaper.
// Expiry is measured by the Redis server clock; WithClock has no effect here.
type RedisRegistry struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	opts   options
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry creates a Redis-backed registry. The client is owned by
// the caller; Close does not close it.
//
// A TTL <= 0 falls back to DefaultConfig().TTL and an empty prefix to the
// default prefix.
func NewRedisRegistry(client backend.UniversalClient, cfg Config, opts ...Option) *RedisRegistry {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.RedisKeyPrefix == "" {
		cfg.RedisKeyPrefix = def.RedisKeyPrefix
	}

	r := &RedisRegistry{
		client: client,
		prefix: cfg.RedisKeyPrefix,
		ttl:    cfg.TTL,
		opts:   buildOptions(opts),
	}
	if cfg.CleanupInterval > 0 {
		r.opts.logger.Debug("session.redis.reaper_ignored", "interval", cfg.CleanupInterval.String())
	}
	return r
}

func (r *RedisRegistry) key(tok Token) string {
	return r.prefix + token.HashSessionTokenHex(tok.String())
}

// Add stores identity under a fresh token. SET NX guarantees the key did not
// already exist; on collision a new token is drawn.
func (r *RedisRegistry) Add(ctx context.Context, identity string) (Token, error) {
	for {
		tok := r.opts.tokens()
		ok, err := r.client.SetNX(ctx, r.key(tok), identity, r.ttl).Result()
		if err != nil {
			return Token{}, fmt.Errorf("failed to save session to redis: %w", err)
		}
		if ok {
			return tok, nil
		}
	}
}

// Get reads the identity and resets the key TTL atomically (GETEX).
func (r *RedisRegistry) Get(ctx context.Context, tok Token) (string, error) {
	identity, err := r.client.GetEx(ctx, r.key(tok), r.ttl).Result()
	if errors.Is(err, backend.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session from redis: %w", err)
	}
	return identity, nil
}

// Remove deletes the session key.
func (r *RedisRegistry) Remove(ctx context.Context, tok Token) error {
	if err := r.client.Del(ctx, r.key(tok)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the client belongs to the caller.
func (r *RedisRegistry) Close() error { return nil }
