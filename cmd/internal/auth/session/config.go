package session

import (
	"os"
	"strings"
	"time"
)

// Backend selects where sessions are stored.
type Backend string

const (
	// BackendMemory keeps sessions in process memory (default).
	BackendMemory Backend = "memory"
	// BackendPostgres keeps sessions in the gog.sessions table.
	BackendPostgres Backend = "postgres"
	// BackendRedis keeps sessions as expiring Redis keys.
	BackendRedis Backend = "redis"
)

// Config defines runtime configuration for the session registry.
type Config struct {
	// Backend selects the Registry implementation.
	Backend Backend

	// TTL is how long a session stays valid after its last successful lookup.
	TTL time.Duration

	// CleanupInterval is the reaper period. Zero disables the reaper, in
	// which case expired sessions are only dropped when looked up.
	CleanupInterval time.Duration

	// RedisKeyPrefix prefixes every key written by the Redis backend.
	RedisKeyPrefix string
}

// MinCleanupInterval is the shortest reaper interval accepted from configuration.
const MinCleanupInterval = time.Second

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendMemory,
		TTL:             10 * time.Minute,
		CleanupInterval: time.Minute,
		RedisKeyPrefix:  "gog:session:",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - GOG_SESSION_BACKEND (memory, postgres, redis)
//   - GOG_SESSION_TTL (Go duration, > 0)
//   - GOG_SESSION_CLEANUP_INTERVAL (Go duration; "0" or "off" disables the reaper)
//   - GOG_SESSION_REDIS_PREFIX
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	return LoadConfigFromEnvOver(DefaultConfig())
}

// LoadConfigFromEnvOver is LoadConfigFromEnv with base in place of the
// defaults, so values from a config file can sit underneath the environment.
func LoadConfigFromEnvOver(base Config) (Config, error) {
	cfg := base

	if v := strings.TrimSpace(os.Getenv("GOG_SESSION_BACKEND")); v != "" {
		cfg.Backend = Backend(strings.ToLower(v))
	}

	if v := strings.TrimSpace(os.Getenv("GOG_SESSION_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := strings.TrimSpace(os.Getenv("GOG_SESSION_CLEANUP_INTERVAL")); v != "" {
		d, err := ParseCleanupInterval(v)
		if err != nil {
			return Config{}, err
		}
		cfg.CleanupInterval = d
	}

	if v := strings.TrimSpace(os.Getenv("GOG_SESSION_REDIS_PREFIX")); v != "" {
		cfg.RedisKeyPrefix = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseCleanupInterval parses a reaper interval. "off", "none" and "0"
// disable the reaper. Positive values below MinCleanupInterval are rejected.
func ParseCleanupInterval(v string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "off", "none", "0":
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d < 0 || (d > 0 && d < MinCleanupInterval) {
		return 0, ErrConfig
	}
	return d, nil
}

// Validate checks the invariants every backend relies on.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		return ErrConfig
	}
	if c.TTL <= 0 || c.CleanupInterval < 0 {
		return ErrConfig
	}
	if c.CleanupInterval > 0 && c.CleanupInterval < MinCleanupInterval {
		return ErrConfig
	}
	if c.Backend == BackendRedis && strings.TrimSpace(c.RedisKeyPrefix) == "" {
		return ErrConfig
	}
	return nil
}
