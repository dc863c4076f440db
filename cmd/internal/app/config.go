package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gog/cmd/internal/auth/session"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime configuration.
//
// Precedence, lowest first: DefaultConfig, optional YAML file, environment
// variables, CLI flags (applied by cmd/gog).
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// If true:
	// - /readyz returns 503 unless a persistent session backend is configured.
	ReadinessRequireBackend bool

	// Security policy:
	// If true, GOG_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and stored session tokens are HMAC-hashed.
	RequireTokenHMAC bool

	Session session.Config
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:  "0.0.0.0:8080",
		LogLevel:  "info",
		LogFormat: "json",

		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,

		DBMaxConns: 10,
		DBMinConns: 0,

		Session: session.DefaultConfig(),
	}
}

// LoadConfig loads Config from environment variables over DefaultConfig.
func LoadConfig() (Config, error) {
	return LoadConfigOver(DefaultConfig())
}

// LoadConfigOver loads environment variables over base.
func LoadConfigOver(base Config) (Config, error) {
	sess, err := session.LoadConfigFromEnvOver(base.Session)
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:  EnvString("GOG_HTTP_ADDR", base.HTTPAddr),
		LogLevel:  EnvString("GOG_LOG_LEVEL", base.LogLevel),
		LogFormat: EnvString("GOG_LOG_FORMAT", base.LogFormat),

		ReadHeaderTimeout: EnvDuration("GOG_HTTP_READ_HEADER_TIMEOUT", base.ReadHeaderTimeout),
		ReadTimeout:       EnvDuration("GOG_HTTP_READ_TIMEOUT", base.ReadTimeout),
		WriteTimeout:      EnvDuration("GOG_HTTP_WRITE_TIMEOUT", base.WriteTimeout),
		IdleTimeout:       EnvDuration("GOG_HTTP_IDLE_TIMEOUT", base.IdleTimeout),

		MaxHeaderBytes: EnvInt("GOG_HTTP_MAX_HEADER_BYTES", base.MaxHeaderBytes),

		DatabaseURL: EnvString("GOG_DATABASE_URL", base.DatabaseURL),
		DBMaxConns:  EnvInt32("GOG_DB_MAX_CONNS", base.DBMaxConns),
		DBMinConns:  EnvInt32("GOG_DB_MIN_CONNS", base.DBMinConns),

		RedisAddr:     EnvString("GOG_REDIS_ADDR", base.RedisAddr),
		RedisPassword: EnvString("GOG_REDIS_PASSWORD", base.RedisPassword),
		RedisDB:       EnvInt("GOG_REDIS_DB", base.RedisDB),

		ReadinessRequireBackend: EnvBool("GOG_READINESS_REQUIRE_BACKEND", base.ReadinessRequireBackend),

		RequireTokenHMAC: EnvBool("GOG_REQUIRE_TOKEN_HMAC", base.RequireTokenHMAC),

		Session: sess,
	}, nil
}

// fileConfig is the YAML shape of a config file. Durations are Go duration strings.
type fileConfig struct {
	HTTP struct {
		Addr              string `yaml:"addr"`
		ReadHeaderTimeout string `yaml:"read_header_timeout"`
		ReadTimeout       string `yaml:"read_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		IdleTimeout       string `yaml:"idle_timeout"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		URL      string `yaml:"url"`
		MaxConns int32  `yaml:"max_conns"`
		MinConns int32  `yaml:"min_conns"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Session struct {
		Backend         string `yaml:"backend"`
		TTL             string `yaml:"ttl"`
		CleanupInterval string `yaml:"cleanup_interval"`
		RedisPrefix     string `yaml:"redis_prefix"`
	} `yaml:"session"`

	ReadinessRequireBackend *bool `yaml:"readiness_require_backend"`
	RequireTokenHMAC        *bool `yaml:"require_token_hmac"`
}

// LoadConfigFile reads a YAML config file and applies its non-empty values over base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := base
	setString(&cfg.HTTPAddr, fc.HTTP.Addr)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)
	setString(&cfg.DatabaseURL, fc.Database.URL)
	setString(&cfg.RedisAddr, fc.Redis.Addr)
	setString(&cfg.RedisPassword, fc.Redis.Password)
	setString(&cfg.Session.RedisKeyPrefix, fc.Session.RedisPrefix)

	if fc.Database.MaxConns > 0 {
		cfg.DBMaxConns = fc.Database.MaxConns
	}
	if fc.Database.MinConns > 0 {
		cfg.DBMinConns = fc.Database.MinConns
	}
	if fc.Redis.DB > 0 {
		cfg.RedisDB = fc.Redis.DB
	}
	if fc.ReadinessRequireBackend != nil {
		cfg.ReadinessRequireBackend = *fc.ReadinessRequireBackend
	}
	if fc.RequireTokenHMAC != nil {
		cfg.RequireTokenHMAC = *fc.RequireTokenHMAC
	}
	if v := strings.TrimSpace(fc.Session.Backend); v != "" {
		cfg.Session.Backend = session.Backend(strings.ToLower(v))
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.read_header_timeout", fc.HTTP.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"http.read_timeout", fc.HTTP.ReadTimeout, &cfg.ReadTimeout},
		{"http.write_timeout", fc.HTTP.WriteTimeout, &cfg.WriteTimeout},
		{"http.idle_timeout", fc.HTTP.IdleTimeout, &cfg.IdleTimeout},
		{"session.ttl", fc.Session.TTL, &cfg.Session.TTL},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("config file %s: invalid %s %q", path, d.name, d.raw)
		}
		*d.dst = v
	}

	if v := strings.TrimSpace(fc.Session.CleanupInterval); v != "" {
		d, err := session.ParseCleanupInterval(v)
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: invalid session.cleanup_interval %q: %w", path, v, err)
		}
		cfg.Session.CleanupInterval = d
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
