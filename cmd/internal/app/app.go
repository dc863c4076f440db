// Package app wires the gog server runtime: config, logging, the session registry and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"gog/cmd/internal/auth/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the gog server runtime: it owns the session registry, its backing
// connections and the HTTP server wiring.
type App struct {
	cfg Config
	log Logger

	registry session.Registry
	metrics  *prometheus.Registry

	// closers release backend connections after the registry is closed.
	closers []func()
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Session.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: promReg,
	}

	registry, err := a.newRegistry(ctx, session.NewMetrics(promReg))
	if err != nil {
		a.closeBackends()
		return nil, err
	}
	a.registry = registry

	return a, nil
}

// Registry returns the instrumented session registry.
func (a *App) Registry() session.Registry { return a.registry }

// newRegistry builds the configured backend and wraps it with metrics.
// Ownership model:
// - app owns pool/client lifecycle
// - registry Close only stops the reaper
func (a *App) newRegistry(ctx context.Context, m *session.Metrics) (session.Registry, error) {
	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithSweepObserver(m),
	}

	switch a.cfg.Session.Backend {
	case session.BackendMemory:
		mem := session.NewMemoryRegistry(a.cfg.Session, opts...)
		m.BindStored(a.metrics, mem.Len)
		a.log.Info("session.backend.memory",
			"ttl", a.cfg.Session.TTL.String(),
			"cleanup_interval", a.cfg.Session.CleanupInterval.String(),
		)
		return session.Instrument(mem, m), nil

	case session.BackendPostgres:
		if a.cfg.DatabaseURL == "" {
			return nil, errors.New("session backend postgres requires GOG_DATABASE_URL")
		}
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		pg := session.NewPostgresRegistry(pool, a.cfg.Session, opts...)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("ensure session schema: %w", err)
		}
		a.log.Info("session.backend.postgres", "ttl", a.cfg.Session.TTL.String())
		return session.Instrument(pg, m), nil

	case session.BackendRedis:
		if a.cfg.RedisAddr == "" {
			return nil, errors.New("session backend redis requires GOG_REDIS_ADDR")
		}
		client, err := NewRedisClient(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })

		a.log.Info("session.backend.redis", "ttl", a.cfg.Session.TTL.String(), "addr", a.cfg.RedisAddr)
		return session.Instrument(session.NewRedisRegistry(client, a.cfg.Session, opts...), m), nil
	}

	return nil, fmt.Errorf("unknown session backend %q", a.cfg.Session.Backend)
}

// Handler returns the HTTP handler with every route and middleware applied.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.registry, a.metrics)
	return WithRequestLogging(mux, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
// The registry and its backend connections are closed before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"base_url", runtimeBaseURL(a.cfg.HTTPAddr),
		"session_backend", a.cfg.Session.Backend,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

// Close stops the registry and releases backend connections. Safe to call more than once.
func (a *App) Close() {
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			a.log.Error("session.registry.close.fail", "err", err)
		}
		a.registry = nil
	}
	a.closeBackends()
}

func (a *App) closeBackends() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
