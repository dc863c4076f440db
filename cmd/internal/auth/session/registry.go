package session

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Registry abstracts token session storage.
//
// Implementations must renew a session on every successful Get
// (expiry = now + TTL) and must generate tokens themselves, retrying until
// the token does not collide with a live session.
type Registry interface {
	// Add creates a session for identity and returns its fresh token.
	Add(ctx context.Context, identity string) (Token, error)

	// Get returns the identity bound to tok and renews the session.
	// Returns ErrSessionNotFound when tok is unknown or expired.
	Get(ctx context.Context, tok Token) (string, error)

	// Remove deletes the session for tok. Removing an unknown token is a no-op.
	Remove(ctx context.Context, tok Token) error

	// Close stops background work owned by the registry. It does not close
	// connection pools or clients passed in by the caller.
	Close() error
}

// Pinger is implemented by registries backed by an external service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SweepObserver receives the outcome of every reaper sweep.
type SweepObserver interface {
	ObserveSweep(removed int, took time.Duration)
}

type options struct {
	clock    Clock
	logger   *slog.Logger
	observer SweepObserver

	// tokens draws new session tokens; tests replace it to force collisions.
	tokens func() Token
}

// Option configures a registry.
type Option func(*options)

// WithClock overrides the time source (tests inject a manual clock).
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger configures a logger for background events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSweepObserver reports reaper sweeps to obs.
func WithSweepObserver(obs SweepObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// withTokenSource overrides the token generator.
func withTokenSource(next func() Token) Option {
	return func(o *options) {
		if next != nil {
			o.tokens = next
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  SystemClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tokens: newToken,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
