package session

import (
	"context"
	"runtime"
	"sync"
	"time"
)

type entry struct {
	identity  string
	expiresAt time.Time
}

// table is the token -> entry map. Every access goes through mu.
//
// sync.Mutex has no poisoned state: a panic while the lock is held unwinds
// through the deferred Unlock, so lock acquisition cannot fail.
type table struct {
	mu      sync.Mutex
	entries map[Token]entry

	// afterScan, when set, runs between the scan and delete phases of sweep.
	afterScan func()
}

func newTable() *table {
	return &table{entries: make(map[Token]entry)}
}

// sweep removes entries that expired at or before now.
//
// Candidates are collected first and then deleted only if they are still
// expired as of now, so a Get that renewed an entry in between wins.
func (t *table) sweep(now time.Time) int {
	t.mu.Lock()
	var expired []Token
	for tok, e := range t.entries {
		if !e.expiresAt.After(now) {
			expired = append(expired, tok)
		}
	}
	t.mu.Unlock()

	if t.afterScan != nil {
		t.afterScan()
	}
	if len(expired) == 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for _, tok := range expired {
		e, ok := t.entries[tok]
		if !ok || e.expiresAt.After(now) {
			continue
		}
		delete(t.entries, tok)
		removed++
	}
	return removed
}

func sweepTable(_ context.Context, t *table, now time.Time) (int, error) {
	return t.sweep(now), nil
}

// MemoryRegistry is the in-process Registry. It is safe for concurrent use.
//
// One MemoryRegistry is meant to be constructed per server and shared by
// reference with the request handlers that need it.
type MemoryRegistry struct {
	table *table
	ttl   time.Duration
	opts  options

	reaper    *reaper
	cleanup   runtime.Cleanup
	closeOnce sync.Once
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry builds an in-memory registry from cfg.
//
// When cfg.CleanupInterval > 0 a background reaper evicts expired sessions
// on that interval. It stops on Close, or on its own once the registry has
// been garbage collected.
//
// cfg is not validated: a TTL <= 0 falls back to DefaultConfig().TTL and any
// positive CleanupInterval is honored. Run cfg.Validate first to reject such
// values instead.
func NewMemoryRegistry(cfg Config, opts ...Option) *MemoryRegistry {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}

	r := &MemoryRegistry{
		table: newTable(),
		ttl:   cfg.TTL,
		opts:  buildOptions(opts),
	}

	if cfg.CleanupInterval > 0 {
		r.reaper = startReaper(r.table, cfg.CleanupInterval, r.opts, sweepTable)
		r.cleanup = runtime.AddCleanup(r, func(cancel context.CancelFunc) { cancel() }, r.reaper.cancel)
	}

	return r
}

// Add stores a new session for identity. The token is redrawn until it
// does not collide with a stored entry.
func (r *MemoryRegistry) Add(_ context.Context, identity string) (Token, error) {
	now := r.opts.clock.Now()

	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	tok := r.opts.tokens()
	for {
		if _, taken := r.table.entries[tok]; !taken {
			break
		}
		tok = r.opts.tokens()
	}

	r.table.entries[tok] = entry{identity: identity, expiresAt: now.Add(r.ttl)}
	return tok, nil
}

// Get returns the identity for tok and extends the session to now + TTL.
// An entry whose expiry has passed is dropped and reported as not found.
func (r *MemoryRegistry) Get(_ context.Context, tok Token) (string, error) {
	now := r.opts.clock.Now()

	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	e, ok := r.table.entries[tok]
	if !ok {
		return "", ErrSessionNotFound
	}
	if !e.expiresAt.After(now) {
		delete(r.table.entries, tok)
		return "", ErrSessionNotFound
	}

	e.expiresAt = now.Add(r.ttl)
	r.table.entries[tok] = e
	return e.identity, nil
}

// Remove deletes the session for tok, if any.
func (r *MemoryRegistry) Remove(_ context.Context, tok Token) error {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	delete(r.table.entries, tok)
	return nil
}

// Len returns the number of stored entries, including expired entries the
// reaper has not reached yet.
func (r *MemoryRegistry) Len() int {
	r.table.mu.Lock()
	defer r.table.mu.Unlock()

	return len(r.table.entries)
}

// Sweep evicts expired entries immediately and returns how many were removed.
// It is what the background reaper runs on every tick.
func (r *MemoryRegistry) Sweep() int {
	return r.table.sweep(r.opts.clock.Now())
}

// Close stops the background reaper, if any. It is idempotent.
func (r *MemoryRegistry) Close() error {
	r.closeOnce.Do(func() {
		if r.reaper != nil {
			r.cleanup.Stop()
			r.reaper.stop()
		}
	})
	return nil
}
